package core

import "io"

// WritableBlock is a handle for sequentially writing a freshly created
// block. Close finalizes the block durably; Abort discards it. Exactly
// one of the two must be called.
type WritableBlock interface {
	io.Writer
	// ID returns the identifier assigned to this block at creation.
	ID() BlockID
	// Close flushes, syncs and finalizes the block. After Close the
	// block is readable under its id.
	Close() error
	// Abort discards the partially written block.
	Abort() error
}

// ReadableBlock is a handle for random-access reads of a finalized
// block.
type ReadableBlock interface {
	io.ReaderAt
	io.Closer
	// Size returns the byte length of the block.
	Size() (uint64, error)
}

// BlockStore is the durable block storage consumed by the metadata
// layer. Implementations must guarantee that WriteBlock is atomic:
// after a crash either the previous content or the new content of the
// slot is readable, never a mix.
type BlockStore interface {
	// CreateNewBlock allocates a fresh block and returns a handle for
	// sequential writes along with the assigned id.
	CreateNewBlock() (WritableBlock, BlockID, error)
	// OpenBlock opens an existing block for reads. Unknown ids resolve
	// to an error wrapping ErrNotFound.
	OpenBlock(id BlockID) (ReadableBlock, error)
	// BlockExists probes for a finalized block. Diagnostics only.
	BlockExists(id BlockID) bool
	// AllocateBlockID reserves an id without any I/O. Used for anchor
	// slots that are written through WriteBlock.
	AllocateBlockID() BlockID
	// WriteBlock atomically replaces the content of the given block
	// slot. Reserved for superblock anchors; data blocks are immutable
	// and go through CreateNewBlock.
	WriteBlock(id BlockID, data []byte) error
	// ReadBlock reads the full content of a block.
	ReadBlock(id BlockID) ([]byte, error)
}
