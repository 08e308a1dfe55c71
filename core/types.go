package core

import "fmt"

// BlockID identifies one physical block in the block store. IDs are
// assigned by the store on creation and are never reused. The zero value
// is the "null" sentinel for write-once slots that have not been
// assigned yet.
type BlockID uint64

// NullBlockID is the unset sentinel. No real block ever gets this id.
const NullBlockID BlockID = 0

// IsNull reports whether the id is the unset sentinel.
func (id BlockID) IsNull() bool {
	return id == NullBlockID
}

func (id BlockID) String() string {
	if id.IsNull() {
		return "block:<null>"
	}
	return fmt.Sprintf("block:%d", uint64(id))
}

// CompressionType identifies the compression algorithm applied to a
// block payload. The value is stored on disk so readers know how to
// decompress.
type CompressionType byte

const (
	CompressionNone   CompressionType = 0
	CompressionSnappy CompressionType = 1
	CompressionLZ4    CompressionType = 2
	CompressionZSTD   CompressionType = 3
)

// String returns the canonical name of the compression type, as used in
// configuration files.
func (ct CompressionType) String() string {
	switch ct {
	case CompressionNone:
		return "none"
	case CompressionSnappy:
		return "snappy"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return "unknown"
	}
}

// Compressor defines the interface for block compression codecs.
// Implementations must be safe for concurrent use; they are shared
// process-wide through the codec registry.
type Compressor interface {
	// Compress compresses src and returns the compressed payload.
	Compress(src []byte) ([]byte, error)
	// Uncompress reverses Compress. expectedLen is the recorded
	// uncompressed length; a mismatch is reported as an error rather
	// than returning short data.
	Uncompress(src []byte, expectedLen int) ([]byte, error)
	// MaxCompressedLength returns an upper bound on the compressed size
	// of srcLen input bytes.
	MaxCompressedLength(srcLen int) int
	// Type returns the CompressionType identifier for this codec.
	Type() CompressionType
}
