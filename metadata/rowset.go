package metadata

import (
	"context"
	"fmt"
	"sync"

	"github.com/INLOpen/tabletstore/core"
)

// RowSetMetadata tracks the data blocks of one rowset.
//
// Each memrowset flush creates a new RowSetMetadata, and the rowset
// writer then allocates and fills the "immutable" blocks for columns,
// bloom filter and ad-hoc index. Once written, those block assignments
// never change; the rowset is registered with its tablet via
// UpdateAndFlush and becomes part of the durable superblock.
//
// The only mutable part of a published rowset is the delta chain, which
// accumulates flushed update blocks. Delta commits may run concurrently
// with tablet-level flushes, so the chain has its own lock.
type RowSetMetadata struct {
	tablet *TabletMetadata
	id     uint32

	// Write-once slots and the in-order column list. Mutated only by
	// the single writer populating a fresh rowset, before publication.
	bloomBlock      core.BlockID
	adhocIndexBlock core.BlockID
	columnBlocks    []core.BlockID

	deltasMu    sync.Mutex
	deltaBlocks []DeltaBlock
}

// DeltaBlock is one entry in a rowset's delta chain: the delta id
// assigned by the delta tracker and the block holding its contents.
type DeltaBlock struct {
	ID    uint32
	Block core.BlockID
}

func newRowSetFromDescriptor(tablet *TabletMetadata, d rowSetDescriptor) *RowSetMetadata {
	rs := &RowSetMetadata{
		tablet:       tablet,
		id:           d.ID,
		columnBlocks: append([]core.BlockID(nil), d.ColumnBlocks...),
	}
	if d.BloomPresent {
		rs.bloomBlock = d.BloomBlock
	}
	if d.AdHocPresent {
		rs.adhocIndexBlock = d.AdHocIndexBlock
	}
	for _, delta := range d.DeltaBlocks {
		rs.deltaBlocks = append(rs.deltaBlocks, DeltaBlock{ID: delta.ID, Block: delta.Block})
	}
	return rs
}

// toDescriptor snapshots the rowset for serialization. The delta lock is
// taken so a concurrent CommitDeltaDataBlock is either fully included or
// fully excluded, never torn.
func (rs *RowSetMetadata) toDescriptor() rowSetDescriptor {
	rs.deltasMu.Lock()
	deltas := make([]deltaBlockDescriptor, len(rs.deltaBlocks))
	for i, d := range rs.deltaBlocks {
		deltas[i] = deltaBlockDescriptor{ID: d.ID, Block: d.Block}
	}
	rs.deltasMu.Unlock()

	return rowSetDescriptor{
		ID:              rs.id,
		BloomPresent:    !rs.bloomBlock.IsNull(),
		BloomBlock:      rs.bloomBlock,
		AdHocPresent:    !rs.adhocIndexBlock.IsNull(),
		AdHocIndexBlock: rs.adhocIndexBlock,
		ColumnBlocks:    append([]core.BlockID(nil), rs.columnBlocks...),
		DeltaBlocks:     deltas,
	}
}

// ID returns the rowset id, unique within the owning tablet.
func (rs *RowSetMetadata) ID() uint32 {
	return rs.id
}

// Tablet returns the owning tablet metadata. The rowset never outlives
// its tablet.
func (rs *RowSetMetadata) Tablet() *TabletMetadata {
	return rs.tablet
}

func (rs *RowSetMetadata) store() core.BlockStore {
	return rs.tablet.Store()
}

// NewBloomDataBlock allocates the bloom filter block. The slot is
// write-once: a second call is a bug in the write path and panics.
func (rs *RowSetMetadata) NewBloomDataBlock() (core.WritableBlock, error) {
	if !rs.bloomBlock.IsNull() {
		panic(fmt.Sprintf("rowset %d: bloom block assigned twice (already %s)", rs.id, rs.bloomBlock))
	}
	wb, id, err := rs.store().CreateNewBlock()
	if err != nil {
		return nil, fmt.Errorf("rowset %d: failed to create bloom block: %w", rs.id, err)
	}
	rs.bloomBlock = id
	return wb, nil
}

// NewAdHocIndexDataBlock allocates the ad-hoc index block. Write-once,
// same rule as the bloom slot.
func (rs *RowSetMetadata) NewAdHocIndexDataBlock() (core.WritableBlock, error) {
	if !rs.adhocIndexBlock.IsNull() {
		panic(fmt.Sprintf("rowset %d: ad-hoc index block assigned twice (already %s)", rs.id, rs.adhocIndexBlock))
	}
	wb, id, err := rs.store().CreateNewBlock()
	if err != nil {
		return nil, fmt.Errorf("rowset %d: failed to create ad-hoc index block: %w", rs.id, err)
	}
	rs.adhocIndexBlock = id
	return wb, nil
}

// NewColumnDataBlock allocates the block for column colIdx. Columns must
// be allocated strictly in schema order; physical column order matches
// schema order by construction, so an out-of-order call panics.
func (rs *RowSetMetadata) NewColumnDataBlock(colIdx int) (core.WritableBlock, error) {
	if colIdx != len(rs.columnBlocks) {
		panic(fmt.Sprintf("rowset %d: column block %d allocated out of order (next is %d)",
			rs.id, colIdx, len(rs.columnBlocks)))
	}
	wb, id, err := rs.store().CreateNewBlock()
	if err != nil {
		return nil, fmt.Errorf("rowset %d: failed to create column block %d: %w", rs.id, colIdx, err)
	}
	rs.columnBlocks = append(rs.columnBlocks, id)
	return wb, nil
}

// NewDeltaDataBlock allocates a block for a delta flush. The block is
// not recorded in the chain; the delta tracker must call
// CommitDeltaDataBlock once the write completed.
func (rs *RowSetMetadata) NewDeltaDataBlock() (core.WritableBlock, core.BlockID, error) {
	wb, id, err := rs.store().CreateNewBlock()
	if err != nil {
		return nil, core.NullBlockID, fmt.Errorf("rowset %d: failed to create delta block: %w", rs.id, err)
	}
	return wb, id, nil
}

// CommitDeltaDataBlock appends a written delta block to the chain. This
// is the only mutation allowed on a published rowset and may interleave
// with tablet-level flushes.
func (rs *RowSetMetadata) CommitDeltaDataBlock(deltaID uint32, blockID core.BlockID) error {
	if blockID.IsNull() {
		return fmt.Errorf("rowset %d: cannot commit null delta block", rs.id)
	}
	rs.deltasMu.Lock()
	rs.deltaBlocks = append(rs.deltaBlocks, DeltaBlock{ID: deltaID, Block: blockID})
	rs.deltasMu.Unlock()
	return nil
}

// OpenDataBlock opens a previously committed block and reports its size.
func (rs *RowSetMetadata) OpenDataBlock(id core.BlockID) (core.ReadableBlock, uint64, error) {
	if id.IsNull() {
		return nil, 0, fmt.Errorf("rowset %d: block not assigned: %w", rs.id, core.ErrNotFound)
	}
	rb, err := rs.store().OpenBlock(id)
	if err != nil {
		return nil, 0, err
	}
	size, err := rb.Size()
	if err != nil {
		rb.Close()
		return nil, 0, err
	}
	return rb, size, nil
}

func (rs *RowSetMetadata) OpenBloomDataBlock() (core.ReadableBlock, uint64, error) {
	return rs.OpenDataBlock(rs.bloomBlock)
}

func (rs *RowSetMetadata) OpenAdHocIndexDataBlock() (core.ReadableBlock, uint64, error) {
	return rs.OpenDataBlock(rs.adhocIndexBlock)
}

func (rs *RowSetMetadata) OpenColumnDataBlock(colIdx int) (core.ReadableBlock, uint64, error) {
	if colIdx < 0 || colIdx >= len(rs.columnBlocks) {
		return nil, 0, fmt.Errorf("rowset %d: column %d out of range (%d columns): %w",
			rs.id, colIdx, len(rs.columnBlocks), core.ErrNotFound)
	}
	return rs.OpenDataBlock(rs.columnBlocks[colIdx])
}

func (rs *RowSetMetadata) OpenDeltaDataBlock(index int) (core.ReadableBlock, uint64, error) {
	rs.deltasMu.Lock()
	if index < 0 || index >= len(rs.deltaBlocks) {
		rs.deltasMu.Unlock()
		return nil, 0, fmt.Errorf("rowset %d: delta %d out of range (%d deltas): %w",
			rs.id, index, len(rs.deltaBlocks), core.ErrNotFound)
	}
	id := rs.deltaBlocks[index].Block
	rs.deltasMu.Unlock()
	return rs.OpenDataBlock(id)
}

// DeltaBlocksCount returns the current delta chain length. Higher layers
// use it to decide when a delta compaction is warranted.
func (rs *RowSetMetadata) DeltaBlocksCount() int {
	rs.deltasMu.Lock()
	defer rs.deltasMu.Unlock()
	return len(rs.deltaBlocks)
}

// DeltaBlocks returns a snapshot of the delta chain in commit order.
func (rs *RowSetMetadata) DeltaBlocks() []DeltaBlock {
	rs.deltasMu.Lock()
	defer rs.deltasMu.Unlock()
	return append([]DeltaBlock(nil), rs.deltaBlocks...)
}

// ColumnBlocksCount returns the number of column blocks allocated so far.
func (rs *RowSetMetadata) ColumnBlocksCount() int {
	return len(rs.columnBlocks)
}

// BloomBlockID returns the bloom block id, or the null sentinel.
func (rs *RowSetMetadata) BloomBlockID() core.BlockID {
	return rs.bloomBlock
}

// AdHocIndexBlockID returns the ad-hoc index block id, or the null sentinel.
func (rs *RowSetMetadata) AdHocIndexBlockID() core.BlockID {
	return rs.adhocIndexBlock
}

// ColumnBlockID returns the block id for column colIdx.
func (rs *RowSetMetadata) ColumnBlockID(colIdx int) core.BlockID {
	return rs.columnBlocks[colIdx]
}

// HasBloomDataBlock reports whether the bloom block is assigned and
// present in the store. Test/diagnostic helper.
func (rs *RowSetMetadata) HasBloomDataBlock() bool {
	return !rs.bloomBlock.IsNull() && rs.store().BlockExists(rs.bloomBlock)
}

// HasColumnDataBlock reports whether column colIdx is assigned and
// present in the store. Test/diagnostic helper.
func (rs *RowSetMetadata) HasColumnDataBlock(colIdx int) bool {
	return colIdx < len(rs.columnBlocks) && rs.store().BlockExists(rs.columnBlocks[colIdx])
}

// Flush persists the owning tablet's superblock. A rowset has no
// durable representation of its own.
func (rs *RowSetMetadata) Flush(ctx context.Context) error {
	return rs.tablet.Flush(ctx)
}

func (rs *RowSetMetadata) String() string {
	return fmt.Sprintf("rowset %d: bloom=%s adhoc=%s columns=%d deltas=%d",
		rs.id, rs.bloomBlock, rs.adhocIndexBlock, len(rs.columnBlocks), rs.DeltaBlocksCount())
}
