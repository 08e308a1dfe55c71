// Package metadata implements the durable block-tracking layer for one
// tablet: which blocks make up each rowset, how delta chains grow, and
// how the whole layout is flushed atomically as a superblock.
package metadata

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/INLOpen/tabletstore/core"
)

// MasterBlock is the bootstrap descriptor handed to a tablet at
// construction. It names the two anchor block slots the superblock is
// written to alternately; the copy with the highest sequence number
// wins at load time, so a torn write of one anchor can never shadow the
// previous durable state.
type MasterBlock struct {
	AnchorA core.BlockID
	AnchorB core.BlockID
}

// NewMasterBlock reserves two fresh anchor slots in the store.
func NewMasterBlock(store core.BlockStore) MasterBlock {
	return MasterBlock{
		AnchorA: store.AllocateBlockID(),
		AnchorB: store.AllocateBlockID(),
	}
}

func (mb MasterBlock) anchors() [2]core.BlockID {
	return [2]core.BlockID{mb.AnchorA, mb.AnchorB}
}

// Options configures a TabletMetadata instance.
type Options struct {
	TabletID string
	// StartKey is the inclusive lower bound of the tablet's partition
	// range; EndKey the exclusive upper bound. Either may be empty for
	// an open end.
	StartKey []byte
	EndKey   []byte
	// MasterBlock anchors the superblock in the store.
	MasterBlock MasterBlock
	// Schema, when set, enables column-count validation on Load.
	Schema *core.Schema
	Store  core.BlockStore
	Logger *slog.Logger
	Tracer trace.Tracer
}

// TabletMetadata manages the block tracking for one tablet.
//
// The master sends the bootstrap information (tablet id, master block,
// key bounds); the tablet server constructs a TabletMetadata from it and
// then either Creates a fresh superblock or Loads the existing one.
//
// All structural mutation of the rowset collection and every superblock
// write happen under one mutex: a slow flush blocks other structural
// changes, which is the price of never exposing a partially updated
// superblock. Rowset id allocation is a plain atomic increment and
// proceeds even while a flush is running.
type TabletMetadata struct {
	store  core.BlockStore
	logger *slog.Logger
	tracer trace.Tracer

	tabletID string
	master   MasterBlock
	schema   *core.Schema

	mu       sync.Mutex
	startKey []byte
	endKey   []byte
	rowsets  []*RowSetMetadata
	sequence uint64 // superblock sequence, grows by one per flush

	nextRowSetID atomic.Uint32
}

// New validates the options and builds an in-memory TabletMetadata.
// Nothing is read or written until Create or Load.
func New(opts Options) (*TabletMetadata, error) {
	if opts.TabletID == "" {
		return nil, fmt.Errorf("tablet id must not be empty")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("block store must not be nil")
	}
	if opts.MasterBlock.AnchorA.IsNull() || opts.MasterBlock.AnchorB.IsNull() {
		return nil, fmt.Errorf("master block anchors must be assigned")
	}
	if opts.MasterBlock.AnchorA == opts.MasterBlock.AnchorB {
		return nil, fmt.Errorf("master block anchors must be distinct")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &TabletMetadata{
		store:    opts.Store,
		logger:   logger.With("tablet", opts.TabletID),
		tracer:   opts.Tracer,
		tabletID: opts.TabletID,
		master:   opts.MasterBlock,
		schema:   opts.Schema,
		startKey: append([]byte(nil), opts.StartKey...),
		endKey:   append([]byte(nil), opts.EndKey...),
	}, nil
}

// TabletID returns the tablet identifier.
func (t *TabletMetadata) TabletID() string {
	return t.tabletID
}

// StartKey returns the inclusive lower bound of the tablet range.
func (t *TabletMetadata) StartKey() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]byte(nil), t.startKey...)
}

// EndKey returns the exclusive upper bound of the tablet range.
func (t *TabletMetadata) EndKey() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]byte(nil), t.endKey...)
}

// Master returns the bootstrap anchor descriptor.
func (t *TabletMetadata) Master() MasterBlock {
	return t.master
}

// Store returns the underlying block store.
func (t *TabletMetadata) Store() core.BlockStore {
	return t.store
}

// Create writes the initial, empty superblock. It fails if the store
// cannot persist the anchor.
func (t *TabletMetadata) Create(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sequence != 0 {
		return fmt.Errorf("tablet %s: already initialized (sequence %d)", t.tabletID, t.sequence)
	}
	return t.flushLocked(ctx, t.rowsets)
}

// Load reads the superblock through the master anchors and reconstructs
// the rowset collection. The anchor with the highest decodable sequence
// wins; a torn anchor from a crashed flush falls back to the older one.
func (t *TabletMetadata) Load(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var span trace.Span
	if t.tracer != nil {
		_, span = t.tracer.Start(ctx, "TabletMetadata.Load")
		defer span.End()
	}

	var best *superBlock
	var lastErr error
	for _, anchor := range t.master.anchors() {
		data, err := t.store.ReadBlock(anchor)
		if err != nil {
			if !errors.Is(err, core.ErrNotFound) {
				lastErr = err
			}
			continue
		}
		sb, err := readSuperBlockBinary(bytes.NewReader(data))
		if err != nil {
			t.logger.Warn("skipping undecodable superblock anchor", "anchor", anchor, "error", err)
			lastErr = err
			continue
		}
		if best == nil || sb.Sequence > best.Sequence {
			best = sb
		}
	}
	if best == nil {
		if lastErr != nil {
			if span != nil {
				span.SetStatus(codes.Error, lastErr.Error())
			}
			return fmt.Errorf("tablet %s: failed to load superblock: %w", t.tabletID, lastErr)
		}
		return fmt.Errorf("tablet %s: no superblock in master anchors: %w", t.tabletID, core.ErrNotFound)
	}

	if best.TabletID != t.tabletID {
		return core.NewCorruptionError("superblock belongs to tablet %q, expected %q", best.TabletID, t.tabletID)
	}

	rowsets := make([]*RowSetMetadata, 0, len(best.RowSets))
	seen := make(map[uint32]struct{}, len(best.RowSets))
	var maxID uint32
	var haveIDs bool
	for _, d := range best.RowSets {
		if _, dup := seen[d.ID]; dup {
			return core.NewCorruptionError("duplicate rowset id %d in superblock", d.ID)
		}
		seen[d.ID] = struct{}{}
		if t.schema != nil && len(d.ColumnBlocks) != t.schema.NumColumns() {
			return core.NewCorruptionError("rowset %d has %d column blocks, schema expects %d",
				d.ID, len(d.ColumnBlocks), t.schema.NumColumns())
		}
		rowsets = append(rowsets, newRowSetFromDescriptor(t, d))
		if d.ID >= maxID {
			maxID = d.ID
			haveIDs = true
		}
	}

	t.startKey = best.StartKey
	t.endKey = best.EndKey
	t.rowsets = rowsets
	t.sequence = best.Sequence
	if haveIDs && maxID+1 > t.nextRowSetID.Load() {
		t.nextRowSetID.Store(maxID + 1)
	}

	if span != nil {
		span.SetAttributes(
			attribute.Int("rowsets", len(rowsets)),
			attribute.Int64("sequence", int64(best.Sequence)),
		)
	}
	t.logger.Info("loaded tablet superblock",
		"sequence", best.Sequence, "rowsets", len(rowsets))
	return nil
}

// CreateRowSet allocates the next rowset id and returns a fresh,
// unpopulated RowSetMetadata bound to this tablet. The rowset is not
// registered or persisted; the caller populates its blocks and then
// commits it through UpdateAndFlush. Ids allocated for rowsets that are
// never committed are simply burned, never reused.
func (t *TabletMetadata) CreateRowSet() *RowSetMetadata {
	id := t.nextRowSetID.Add(1) - 1
	return &RowSetMetadata{tablet: t, id: id}
}

// Flush persists the current rowset collection. Used to make delta
// chain growth on existing rowsets durable.
func (t *TabletMetadata) Flush(ctx context.Context) error {
	return t.UpdateAndFlush(ctx, nil, nil)
}

// UpdateAndFlush is the single mutation entry point for the rowset
// collection: it removes the rowsets whose ids appear in toRemove (ids
// not present are ignored), appends the rowsets in toAdd, and durably
// replaces the superblock with the result. On failure the in-memory
// collection and the previous durable superblock are left untouched.
func (t *TabletMetadata) UpdateAndFlush(ctx context.Context, toRemove []uint32, toAdd []*RowSetMetadata) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	removeSet := make(map[uint32]struct{}, len(toRemove))
	for _, id := range toRemove {
		removeSet[id] = struct{}{}
	}

	newRowsets := make([]*RowSetMetadata, 0, len(t.rowsets)+len(toAdd))
	for _, rs := range t.rowsets {
		if _, drop := removeSet[rs.id]; drop {
			continue
		}
		newRowsets = append(newRowsets, rs)
	}
	newRowsets = append(newRowsets, toAdd...)

	if err := t.flushLocked(ctx, newRowsets); err != nil {
		return err
	}
	t.rowsets = newRowsets
	return nil
}

// flushLocked serializes the given rowset collection and atomically
// replaces the superblock anchor. Callers hold t.mu. The in-memory
// sequence advances only after the write succeeded.
func (t *TabletMetadata) flushLocked(ctx context.Context, rowsets []*RowSetMetadata) error {
	var span trace.Span
	if t.tracer != nil {
		_, span = t.tracer.Start(ctx, "TabletMetadata.Flush")
		defer span.End()
	}

	seq := t.sequence + 1
	sb := &superBlock{
		Sequence: seq,
		TabletID: t.tabletID,
		StartKey: t.startKey,
		EndKey:   t.endKey,
		RowSets:  make([]rowSetDescriptor, len(rowsets)),
	}
	for i, rs := range rowsets {
		sb.RowSets[i] = rs.toDescriptor()
	}

	var buf bytes.Buffer
	if err := writeSuperBlockBinary(&buf, sb); err != nil {
		return fmt.Errorf("tablet %s: failed to encode superblock: %w", t.tabletID, err)
	}

	// Anchors alternate by sequence parity, so the previous superblock
	// stays intact until this write has fully committed.
	anchors := t.master.anchors()
	anchor := anchors[seq%2]
	if err := t.store.WriteBlock(anchor, buf.Bytes()); err != nil {
		if span != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		return fmt.Errorf("tablet %s: failed to write superblock: %w", t.tabletID, err)
	}
	t.sequence = seq

	if span != nil {
		span.SetAttributes(
			attribute.Int("rowsets", len(rowsets)),
			attribute.Int64("sequence", int64(seq)),
			attribute.Int("superblock_bytes", buf.Len()),
		)
	}
	t.logger.Debug("flushed tablet superblock",
		"sequence", seq, "rowsets", len(rowsets), "anchor", anchor, "bytes", buf.Len())
	return nil
}

// Rowsets returns a snapshot of the current rowset collection in
// registration order.
func (t *TabletMetadata) Rowsets() []*RowSetMetadata {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*RowSetMetadata(nil), t.rowsets...)
}

// GetRowSet returns the registered rowset with the given id, or nil.
func (t *TabletMetadata) GetRowSet(id uint32) *RowSetMetadata {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, rs := range t.rowsets {
		if rs.id == id {
			return rs
		}
	}
	return nil
}
