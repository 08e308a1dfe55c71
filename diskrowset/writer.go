// Package diskrowset turns a drained memrowset into the immutable block
// set of one rowset: per-column data blocks, a bloom filter block and an
// ad-hoc index block, all registered through the tablet metadata.
package diskrowset

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/INLOpen/tabletstore/compressors"
	"github.com/INLOpen/tabletstore/core"
	"github.com/INLOpen/tabletstore/memrowset"
	"github.com/INLOpen/tabletstore/metadata"
)

const DefaultBloomFilterFPRate = 0.01

// WriterOptions configures a rowset writer.
type WriterOptions struct {
	Tablet *metadata.TabletMetadata
	// Compressor is applied to every block payload. Defaults to the
	// registry's no-compression codec.
	Compressor core.Compressor
	// BloomFilterFPRate is the target false positive rate for the
	// bloom block.
	BloomFilterFPRate float64
	Logger            *slog.Logger
	Tracer            trace.Tracer
}

// Writer flushes memrowsets into new immutable rowsets.
type Writer struct {
	tablet     *metadata.TabletMetadata
	compressor core.Compressor
	bloomRate  float64
	logger     *slog.Logger
	tracer     trace.Tracer
}

func NewWriter(opts WriterOptions) (*Writer, error) {
	if opts.Tablet == nil {
		return nil, fmt.Errorf("tablet metadata must not be nil")
	}
	compressor := opts.Compressor
	if compressor == nil {
		var err error
		compressor, err = compressors.ForType(core.CompressionNone)
		if err != nil {
			return nil, err
		}
	}
	rate := opts.BloomFilterFPRate
	if rate == 0 {
		rate = DefaultBloomFilterFPRate
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		tablet:     opts.Tablet,
		compressor: compressor,
		bloomRate:  rate,
		logger:     logger.With("component", "diskrowset-writer"),
		tracer:     opts.Tracer,
	}, nil
}

// Flush drains the memrowset into a freshly created rowset and commits
// it to the tablet superblock. On error the new rowset is never
// registered; blocks already written for it are orphaned and left to a
// future garbage-collection pass.
func (w *Writer) Flush(ctx context.Context, mrs *memrowset.MemRowSet) (*metadata.RowSetMetadata, error) {
	var span trace.Span
	if w.tracer != nil {
		ctx, span = w.tracer.Start(ctx, "diskrowset.Writer.Flush")
		defer span.End()
	}

	schema := mrs.Schema()
	if schema == nil {
		return nil, fmt.Errorf("memrowset has no schema")
	}
	numCols := schema.NumColumns()

	// Single pass over the sorted rows, splitting into per-column
	// value lists plus the key list for bloom and index blocks.
	numRows := mrs.Len()
	keys := make([][]byte, 0, numRows)
	columns := make([][][]byte, numCols)
	for i := range columns {
		columns[i] = make([][]byte, 0, numRows)
	}
	it := mrs.NewIterator()
	for it.Next() {
		row := it.Row()
		keys = append(keys, row.Key)
		for i := 0; i < numCols; i++ {
			columns[i] = append(columns[i], row.Values[i])
		}
	}
	it.Close()

	rs := w.tablet.CreateRowSet()

	for col := 0; col < numCols; col++ {
		if err := w.writeBlock(rs.NewColumnDataBlock(col))(encodeColumn(columns[col])); err != nil {
			return nil, fmt.Errorf("rowset %d: column %d: %w", rs.ID(), col, err)
		}
	}

	bloom, err := NewBloomFilter(uint64(len(keys)), w.bloomRate)
	if err != nil {
		return nil, fmt.Errorf("rowset %d: %w", rs.ID(), err)
	}
	for _, key := range keys {
		bloom.Add(key)
	}
	if err := w.writeBlock(rs.NewBloomDataBlock())(bloom.Bytes()); err != nil {
		return nil, fmt.Errorf("rowset %d: bloom block: %w", rs.ID(), err)
	}

	if err := w.writeBlock(rs.NewAdHocIndexDataBlock())(encodeAdHocIndex(keys)); err != nil {
		return nil, fmt.Errorf("rowset %d: ad-hoc index block: %w", rs.ID(), err)
	}

	if err := w.tablet.UpdateAndFlush(ctx, nil, []*metadata.RowSetMetadata{rs}); err != nil {
		if span != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, err
	}

	if span != nil {
		span.SetAttributes(
			attribute.Int("rows", len(keys)),
			attribute.Int("columns", numCols),
			attribute.Int64("rowset_id", int64(rs.ID())),
		)
	}
	w.logger.Info("flushed memrowset",
		"rowset", rs.ID(), "rows", len(keys), "columns", numCols,
		"compression", w.compressor.Type().String())
	return rs, nil
}

// writeBlock adapts a block allocation result into a closure that
// writes one enveloped payload and finalizes the block, aborting the
// temp file on failure.
func (w *Writer) writeBlock(wb core.WritableBlock, allocErr error) func(payload []byte) error {
	return func(payload []byte) error {
		if allocErr != nil {
			return allocErr
		}
		if err := WriteDataBlock(wb, w.compressor, payload); err != nil {
			wb.Abort()
			return err
		}
		if err := wb.Close(); err != nil {
			return fmt.Errorf("failed to finalize block %s: %w", wb.ID(), err)
		}
		return nil
	}
}
