package diskrowset

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/INLOpen/tabletstore/blockstore"
	"github.com/INLOpen/tabletstore/compressors"
	"github.com/INLOpen/tabletstore/core"
	"github.com/INLOpen/tabletstore/memrowset"
	"github.com/INLOpen/tabletstore/metadata"
	"github.com/INLOpen/tabletstore/predicate"
)

func newTestTablet(t *testing.T) (*metadata.TabletMetadata, *blockstore.Manager, metadata.MasterBlock) {
	t.Helper()
	store, err := blockstore.Open(t.TempDir(), testLogger())
	require.NoError(t, err)
	master := metadata.NewMasterBlock(store)
	tm, err := metadata.New(metadata.Options{
		TabletID:    "tablet-writer-test",
		StartKey:    []byte("a"),
		EndKey:      []byte("z"),
		MasterBlock: master,
		Schema:      core.NewSchema("host", "value"),
		Store:       store,
		Logger:      testLogger(),
	})
	require.NoError(t, err)
	require.NoError(t, tm.Create(context.Background()))
	return tm, store, master
}

func TestWriter_FlushMemRowSetEndToEnd(t *testing.T) {
	ctx := context.Background()
	tm, store, master := newTestTablet(t)

	schema := core.NewSchema("host", "value")
	mrs := memrowset.New(schema)
	const numRows = 50
	for i := numRows - 1; i >= 0; i-- {
		key := []byte(fmt.Sprintf("row-%03d", i))
		require.NoError(t, mrs.Insert(key, [][]byte{
			[]byte(fmt.Sprintf("host-%d", i%4)),
			[]byte(fmt.Sprintf("value-%d", i)),
		}))
	}

	codec, err := compressors.ForType(core.CompressionSnappy)
	require.NoError(t, err)
	w, err := NewWriter(WriterOptions{Tablet: tm, Compressor: codec, Logger: testLogger()})
	require.NoError(t, err)

	rs, err := w.Flush(ctx, mrs)
	require.NoError(t, err)
	require.NotNil(t, rs)
	assert.Equal(t, 2, rs.ColumnBlocksCount())
	assert.True(t, rs.HasBloomDataBlock())

	// Reload from disk and read everything back through the metadata.
	loaded, err := metadata.New(metadata.Options{
		TabletID:    "tablet-writer-test",
		MasterBlock: master,
		Schema:      schema,
		Store:       store,
		Logger:      testLogger(),
	})
	require.NoError(t, err)
	require.NoError(t, loaded.Load(ctx))
	got := loaded.GetRowSet(rs.ID())
	require.NotNil(t, got)

	rb, _, err := got.OpenColumnDataBlock(1)
	require.NoError(t, err)
	payload, err := ReadDataBlock(rb)
	rb.Close()
	require.NoError(t, err)
	values, err := DecodeColumn(payload)
	require.NoError(t, err)
	require.Len(t, values, numRows)
	for i, v := range values {
		assert.Equal(t, fmt.Sprintf("value-%d", i), string(v), "values come back in key order")
	}

	// A range predicate over the reconstructed column selects the rows
	// whose host cell matches.
	rb, _, err = got.OpenColumnDataBlock(0)
	require.NoError(t, err)
	payload, err = ReadDataBlock(rb)
	rb.Close()
	require.NoError(t, err)
	hosts, err := DecodeColumn(payload)
	require.NoError(t, err)
	vr, err := predicate.NewValueRange([]byte("host-0"), []byte("host-0"))
	require.NoError(t, err)
	sel := predicate.SelectAll(len(hosts))
	predicate.NewColumnRangePredicate(schema.Column(0), vr).Evaluate(hosts, sel)
	assert.Equal(t, uint64(numRows/4+1), sel.GetCardinality(), "rows 0, 4, 8, ... carry host-0")
	for _, row := range sel.ToArray() {
		assert.Equal(t, "host-0", string(hosts[row]))
	}

	rb, _, err = got.OpenBloomDataBlock()
	require.NoError(t, err)
	payload, err = ReadDataBlock(rb)
	rb.Close()
	require.NoError(t, err)
	bf, err := DeserializeBloomFilter(payload)
	require.NoError(t, err)
	for i := 0; i < numRows; i++ {
		assert.True(t, bf.Contains([]byte(fmt.Sprintf("row-%03d", i))))
	}

	rb, _, err = got.OpenAdHocIndexDataBlock()
	require.NoError(t, err)
	payload, err = ReadDataBlock(rb)
	rb.Close()
	require.NoError(t, err)
	entries, err := DecodeAdHocIndex(payload)
	require.NoError(t, err)
	require.Len(t, entries, numRows)
	assert.Equal(t, []byte("row-000"), entries[0].Key)
	assert.Equal(t, uint32(numRows-1), entries[numRows-1].Ordinal)
}

func TestWriter_EmptyMemRowSet(t *testing.T) {
	ctx := context.Background()
	tm, _, _ := newTestTablet(t)

	w, err := NewWriter(WriterOptions{Tablet: tm, Logger: testLogger()})
	require.NoError(t, err)

	rs, err := w.Flush(ctx, memrowset.New(core.NewSchema("host", "value")))
	require.NoError(t, err)
	assert.Equal(t, 2, rs.ColumnBlocksCount(), "empty columns still get blocks")
	assert.True(t, rs.HasBloomDataBlock(), "empty rowsets carry a trivial bloom filter")
	require.Len(t, tm.Rowsets(), 1)
}

func TestNewWriter_Validation(t *testing.T) {
	_, err := NewWriter(WriterOptions{})
	assert.Error(t, err, "tablet is required")
}
