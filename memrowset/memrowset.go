// Package memrowset holds the in-memory, sorted write buffer that the
// flush path drains into a new immutable rowset.
package memrowset

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/INLOpen/skiplist"

	"github.com/INLOpen/tabletstore/core"
)

// Row is one buffered row: the encoded primary key and one value per
// schema column, in schema order.
type Row struct {
	Key    []byte
	Values [][]byte
}

func (r *Row) size() int64 {
	n := int64(len(r.Key))
	for _, v := range r.Values {
		n += int64(len(v))
	}
	return n
}

func compareKeys(a, b []byte) int {
	return bytes.Compare(a, b)
}

// MemRowSet buffers inserts in encoded-key order until it is flushed.
// Safe for concurrent use; iteration holds a read lock for its whole
// lifetime, so writers are blocked until the iterator is closed.
type MemRowSet struct {
	mu        sync.RWMutex
	schema    *core.Schema
	data      *skiplist.SkipList[[]byte, *Row]
	sizeBytes int64
}

func New(schema *core.Schema) *MemRowSet {
	return &MemRowSet{
		schema: schema,
		data:   skiplist.NewWithComparator[[]byte, *Row](compareKeys),
	}
}

// Insert buffers one row. The key must be unique; inserting a key that
// is already present returns core.ErrAlreadyPresent. Updates to
// existing rows belong in a delta chain, not here.
func (m *MemRowSet) Insert(key []byte, values [][]byte) error {
	if len(key) == 0 {
		return fmt.Errorf("row key must not be empty")
	}
	if m.schema != nil && len(values) != m.schema.NumColumns() {
		return fmt.Errorf("row has %d values, schema expects %d columns",
			len(values), m.schema.NumColumns())
	}

	row := &Row{
		Key:    append([]byte(nil), key...),
		Values: make([][]byte, len(values)),
	}
	for i, v := range values {
		row.Values[i] = append([]byte(nil), v...)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Insert replaces in place, so probe first: a duplicate must leave
	// the buffered row untouched.
	if node, ok := m.data.Seek(row.Key); ok && bytes.Equal(node.Key(), row.Key) {
		return fmt.Errorf("key %q: %w", key, core.ErrAlreadyPresent)
	}
	m.data.Insert(row.Key, row)
	m.sizeBytes += row.size()
	return nil
}

// Len returns the number of buffered rows.
func (m *MemRowSet) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.Len()
}

// SizeBytes returns the estimated memory footprint of the buffered rows.
func (m *MemRowSet) SizeBytes() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sizeBytes
}

// Schema returns the schema the rows were validated against.
func (m *MemRowSet) Schema() *core.Schema {
	return m.schema
}

// Iterator walks the buffered rows in ascending key order. It is not
// safe for concurrent use and MUST be closed: it holds the memrowset's
// read lock until Close.
type Iterator struct {
	mu      *sync.RWMutex
	iter    *skiplist.Iterator[[]byte, *Row]
	started bool
	valid   bool
}

// NewIterator returns an iterator positioned before the first row; call
// Next to advance onto it.
func (m *MemRowSet) NewIterator() *Iterator {
	m.mu.RLock()
	return &Iterator{
		mu:   &m.mu,
		iter: m.data.NewIterator(),
	}
}

// Next advances to the next row, returning false when exhausted.
func (it *Iterator) Next() bool {
	if !it.started {
		it.started = true
		it.valid = it.iter.First()
	} else if it.valid {
		it.valid = it.iter.Next()
	}
	return it.valid
}

// Key returns the encoded key of the current row.
func (it *Iterator) Key() []byte {
	return it.iter.Key()
}

// Row returns the current row.
func (it *Iterator) Row() *Row {
	return it.iter.Value()
}

// Close releases the read lock taken by NewIterator.
func (it *Iterator) Close() {
	it.mu.RUnlock()
}
