// Package predicate implements consumer-side row selection primitives:
// value ranges over column cells, encoded-key ranges over tablet
// bounds, and column range predicates evaluated into a selection
// bitmap.
package predicate

import (
	"bytes"
	"fmt"

	"github.com/RoaringBitmap/roaring"

	"github.com/INLOpen/tabletstore/core"
)

// ValueRange is an inclusive range over encoded cell values. Either
// bound may be nil (open), but not both.
type ValueRange struct {
	lower []byte
	upper []byte
}

// NewValueRange builds a range. At least one bound must be set.
func NewValueRange(lower, upper []byte) (*ValueRange, error) {
	if lower == nil && upper == nil {
		return nil, fmt.Errorf("value range must be bounded on at least one end")
	}
	return &ValueRange{lower: lower, upper: upper}, nil
}

func (vr *ValueRange) HasLowerBound() bool { return vr.lower != nil }
func (vr *ValueRange) HasUpperBound() bool { return vr.upper != nil }
func (vr *ValueRange) LowerBound() []byte  { return vr.lower }
func (vr *ValueRange) UpperBound() []byte  { return vr.upper }

// ContainsCell reports whether the cell value falls inside the range.
func (vr *ValueRange) ContainsCell(cell []byte) bool {
	if vr.HasLowerBound() && bytes.Compare(cell, vr.lower) < 0 {
		return false
	}
	if vr.HasUpperBound() && bytes.Compare(cell, vr.upper) > 0 {
		return false
	}
	return true
}

// EncodedKey is a row key in its encoded, byte-comparable form.
type EncodedKey struct {
	encoded []byte
}

func NewEncodedKey(encoded []byte) *EncodedKey {
	return &EncodedKey{encoded: append([]byte(nil), encoded...)}
}

func (k *EncodedKey) Encoded() []byte {
	return k.encoded
}

// EncodedKeyRange bounds a scan with encoded keys: inclusive lower,
// exclusive upper, matching tablet partition-range semantics. Either
// bound may be nil for an open end.
type EncodedKeyRange struct {
	lower *EncodedKey
	upper *EncodedKey
}

func NewEncodedKeyRange(lower, upper *EncodedKey) *EncodedKeyRange {
	return &EncodedKeyRange{lower: lower, upper: upper}
}

func (r *EncodedKeyRange) HasLowerBound() bool     { return r.lower != nil }
func (r *EncodedKeyRange) HasUpperBound() bool     { return r.upper != nil }
func (r *EncodedKeyRange) LowerBound() *EncodedKey { return r.lower }
func (r *EncodedKeyRange) UpperBound() *EncodedKey { return r.upper }

// ContainsKey reports whether the encoded key falls inside
// [lower, upper).
func (r *EncodedKeyRange) ContainsKey(key []byte) bool {
	if r.lower != nil && bytes.Compare(key, r.lower.encoded) < 0 {
		return false
	}
	if r.upper != nil && bytes.Compare(key, r.upper.encoded) >= 0 {
		return false
	}
	return true
}

// ColumnRangePredicate passes rows whose value for one column lies in a
// value range.
type ColumnRangePredicate struct {
	col    core.ColumnSchema
	vrange *ValueRange
}

func NewColumnRangePredicate(col core.ColumnSchema, vrange *ValueRange) *ColumnRangePredicate {
	return &ColumnRangePredicate{col: col, vrange: vrange}
}

func (p *ColumnRangePredicate) Column() core.ColumnSchema {
	return p.col
}

func (p *ColumnRangePredicate) Range() *ValueRange {
	return p.vrange
}

// Evaluate applies the predicate over a decoded column, AND-ing the
// result into the selection bitmap: rows whose cell falls outside the
// range are cleared, rows already cleared are skipped, rows that pass
// are left untouched.
func (p *ColumnRangePredicate) Evaluate(column [][]byte, sel *roaring.Bitmap) {
	for i, cell := range column {
		row := uint32(i)
		if !sel.Contains(row) {
			continue
		}
		if !p.vrange.ContainsCell(cell) {
			sel.Remove(row)
		}
	}
}

func (p *ColumnRangePredicate) String() string {
	lower, upper := "*", "*"
	if p.vrange.HasLowerBound() {
		lower = fmt.Sprintf("%q", p.vrange.LowerBound())
	}
	if p.vrange.HasUpperBound() {
		upper = fmt.Sprintf("%q", p.vrange.UpperBound())
	}
	return fmt.Sprintf("%s in [%s, %s]", p.col.Name, lower, upper)
}

// SelectAll returns a selection bitmap with the first numRows rows set,
// the starting point for predicate evaluation.
func SelectAll(numRows int) *roaring.Bitmap {
	sel := roaring.New()
	if numRows > 0 {
		sel.AddRange(0, uint64(numRows))
	}
	return sel
}
