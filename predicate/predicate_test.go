package predicate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/INLOpen/tabletstore/core"
)

func TestValueRange_Bounds(t *testing.T) {
	_, err := NewValueRange(nil, nil)
	assert.Error(t, err, "fully open range is meaningless")

	vr, err := NewValueRange([]byte("b"), []byte("d"))
	require.NoError(t, err)
	assert.False(t, vr.ContainsCell([]byte("a")))
	assert.True(t, vr.ContainsCell([]byte("b")), "lower bound is inclusive")
	assert.True(t, vr.ContainsCell([]byte("c")))
	assert.True(t, vr.ContainsCell([]byte("d")), "upper bound is inclusive")
	assert.False(t, vr.ContainsCell([]byte("e")))

	lowerOnly, err := NewValueRange([]byte("m"), nil)
	require.NoError(t, err)
	assert.True(t, lowerOnly.ContainsCell([]byte("z")))
	assert.False(t, lowerOnly.ContainsCell([]byte("a")))

	upperOnly, err := NewValueRange(nil, []byte("m"))
	require.NoError(t, err)
	assert.True(t, upperOnly.ContainsCell([]byte("a")))
	assert.False(t, upperOnly.ContainsCell([]byte("z")))
}

func TestEncodedKeyRange_ContainsKey(t *testing.T) {
	r := NewEncodedKeyRange(NewEncodedKey([]byte("a")), NewEncodedKey([]byte("m")))

	assert.True(t, r.ContainsKey([]byte("a")), "lower bound is inclusive")
	assert.True(t, r.ContainsKey([]byte("l")))
	assert.False(t, r.ContainsKey([]byte("m")), "upper bound is exclusive")
	assert.False(t, r.ContainsKey([]byte("z")))

	open := NewEncodedKeyRange(nil, nil)
	assert.True(t, open.ContainsKey([]byte("anything")))

	lowerOnly := NewEncodedKeyRange(NewEncodedKey([]byte("m")), nil)
	assert.True(t, lowerOnly.ContainsKey([]byte("z")))
	assert.False(t, lowerOnly.ContainsKey([]byte("a")))
}

func TestColumnRangePredicate_Evaluate(t *testing.T) {
	column := [][]byte{
		[]byte("apple"), []byte("banana"), []byte("cherry"), []byte("date"), []byte("elder"),
	}

	vr, err := NewValueRange([]byte("banana"), []byte("date"))
	require.NoError(t, err)
	pred := NewColumnRangePredicate(core.ColumnSchema{Name: "fruit"}, vr)

	sel := SelectAll(len(column))
	pred.Evaluate(column, sel)

	assert.Equal(t, []uint32{1, 2, 3}, sel.ToArray())
}

func TestColumnRangePredicate_EvaluateANDsIntoSelection(t *testing.T) {
	colA := [][]byte{[]byte("1"), []byte("2"), []byte("3"), []byte("4")}
	colB := [][]byte{[]byte("x"), []byte("y"), []byte("x"), []byte("y")}

	vrA, err := NewValueRange([]byte("2"), nil)
	require.NoError(t, err)
	vrB, err := NewValueRange(nil, []byte("x"))
	require.NoError(t, err)

	sel := SelectAll(4)
	NewColumnRangePredicate(core.ColumnSchema{Name: "a"}, vrA).Evaluate(colA, sel)
	NewColumnRangePredicate(core.ColumnSchema{Name: "b"}, vrB).Evaluate(colB, sel)

	// Only row 2 passes both: a >= "2" and b <= "x".
	assert.Equal(t, []uint32{2}, sel.ToArray())
}

func TestSelectAll(t *testing.T) {
	assert.Equal(t, uint64(0), SelectAll(0).GetCardinality())
	sel := SelectAll(10)
	assert.Equal(t, uint64(10), sel.GetCardinality())
	assert.True(t, sel.Contains(0))
	assert.True(t, sel.Contains(9))
	assert.False(t, sel.Contains(10))
}

func TestColumnRangePredicate_String(t *testing.T) {
	vr, err := NewValueRange([]byte("a"), nil)
	require.NoError(t, err)
	s := NewColumnRangePredicate(core.ColumnSchema{Name: "host"}, vr).String()
	assert.Contains(t, s, "host")
	assert.Contains(t, s, "*")
}
