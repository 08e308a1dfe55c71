package memrowset

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/INLOpen/tabletstore/core"
)

func TestMemRowSet_InsertAndIterate(t *testing.T) {
	schema := core.NewSchema("host", "metric")
	mrs := New(schema)

	// Insert out of key order; iteration must come back sorted.
	require.NoError(t, mrs.Insert([]byte("c"), [][]byte{[]byte("h3"), []byte("m3")}))
	require.NoError(t, mrs.Insert([]byte("a"), [][]byte{[]byte("h1"), []byte("m1")}))
	require.NoError(t, mrs.Insert([]byte("b"), [][]byte{[]byte("h2"), []byte("m2")}))

	assert.Equal(t, 3, mrs.Len())
	assert.Greater(t, mrs.SizeBytes(), int64(0))

	it := mrs.NewIterator()
	defer it.Close()

	var keys []string
	for it.Next() {
		keys = append(keys, string(it.Key()))
		assert.Len(t, it.Row().Values, 2)
	}
	assert.Equal(t, []string{"a", "b", "c"}, keys)
}

func TestMemRowSet_DuplicateKeyRejected(t *testing.T) {
	mrs := New(core.NewSchema("v"))
	require.NoError(t, mrs.Insert([]byte("k"), [][]byte{[]byte("first")}))
	sizeBefore := mrs.SizeBytes()

	err := mrs.Insert([]byte("k"), [][]byte{[]byte("second, and much longer")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrAlreadyPresent))

	// The original row and the size accounting must survive the
	// rejected insert untouched.
	assert.Equal(t, 1, mrs.Len())
	assert.Equal(t, sizeBefore, mrs.SizeBytes())
	it := mrs.NewIterator()
	defer it.Close()
	require.True(t, it.Next())
	assert.Equal(t, []byte("first"), it.Row().Values[0])
	assert.False(t, it.Next())
}

func TestMemRowSet_SchemaMismatch(t *testing.T) {
	mrs := New(core.NewSchema("a", "b", "c"))
	err := mrs.Insert([]byte("k"), [][]byte{[]byte("only-one")})
	assert.Error(t, err)

	err = mrs.Insert(nil, [][]byte{[]byte("x"), []byte("y"), []byte("z")})
	assert.Error(t, err, "empty keys are rejected")
}

func TestMemRowSet_ManyRowsStaySorted(t *testing.T) {
	mrs := New(core.NewSchema("v"))
	for i := 99; i >= 0; i-- {
		key := []byte(fmt.Sprintf("key-%03d", i))
		require.NoError(t, mrs.Insert(key, [][]byte{[]byte{byte(i)}}))
	}
	require.Equal(t, 100, mrs.Len())

	it := mrs.NewIterator()
	defer it.Close()
	var prev []byte
	for it.Next() {
		if prev != nil {
			assert.Less(t, string(prev), string(it.Key()))
		}
		prev = append(prev[:0], it.Key()...)
	}
}
