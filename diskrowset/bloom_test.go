package diskrowset

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBloomFilter_AddAndContains(t *testing.T) {
	bf, err := NewBloomFilter(1000, 0.01)
	require.NoError(t, err)

	for i := 0; i < 1000; i++ {
		bf.Add([]byte(fmt.Sprintf("key-%04d", i)))
	}
	for i := 0; i < 1000; i++ {
		assert.True(t, bf.Contains([]byte(fmt.Sprintf("key-%04d", i))),
			"inserted key %d must never be a false negative", i)
	}

	falsePositives := 0
	for i := 0; i < 1000; i++ {
		if bf.Contains([]byte(fmt.Sprintf("absent-%04d", i))) {
			falsePositives++
		}
	}
	// 1% target rate with generous slack.
	assert.Less(t, falsePositives, 50)
}

func TestBloomFilter_SerializeRoundTrip(t *testing.T) {
	bf, err := NewBloomFilter(100, 0.05)
	require.NoError(t, err)
	bf.Add([]byte("alpha"))
	bf.Add([]byte("beta"))

	restored, err := DeserializeBloomFilter(bf.Bytes())
	require.NoError(t, err)
	assert.True(t, restored.Contains([]byte("alpha")))
	assert.True(t, restored.Contains([]byte("beta")))
	assert.Equal(t, bf.numBits, restored.numBits)
	assert.Equal(t, bf.numHashes, restored.numHashes)
}

func TestBloomFilter_EmptyAndInvalid(t *testing.T) {
	bf, err := NewBloomFilter(0, 0.01)
	require.NoError(t, err)
	assert.False(t, bf.Contains([]byte("anything")))

	_, err = NewBloomFilter(10, 0)
	assert.Error(t, err)
	_, err = NewBloomFilter(10, 1.5)
	assert.Error(t, err)

	_, err = DeserializeBloomFilter([]byte{1, 2, 3})
	assert.Error(t, err, "truncated payload")

	data := bf.Bytes()
	data = append(data, 0xff) // bits length no longer matches numBits
	_, err = DeserializeBloomFilter(data)
	assert.Error(t, err)
}
