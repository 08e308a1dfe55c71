package compressors

import (
	"fmt"

	"github.com/golang/snappy"

	"github.com/INLOpen/tabletstore/core"
)

// Snappy implements core.Compressor using the snappy block format.
type Snappy struct{}

var _ core.Compressor = (*Snappy)(nil)

func (c *Snappy) Compress(src []byte) ([]byte, error) {
	return snappy.Encode(nil, src), nil
}

func (c *Snappy) Uncompress(src []byte, expectedLen int) ([]byte, error) {
	dst, err := snappy.Decode(nil, src)
	if err != nil {
		return nil, fmt.Errorf("snappy decode error: %w", err)
	}
	if len(dst) != expectedLen {
		return nil, fmt.Errorf("snappy uncompressed length mismatch: got %d, want %d", len(dst), expectedLen)
	}
	return dst, nil
}

func (c *Snappy) MaxCompressedLength(srcLen int) int {
	return snappy.MaxEncodedLen(srcLen)
}

func (c *Snappy) Type() core.CompressionType {
	return core.CompressionSnappy
}
