package compressors

import (
	"fmt"

	"github.com/INLOpen/tabletstore/core"
)

// NoCompression implements core.Compressor without performing any
// compression. It is the default codec.
type NoCompression struct{}

var _ core.Compressor = (*NoCompression)(nil)

func (c *NoCompression) Compress(src []byte) ([]byte, error) {
	return src, nil
}

func (c *NoCompression) Uncompress(src []byte, expectedLen int) ([]byte, error) {
	if len(src) != expectedLen {
		return nil, fmt.Errorf("uncompressed length mismatch: got %d, want %d", len(src), expectedLen)
	}
	return src, nil
}

func (c *NoCompression) MaxCompressedLength(srcLen int) int {
	return srcLen
}

func (c *NoCompression) Type() core.CompressionType {
	return core.CompressionNone
}
