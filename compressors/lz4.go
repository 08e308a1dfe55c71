package compressors

import (
	"fmt"

	lz4 "github.com/pierrec/lz4/v4"

	"github.com/INLOpen/tabletstore/core"
)

// LZ4 implements core.Compressor using the lz4 block format.
type LZ4 struct{}

var _ core.Compressor = (*LZ4)(nil)

func (c *LZ4) Compress(src []byte) ([]byte, error) {
	if len(src) == 0 {
		return nil, nil
	}
	dst := make([]byte, lz4.CompressBlockBound(len(src)))
	n, err := lz4.CompressBlock(src, dst, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress error: %w", err)
	}
	if n == 0 {
		// The block format has no raw-literal escape for incompressible
		// input, so a zero result must be surfaced, not stored.
		return nil, fmt.Errorf("lz4 compression produced no output for %d input bytes", len(src))
	}
	return dst[:n], nil
}

func (c *LZ4) Uncompress(src []byte, expectedLen int) ([]byte, error) {
	if expectedLen == 0 {
		return nil, nil
	}
	// The recorded uncompressed length tells us the exact destination
	// size, so no grow-and-retry loop is needed.
	dst := make([]byte, expectedLen)
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress error: %w", err)
	}
	if n != expectedLen {
		return nil, fmt.Errorf("lz4 uncompressed length mismatch: got %d, want %d", n, expectedLen)
	}
	return dst, nil
}

func (c *LZ4) MaxCompressedLength(srcLen int) int {
	return lz4.CompressBlockBound(srcLen)
}

func (c *LZ4) Type() core.CompressionType {
	return core.CompressionLZ4
}
