package compressors

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/INLOpen/tabletstore/core"
)

// Zstd implements core.Compressor using klauspost's zstd. A single
// encoder/decoder pair is shared; EncodeAll and DecodeAll are safe for
// concurrent use, so no per-call state is needed.
type Zstd struct {
	initOnce sync.Once
	enc      *zstd.Encoder
	dec      *zstd.Decoder
	initErr  error
}

var _ core.Compressor = (*Zstd)(nil)

func NewZstd() *Zstd {
	return &Zstd{}
}

func (c *Zstd) init() error {
	c.initOnce.Do(func() {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			c.initErr = fmt.Errorf("zstd encoder init error: %w", err)
			return
		}
		dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(100*1024*1024))
		if err != nil {
			c.initErr = fmt.Errorf("zstd decoder init error: %w", err)
			return
		}
		c.enc = enc
		c.dec = dec
	})
	return c.initErr
}

func (c *Zstd) Compress(src []byte) ([]byte, error) {
	if err := c.init(); err != nil {
		return nil, err
	}
	return c.enc.EncodeAll(src, nil), nil
}

func (c *Zstd) Uncompress(src []byte, expectedLen int) ([]byte, error) {
	if err := c.init(); err != nil {
		return nil, err
	}
	dst, err := c.dec.DecodeAll(src, make([]byte, 0, expectedLen))
	if err != nil {
		return nil, fmt.Errorf("zstd decompress error: %w", err)
	}
	if len(dst) != expectedLen {
		return nil, fmt.Errorf("zstd uncompressed length mismatch: got %d, want %d", len(dst), expectedLen)
	}
	return dst, nil
}

func (c *Zstd) MaxCompressedLength(srcLen int) int {
	// zstd's worst case is raw blocks with a small per-block overhead.
	return srcLen + (srcLen >> 8) + 64
}

func (c *Zstd) Type() core.CompressionType {
	return core.CompressionZSTD
}
