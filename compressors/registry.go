package compressors

import (
	"fmt"

	"github.com/INLOpen/tabletstore/core"
)

// registry is the process-wide, immutable codec table. It is built once
// at package init; callers receive shared instances and inject them into
// writers rather than looking codecs up in the write path.
var registry = map[core.CompressionType]core.Compressor{
	core.CompressionNone:   &NoCompression{},
	core.CompressionSnappy: &Snappy{},
	core.CompressionLZ4:    &LZ4{},
	core.CompressionZSTD:   NewZstd(),
}

// ForType returns the shared codec instance for the given type.
func ForType(t core.CompressionType) (core.Compressor, error) {
	c, ok := registry[t]
	if !ok {
		return nil, fmt.Errorf("compression type %d: %w", t, core.ErrNotFound)
	}
	return c, nil
}

// ForName returns the shared codec instance for the given canonical
// name ("none", "snappy", "lz4", "zstd").
func ForName(name string) (core.Compressor, error) {
	for t, c := range registry {
		if t.String() == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("compression codec %q: %w", name, core.ErrNotFound)
}
