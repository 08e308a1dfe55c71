package diskrowset

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/INLOpen/tabletstore/blockstore"
	"github.com/INLOpen/tabletstore/compressors"
	"github.com/INLOpen/tabletstore/core"
)

// Data block envelope, shared by column, bloom and ad-hoc index blocks:
//
//	core.FileHeader (magic, version, created-at, compression type)
//	uint32 uncompressed payload length
//	uint32 crc32 (IEEE) of the compressed payload
//	uint32 compressed payload length
//	compressed payload
//
// The compression type travels in the header so readers pick the codec
// from the registry without any out-of-band knowledge.

// WriteDataBlock compresses the payload with the given codec and writes
// the envelope to the block writer. The writer is not closed.
func WriteDataBlock(wb core.WritableBlock, codec core.Compressor, payload []byte) error {
	compressed, err := codec.Compress(payload)
	if err != nil {
		return fmt.Errorf("failed to compress block payload: %w", err)
	}

	var buf bytes.Buffer
	header := core.NewFileHeader(core.DataBlockMagicNumber, codec.Type())
	if err := binary.Write(&buf, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("failed to write block header: %w", err)
	}
	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(payload))); err != nil {
		return fmt.Errorf("failed to write uncompressed length: %w", err)
	}
	if err := binary.Write(&buf, binary.LittleEndian, crc32.ChecksumIEEE(compressed)); err != nil {
		return fmt.Errorf("failed to write checksum: %w", err)
	}
	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(compressed))); err != nil {
		return fmt.Errorf("failed to write compressed length: %w", err)
	}
	buf.Write(compressed)

	if _, err := wb.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write block envelope: %w", err)
	}
	return nil
}

// ReadDataBlock reads a whole block, verifies the envelope and returns
// the uncompressed payload.
func ReadDataBlock(rb core.ReadableBlock) ([]byte, error) {
	data, err := blockstore.ReadAll(rb)
	if err != nil {
		return nil, err
	}
	return DecodeDataBlock(data)
}

// DecodeDataBlock parses and verifies a raw block envelope.
func DecodeDataBlock(data []byte) ([]byte, error) {
	r := bytes.NewReader(data)

	var header core.FileHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, &core.CorruptionError{Message: "failed to read data block header", Err: err}
	}
	if header.Magic != core.DataBlockMagicNumber {
		return nil, core.NewCorruptionError("invalid data block magic number %x", header.Magic)
	}

	var uncompressedLen, checksum, compressedLen uint32
	if err := binary.Read(r, binary.LittleEndian, &uncompressedLen); err != nil {
		return nil, &core.CorruptionError{Message: "failed to read uncompressed length", Err: err}
	}
	if err := binary.Read(r, binary.LittleEndian, &checksum); err != nil {
		return nil, &core.CorruptionError{Message: "failed to read checksum", Err: err}
	}
	if err := binary.Read(r, binary.LittleEndian, &compressedLen); err != nil {
		return nil, &core.CorruptionError{Message: "failed to read compressed length", Err: err}
	}

	compressed := make([]byte, compressedLen)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, &core.CorruptionError{Message: "failed to read block payload", Err: err}
	}
	if actual := crc32.ChecksumIEEE(compressed); actual != checksum {
		return nil, core.NewCorruptionError("data block checksum mismatch: got %x, want %x", actual, checksum)
	}

	codec, err := compressors.ForType(header.CompressorType)
	if err != nil {
		return nil, fmt.Errorf("data block uses unknown codec: %w", err)
	}
	payload, err := codec.Uncompress(compressed, int(uncompressedLen))
	if err != nil {
		return nil, &core.CorruptionError{Message: "failed to uncompress data block", Err: err}
	}
	return payload, nil
}

// encodeColumn serializes one column's values in row order:
// uint32 count, then uint32 length + bytes per value.
func encodeColumn(values [][]byte) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(len(values)))
	for _, v := range values {
		binary.Write(&buf, binary.LittleEndian, uint32(len(v)))
		buf.Write(v)
	}
	return buf.Bytes()
}

// DecodeColumn reverses encodeColumn.
func DecodeColumn(data []byte) ([][]byte, error) {
	r := bytes.NewReader(data)
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, &core.CorruptionError{Message: "failed to read column value count", Err: err}
	}
	values := make([][]byte, count)
	for i := uint32(0); i < count; i++ {
		var length uint32
		if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
			return nil, &core.CorruptionError{Message: fmt.Sprintf("failed to read length of value %d", i), Err: err}
		}
		if length > 0 {
			v := make([]byte, length)
			if _, err := io.ReadFull(r, v); err != nil {
				return nil, &core.CorruptionError{Message: fmt.Sprintf("failed to read value %d", i), Err: err}
			}
			values[i] = v
		}
	}
	return values, nil
}

// encodeAdHocIndex serializes the key → row ordinal mapping of one
// rowset: uint32 count, then per entry uint16 key length + key + uint32
// ordinal. Keys are written in ascending order, matching row order.
func encodeAdHocIndex(keys [][]byte) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(len(keys)))
	for ordinal, key := range keys {
		binary.Write(&buf, binary.LittleEndian, uint16(len(key)))
		buf.Write(key)
		binary.Write(&buf, binary.LittleEndian, uint32(ordinal))
	}
	return buf.Bytes()
}

// IndexEntry is one decoded ad-hoc index entry.
type IndexEntry struct {
	Key     []byte
	Ordinal uint32
}

// DecodeAdHocIndex reverses encodeAdHocIndex.
func DecodeAdHocIndex(data []byte) ([]IndexEntry, error) {
	r := bytes.NewReader(data)
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, &core.CorruptionError{Message: "failed to read index entry count", Err: err}
	}
	entries := make([]IndexEntry, count)
	for i := uint32(0); i < count; i++ {
		var keyLen uint16
		if err := binary.Read(r, binary.LittleEndian, &keyLen); err != nil {
			return nil, &core.CorruptionError{Message: fmt.Sprintf("failed to read key length of entry %d", i), Err: err}
		}
		key := make([]byte, keyLen)
		if _, err := io.ReadFull(r, key); err != nil {
			return nil, &core.CorruptionError{Message: fmt.Sprintf("failed to read key of entry %d", i), Err: err}
		}
		entries[i].Key = key
		if err := binary.Read(r, binary.LittleEndian, &entries[i].Ordinal); err != nil {
			return nil, &core.CorruptionError{Message: fmt.Sprintf("failed to read ordinal of entry %d", i), Err: err}
		}
	}
	return entries, nil
}
