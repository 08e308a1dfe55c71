package metadata

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/INLOpen/tabletstore/core"
)

// The superblock is the single durable descriptor for one tablet: its
// identity, key bounds and the full block layout of every rowset. It is
// rewritten wholesale on every flush; there is no incremental edit log.

type deltaBlockDescriptor struct {
	ID    uint32
	Block core.BlockID
}

type rowSetDescriptor struct {
	ID uint32
	// Bloom and ad-hoc index blocks are optional. Absence is encoded
	// with an explicit presence flag so an unset slot round-trips as
	// unset rather than collapsing to a zero id.
	BloomPresent    bool
	BloomBlock      core.BlockID
	AdHocPresent    bool
	AdHocIndexBlock core.BlockID
	ColumnBlocks    []core.BlockID
	DeltaBlocks     []deltaBlockDescriptor
}

type superBlock struct {
	Sequence uint64
	TabletID string
	StartKey []byte
	EndKey   []byte
	RowSets  []rowSetDescriptor
}

// writeStringWithLength writes a length-prefixed string to the writer.
func writeStringWithLength(w io.Writer, s string) error {
	return writeBytesWithLength(w, []byte(s))
}

// readStringWithLength reads a length-prefixed string from the reader.
func readStringWithLength(r io.Reader) (string, error) {
	b, err := readBytesWithLength(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// writeBytesWithLength writes a length-prefixed byte slice to the
// writer. The prefix is a uint16, so longer fields are rejected rather
// than silently truncated.
func writeBytesWithLength(w io.Writer, b []byte) error {
	if len(b) > math.MaxUint16 {
		return fmt.Errorf("field of %d bytes exceeds the %d byte limit", len(b), math.MaxUint16)
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(b))); err != nil {
		return err
	}
	if len(b) > 0 {
		if _, err := w.Write(b); err != nil {
			return err
		}
	}
	return nil
}

// readBytesWithLength reads a length-prefixed byte slice from the reader.
func readBytesWithLength(r io.Reader) ([]byte, error) {
	var length uint16
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return nil, err
	}
	if length == 0 {
		return nil, nil
	}
	b := make([]byte, length)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("failed to read %d payload bytes: %w", length, err)
	}
	return b, nil
}

func writeOptionalBlockID(w io.Writer, present bool, id core.BlockID) error {
	var flag uint8
	if present {
		flag = 1
	}
	if err := binary.Write(w, binary.LittleEndian, flag); err != nil {
		return err
	}
	if present {
		return binary.Write(w, binary.LittleEndian, uint64(id))
	}
	return nil
}

func readOptionalBlockID(r io.Reader) (bool, core.BlockID, error) {
	var flag uint8
	if err := binary.Read(r, binary.LittleEndian, &flag); err != nil {
		return false, core.NullBlockID, err
	}
	if flag == 0 {
		return false, core.NullBlockID, nil
	}
	var raw uint64
	if err := binary.Read(r, binary.LittleEndian, &raw); err != nil {
		return false, core.NullBlockID, err
	}
	return true, core.BlockID(raw), nil
}

// writeSuperBlockBinary serializes the superblock to its binary format.
func writeSuperBlockBinary(w io.Writer, sb *superBlock) error {
	header := core.NewFileHeader(core.SuperBlockMagicNumber, core.CompressionNone)
	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("failed to write superblock header: %w", err)
	}

	if err := binary.Write(w, binary.LittleEndian, sb.Sequence); err != nil {
		return fmt.Errorf("failed to write sequence number: %w", err)
	}
	if err := writeStringWithLength(w, sb.TabletID); err != nil {
		return fmt.Errorf("failed to write tablet id: %w", err)
	}
	if err := writeBytesWithLength(w, sb.StartKey); err != nil {
		return fmt.Errorf("failed to write start key: %w", err)
	}
	if err := writeBytesWithLength(w, sb.EndKey); err != nil {
		return fmt.Errorf("failed to write end key: %w", err)
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(len(sb.RowSets))); err != nil {
		return fmt.Errorf("failed to write rowset count: %w", err)
	}
	for _, rs := range sb.RowSets {
		if err := binary.Write(w, binary.LittleEndian, rs.ID); err != nil {
			return fmt.Errorf("failed to write id for rowset %d: %w", rs.ID, err)
		}
		if err := writeOptionalBlockID(w, rs.BloomPresent, rs.BloomBlock); err != nil {
			return fmt.Errorf("failed to write bloom block for rowset %d: %w", rs.ID, err)
		}
		if err := writeOptionalBlockID(w, rs.AdHocPresent, rs.AdHocIndexBlock); err != nil {
			return fmt.Errorf("failed to write ad-hoc index block for rowset %d: %w", rs.ID, err)
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(len(rs.ColumnBlocks))); err != nil {
			return fmt.Errorf("failed to write column count for rowset %d: %w", rs.ID, err)
		}
		for i, col := range rs.ColumnBlocks {
			if err := binary.Write(w, binary.LittleEndian, uint64(col)); err != nil {
				return fmt.Errorf("failed to write column block %d for rowset %d: %w", i, rs.ID, err)
			}
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(len(rs.DeltaBlocks))); err != nil {
			return fmt.Errorf("failed to write delta count for rowset %d: %w", rs.ID, err)
		}
		for i, delta := range rs.DeltaBlocks {
			if err := binary.Write(w, binary.LittleEndian, delta.ID); err != nil {
				return fmt.Errorf("failed to write delta id %d for rowset %d: %w", i, rs.ID, err)
			}
			if err := binary.Write(w, binary.LittleEndian, uint64(delta.Block)); err != nil {
				return fmt.Errorf("failed to write delta block %d for rowset %d: %w", i, rs.ID, err)
			}
		}
	}
	return nil
}

// readSuperBlockBinary deserializes a superblock. Any malformed input is
// reported as a core.CorruptionError; the descriptor was written in one
// atomic block write, so a decode failure means the stored bytes are bad,
// not that more data is on the way.
func readSuperBlockBinary(r io.Reader) (*superBlock, error) {
	var header core.FileHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, &core.CorruptionError{Message: "failed to read superblock header", Err: err}
	}
	if header.Magic != core.SuperBlockMagicNumber {
		return nil, core.NewCorruptionError("invalid superblock magic number %x", header.Magic)
	}

	sb := &superBlock{}
	if err := binary.Read(r, binary.LittleEndian, &sb.Sequence); err != nil {
		return nil, &core.CorruptionError{Message: "failed to read sequence number", Err: err}
	}
	var err error
	if sb.TabletID, err = readStringWithLength(r); err != nil {
		return nil, &core.CorruptionError{Message: "failed to read tablet id", Err: err}
	}
	if sb.StartKey, err = readBytesWithLength(r); err != nil {
		return nil, &core.CorruptionError{Message: "failed to read start key", Err: err}
	}
	if sb.EndKey, err = readBytesWithLength(r); err != nil {
		return nil, &core.CorruptionError{Message: "failed to read end key", Err: err}
	}

	var numRowSets uint32
	if err := binary.Read(r, binary.LittleEndian, &numRowSets); err != nil {
		return nil, &core.CorruptionError{Message: "failed to read rowset count", Err: err}
	}
	// Zero-length lists decode to nil, like readBytesWithLength, so an
	// encode/decode cycle is an exact round trip.
	if numRowSets > 0 {
		sb.RowSets = make([]rowSetDescriptor, numRowSets)
	}
	for i := uint32(0); i < numRowSets; i++ {
		rs := rowSetDescriptor{}
		if err := binary.Read(r, binary.LittleEndian, &rs.ID); err != nil {
			return nil, &core.CorruptionError{Message: fmt.Sprintf("failed to read id for rowset index %d", i), Err: err}
		}
		if rs.BloomPresent, rs.BloomBlock, err = readOptionalBlockID(r); err != nil {
			return nil, &core.CorruptionError{Message: fmt.Sprintf("failed to read bloom block for rowset %d", rs.ID), Err: err}
		}
		if rs.AdHocPresent, rs.AdHocIndexBlock, err = readOptionalBlockID(r); err != nil {
			return nil, &core.CorruptionError{Message: fmt.Sprintf("failed to read ad-hoc index block for rowset %d", rs.ID), Err: err}
		}

		var numColumns uint32
		if err := binary.Read(r, binary.LittleEndian, &numColumns); err != nil {
			return nil, &core.CorruptionError{Message: fmt.Sprintf("failed to read column count for rowset %d", rs.ID), Err: err}
		}
		if numColumns > 0 {
			rs.ColumnBlocks = make([]core.BlockID, numColumns)
		}
		for c := uint32(0); c < numColumns; c++ {
			var raw uint64
			if err := binary.Read(r, binary.LittleEndian, &raw); err != nil {
				return nil, &core.CorruptionError{Message: fmt.Sprintf("failed to read column block %d for rowset %d", c, rs.ID), Err: err}
			}
			if core.BlockID(raw).IsNull() {
				return nil, core.NewCorruptionError("null column block %d in rowset %d", c, rs.ID)
			}
			rs.ColumnBlocks[c] = core.BlockID(raw)
		}

		var numDeltas uint32
		if err := binary.Read(r, binary.LittleEndian, &numDeltas); err != nil {
			return nil, &core.CorruptionError{Message: fmt.Sprintf("failed to read delta count for rowset %d", rs.ID), Err: err}
		}
		if numDeltas > 0 {
			rs.DeltaBlocks = make([]deltaBlockDescriptor, numDeltas)
		}
		for d := uint32(0); d < numDeltas; d++ {
			if err := binary.Read(r, binary.LittleEndian, &rs.DeltaBlocks[d].ID); err != nil {
				return nil, &core.CorruptionError{Message: fmt.Sprintf("failed to read delta id %d for rowset %d", d, rs.ID), Err: err}
			}
			var raw uint64
			if err := binary.Read(r, binary.LittleEndian, &raw); err != nil {
				return nil, &core.CorruptionError{Message: fmt.Sprintf("failed to read delta block %d for rowset %d", d, rs.ID), Err: err}
			}
			if core.BlockID(raw).IsNull() {
				return nil, core.NewCorruptionError("null delta block %d in rowset %d", d, rs.ID)
			}
			rs.DeltaBlocks[d].Block = core.BlockID(raw)
		}
		sb.RowSets[i] = rs
	}
	return sb, nil
}
