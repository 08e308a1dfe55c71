package core

// This file centralizes constants related to on-disk formats, magic
// numbers and file naming used across the store.

// --- Magic Numbers ---
const (
	// SuperBlockMagicNumber identifies a serialized tablet superblock.
	SuperBlockMagicNumber uint32 = 0x53555042 // "SUPB"
	// DataBlockMagicNumber identifies a data block envelope written by
	// the rowset writer.
	DataBlockMagicNumber uint32 = 0x44424C4B // "DBLK"
)

// --- File Names & Suffixes ---
const (
	// BlockFileSuffix is the suffix for finalized block files.
	BlockFileSuffix = ".blk"
	// TmpFileSuffix is appended to block files while they are being
	// written. A crash leaves only .tmp garbage, never a torn block.
	TmpFileSuffix = ".tmp"
)

// --- Protocol & Format Versions ---
const (
	// FormatVersion is the current version for all persistent file formats.
	FormatVersion uint8 = 1
)
