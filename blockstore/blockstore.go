// Package blockstore provides a filesystem-backed implementation of the
// durable block store consumed by the tablet metadata layer. Each block
// is one file named after its id. Blocks are written to a temp file and
// renamed into place on Close, so a crash never leaves a torn block
// visible under a valid id.
package blockstore

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/INLOpen/tabletstore/core"
)

// Manager implements core.BlockStore over a single directory.
type Manager struct {
	dir    string
	logger *slog.Logger
	nextID atomic.Uint64
}

var _ core.BlockStore = (*Manager)(nil)

// Open creates the block directory if needed and seeds the id counter
// from the highest id already present, so ids stay monotonic across
// restarts. Leftover .tmp files from a crashed writer are removed.
func Open(dir string, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create block directory %s: %w", dir, err)
	}

	m := &Manager{dir: dir, logger: logger.With("component", "blockstore")}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan block directory %s: %w", dir, err)
	}
	var maxID uint64
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, core.TmpFileSuffix) {
			m.logger.Warn("removing leftover temp block file", "file", name)
			_ = os.Remove(filepath.Join(dir, name))
			continue
		}
		if !strings.HasSuffix(name, core.BlockFileSuffix) {
			continue
		}
		id, err := strconv.ParseUint(strings.TrimSuffix(name, core.BlockFileSuffix), 10, 64)
		if err != nil {
			m.logger.Warn("ignoring unparseable block file", "file", name)
			continue
		}
		if id > maxID {
			maxID = id
		}
	}
	m.nextID.Store(maxID)
	return m, nil
}

// Dir returns the directory backing this store.
func (m *Manager) Dir() string {
	return m.dir
}

// AllocateBlockID reserves the next block id. No I/O; safe to call
// concurrently with any other operation.
func (m *Manager) AllocateBlockID() core.BlockID {
	return core.BlockID(m.nextID.Add(1))
}

func (m *Manager) blockPath(id core.BlockID) string {
	return filepath.Join(m.dir, fmt.Sprintf("%d%s", uint64(id), core.BlockFileSuffix))
}

func (m *Manager) tmpPath(id core.BlockID) string {
	return m.blockPath(id) + core.TmpFileSuffix
}

// CreateNewBlock allocates a fresh block id and opens a writer for it.
// The block becomes visible only when the writer is closed.
func (m *Manager) CreateNewBlock() (core.WritableBlock, core.BlockID, error) {
	id := m.AllocateBlockID()
	tmp := m.tmpPath(id)
	f, err := os.OpenFile(tmp, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, core.NullBlockID, fmt.Errorf("failed to create block file %s: %w", tmp, err)
	}
	return &writableBlock{
		id:    id,
		file:  f,
		tmp:   tmp,
		final: m.blockPath(id),
	}, id, nil
}

// OpenBlock opens a finalized block for reads.
func (m *Manager) OpenBlock(id core.BlockID) (core.ReadableBlock, error) {
	if id.IsNull() {
		return nil, fmt.Errorf("open block: null id: %w", core.ErrNotFound)
	}
	f, err := os.Open(m.blockPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("open %s: %w", id, core.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open %s: %w", id, err)
	}
	return &readableBlock{file: f}, nil
}

// BlockExists probes for a finalized block.
func (m *Manager) BlockExists(id core.BlockID) bool {
	if id.IsNull() {
		return false
	}
	_, err := os.Stat(m.blockPath(id))
	return err == nil
}

// WriteBlock atomically replaces the content of the given block slot:
// write to temp, sync, rename. Used for the superblock anchors, which
// are the only mutable blocks in the store.
func (m *Manager) WriteBlock(id core.BlockID, data []byte) error {
	if id.IsNull() {
		return fmt.Errorf("write block: null id")
	}
	tmp := m.tmpPath(id)
	f, err := os.OpenFile(tmp, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", id, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", id, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to sync %s: %w", id, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close %s: %w", id, err)
	}
	if err := os.Rename(tmp, m.blockPath(id)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to finalize %s: %w", id, err)
	}
	return nil
}

// ReadBlock reads the full content of a block.
func (m *Manager) ReadBlock(id core.BlockID) ([]byte, error) {
	if id.IsNull() {
		return nil, fmt.Errorf("read block: null id: %w", core.ErrNotFound)
	}
	data, err := os.ReadFile(m.blockPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", id, core.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read %s: %w", id, err)
	}
	return data, nil
}

// RemoveBlock deletes a finalized block. The metadata layer never calls
// this during updates; it exists for a future garbage-collection
// collaborator and for tests.
func (m *Manager) RemoveBlock(id core.BlockID) error {
	if id.IsNull() {
		return fmt.Errorf("remove block: null id: %w", core.ErrNotFound)
	}
	if err := os.Remove(m.blockPath(id)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", id, core.ErrNotFound)
		}
		return fmt.Errorf("failed to remove %s: %w", id, err)
	}
	return nil
}

type writableBlock struct {
	id     core.BlockID
	file   *os.File
	tmp    string
	final  string
	closed bool
}

var _ core.WritableBlock = (*writableBlock)(nil)

func (w *writableBlock) ID() core.BlockID {
	return w.id
}

func (w *writableBlock) Write(p []byte) (int, error) {
	return w.file.Write(p)
}

// Close syncs the temp file and renames it into place, making the block
// durable and visible.
func (w *writableBlock) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.file.Sync(); err != nil {
		w.file.Close()
		os.Remove(w.tmp)
		return fmt.Errorf("failed to sync block %s: %w", w.id, err)
	}
	if err := w.file.Close(); err != nil {
		os.Remove(w.tmp)
		return fmt.Errorf("failed to close block %s: %w", w.id, err)
	}
	if err := os.Rename(w.tmp, w.final); err != nil {
		os.Remove(w.tmp)
		return fmt.Errorf("failed to finalize block %s: %w", w.id, err)
	}
	return nil
}

// Abort drops the partially written block. The id stays burned.
func (w *writableBlock) Abort() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.file.Close()
	if err := os.Remove(w.tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove temp block %s: %w", w.id, err)
	}
	return nil
}

type readableBlock struct {
	file *os.File
}

var _ core.ReadableBlock = (*readableBlock)(nil)

func (r *readableBlock) ReadAt(p []byte, off int64) (int, error) {
	return r.file.ReadAt(p, off)
}

func (r *readableBlock) Size() (uint64, error) {
	info, err := r.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat block file: %w", err)
	}
	return uint64(info.Size()), nil
}

func (r *readableBlock) Close() error {
	return r.file.Close()
}

// ReadAll is a convenience for callers that want the whole payload of
// an already-open block.
func ReadAll(rb core.ReadableBlock) ([]byte, error) {
	size, err := rb.Size()
	if err != nil {
		return nil, err
	}
	data := make([]byte, size)
	if _, err := rb.ReadAt(data, 0); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read block: %w", err)
	}
	return data, nil
}
