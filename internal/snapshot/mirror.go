// Package snapshot maintains the human-readable mirror of the keyword
// counts: a single JSON file rewritten in full on every update, so external
// readers (dashboards, tailing tools) always see a complete, self-consistent
// document rather than a delta stream.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// ErrSinkWrite is returned when the snapshot artifact cannot be written
// (permissions, disk full). The durable store remains authoritative; the
// mirror stays stale until the next successful write.
var ErrSinkWrite = errors.New("snapshot write failed")

// FileMirror writes the full keyword mapping to a JSON file.
type FileMirror struct {
	path string
}

// NewFileMirror creates a mirror targeting the given file path.
func NewFileMirror(path string) *FileMirror {
	return &FileMirror{path: path}
}

// Reset deletes any snapshot artifact left over from a previous run.
// A missing artifact is not an error.
func (m *FileMirror) Reset() error {
	if err := os.Remove(m.path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: removing stale snapshot: %v", ErrSinkWrite, err)
	}
	slog.Info("[Snapshot] Deleted stale snapshot", "path", m.path)
	return nil
}

// WriteFull serializes the entire mapping and replaces the artifact
// wholesale. The document is written to a temp file in the same directory
// and renamed over the target, so a concurrent reader never observes a
// partially written snapshot.
func (m *FileMirror) WriteFull(counts map[string]int64) error {
	if counts == nil {
		counts = map[string]int64{}
	}

	data, err := json.MarshalIndent(counts, "", "    ")
	if err != nil {
		return fmt.Errorf("%w: marshaling counts: %v", ErrSinkWrite, err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: creating snapshot directory: %v", ErrSinkWrite, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(m.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %v", ErrSinkWrite, err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: writing temp file: %v", ErrSinkWrite, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: closing temp file: %v", ErrSinkWrite, err)
	}

	if err := os.Rename(tmp.Name(), m.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: replacing snapshot: %v", ErrSinkWrite, err)
	}

	return nil
}
