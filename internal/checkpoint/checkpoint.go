// Package checkpoint persists the annotation frequency report.
package checkpoint

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kyleking/gh-runwarden/internal/frequency"
)

// DefaultPath is the snapshot file name used when none is configured.
const DefaultPath = "tests.json"

// Writer overwrites a single snapshot file with the ranked report.
type Writer struct {
	path   string
	logger *slog.Logger
}

// NewWriter creates a writer for path.
func NewWriter(path string, logger *slog.Logger) *Writer {
	if path == "" {
		path = DefaultPath
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Writer{path: path, logger: logger}
}

// Path returns the snapshot file path.
func (w *Writer) Path() string { return w.path }

// Persist ranks table and replaces the snapshot file with it.
func (w *Writer) Persist(table *frequency.Table) error {
	return w.PersistEntries(table.Ranked())
}

// PersistEntries replaces the snapshot file with entries. The write goes to a
// temporary file in the same directory first, so readers never observe a
// partially written report.
func (w *Writer) PersistEntries(entries []frequency.Entry) error {
	data, err := Encode(entries)
	if err != nil {
		return err
	}

	dir := filepath.Dir(w.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(w.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close checkpoint: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to set checkpoint mode: %w", err)
	}
	if err := os.Rename(tmpName, w.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", w.path, err)
	}

	w.logger.Debug("checkpoint written", "path", w.path, "entries", len(entries))
	return nil
}

// Encode renders entries as the report file contents: a JSON array of
// {"test", "count"} objects with two-space indentation.
func Encode(entries []frequency.Entry) ([]byte, error) {
	if entries == nil {
		entries = []frequency.Entry{}
	}
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(entries); err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}
	return buf.Bytes(), nil
}

// Read loads a report file.
func Read(path string) ([]frequency.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []frequency.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return entries, nil
}
