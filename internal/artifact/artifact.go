// Package artifact provides the crash-safe, on-disk writers shared by every
// stage: atomic JSON writes for schema/mapping/checkpoint documents, and an
// append-only CSV writer for the dead-letter queue.
package artifact

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// WriteJSON marshals v and writes it to path via a temp-file-then-rename,
// so a crash mid-write never leaves a partially-written artifact behind.
func WriteJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("artifact: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("artifact: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		return fmt.Errorf("artifact: encode: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("artifact: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("artifact: close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("artifact: rename into place: %w", err)
	}
	return nil
}

// ReadJSON unmarshals the document at path into v.
func ReadJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("artifact: open: %w", err)
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("artifact: decode %s: %w", path, err)
	}
	return nil
}

// DLQWriter appends dead-letter rows to a per-table CSV file, flushing and
// fsyncing after every row so a killed process loses at most the row it was
// mid-write on.
type DLQWriter struct {
	f *os.File
	w *csv.Writer
}

// NewDLQWriter opens (creating if needed) the DLQ CSV at path, writing a
// header row only when the file is new.
func NewDLQWriter(path string) (*DLQWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("artifact: mkdir: %w", err)
	}

	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("artifact: open dlq: %w", err)
	}

	w := csv.NewWriter(f)
	dw := &DLQWriter{f: f, w: w}
	if isNew {
		if err := w.Write([]string{"row_key", "reason", "raw_row", "timestamp"}); err != nil {
			f.Close()
			return nil, err
		}
		w.Flush()
		if err := f.Sync(); err != nil {
			f.Close()
			return nil, err
		}
	}
	return dw, nil
}

// WriteRow appends one DLQ record, flushing and fsyncing before returning.
func (d *DLQWriter) WriteRow(rowKey, reason, rawRow, timestamp string) error {
	if err := d.w.Write([]string{rowKey, reason, rawRow, timestamp}); err != nil {
		return fmt.Errorf("artifact: write dlq row: %w", err)
	}
	d.w.Flush()
	if err := d.w.Error(); err != nil {
		return err
	}
	return d.f.Sync()
}

// Close releases the underlying file handle.
func (d *DLQWriter) Close() error {
	return d.f.Close()
}
