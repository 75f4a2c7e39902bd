// Package report writes the pipeline's two output artifacts — the health
// report and the holdings breakdown — atomically: write to a temp file in
// the destination directory, flush, fsync, then rename over the
// destination (spec.md §4.8 "Atomicity of reports"). A half-written report
// left after a crash is never observable to a reader.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// WriteJSONAtomic marshals v as indented JSON and atomically replaces path.
func WriteJSONAtomic(path string, v interface{}) error {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("report: encode json: %w", err)
	}
	return writeAtomic(path, body)
}

// writeAtomic writes data to a temp file beside path, fsyncs it, then
// renames it over path. The temp file is removed on any failure before the
// rename so a crash never leaves stray partial files behind.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("report: create output dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*"+filepath.Base(path))
	if err != nil {
		return fmt.Errorf("report: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("report: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("report: fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("report: close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("report: rename into place: %w", err)
	}
	cleanup = false
	return nil
}
