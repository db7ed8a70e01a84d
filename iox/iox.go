// Package iox provides I/O helpers for resource cleanup and safe file writes.
package iox

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DiscardClose closes c and discards the error.
// Use in defer statements where close errors are unactionable:
//
//	defer iox.DiscardClose(f)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc returns a cleanup function that closes c.
// Designed for t.Cleanup registration:
//
//	t.Cleanup(iox.CloseFunc(watcher))
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// DiscardErr calls fn and discards the returned error.
// Use for non-Close cleanup calls (e.g. Sync) where errors are unactionable:
//
//	defer iox.DiscardErr(logger.Sync)
func DiscardErr(fn func() error) { _ = fn() }

// FileMode is the mode of files committed through TempSibling, matching
// what a shell redirect produces under the usual 022 umask.
const FileMode os.FileMode = 0o644

// TempSibling creates an empty temp file in the same directory as path.
// Renaming it over path later is atomic on the same filesystem.
func TempSibling(path string) (*os.File, error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	f, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file for %s: %w", path, err)
	}
	// CreateTemp opens with 0600.
	if err := f.Chmod(FileMode); err != nil {
		Abort(f)
		return nil, fmt.Errorf("chmod temp file for %s: %w", path, err)
	}
	return f, nil
}

// Commit closes f and renames it to path. On any failure the temp file is
// removed so no partial file is left behind.
func Commit(f *os.File, path string) error {
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return fmt.Errorf("close %s: %w", f.Name(), err)
	}
	if err := os.Rename(f.Name(), path); err != nil {
		_ = os.Remove(f.Name())
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// Abort closes and removes a temp file created by TempSibling.
func Abort(f *os.File) {
	_ = f.Close()
	_ = os.Remove(f.Name())
}

// WriteFileAtomic writes data to path via a temp sibling and rename.
// Readers never observe a partially written file.
func WriteFileAtomic(path string, data []byte) error {
	f, err := TempSibling(path)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		Abort(f)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return Commit(f, path)
}
