// Package fileutil holds the filesystem helpers shared by the profile and
// config stores.
package fileutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrEmptyPath is returned when a write target is blank.
var ErrEmptyPath = errors.New("path is empty")

// DirPerm is the mode used for directories created on demand.
const DirPerm os.FileMode = 0o750

// WriteAtomic replaces path with data. Parent directories are created as
// needed. The bytes land in a sibling temp file first and are renamed into
// place, so a reader sees either the previous contents or the new ones.
func WriteAtomic(path string, data []byte, perm os.FileMode) error {
	if path == "" {
		return ErrEmptyPath
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DirPerm); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if err := flush(tmp, data, perm); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil { //nolint:gosec // G703: path comes from config, not user input
		return fmt.Errorf("replace %s: %w", path, err)
	}
	syncDir(dir)
	return nil
}

// flush writes data to f, applies perm, fsyncs and closes it. f is always
// closed on return.
func flush(f *os.File, data []byte, perm os.FileMode) error {
	steps := []struct {
		what string
		run  func() error
	}{
		{"write", func() error { _, err := f.Write(data); return err }},
		{"chmod", func() error { return f.Chmod(perm) }},
		{"sync", f.Sync},
	}
	for _, s := range steps {
		if err := s.run(); err != nil {
			_ = f.Close()
			return fmt.Errorf("%s temp file: %w", s.what, err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	return nil
}

// syncDir makes the rename durable where the platform allows it.
func syncDir(dir string) {
	d, err := os.Open(dir) //nolint:gosec // G304: dir is the parent of a configured path
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

// Exists reports whether path names an existing file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
