// Package storage persists raw and transformed images on a billy filesystem.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

// Storage is what the pipeline stages need from a filesystem
type Storage interface {
	Write(locator string, data []byte) error
	Open(locator string) (io.ReadCloser, error)
	Create(locator string) (io.WriteCloser, error)
	Exists(locator string) (bool, error)
	Remove(locator string) error
	MkdirAll(dir string) error
}

// FS implements Storage on top of a billy.Filesystem
type FS struct {
	fs billy.Filesystem
}

// New wraps an existing billy filesystem
func New(fs billy.Filesystem) *FS {
	return &FS{fs: fs}
}

// NewOS returns storage rooted at dir on the local disk
func NewOS(dir string) *FS {
	return &FS{fs: osfs.New(dir)}
}

// NewMemory returns storage that lives only in memory
func NewMemory() *FS {
	return &FS{fs: memfs.New()}
}

// MkdirAll creates dir and any missing parents
func (s *FS) MkdirAll(dir string) error {
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdirall %q: %w", dir, err)
	}
	return nil
}

// Write stores data at locator, replacing any previous content
func (s *FS) Write(locator string, data []byte) error {
	if err := s.mkdirParent(locator); err != nil {
		return err
	}
	if err := util.WriteFile(s.fs, locator, data, 0o644); err != nil {
		return fmt.Errorf("storage: write %q: %w", locator, err)
	}
	return nil
}

// Open returns a reader for locator. The caller owns the handle.
func (s *FS) Open(locator string) (io.ReadCloser, error) {
	f, err := s.fs.Open(locator)
	if err != nil {
		return nil, fmt.Errorf("storage: open %q: %w", locator, err)
	}
	return f, nil
}

// Create truncates or creates locator for writing. The caller owns the handle.
func (s *FS) Create(locator string) (io.WriteCloser, error) {
	if err := s.mkdirParent(locator); err != nil {
		return nil, err
	}
	f, err := s.fs.Create(locator)
	if err != nil {
		return nil, fmt.Errorf("storage: create %q: %w", locator, err)
	}
	return f, nil
}

// Exists reports whether locator is present
func (s *FS) Exists(locator string) (bool, error) {
	_, err := s.fs.Stat(locator)
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, fmt.Errorf("storage: stat %q: %w", locator, err)
	}
}

// Remove deletes locator
func (s *FS) Remove(locator string) error {
	if err := s.fs.Remove(locator); err != nil {
		return fmt.Errorf("storage: remove %q: %w", locator, err)
	}
	return nil
}

// ReadFile returns the whole content of locator
func (s *FS) ReadFile(locator string) ([]byte, error) {
	data, err := util.ReadFile(s.fs, locator)
	if err != nil {
		return nil, fmt.Errorf("storage: read %q: %w", locator, err)
	}
	return data, nil
}

func (s *FS) mkdirParent(locator string) error {
	dir := filepath.Dir(locator)
	if dir == "." || dir == "" {
		return nil
	}
	return s.MkdirAll(dir)
}
