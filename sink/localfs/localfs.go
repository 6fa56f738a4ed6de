// Package localfs implements sink.Store on a local directory tree.
//
// Appends are written straight to the file and Flush only syncs it, so
// there is no staging: a failed flush can leave bytes behind.
package localfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/miladsoleymani/lakesink/sink"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Store keeps every path under Root.
type Store struct {
	root string
}

var _ sink.Store = (*Store)(nil)

// New returns a Store rooted at root. The root is not created; Ping fails
// until it exists.
func New(root string) *Store {
	return &Store{root: root}
}

// Root returns the directory all paths are relative to.
func (s *Store) Root() string { return s.root }

func (s *Store) abs(p string) string {
	return filepath.Join(s.root, filepath.FromSlash(p))
}

func (s *Store) Ping(context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return mapError(s.root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("localfs: %q is not a directory", s.root)
	}
	return nil
}

func (s *Store) DirectoryExists(_ context.Context, dir string) (bool, error) {
	info, err := os.Stat(s.abs(dir))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, mapError(dir, err)
	}
	if !info.IsDir() {
		return false, fmt.Errorf("localfs: %q exists and is not a directory", dir)
	}
	return true, nil
}

func (s *Store) CreateDirectory(_ context.Context, dir string) error {
	if err := os.MkdirAll(s.abs(dir), dirPerm); err != nil {
		return mapError(dir, err)
	}
	return nil
}

func (s *Store) FileSize(_ context.Context, p string) (int64, error) {
	info, err := os.Stat(s.abs(p))
	if err != nil {
		return 0, mapError(p, err)
	}
	return info.Size(), nil
}

func (s *Store) CreateFile(_ context.Context, p string) error {
	f, err := os.OpenFile(s.abs(p), os.O_CREATE|os.O_EXCL|os.O_WRONLY, filePerm)
	if err != nil {
		return mapError(p, err)
	}
	return f.Close()
}

// Append writes data at offset. Writing past the end of the file is refused.
func (s *Store) Append(_ context.Context, p string, offset int64, data []byte) error {
	f, err := os.OpenFile(s.abs(p), os.O_WRONLY, 0)
	if err != nil {
		return mapError(p, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return mapError(p, err)
	}
	if offset > info.Size() {
		return fmt.Errorf("localfs: %q: append at %d past end of file %d", p, offset, info.Size())
	}
	if _, err := f.WriteAt(data, offset); err != nil {
		return mapError(p, err)
	}
	return nil
}

// Flush syncs the file and checks it has the expected length.
func (s *Store) Flush(_ context.Context, p string, length int64) error {
	f, err := os.OpenFile(s.abs(p), os.O_WRONLY, 0)
	if err != nil {
		return mapError(p, err)
	}
	defer f.Close()

	if err := f.Sync(); err != nil {
		return mapError(p, err)
	}
	info, err := f.Stat()
	if err != nil {
		return mapError(p, err)
	}
	if info.Size() < length {
		return fmt.Errorf("localfs: %q: flush to %d, file has %d bytes", p, length, info.Size())
	}
	return nil
}

func mapError(p string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("localfs: %q: %w: %w", p, sink.ErrNotFound, err)
	case errors.Is(err, fs.ErrExist):
		return fmt.Errorf("localfs: %q: %w: %w", p, sink.ErrAlreadyExists, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("localfs: %q: %w: %w", p, sink.ErrPermission, err)
	default:
		return fmt.Errorf("localfs: %q: %w", p, err)
	}
}
