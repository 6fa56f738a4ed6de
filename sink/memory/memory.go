// Package memory is an in-process sink.Store, used by tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/miladsoleymani/lakesink/sink"
)

// Op names a Store method, for fault injection.
type Op string

const (
	OpDirectoryExists Op = "DirectoryExists"
	OpCreateDirectory Op = "CreateDirectory"
	OpFileSize        Op = "FileSize"
	OpCreateFile      Op = "CreateFile"
	OpAppend          Op = "Append"
	OpFlush           Op = "Flush"
)

type file struct {
	committed []byte
	staged    []byte
}

// Store keeps directories and files in memory. Like Data Lake, appended
// data is staged and only becomes part of the file on Flush.
type Store struct {
	mu       sync.Mutex
	dirs     map[string]bool
	files    map[string]*file
	failures map[Op]error
	calls    map[Op]int
}

var _ sink.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		dirs:     make(map[string]bool),
		files:    make(map[string]*file),
		failures: make(map[Op]error),
		calls:    make(map[Op]int),
	}
}

// Fail makes every later call to op return err. A nil err clears it.
func (s *Store) Fail(op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// Calls returns how many times op was invoked, including failed calls.
func (s *Store) Calls(op Op) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Put seeds a committed file, creating its parent directories.
func (s *Store) Put(p string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mkdirAll(path.Dir(p))
	s.files[p] = &file{committed: append([]byte(nil), data...)}
}

// Contents returns the committed bytes of the file at p.
func (s *Store) Contents(p string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[p]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), f.committed...), true
}

// Directories lists every directory, sorted.
func (s *Store) Directories() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.dirs))
	for d := range s.dirs {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Files lists every file path, sorted.
func (s *Store) Files() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.files))
	for p := range s.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (s *Store) enter(op Op) error {
	s.calls[op]++
	return s.failures[op]
}

func (s *Store) mkdirAll(dir string) {
	for dir != "." && dir != "/" && dir != "" {
		s.dirs[dir] = true
		dir = path.Dir(dir)
	}
}

func (s *Store) DirectoryExists(_ context.Context, dir string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpDirectoryExists); err != nil {
		return false, err
	}
	return s.dirs[strings.Trim(dir, "/")], nil
}

func (s *Store) CreateDirectory(_ context.Context, dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpCreateDirectory); err != nil {
		return err
	}
	s.mkdirAll(strings.Trim(dir, "/"))
	return nil
}

func (s *Store) FileSize(_ context.Context, p string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpFileSize); err != nil {
		return 0, err
	}
	f, ok := s.files[p]
	if !ok {
		return 0, fmt.Errorf("memory: %q: %w", p, sink.ErrNotFound)
	}
	return int64(len(f.committed)), nil
}

func (s *Store) CreateFile(_ context.Context, p string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpCreateFile); err != nil {
		return err
	}
	if _, ok := s.files[p]; ok {
		return fmt.Errorf("memory: %q: %w", p, sink.ErrAlreadyExists)
	}
	s.mkdirAll(path.Dir(p))
	s.files[p] = &file{}
	return nil
}

func (s *Store) Append(_ context.Context, p string, offset int64, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpAppend); err != nil {
		return err
	}
	f, ok := s.files[p]
	if !ok {
		return fmt.Errorf("memory: %q: %w", p, sink.ErrNotFound)
	}
	// Staged data past offset is overwritten, as after a failed flush.
	start := int64(len(f.committed))
	if end := start + int64(len(f.staged)); offset < start || offset > end {
		return fmt.Errorf("memory: %q: append at %d, expected %d..%d", p, offset, start, end)
	}
	f.staged = append(f.staged[:offset-start], data...)
	return nil
}

func (s *Store) Flush(_ context.Context, p string, length int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(OpFlush); err != nil {
		return err
	}
	f, ok := s.files[p]
	if !ok {
		return fmt.Errorf("memory: %q: %w", p, sink.ErrNotFound)
	}
	if end := int64(len(f.committed) + len(f.staged)); length != end {
		return fmt.Errorf("memory: %q: flush to %d, staged data ends at %d", p, length, end)
	}
	f.committed = append(f.committed, f.staged...)
	f.staged = nil
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }
