// Package sink appends message payloads to per-topic files in a
// hierarchical store such as Azure Data Lake Storage Gen2.
//
// Every topic gets a directory named after it, holding a single append-only
// file. Appends are not idempotent: delivering the same message twice
// appends its payload twice.
package sink

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/miladsoleymani/lakesink/core"
)

// DefaultFileName is the file written inside every topic directory.
const DefaultFileName = "sample.txt"

// Recorder receives the number of bytes committed per topic.
type Recorder interface {
	BytesAppended(topic string, n int)
}

// Option configures a Sink.
type Option func(*Sink)

// WithFileName sets the name of the file inside each topic directory.
func WithFileName(name string) Option {
	return func(s *Sink) { s.fileName = name }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(s *Sink) { s.log = log }
}

// WithRecorder reports committed bytes to r.
func WithRecorder(r Recorder) Option {
	return func(s *Sink) { s.recorder = r }
}

// WithTimeout bounds each Append call. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Sink) { s.timeout = d }
}

// Sink appends payloads to <topic>/<file name> in a Store. It is not safe
// for concurrent appends to the same topic: offsets are read, then written.
type Sink struct {
	store    Store
	fileName string
	timeout  time.Duration
	log      *zap.SugaredLogger
	recorder Recorder
}

// New creates a Sink writing through store. The store is owned by the caller.
func New(store Store, opts ...Option) *Sink {
	s := &Sink{
		store:    store,
		fileName: DefaultFileName,
		log:      zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle is a core.HandlerFunc: it appends the message payload and
// acknowledges the message only once the append has been flushed.
func (s *Sink) Handle(c core.Context) error {
	if err := s.Append(c.Context(), c.Topic(), c.Payload()); err != nil {
		return err
	}
	return c.Ack()
}

// Append ensures the topic directory and file exist, then appends payload at
// the file's current length and flushes it.
func (s *Sink) Append(ctx context.Context, topic string, payload []byte) error {
	dir, err := Dir(topic)
	if err != nil {
		return err
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if err := s.ensureDirectory(ctx, dir); err != nil {
		return err
	}

	file := path.Join(dir, s.fileName)
	size, err := s.ensureFile(ctx, file)
	if err != nil {
		return err
	}
	s.log.Debugw("current file size", "path", file, "size_before", size)

	if len(payload) == 0 {
		return nil
	}

	if err := s.store.Append(ctx, file, size, payload); err != nil {
		return fmt.Errorf("sink: append %d bytes to %q at %d: %w", len(payload), file, size, err)
	}
	length := size + int64(len(payload))
	if err := s.store.Flush(ctx, file, length); err != nil {
		return fmt.Errorf("sink: flush %q to %d: %w", file, length, err)
	}
	if s.recorder != nil {
		s.recorder.BytesAppended(topic, len(payload))
	}

	after, err := s.store.FileSize(ctx, file)
	if err != nil {
		s.log.Warnw("could not read size after append",
			"path", file,
			"expected", length,
			"error", err,
		)
		after = length
	}
	s.log.Infow("appended payload",
		"topic", topic,
		"path", file,
		"size_before", size,
		"size_after", after,
	)
	return nil
}

func (s *Sink) ensureDirectory(ctx context.Context, dir string) error {
	exists, err := s.store.DirectoryExists(ctx, dir)
	if err != nil {
		return fmt.Errorf("sink: look up directory %q: %w", dir, err)
	}
	if exists {
		return nil
	}
	if err := s.store.CreateDirectory(ctx, dir); err != nil && !errors.Is(err, ErrAlreadyExists) {
		return fmt.Errorf("sink: create directory %q: %w", dir, err)
	}
	s.log.Infow("directory created", "path", dir)
	return nil
}

// ensureFile returns the committed length of file, creating it when absent.
func (s *Sink) ensureFile(ctx context.Context, file string) (int64, error) {
	size, err := s.store.FileSize(ctx, file)
	if err == nil {
		return size, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return 0, fmt.Errorf("sink: look up file %q: %w", file, err)
	}

	err = s.store.CreateFile(ctx, file)
	switch {
	case err == nil:
		s.log.Infow("file created", "path", file)
		return 0, nil
	case errors.Is(err, ErrAlreadyExists):
		// created concurrently; its length may no longer be zero
		size, err = s.store.FileSize(ctx, file)
		if err != nil {
			return 0, fmt.Errorf("sink: look up file %q: %w", file, err)
		}
		return size, nil
	default:
		return 0, fmt.Errorf("sink: create file %q: %w", file, err)
	}
}

// Dir maps a topic onto a directory path. Leading and trailing slashes are
// dropped; empty, "." and ".." levels are rejected.
func Dir(topic string) (string, error) {
	dir := strings.Trim(topic, "/")
	if dir == "" {
		return "", fmt.Errorf("%w: empty topic", ErrInvalidTopic)
	}
	for _, level := range strings.Split(dir, "/") {
		switch level {
		case "", ".", "..":
			return "", fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
		}
	}
	return dir, nil
}
