package sink

import (
	"context"
	"errors"
)

var (
	// ErrNotFound means the directory or file does not exist. It is the only
	// error that triggers creation.
	ErrNotFound = errors.New("sink: path not found")

	// ErrAlreadyExists is returned by a conditional create when another
	// writer got there first.
	ErrAlreadyExists = errors.New("sink: path already exists")

	// ErrPermission means the credential is not allowed to perform the call.
	ErrPermission = errors.New("sink: permission denied")

	// ErrInvalidTopic is returned for topics that cannot name a directory.
	ErrInvalidTopic = errors.New("sink: invalid topic")
)

// Store is a hierarchical, append-only remote filesystem. Paths are
// slash-separated and relative to the store's root (filesystem/container).
//
// Implementations return errors wrapping ErrNotFound, ErrAlreadyExists or
// ErrPermission where they apply; any other error is treated as transient.
type Store interface {
	// DirectoryExists reports whether the directory exists.
	DirectoryExists(ctx context.Context, dir string) (bool, error)

	// CreateDirectory creates dir and any missing parents.
	CreateDirectory(ctx context.Context, dir string) error

	// FileSize returns the committed length of the file.
	FileSize(ctx context.Context, path string) (int64, error)

	// CreateFile creates an empty file. It must not truncate an existing
	// file; it returns ErrAlreadyExists instead.
	CreateFile(ctx context.Context, path string) error

	// Append stages data at offset. Staged data is not visible until Flush.
	Append(ctx context.Context, path string, offset int64, data []byte) error

	// Flush commits staged data up to length.
	Flush(ctx context.Context, path string, length int64) error

	// Ping checks that the root exists and is reachable.
	Ping(ctx context.Context) error
}
