package localfs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miladsoleymani/lakesink/sink"
	"github.com/miladsoleymani/lakesink/sink/localfs"
)

func TestStore_Ping(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, localfs.New(root).Ping(context.Background()))

	err := localfs.New(filepath.Join(root, "missing")).Ping(context.Background())
	require.ErrorIs(t, err, sink.ErrNotFound)
}

func TestStore_CreateFileDoesNotTruncate(t *testing.T) {
	ctx := context.Background()
	s := localfs.New(t.TempDir())

	require.NoError(t, s.CreateDirectory(ctx, "orders"))
	require.NoError(t, s.CreateFile(ctx, "orders/sample.txt"))
	require.NoError(t, s.Append(ctx, "orders/sample.txt", 0, []byte("hello")))
	require.NoError(t, s.Flush(ctx, "orders/sample.txt", 5))

	err := s.CreateFile(ctx, "orders/sample.txt")
	require.ErrorIs(t, err, sink.ErrAlreadyExists)

	size, err := s.FileSize(ctx, "orders/sample.txt")
	require.NoError(t, err)
	assert.EqualValues(t, 5, size)
}

func TestStore_NotFound(t *testing.T) {
	ctx := context.Background()
	s := localfs.New(t.TempDir())

	exists, err := s.DirectoryExists(ctx, "orders")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = s.FileSize(ctx, "orders/sample.txt")
	require.ErrorIs(t, err, sink.ErrNotFound)

	err = s.Append(ctx, "orders/sample.txt", 0, []byte("x"))
	require.ErrorIs(t, err, sink.ErrNotFound)
}

func TestStore_AppendPastEnd(t *testing.T) {
	ctx := context.Background()
	s := localfs.New(t.TempDir())

	require.NoError(t, s.CreateDirectory(ctx, "orders"))
	require.NoError(t, s.CreateFile(ctx, "orders/sample.txt"))
	require.Error(t, s.Append(ctx, "orders/sample.txt", 3, []byte("x")))
}

func TestSink_LocalFS(t *testing.T) {
	root := t.TempDir()
	snk := sink.New(localfs.New(root))

	require.NoError(t, snk.Append(context.Background(), "orders/created", []byte("hello")))
	require.NoError(t, snk.Append(context.Background(), "orders/created", []byte("world")))

	got, err := os.ReadFile(filepath.Join(root, "orders", "created", sink.DefaultFileName))
	require.NoError(t, err)
	assert.Equal(t, "helloworld", string(got))
}
