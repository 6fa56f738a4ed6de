package sink_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/miladsoleymani/lakesink/core"
	"github.com/miladsoleymani/lakesink/internal/mock"
	"github.com/miladsoleymani/lakesink/sink"
	"github.com/miladsoleymani/lakesink/sink/memory"
)

func TestAppend_NewTopic(t *testing.T) {
	store := memory.New()
	s := sink.New(store)

	require.NoError(t, s.Append(context.Background(), "orders", []byte("hello")))

	got, ok := store.Contents("orders/sample.txt")
	require.True(t, ok)
	assert.Equal(t, "hello", string(got))
	assert.Equal(t, []string{"orders"}, store.Directories())
	assert.Equal(t, []string{"orders/sample.txt"}, store.Files())
	assert.Equal(t, 1, store.Calls(memory.OpCreateDirectory))
	assert.Equal(t, 1, store.Calls(memory.OpCreateFile))
}

func TestAppend_ExistingFile(t *testing.T) {
	store := memory.New()
	store.Put("orders/sample.txt", []byte("hello"))
	s := sink.New(store)

	require.NoError(t, s.Append(context.Background(), "orders", []byte("world")))

	got, _ := store.Contents("orders/sample.txt")
	assert.Equal(t, "helloworld", string(got))
	assert.Len(t, got, 10)
	assert.Zero(t, store.Calls(memory.OpCreateDirectory))
	assert.Zero(t, store.Calls(memory.OpCreateFile))
}

func TestAppend_PreservesOrder(t *testing.T) {
	store := memory.New()
	s := sink.New(store)

	payloads := []string{"first,", "second,", "third"}
	for _, p := range payloads {
		require.NoError(t, s.Append(context.Background(), "events/clicks", []byte(p)))
	}

	got, _ := store.Contents("events/clicks/sample.txt")
	assert.Equal(t, "first,second,third", string(got))
	assert.Equal(t, 1, store.Calls(memory.OpCreateFile))
}

func TestAppend_TopicsAreIsolated(t *testing.T) {
	store := memory.New()
	s := sink.New(store, sink.WithFileName("data.log"))

	require.NoError(t, s.Append(context.Background(), "orders", []byte("o1")))
	require.NoError(t, s.Append(context.Background(), "payments", []byte("p1")))
	require.NoError(t, s.Append(context.Background(), "orders", []byte("o2")))

	orders, _ := store.Contents("orders/data.log")
	payments, _ := store.Contents("payments/data.log")
	assert.Equal(t, "o1o2", string(orders))
	assert.Equal(t, "p1", string(payments))
}

func TestAppend_DirectoryLookupErrorDoesNotCreate(t *testing.T) {
	store := memory.New()
	transient := errors.New("connection reset by peer")
	store.Fail(memory.OpDirectoryExists, transient)
	s := sink.New(store)

	err := s.Append(context.Background(), "orders", []byte("hello"))
	require.ErrorIs(t, err, transient)
	assert.Zero(t, store.Calls(memory.OpCreateDirectory))
	assert.Zero(t, store.Calls(memory.OpCreateFile))
}

func TestAppend_FileLookupErrorDoesNotCreate(t *testing.T) {
	store := memory.New()
	store.Put("orders/sample.txt", []byte("hello"))
	denied := sink.ErrPermission
	store.Fail(memory.OpFileSize, denied)
	s := sink.New(store)

	err := s.Append(context.Background(), "orders", []byte("world"))
	require.ErrorIs(t, err, sink.ErrPermission)
	assert.Zero(t, store.Calls(memory.OpCreateFile))

	got, _ := store.Contents("orders/sample.txt")
	assert.Equal(t, "hello", string(got), "existing content must be untouched")
}

func TestAppend_FlushFailureCommitsNothing(t *testing.T) {
	store := memory.New()
	store.Put("orders/sample.txt", []byte("hello"))
	store.Fail(memory.OpFlush, errors.New("timeout"))
	s := sink.New(store)

	require.Error(t, s.Append(context.Background(), "orders", []byte("world")))
	got, _ := store.Contents("orders/sample.txt")
	assert.Equal(t, "hello", string(got))

	// Redelivery after recovery appends exactly once.
	store.Fail(memory.OpFlush, nil)
	require.NoError(t, s.Append(context.Background(), "orders", []byte("world")))
	got, _ = store.Contents("orders/sample.txt")
	assert.Equal(t, "helloworld", string(got))
}

func TestAppend_EmptyPayload(t *testing.T) {
	store := memory.New()
	s := sink.New(store)

	require.NoError(t, s.Append(context.Background(), "orders", nil))
	got, ok := store.Contents("orders/sample.txt")
	require.True(t, ok)
	assert.Empty(t, got)
	assert.Zero(t, store.Calls(memory.OpAppend))
	assert.Zero(t, store.Calls(memory.OpFlush))
}

// racingStore simulates another writer creating the file between the size
// lookup and the create.
type racingStore struct {
	*memory.Store
	seed []byte
}

func (r *racingStore) CreateFile(ctx context.Context, p string) error {
	r.Put(p, r.seed)
	return r.Store.CreateFile(ctx, p)
}

func TestAppend_ConcurrentCreateDoesNotTruncate(t *testing.T) {
	store := &racingStore{Store: memory.New(), seed: []byte("hello")}
	s := sink.New(store)

	require.NoError(t, s.Append(context.Background(), "orders", []byte("world")))
	got, _ := store.Contents("orders/sample.txt")
	assert.Equal(t, "helloworld", string(got))
}

func TestAppend_Logging(t *testing.T) {
	zc, logs := observer.New(zapcore.InfoLevel)
	store := memory.New()
	store.Put("orders/sample.txt", []byte("hello"))
	s := sink.New(store, sink.WithLogger(zap.New(zc).Sugar()))

	require.NoError(t, s.Append(context.Background(), "orders", []byte("world")))

	entries := logs.FilterMessage("appended payload").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.EqualValues(t, 5, fields["size_before"])
	assert.EqualValues(t, 10, fields["size_after"])
}

type recorder map[string]int

func (r recorder) BytesAppended(topic string, n int) { r[topic] += n }

func TestAppend_Recorder(t *testing.T) {
	rec := recorder{}
	s := sink.New(memory.New(), sink.WithRecorder(rec))

	require.NoError(t, s.Append(context.Background(), "orders", []byte("hello")))
	require.NoError(t, s.Append(context.Background(), "orders", []byte("!")))
	assert.Equal(t, 6, rec["orders"])
}

func TestHandle_AcksOnlyAfterAppend(t *testing.T) {
	store := memory.New()
	s := sink.New(store)

	msg := &mock.Message{Topic: "orders", Body: []byte("hello")}
	require.NoError(t, s.Handle(core.NewContext(context.Background(), msg, "#")))
	assert.True(t, msg.Acked())

	store.Fail(memory.OpAppend, errors.New("service unavailable"))
	failed := &mock.Message{Topic: "orders", Body: []byte("world")}
	require.Error(t, s.Handle(core.NewContext(context.Background(), failed, "#")))
	assert.False(t, failed.Acked())

	got, _ := store.Contents("orders/sample.txt")
	assert.Equal(t, "hello", string(got))
}

func TestDir(t *testing.T) {
	tests := []struct {
		topic   string
		want    string
		wantErr bool
	}{
		{"orders", "orders", false},
		{"orders/created", "orders/created", false},
		{"/orders/created/", "orders/created", false},
		{"orders.created", "orders.created", false},
		{"", "", true},
		{"/", "", true},
		{"orders//created", "", true},
		{"orders/../secrets", "", true},
		{"./orders", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			got, err := sink.Dir(tt.topic)
			if tt.wantErr {
				require.ErrorIs(t, err, sink.ErrInvalidTopic)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
