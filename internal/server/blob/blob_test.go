package blob

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/openmined/syftupload/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, backend Backend) *BlobService {
	t.Helper()
	database, err := db.NewSqliteDB()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	svc, err := NewBlobServiceWithBackend(backend, &Config{KeyPrefix: "incoming"}, database)
	require.NoError(t, err)
	return svc
}

func TestBlobService_NewObjectKey(t *testing.T) {
	svc := newTestService(t, &mockBackend{})
	key := svc.NewObjectKey("a.bin")
	assert.True(t, strings.HasPrefix(key, "incoming/"))
	assert.True(t, strings.HasSuffix(key, "/a.bin"))
	assert.True(t, svc.OwnsKey(key))
}

func TestBlobService_OwnsKey(t *testing.T) {
	svc := newTestService(t, &mockBackend{})
	assert.Equal(t, "incoming", svc.KeyPrefix())
	assert.True(t, svc.OwnsKey("incoming/x/a.bin"))
	assert.False(t, svc.OwnsKey("incoming"))
	assert.False(t, svc.OwnsKey("incomingx/a.bin"))
	assert.False(t, svc.OwnsKey("other/a.bin"))
}

func TestBlobService_ReapStale(t *testing.T) {
	backend := &mockBackend{}
	backend.On("AbortMultipartUpload", "k-ok", "u-ok").Return(nil)
	backend.On("AbortMultipartUpload", "k-gone", "u-gone").Return(ErrUploadNotFound)
	backend.On("AbortMultipartUpload", "k-fail", "u-fail").Return(errors.New("storage down"))

	svc := newTestService(t, backend)
	ctx := context.Background()

	old := time.Now().Add(-2 * time.Hour)
	svc.index.nowFn = func() time.Time { return old }
	for _, id := range []string{"ok", "gone", "fail"} {
		require.NoError(t, svc.index.Create(ctx, &UploadRecord{UploadID: "u-" + id, Key: "k-" + id}))
	}
	svc.index.nowFn = time.Now

	reaped, err := svc.ReapStale(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, reaped)
	backend.AssertNumberOfCalls(t, "AbortMultipartUpload", 3)

	for id, want := range map[string]UploadStatus{"u-ok": UploadAborted, "u-gone": UploadAborted, "u-fail": UploadCreated} {
		rec, err := svc.index.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, rec.Status, id)
	}
}

func TestBlobService_RunReaperStopsOnCancel(t *testing.T) {
	backend := &mockBackend{}
	backend.On("AbortMultipartUpload", mock.Anything, mock.Anything).Return(nil)
	svc := newTestService(t, backend)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.RunReaper(ctx, 10*time.Millisecond, time.Hour) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop")
	}
}
