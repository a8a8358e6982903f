package nonce

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openmined/syftupload/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLStore(t *testing.T, ttl time.Duration) *SQLStore {
	t.Helper()
	database, err := db.NewSqliteDB()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	store, err := NewSQLStore(database, ttl)
	require.NoError(t, err)
	return store
}

func storesUnderTest(t *testing.T, ttl time.Duration) map[string]Store {
	return map[string]Store{
		"memory": NewMemoryStore(ttl, 0),
		"sql":    newTestSQLStore(t, ttl),
	}
}

func TestStore_RecordOnce(t *testing.T) {
	for name, store := range storesUnderTest(t, time.Minute) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			ok, err := store.Record(ctx, "abc")
			require.NoError(t, err)
			assert.True(t, ok, "first record should be new")

			ok, err = store.Record(ctx, "abc")
			require.NoError(t, err)
			assert.False(t, ok, "second record should be rejected")

			ok, err = store.Record(ctx, "def")
			require.NoError(t, err)
			assert.True(t, ok, "different nonce should be new")
		})
	}
}

func TestStore_EmptyNonce(t *testing.T) {
	for name, store := range storesUnderTest(t, time.Minute) {
		t.Run(name, func(t *testing.T) {
			ok, err := store.Record(context.Background(), "")
			assert.ErrorIs(t, err, ErrEmptyNonce)
			assert.False(t, ok)
		})
	}
}

func TestStore_ConcurrentRecordIsAtomic(t *testing.T) {
	for name, store := range storesUnderTest(t, time.Minute) {
		t.Run(name, func(t *testing.T) {
			var wins atomic.Int32
			var wg sync.WaitGroup

			for range 32 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					ok, err := store.Record(context.Background(), "contended")
					assert.NoError(t, err)
					if ok {
						wins.Add(1)
					}
				}()
			}
			wg.Wait()

			assert.Equal(t, int32(1), wins.Load())
		})
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore(30*time.Millisecond, 0)
	ctx := context.Background()

	ok, _ := store.Record(ctx, "n1")
	assert.True(t, ok)

	time.Sleep(60 * time.Millisecond)

	ok, err := store.Record(ctx, "n1")
	require.NoError(t, err)
	assert.True(t, ok, "expired nonce can be recorded again")
}

func TestMemoryStore_ExpiryFollowsClock(t *testing.T) {
	store := NewMemoryStore(time.Hour, 0)
	ctx := context.Background()

	now := time.Now()
	store.nowFn = func() time.Time { return now }

	ok, err := store.Record(ctx, "n1")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(30 * time.Minute)
	ok, err = store.Record(ctx, "n1")
	require.NoError(t, err)
	assert.False(t, ok)

	seen, err := store.Seen(ctx, "n1")
	require.NoError(t, err)
	assert.True(t, seen)

	// past the deadline, before the LRU's own wall-clock eviction
	now = now.Add(time.Hour)
	seen, err = store.Seen(ctx, "n1")
	require.NoError(t, err)
	assert.False(t, seen)

	ok, err = store.Record(ctx, "n1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSQLStore_ExpiryAndPrune(t *testing.T) {
	store := newTestSQLStore(t, time.Minute)
	ctx := context.Background()

	now := time.Now()
	store.nowFn = func() time.Time { return now }

	ok, err := store.Record(ctx, "n1")
	require.NoError(t, err)
	assert.True(t, ok)

	// still inside the retention window
	now = now.Add(30 * time.Second)
	ok, err = store.Record(ctx, "n1")
	require.NoError(t, err)
	assert.False(t, ok)

	// past it: the expired row is reclaimed
	now = now.Add(2 * time.Minute)
	ok, err = store.Record(ctx, "n1")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	n, err := store.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRetentionFor(t *testing.T) {
	assert.Equal(t, 10*time.Minute, RetentionFor(5*time.Minute))
}

func TestStore_SeenDoesNotRecord(t *testing.T) {
	for name, store := range storesUnderTest(t, time.Minute) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			peeker := store.(Peeker)

			seen, err := peeker.Seen(ctx, "n")
			require.NoError(t, err)
			assert.False(t, seen)

			// peeking must not consume the nonce
			ok, err := store.Record(ctx, "n")
			require.NoError(t, err)
			assert.True(t, ok)

			seen, err = peeker.Seen(ctx, "n")
			require.NoError(t, err)
			assert.True(t, seen)
		})
	}
}
