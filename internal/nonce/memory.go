package nonce

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryStore is the default in-process store backed by an expirable LRU.
// It is not durable: restarting the process forgets every nonce.
type MemoryStore struct {
	mu    sync.Mutex
	seen  *expirable.LRU[string, time.Time]
	ttl   time.Duration
	nowFn func() time.Time
}

// NewMemoryStore creates a store that remembers nonces for ttl.
// maxEntries bounds memory; 0 means unbounded. When the bound is hit the
// oldest nonce is evicted early, which reopens a replay window for it, so
// size it above the expected request rate × ttl.
func NewMemoryStore(ttl time.Duration, maxEntries int) *MemoryStore {
	return &MemoryStore{
		seen:  expirable.NewLRU[string, time.Time](maxEntries, nil, ttl),
		ttl:   ttl,
		nowFn: time.Now,
	}
}

// Record implements Store.
func (s *MemoryStore) Record(_ context.Context, nonce string) (bool, error) {
	if nonce == "" {
		return false, ErrEmptyNonce
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFn()
	if s.liveLocked(nonce, now) {
		return false, nil
	}

	s.seen.Add(nonce, now.Add(s.ttl))
	return true, nil
}

// liveLocked reports whether nonce is retained and its deadline has not
// passed. The LRU bounds memory; the stored deadline decides expiry.
func (s *MemoryStore) liveLocked(nonce string, now time.Time) bool {
	// Peek does not refresh recency
	deadline, ok := s.seen.Peek(nonce)
	return ok && now.Before(deadline)
}

// Seen implements Peeker.
func (s *MemoryStore) Seen(_ context.Context, nonce string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liveLocked(nonce, s.nowFn()), nil
}

// Len returns the number of nonces currently retained.
func (s *MemoryStore) Len() int {
	return s.seen.Len()
}

var (
	_ Store  = (*MemoryStore)(nil)
	_ Peeker = (*MemoryStore)(nil)
)
