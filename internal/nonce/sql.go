package nonce

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/openmined/syftupload/internal/db"
)

const nonceSchema = `
CREATE TABLE IF NOT EXISTS nonces (
	nonce TEXT PRIMARY KEY,
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_nonces_expires_at ON nonces(expires_at);
`

// Inserting a new nonce or reclaiming an expired row affects one row; a live
// duplicate affects none. SQLite executes the upsert atomically.
const recordSQL = `
INSERT INTO nonces (nonce, expires_at) VALUES (?, ?)
ON CONFLICT(nonce) DO UPDATE SET expires_at = excluded.expires_at
WHERE nonces.expires_at <= ?
`

// SQLStore persists nonces in SQLite so they survive restarts.
// Expired rows are pruned lazily, at most once per ttl.
type SQLStore struct {
	db        *sqlx.DB
	ttl       time.Duration
	nowFn     func() time.Time
	pruneMu   sync.Mutex
	lastPrune time.Time
}

// NewSQLStore creates the nonce table if needed.
func NewSQLStore(database *sqlx.DB, ttl time.Duration) (*SQLStore, error) {
	if err := db.Migrate(database, nonceSchema); err != nil {
		return nil, fmt.Errorf("nonce store: %w", err)
	}

	return &SQLStore{
		db:    database,
		ttl:   ttl,
		nowFn: time.Now,
	}, nil
}

// Record implements Store.
func (s *SQLStore) Record(ctx context.Context, nonce string) (bool, error) {
	if nonce == "" {
		return false, ErrEmptyNonce
	}

	now := s.nowFn()
	s.maybePrune(ctx, now)

	res, err := s.db.ExecContext(ctx, recordSQL, nonce, now.Add(s.ttl).UnixMilli(), now.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("record nonce: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record nonce: %w", err)
	}

	return affected == 1, nil
}

// Seen implements Peeker.
func (s *SQLStore) Seen(ctx context.Context, nonce string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM nonces WHERE nonce = ? AND expires_at > ?",
		nonce, s.nowFn().UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("lookup nonce: %w", err)
	}
	return count > 0, nil
}

// Prune removes expired nonces and returns how many were deleted.
func (s *SQLStore) Prune(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM nonces WHERE expires_at <= ?", s.nowFn().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune nonces: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLStore) maybePrune(ctx context.Context, now time.Time) {
	s.pruneMu.Lock()
	if now.Sub(s.lastPrune) < s.ttl {
		s.pruneMu.Unlock()
		return
	}
	s.lastPrune = now
	s.pruneMu.Unlock()

	if n, err := s.Prune(ctx); err != nil {
		slog.Warn("nonce prune", "error", err)
	} else if n > 0 {
		slog.Debug("nonce prune", "deleted", n)
	}
}

var (
	_ Store  = (*SQLStore)(nil)
	_ Peeker = (*SQLStore)(nil)
)
