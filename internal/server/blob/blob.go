package blob

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

type BlobService struct {
	backend Backend
	index   *UploadIndex
	config  *Config
}

// NewBlobService builds the backend named by cfg.Backend.
func NewBlobService(ctx context.Context, cfg *Config, db *sqlx.DB) (*BlobService, error) {
	var backend Backend
	var err error

	switch cfg.Backend {
	case BackendS3:
		backend, err = NewS3BackendWithConfig(ctx, cfg)
	case BackendMinio:
		backend, err = NewMinioBackendWithConfig(cfg)
	default:
		err = fmt.Errorf("%w %q", ErrUnknownBackend, cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	return NewBlobServiceWithBackend(backend, cfg, db)
}

func NewBlobServiceWithBackend(backend Backend, cfg *Config, db *sqlx.DB) (*BlobService, error) {
	index, err := NewUploadIndex(db)
	if err != nil {
		return nil, err
	}

	return &BlobService{
		backend: backend,
		index:   index,
		config:  cfg,
	}, nil
}

func (b *BlobService) Backend() Backend {
	return b.backend
}

func (b *BlobService) Index() *UploadIndex {
	return b.index
}

func (b *BlobService) KeyPrefix() string {
	prefix := strings.Trim(b.config.KeyPrefix, "/")
	if prefix == "" {
		return DefaultKeyPrefix
	}
	return prefix
}

// NewObjectKey returns a fresh key for filename under the configured prefix.
func (b *BlobService) NewObjectKey(filename string) string {
	return NewObjectKey(b.KeyPrefix(), filename)
}

// OwnsKey reports whether key lies under the configured prefix.
func (b *BlobService) OwnsKey(key string) bool {
	return strings.HasPrefix(key, b.KeyPrefix()+"/")
}

// ReapStale aborts sessions that have not been touched for maxAge. These are
// uploads whose client died, or whose own abort call failed.
func (b *BlobService) ReapStale(ctx context.Context, maxAge time.Duration) (int, error) {
	stale, err := b.index.ListStale(ctx, time.Now().Add(-maxAge))
	if err != nil {
		return 0, err
	}

	reaped := 0
	for _, rec := range stale {
		err := b.backend.AbortMultipartUpload(ctx, rec.Key, rec.UploadID)
		if err != nil && !errors.Is(err, ErrUploadNotFound) {
			slog.Warn("reap upload", "key", rec.Key, "uploadId", rec.UploadID, "error", err)
			continue
		}
		if err := b.index.Transition(ctx, rec.UploadID, UploadAborted); err != nil {
			slog.Warn("reap upload", "key", rec.Key, "uploadId", rec.UploadID, "error", err)
			continue
		}
		reaped++
	}

	if reaped > 0 {
		slog.Info("reaped stale uploads", "count", reaped, "backend", b.backend.Name())
	}
	return reaped, nil
}

// RunReaper calls ReapStale every interval until ctx is done.
func (b *BlobService) RunReaper(ctx context.Context, interval, maxAge time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Debug("upload reaper start", "interval", interval, "maxAge", maxAge)
	for {
		select {
		case <-ctx.Done():
			slog.Debug("upload reaper stop")
			return nil
		case <-ticker.C:
			if _, err := b.ReapStale(ctx, maxAge); err != nil {
				slog.Error("upload reaper", "error", err)
			}
		}
	}
}
