package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/openmined/syftupload/internal/nonce"
	"github.com/openmined/syftupload/internal/server/auth"
	"github.com/openmined/syftupload/internal/server/blob"
	"github.com/openmined/syftupload/internal/signing"
)

type Services struct {
	Blob *blob.BlobService
	Auth *auth.AuthService
	// Signer and Nonces are nil when signing is disabled.
	Signer *signing.Signer
	Nonces nonce.Store

	config *Config
}

func NewServices(ctx context.Context, config *Config, db *sqlx.DB) (*Services, error) {
	blobSvc, err := blob.NewBlobService(ctx, &config.Blob, db)
	if err != nil {
		return nil, fmt.Errorf("blob service: %w", err)
	}
	return newServices(config, blobSvc, db)
}

// NewServicesWithBackend is NewServices with an already constructed storage backend.
func NewServicesWithBackend(config *Config, backend blob.Backend, db *sqlx.DB) (*Services, error) {
	blobSvc, err := blob.NewBlobServiceWithBackend(backend, &config.Blob, db)
	if err != nil {
		return nil, fmt.Errorf("blob service: %w", err)
	}
	return newServices(config, blobSvc, db)
}

func newServices(config *Config, blobSvc *blob.BlobService, db *sqlx.DB) (*Services, error) {
	svc := &Services{
		Blob:   blobSvc,
		Auth:   auth.NewAuthService(&config.Auth),
		config: config,
	}

	if !config.Signing.Enabled {
		if svc.Auth.IsEnabled() {
			slog.Warn("request signing disabled, control plane relies on access tokens only")
		} else {
			slog.Warn("request signing disabled, control plane is unauthenticated")
		}
		return svc, nil
	}

	signer, err := signing.New(signing.Config{
		Secret:             []byte(config.Signing.Secret),
		TimestampTolerance: config.Signing.TimestampTolerance,
		RequireNonce:       config.Signing.RequireNonce,
	})
	if err != nil {
		return nil, fmt.Errorf("signer: %w", err)
	}
	svc.Signer = signer

	retention := nonce.RetentionFor(signer.Tolerance())
	switch config.Signing.NonceStore {
	case NonceStoreSQL:
		store, err := nonce.NewSQLStore(db, retention)
		if err != nil {
			return nil, err
		}
		svc.Nonces = store
	default:
		svc.Nonces = nonce.NewMemoryStore(retention, config.Signing.NonceMaxEntries)
	}

	slog.Info("request signing enabled",
		"nonceStore", config.Signing.NonceStore,
		"tolerance", signer.Tolerance(),
		"requireNonce", signer.RequireNonce(),
	)
	return svc, nil
}

// Start runs background work until ctx is done.
func (s *Services) Start(ctx context.Context) error {
	return s.Blob.RunReaper(ctx, s.config.Multipart.ReapInterval, s.config.Multipart.StaleAfter)
}
