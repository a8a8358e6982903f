package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/openmined/syftupload/internal/server/auth"
	"github.com/openmined/syftupload/internal/server/blob"
	"github.com/openmined/syftupload/internal/server/handlers/multipart"
	"github.com/openmined/syftupload/internal/server/middlewares"
	"github.com/openmined/syftupload/internal/signing"
)

const (
	DefaultAddr     = "127.0.0.1:8080"
	DefaultRate     = "600-M"
	NonceStoreSQL   = "sqlite"
	NonceStoreLocal = "memory"
)

type Config struct {
	HTTP      HTTPConfig       `mapstructure:"http"`
	Blob      blob.Config      `mapstructure:"blob"`
	Signing   SigningConfig    `mapstructure:"signing"`
	Auth      auth.Config      `mapstructure:"auth"`
	RateLimit RateLimitConfig  `mapstructure:"rate_limit"`
	Multipart multipart.Config `mapstructure:"multipart"`
	DBPath    string           `mapstructure:"db_path"`
	LogDir    string           `mapstructure:"log_dir"`
}

type HTTPConfig struct {
	Addr         string   `mapstructure:"addr"`
	CertFile     string   `mapstructure:"cert_file"`
	KeyFile      string   `mapstructure:"key_file"`
	MaxBodyBytes int64    `mapstructure:"max_body_bytes"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

type SigningConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	Secret             string        `mapstructure:"secret"`
	TimestampTolerance time.Duration `mapstructure:"timestamp_tolerance"`
	RequireNonce       bool          `mapstructure:"require_nonce"`
	// NonceStore is "memory" or "sqlite".
	NonceStore      string `mapstructure:"nonce_store"`
	NonceMaxEntries int    `mapstructure:"nonce_max_entries"`
}

type RateLimitConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Rate      string   `mapstructure:"rate"`
	SkipPaths []string `mapstructure:"skip_paths"`
}

// DefaultConfig is the configuration before any file, env var or flag is applied.
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:         DefaultAddr,
			MaxBodyBytes: middlewares.DefaultMaxBodyBytes,
		},
		Blob: blob.Config{
			Backend:           blob.BackendS3,
			UploadURLExpiry:   blob.DefaultUploadURLExpiry,
			DownloadURLExpiry: blob.DefaultDownloadURLExpiry,
			KeyPrefix:         blob.DefaultKeyPrefix,
		},
		Signing: SigningConfig{
			Enabled:            true,
			TimestampTolerance: signing.DefaultTimestampTolerance,
			RequireNonce:       true,
			NonceStore:         NonceStoreLocal,
		},
		Auth: auth.Config{
			TokenIssuer:       "syftupload",
			AccessTokenExpiry: 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			Enabled:   true,
			Rate:      DefaultRate,
			SkipPaths: middlewares.DefaultUnsignedPaths,
		},
		Multipart: *multipart.DefaultConfig(),
		DBPath:    "syftupload.db",
		LogDir:    "logs",
	}
}

func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http `addr` is required")
	}
	if (c.HTTP.CertFile == "") != (c.HTTP.KeyFile == "") {
		return errors.New("http `cert_file` and `key_file` must be set together")
	}
	if c.HTTP.MaxBodyBytes < 0 {
		return errors.New("http `max_body_bytes` must not be negative")
	}
	if err := c.Blob.Validate(); err != nil {
		return fmt.Errorf("blob config: %w", err)
	}
	if err := c.Signing.Validate(); err != nil {
		return fmt.Errorf("signing config: %w", err)
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth config: %w", err)
	}
	if c.RateLimit.Enabled && c.RateLimit.Rate == "" {
		return errors.New("rate_limit `rate` is required when rate limiting is enabled")
	}
	if err := c.Multipart.Validate(); err != nil {
		return fmt.Errorf("multipart config: %w", err)
	}
	if c.DBPath == "" {
		return errors.New("`db_path` is required")
	}
	return nil
}

func (c *SigningConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if len(c.Secret) < 16 {
		return errors.New("signing `secret` must be at least 16 characters")
	}
	if c.TimestampTolerance <= 0 {
		return errors.New("signing `timestamp_tolerance` must be positive")
	}
	switch c.NonceStore {
	case NonceStoreLocal, NonceStoreSQL:
	default:
		return fmt.Errorf("signing `nonce_store` must be %q or %q", NonceStoreLocal, NonceStoreSQL)
	}
	if c.NonceMaxEntries < 0 {
		return errors.New("signing `nonce_max_entries` must not be negative")
	}
	return nil
}
