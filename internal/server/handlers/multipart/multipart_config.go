package multipart

import (
	"errors"
	"time"
)

const (
	DefaultMaxPresignBatch = 500
	DefaultMaxParts        = 10000
	DefaultStaleAfter      = 24 * time.Hour
	DefaultReapInterval    = time.Hour
)

type Config struct {
	MaxPresignBatch int           `mapstructure:"max_presign_batch"`
	MaxParts        int           `mapstructure:"max_parts"`
	StaleAfter      time.Duration `mapstructure:"stale_after"`
	ReapInterval    time.Duration `mapstructure:"reap_interval"`
}

func DefaultConfig() *Config {
	return &Config{
		MaxPresignBatch: DefaultMaxPresignBatch,
		MaxParts:        DefaultMaxParts,
		StaleAfter:      DefaultStaleAfter,
		ReapInterval:    DefaultReapInterval,
	}
}

func (c *Config) Validate() error {
	if c.MaxPresignBatch <= 0 {
		return errors.New("max_presign_batch must be positive")
	}
	if c.MaxParts <= 0 || c.MaxParts > DefaultMaxParts {
		return errors.New("max_parts must be between 1 and 10000")
	}
	if c.StaleAfter <= 0 {
		return errors.New("stale_after must be positive")
	}
	if c.ReapInterval <= 0 {
		return errors.New("reap_interval must be positive")
	}
	return nil
}
