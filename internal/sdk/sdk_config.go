package sdk

import (
	"errors"
	"net/url"
	"time"
)

const (
	DefaultTimeout = 30 * time.Second
)

var (
	ErrNoServerURL      = errors.New("sdk: server url missing")
	ErrInvalidServerURL = errors.New("sdk: invalid server url")
)

type Config struct {
	BaseURL string // BaseURL is required
	// Secret signs every control-plane request. Leave empty only for servers
	// running with signing disabled.
	Secret      string
	AccessToken string // AccessToken is optional
	// ClientID is sent as x-client-id. Defaults to a per-machine id.
	ClientID string
	Timeout  time.Duration
}

func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrNoServerURL
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidServerURL
	}

	if c.Timeout < 0 {
		return errors.New("sdk: timeout must not be negative")
	}

	return nil
}
