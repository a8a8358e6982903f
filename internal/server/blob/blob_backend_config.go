package blob

import (
	"fmt"
	"net/url"
	"time"
)

const (
	BackendS3    = "s3"
	BackendMinio = "minio"

	DefaultUploadURLExpiry   = 15 * time.Minute
	DefaultDownloadURLExpiry = 5 * time.Minute
	DefaultKeyPrefix         = "uploads"
)

type Config struct {
	Backend           string        `mapstructure:"backend"`
	BucketName        string        `mapstructure:"bucket_name"`
	Region            string        `mapstructure:"region"`
	AccessKey         string        `mapstructure:"access_key"`
	SecretKey         string        `mapstructure:"secret_key"`
	Endpoint          string        `mapstructure:"endpoint"`
	UseAccelerate     bool          `mapstructure:"use_accelerate"`
	UseSSL            bool          `mapstructure:"use_ssl"`
	UploadURLExpiry   time.Duration `mapstructure:"upload_url_expiry"`
	DownloadURLExpiry time.Duration `mapstructure:"download_url_expiry"`
	KeyPrefix         string        `mapstructure:"key_prefix"`
}

func (c *Config) Validate() error {
	switch c.Backend {
	case BackendS3, BackendMinio:
	default:
		return fmt.Errorf("%w %q", ErrUnknownBackend, c.Backend)
	}
	if c.BucketName == "" {
		return fmt.Errorf("bucket_name required")
	}
	if c.Region == "" {
		return fmt.Errorf("region required")
	}
	if c.AccessKey == "" {
		return fmt.Errorf("access_key required")
	}
	if c.SecretKey == "" {
		return fmt.Errorf("secret_key required")
	}
	if c.Backend == BackendMinio && c.Endpoint == "" {
		return fmt.Errorf("endpoint required for the minio backend")
	}
	if c.Endpoint != "" {
		if u, err := url.Parse(c.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid endpoint URL %q", c.Endpoint)
		}
	}
	if c.UploadURLExpiry < 0 || c.DownloadURLExpiry < 0 {
		return fmt.Errorf("url expiry must not be negative")
	}
	// S3 rejects presigned URLs valid for longer than 7 days
	if c.UploadURLExpiry > 7*24*time.Hour || c.DownloadURLExpiry > 7*24*time.Hour {
		return fmt.Errorf("url expiry must be at most 7 days")
	}
	return nil
}

func (c *Config) uploadExpiry() time.Duration {
	if c.UploadURLExpiry > 0 {
		return c.UploadURLExpiry
	}
	return DefaultUploadURLExpiry
}

func (c *Config) downloadExpiry() time.Duration {
	if c.DownloadURLExpiry > 0 {
		return c.DownloadURLExpiry
	}
	return DefaultDownloadURLExpiry
}
