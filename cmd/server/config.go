package main

import (
	"fmt"

	"github.com/openmined/syftupload/internal/server"
	"github.com/openmined/syftupload/internal/utils"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			out, err := yaml.Marshal(maskedConfig(cfg))
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

type configView struct {
	HTTP struct {
		Addr         string   `yaml:"addr"`
		CertFile     string   `yaml:"cert_file,omitempty"`
		KeyFile      string   `yaml:"key_file,omitempty"`
		MaxBodyBytes int64    `yaml:"max_body_bytes"`
		AllowOrigins []string `yaml:"allow_origins,omitempty"`
	} `yaml:"http"`
	Blob struct {
		Backend           string `yaml:"backend"`
		BucketName        string `yaml:"bucket_name"`
		Region            string `yaml:"region"`
		Endpoint          string `yaml:"endpoint,omitempty"`
		AccessKey         string `yaml:"access_key"`
		SecretKey         string `yaml:"secret_key"`
		UploadURLExpiry   string `yaml:"upload_url_expiry"`
		DownloadURLExpiry string `yaml:"download_url_expiry"`
		KeyPrefix         string `yaml:"key_prefix"`
	} `yaml:"blob"`
	Signing struct {
		Enabled            bool   `yaml:"enabled"`
		Secret             string `yaml:"secret"`
		TimestampTolerance string `yaml:"timestamp_tolerance"`
		RequireNonce       bool   `yaml:"require_nonce"`
		NonceStore         string `yaml:"nonce_store"`
	} `yaml:"signing"`
	Auth struct {
		Enabled           bool   `yaml:"enabled"`
		TokenIssuer       string `yaml:"token_issuer"`
		AccessTokenSecret string `yaml:"access_token_secret"`
		AccessTokenExpiry string `yaml:"access_token_expiry"`
	} `yaml:"auth"`
	RateLimit struct {
		Enabled bool   `yaml:"enabled"`
		Rate    string `yaml:"rate"`
	} `yaml:"rate_limit"`
	Multipart struct {
		MaxPresignBatch int    `yaml:"max_presign_batch"`
		MaxParts        int    `yaml:"max_parts"`
		StaleAfter      string `yaml:"stale_after"`
		ReapInterval    string `yaml:"reap_interval"`
	} `yaml:"multipart"`
	DBPath string `yaml:"db_path"`
	LogDir string `yaml:"log_dir"`
}

func maskedConfig(cfg *server.Config) *configView {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return utils.MaskSecret(s)
	}

	var v configView
	v.HTTP.Addr = cfg.HTTP.Addr
	v.HTTP.CertFile = cfg.HTTP.CertFile
	v.HTTP.KeyFile = cfg.HTTP.KeyFile
	v.HTTP.MaxBodyBytes = cfg.HTTP.MaxBodyBytes
	v.HTTP.AllowOrigins = cfg.HTTP.AllowOrigins

	v.Blob.Backend = cfg.Blob.Backend
	v.Blob.BucketName = cfg.Blob.BucketName
	v.Blob.Region = cfg.Blob.Region
	v.Blob.Endpoint = cfg.Blob.Endpoint
	v.Blob.AccessKey = mask(cfg.Blob.AccessKey)
	v.Blob.SecretKey = mask(cfg.Blob.SecretKey)
	v.Blob.UploadURLExpiry = cfg.Blob.UploadURLExpiry.String()
	v.Blob.DownloadURLExpiry = cfg.Blob.DownloadURLExpiry.String()
	v.Blob.KeyPrefix = cfg.Blob.KeyPrefix

	v.Signing.Enabled = cfg.Signing.Enabled
	v.Signing.Secret = mask(cfg.Signing.Secret)
	v.Signing.TimestampTolerance = cfg.Signing.TimestampTolerance.String()
	v.Signing.RequireNonce = cfg.Signing.RequireNonce
	v.Signing.NonceStore = cfg.Signing.NonceStore

	v.Auth.Enabled = cfg.Auth.Enabled
	v.Auth.TokenIssuer = cfg.Auth.TokenIssuer
	v.Auth.AccessTokenSecret = mask(cfg.Auth.AccessTokenSecret)
	v.Auth.AccessTokenExpiry = cfg.Auth.AccessTokenExpiry.String()

	v.RateLimit.Enabled = cfg.RateLimit.Enabled
	v.RateLimit.Rate = cfg.RateLimit.Rate

	v.Multipart.MaxPresignBatch = cfg.Multipart.MaxPresignBatch
	v.Multipart.MaxParts = cfg.Multipart.MaxParts
	v.Multipart.StaleAfter = cfg.Multipart.StaleAfter.String()
	v.Multipart.ReapInterval = cfg.Multipart.ReapInterval.String()

	v.DBPath = cfg.DBPath
	v.LogDir = cfg.LogDir
	return &v
}
