package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/openmined/syftupload/internal/server"
	"github.com/openmined/syftupload/internal/utils"
	"github.com/openmined/syftupload/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "SYFTUPLOAD"

var rootCmd = &cobra.Command{
	Use:     "syftupload-server",
	Short:   "SyftUpload control plane",
	Version: version.Detailed(),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		cmd.SilenceUsage = true

		closeLog, err := setupFileLog(cfg.LogDir)
		if err != nil {
			return err
		}
		defer closeLog()

		srv, err := server.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		defer slog.Info("Bye!")
		return srv.Start(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().StringP("bind", "b", server.DefaultAddr, "Address to bind the server")
	rootCmd.Flags().String("cert", "", "Path to the TLS certificate file")
	rootCmd.Flags().String("key", "", "Path to the TLS key file")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (yaml or json)")

	rootCmd.AddCommand(newTokenCmd())
	rootCmd.AddCommand(newConfigCmd())
}

func main() {
	// a missing .env is fine
	_ = godotenv.Load()

	handler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})
	slog.SetDefault(slog.New(handler))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadConfig layers defaults, the config file, SYFTUPLOAD_* env vars and flags,
// in increasing order of precedence.
func loadConfig(cmd *cobra.Command) (*server.Config, error) {
	v := viper.New()
	setDefaults(v, server.DefaultConfig())

	if f := cmd.Flag("config"); f != nil && f.Value.String() != "" {
		v.SetConfigFile(f.Value.String())
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/syftupload")
		v.SetConfigName("config")
	}

	if err := v.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, ok := err.(viper.ConfigFileNotFoundError)
		if !enoent && !ok {
			return nil, fmt.Errorf("config read '%s': %w", v.ConfigFileUsed(), err)
		}
	}

	bindFlag(v, cmd, "http.addr", "bind")
	bindFlag(v, cmd, "http.cert_file", "cert")
	bindFlag(v, cmd, "http.key_file", "key")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &server.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}
	return cfg, nil
}

func bindFlag(v *viper.Viper, cmd *cobra.Command, key, flag string) {
	if f := cmd.Flags().Lookup(flag); f != nil {
		v.BindPFlag(key, f)
	}
}

// setDefaults registers every key so that env vars apply even when the key
// is absent from the config file.
func setDefaults(v *viper.Viper, cfg *server.Config) {
	v.SetDefault("http.addr", cfg.HTTP.Addr)
	v.SetDefault("http.cert_file", cfg.HTTP.CertFile)
	v.SetDefault("http.key_file", cfg.HTTP.KeyFile)
	v.SetDefault("http.max_body_bytes", cfg.HTTP.MaxBodyBytes)
	v.SetDefault("http.allow_origins", cfg.HTTP.AllowOrigins)

	v.SetDefault("blob.backend", cfg.Blob.Backend)
	v.SetDefault("blob.bucket_name", cfg.Blob.BucketName)
	v.SetDefault("blob.region", cfg.Blob.Region)
	v.SetDefault("blob.access_key", cfg.Blob.AccessKey)
	v.SetDefault("blob.secret_key", cfg.Blob.SecretKey)
	v.SetDefault("blob.endpoint", cfg.Blob.Endpoint)
	v.SetDefault("blob.use_accelerate", cfg.Blob.UseAccelerate)
	v.SetDefault("blob.use_ssl", cfg.Blob.UseSSL)
	v.SetDefault("blob.upload_url_expiry", cfg.Blob.UploadURLExpiry)
	v.SetDefault("blob.download_url_expiry", cfg.Blob.DownloadURLExpiry)
	v.SetDefault("blob.key_prefix", cfg.Blob.KeyPrefix)

	v.SetDefault("signing.enabled", cfg.Signing.Enabled)
	v.SetDefault("signing.secret", cfg.Signing.Secret)
	v.SetDefault("signing.timestamp_tolerance", cfg.Signing.TimestampTolerance)
	v.SetDefault("signing.require_nonce", cfg.Signing.RequireNonce)
	v.SetDefault("signing.nonce_store", cfg.Signing.NonceStore)
	v.SetDefault("signing.nonce_max_entries", cfg.Signing.NonceMaxEntries)

	v.SetDefault("auth.enabled", cfg.Auth.Enabled)
	v.SetDefault("auth.token_issuer", cfg.Auth.TokenIssuer)
	v.SetDefault("auth.access_token_secret", cfg.Auth.AccessTokenSecret)
	v.SetDefault("auth.access_token_expiry", cfg.Auth.AccessTokenExpiry)

	v.SetDefault("rate_limit.enabled", cfg.RateLimit.Enabled)
	v.SetDefault("rate_limit.rate", cfg.RateLimit.Rate)
	v.SetDefault("rate_limit.skip_paths", cfg.RateLimit.SkipPaths)

	v.SetDefault("multipart.max_presign_batch", cfg.Multipart.MaxPresignBatch)
	v.SetDefault("multipart.max_parts", cfg.Multipart.MaxParts)
	v.SetDefault("multipart.stale_after", cfg.Multipart.StaleAfter)
	v.SetDefault("multipart.reap_interval", cfg.Multipart.ReapInterval)

	v.SetDefault("db_path", cfg.DBPath)
	v.SetDefault("log_dir", cfg.LogDir)
}

// setupFileLog tees the default logger into logDir/server.log.
func setupFileLog(logDir string) (func(), error) {
	if logDir == "" {
		return func() {}, nil
	}

	logFile := filepath.Join(logDir, "server.log")
	if err := utils.EnsureParent(logFile); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	logInterceptor := utils.NewLogInterceptor(file)
	fileHandler := slog.NewTextHandler(logInterceptor, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		// the interceptor stamps each line
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	})

	slog.SetDefault(slog.New(utils.NewMultiLogHandler(slog.Default().Handler(), fileHandler)))

	return func() {
		logInterceptor.Close()
		file.Close()
	}, nil
}
