package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/openmined/syftupload/internal/retry"
	"github.com/openmined/syftupload/internal/sdk"
	"github.com/openmined/syftupload/internal/upload"
	"github.com/openmined/syftupload/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	envPrefix        = "SYFTUPLOAD"
	defaultServerURL = "http://127.0.0.1:8080"
)

var rootCmd = &cobra.Command{
	Use:     "syftupload <file>",
	Short:   "Upload a file through a SyftUpload control plane",
	Version: version.Detailed(),
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		opts, err := uploadOptions(v)
		if err != nil {
			return err
		}

		cmd.SilenceUsage = true
		return runUpload(cmd.Context(), cmd, v, args[0], opts)
	},
}

func init() {
	addUploadFlags(rootCmd)
}

func addUploadFlags(cmd *cobra.Command) {
	cmd.Flags().SortFlags = false
	cmd.Flags().StringP("server", "s", defaultServerURL, "Control plane URL")
	cmd.Flags().String("secret", "", "Shared request signing secret")
	cmd.Flags().String("token", "", "Bearer token, when the server requires one")
	cmd.Flags().String("part-size", "", "Part size, e.g. 16MiB (default: 64MiB, grown to fit 10000 parts)")
	cmd.Flags().IntP("concurrency", "n", upload.DefaultConcurrency, "Parts uploaded in parallel")
	cmd.Flags().Int("retries", retry.DefaultConfig().MaxAttempts, "Attempts per part and presign batch")
	cmd.Flags().StringToString("meta", nil, "Object metadata as key=value")
	cmd.Flags().BoolP("quiet", "q", false, "Only print the object key")
	cmd.Flags().BoolP("verbose", "v", false, "Debug logging")
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads flags with SYFTUPLOAD_* env fallbacks, for instance
// SYFTUPLOAD_SECRET or SYFTUPLOAD_PART_SIZE.
func loadConfig(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v, nil
}

func uploadOptions(v *viper.Viper) (*upload.Options, error) {
	opts := &upload.Options{
		Concurrency: v.GetInt("concurrency"),
		Retry:       retry.DefaultConfig(),
	}

	if s := v.GetString("part-size"); s != "" {
		size, err := humanize.ParseBytes(s)
		if err != nil {
			return nil, fmt.Errorf("invalid --part-size %q: %w", s, err)
		}
		opts.PartSize = int64(size)
	}

	if opts.Concurrency < 1 {
		return nil, errors.New("--concurrency must be at least 1")
	}

	retries := v.GetInt("retries")
	if retries < 1 {
		return nil, errors.New("--retries must be at least 1")
	}
	opts.Retry.MaxAttempts = retries

	return opts, nil
}

func runUpload(ctx context.Context, cmd *cobra.Command, v *viper.Viper, path string, opts *upload.Options) error {
	level := slog.LevelWarn
	if v.GetBool("verbose") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})))

	client, err := sdk.New(&sdk.Config{
		BaseURL:     v.GetString("server"),
		Secret:      v.GetString("secret"),
		AccessToken: v.GetString("token"),
	})
	if err != nil {
		return err
	}
	defer client.Close()

	file, err := upload.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	quiet := v.GetBool("quiet")
	out := cmd.OutOrStdout()
	if !quiet && isatty.IsTerminal(os.Stdout.Fd()) {
		opts.OnProgress = newProgressPrinter(out).update
	}

	if !quiet {
		fmt.Fprintf(out, "%s %s %s\n", cyan.Render("uploading"), file.Name, lightGray.Render(humanize.IBytes(uint64(file.Size))))
	}

	metadata, _ := cmd.Flags().GetStringToString("meta")
	session, err := upload.New(client.Multipart).Upload(ctx, file, metadata, opts)
	if err != nil {
		printFailure(cmd, err)
		return err
	}

	if quiet {
		fmt.Fprintln(out, session.Key)
		return nil
	}

	fmt.Fprintf(out, "%s %s\n", green.Render("uploaded"), session.Key)
	fmt.Fprintf(out, "  %s %s\n", gray.Render("uploadId"), session.UploadID)
	fmt.Fprintf(out, "  %s %d x %s\n", gray.Render("parts   "), session.TotalParts, humanize.IBytes(uint64(session.PartSize)))
	if session.ETag != "" {
		fmt.Fprintf(out, "  %s %s\n", gray.Render("etag    "), session.ETag)
	}
	return nil
}

func printFailure(cmd *cobra.Command, err error) {
	cmd.SilenceErrors = true
	errOut := cmd.ErrOrStderr()

	if errors.Is(err, upload.ErrCancelled) {
		fmt.Fprintf(errOut, "\n%s upload cancelled\n", red.Render("✗"))
		return
	}

	var upErr *upload.Error
	if errors.As(err, &upErr) && upErr.UploadID != "" {
		fmt.Fprintf(errOut, "\n%s %s %s\n", red.Render("✗"), err, gray.Render("(uploadId "+upErr.UploadID+" aborted)"))
		return
	}
	fmt.Fprintf(errOut, "\n%s %s\n", red.Render("✗"), err)
}
