package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"filerelay/internal/app"
	"filerelay/internal/config"
	"filerelay/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "filerelay",
	Short: "Relay files dropped into a local directory to a remote destination",
	Long: `Relays every file that arrives under a local root to a remote rsync daemon or
S3-compatible bucket, retrying until delivery succeeds and deleting the local copy
afterwards. Files already present at startup are recovered and relayed first.`,
	SilenceUsage: true,
	RunE:         runRelay,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().String("local-root", "", "Local directory to relay (LOCAL_ROOT)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug/info/warn/error or 10-50 (LOG_LEVEL)")

	// Remote flags
	rootCmd.PersistentFlags().String("transport", "rsync", "Transport backend: rsync or s3 (TRANSPORT)")
	rootCmd.PersistentFlags().String("remote-host", "", "Remote rsync daemon host (REMOTE_HOST)")
	rootCmd.PersistentFlags().Int("remote-port", 873, "Remote rsync daemon port (REMOTE_PORT)")
	rootCmd.PersistentFlags().String("remote-user", "", "Remote rsync user (REMOTE_USER)")
	rootCmd.PersistentFlags().String("remote-destination", "", "Remote path prefix (REMOTE_DESTINATION)")
	rootCmd.PersistentFlags().String("rsync-binary", "rsync", "rsync command (RSYNC_BINARY)")

	// S3 flags
	rootCmd.PersistentFlags().String("s3-endpoint", "", "S3 endpoint (S3_ENDPOINT)")
	rootCmd.PersistentFlags().String("s3-access-key", "", "S3 access key (S3_ACCESS_KEY)")
	rootCmd.PersistentFlags().String("s3-secret-key", "", "S3 secret key (S3_SECRET_KEY)")
	rootCmd.PersistentFlags().String("s3-bucket", "", "S3 bucket (S3_BUCKET)")
	rootCmd.PersistentFlags().Bool("s3-secure", true, "Use HTTPS for S3 (S3_SECURE)")

	// Relay flags
	rootCmd.Flags().Int("workers", 4, "Number of concurrent workers (WORKER_COUNT)")
	rootCmd.Flags().Duration("retry-delay", 5*time.Second, "Delay between attempts on a failing file (RETRY_DELAY)")
	rootCmd.Flags().Duration("retry-backoff-max", 0, "Enable exponential backoff capped at this delay (RETRY_BACKOFF_MAX)")
	rootCmd.Flags().Int("retry-max-attempts", 0, "Give up on a file after this many attempts, 0 retries forever (RETRY_MAX_ATTEMPTS)")
	rootCmd.Flags().Bool("drain", false, "Let in-flight transfers finish on shutdown (DRAIN)")
	rootCmd.Flags().Duration("status-interval", time.Minute, "Status summary log interval, 0 disables (STATUS_INTERVAL)")
	rootCmd.Flags().String("listen", ":8080", "Address for /notify, /metrics and /healthz (LISTEN_ADDR)")
	rootCmd.Flags().String("journal", "", "SQLite delivery journal path (JOURNAL_PATH)")
	rootCmd.Flags().String("lock-file", "", "Single-instance lock file, defaults to a per-root file in the system temp directory (LOCK_FILE)")

	rootCmd.AddCommand(scanCmd, journalCmd)
}

func runRelay(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	relay, err := app.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create relay: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("Received shutdown signal, stopping")
		cancel()
	}()

	err = relay.Run(ctx)

	if closeErr := relay.Close(); closeErr != nil {
		log.Error("Error closing relay", zap.Error(closeErr))
	}

	return err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
