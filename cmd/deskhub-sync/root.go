package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/deskhub/deskhub/internal/config"
	"github.com/deskhub/deskhub/internal/linear"
	"github.com/deskhub/deskhub/internal/storage"
	"github.com/deskhub/deskhub/internal/storage/sqlite"
	"github.com/deskhub/deskhub/internal/telemetry"
)

// Build metadata, set via -ldflags.
var (
	version = "dev"
	commit  = "none"
)

// Shared dependencies, initialized in the root PersistentPreRunE.
var (
	cfg    *config.Config
	store  storage.Storage
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "deskhub-sync",
	Short: "Sync DeskHub support tickets with a remote issue tracker",
	Long: `deskhub-sync keeps DeskHub support tickets consistent with a remote
issue tracker. Outbound changes are pushed over the tracker's GraphQL API;
inbound changes arrive as signed webhook deliveries handled by "serve".`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initDeps(cmd.Context())
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if store != nil {
			return store.Close()
		}
		return nil
	},
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (default ./config.yaml)")
	rootCmd.PersistentFlags().String("db", "", "Database path (overrides config)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose logging")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	viper.SetEnvPrefix("DESKHUB")
	viper.AutomaticEnv()
}

func initDeps(ctx context.Context) error {
	var err error
	cfg, err = config.Load(viper.GetString("config"))
	if err != nil {
		return err
	}

	level := parseLogLevel(cfg.LogLevel)
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := telemetry.Init(ctx, "deskhub-sync", version); err != nil {
		// Metrics are best-effort; never block startup on them.
		logger.Warn("telemetry init failed", "error", err)
	}

	dbPath := cfg.DBPath
	if p := viper.GetString("db"); p != "" {
		dbPath = p
	}
	store, err = sqlite.New(dbPath)
	if err != nil {
		return fmt.Errorf("opening database %s: %w", dbPath, err)
	}
	return nil
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// remoteClient builds the tracker client from config, honoring a custom
// endpoint for self-hosted deployments and tests.
func remoteClient() (*linear.Client, error) {
	if err := cfg.ValidateOutbound(); err != nil {
		return nil, err
	}
	client := linear.NewClient(cfg.Linear.APIKey)
	if cfg.Linear.Endpoint != "" {
		client = client.WithEndpoint(cfg.Linear.Endpoint)
	}
	return client, nil
}
