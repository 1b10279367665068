package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/pastq/internal/config"
	logpkg "github.com/kailas-cloud/pastq/internal/logger"
)

var (
	flagEnv        string
	flagConfigPath string
)

var rootCmd = &cobra.Command{
	Use:   "pastq",
	Short: "Past exam question retrieval for conversational agents",
	Long: `pastq turns a natural-language request for past exam questions into a
structured filter and answers it from the question bank, either by
metadata alone or by similarity search narrowed by the filter.`,
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		// A missing .env is fine; real deployments set the environment directly.
		_ = godotenv.Load()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagEnv, "env", "", `environment config to load: local, dev or prod (default $ENV or "local")`)
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "explicit config file path, overrides --env")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves the environment and reads its configuration.
func loadConfig() (config.Config, string, error) {
	env := flagEnv
	if env == "" {
		env = config.GetEnv()
	}
	var (
		cfg config.Config
		err error
	)
	if flagConfigPath != "" {
		cfg, err = config.LoadFile(flagConfigPath)
	} else {
		cfg, err = config.Load(env)
	}
	if err != nil {
		return config.Config{}, "", fmt.Errorf("load config: %w", err)
	}
	return cfg, env, nil
}

// bootstrap loads config, creates the logger and wires the application.
// The returned context carries the logger.
func bootstrap(ctx context.Context) (context.Context, *app, error) {
	cfg, env, err := loadConfig()
	if err != nil {
		return ctx, nil, err
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return ctx, nil, fmt.Errorf("create logger: %w", err)
	}
	ctx = logpkg.ContextWithLogger(ctx, logger)

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to start", zap.Error(err))
		_ = logger.Sync()
		return ctx, nil, err
	}
	return ctx, a, nil
}
