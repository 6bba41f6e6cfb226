// Package cmd defines the feedagg command line: a long-running HTTP server and a
// one-shot renderer that share the same configuration and pipeline.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/feed-aggregator/internal/app"
	"github.com/JakeFAU/feed-aggregator/internal/config"
	"github.com/JakeFAU/feed-aggregator/internal/logging"
	"github.com/JakeFAU/feed-aggregator/internal/telemetry"
)

// version is overridden at build time with -ldflags.
var version = "dev"

type appKeyType struct{}

// newApp is the application factory. Tests replace it to inject fakes.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error) {
	return app.New(ctx, cfg, logger, app.Deps{})
}

type rootOptions struct {
	configFile string
	envFile    string
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	var shutdownTracing func(context.Context) error

	cmd := &cobra.Command{
		Use:           "feedagg",
		Short:         "Aggregate RSS and Atom feeds into a single Atom feed.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `feedagg fetches every feed listed in a TOML sources document, keeps the
most recent entries inside a rolling window, and publishes them as one Atom
feed, either over HTTP (serve) or as a one-shot render (render).`,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadEnvFile(opts.envFile); err != nil {
				return err
			}
			cfg, err := config.Load(opts.configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(logging.Config{
				Development: cfg.Logging.Development,
				File:        cfg.Logging.File,
				MaxSizeMB:   cfg.Logging.MaxSizeMB,
				MaxBackups:  cfg.Logging.MaxBackups,
				MaxAgeDays:  cfg.Logging.MaxAgeDays,
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)

			shutdownTracing, err = telemetry.InitTracing(cmd.Context(), telemetry.Config{
				ServiceName:    "feedagg",
				ServiceVersion: version,
			})
			if err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}

			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKeyType{}, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKeyType{}).(*app.App); ok && appInstance != nil {
				appInstance.Close()
			}
			if shutdownTracing != nil {
				if err := shutdownTracing(context.Background()); err != nil {
					zap.L().Warn("tracing shutdown failed", zap.Error(err))
				}
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (yaml, json or toml)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before configuration")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newRenderCmd())
	return cmd
}

// loadEnvFile loads dotenv values without overriding the real environment. A
// missing file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKeyType{}).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "feedagg: %v\n", err)
		os.Exit(1)
	}
}
