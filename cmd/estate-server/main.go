package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/estate-search/internal/app"
	"github.com/mohammed-shakir/estate-search/internal/core/config"
	"github.com/mohammed-shakir/estate-search/internal/core/observability"
	"github.com/mohammed-shakir/estate-search/internal/core/server"
	"github.com/mohammed-shakir/estate-search/internal/logger"
	"github.com/mohammed-shakir/estate-search/internal/metrics"
)

var (
	Version   = "dev"
	Revision  = ""
	BuildDate = ""
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string
	cmd := &cobra.Command{
		Use:           "estate-server",
		Short:         "Serve property search with persisted filters",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "optional dotenv file read before the environment")
	cmd.SetContext(context.Background())
	return cmd
}

func run(ctx context.Context, cfg config.Config) error {
	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Service:   "estate-search",
		Component: "server",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	prov := metrics.Init(metrics.Config{
		Enabled: cfg.MetricsEnabled,
		Path:    cfg.MetricsPath,
		Build:   metrics.BuildInfo{Version: Version, Revision: Revision, BuildDate: BuildDate},
	})
	observability.Init(prov.Registerer())
	observability.ExposeBuildInfo(Version)

	appLog.Info("starting estate-search",
		"addr", cfg.Addr,
		"version", Version,
		"kv", cfg.KVDriver,
		"record_store", cfg.RecordStore,
		"invalidation", cfg.Invalidation.Enabled)

	a, err := app.New(ctx, cfg, appLog, true)
	if err != nil {
		appLog.Error("startup failed", "err", err)
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			appLog.Warn("shutdown", "err", err)
		}
	}()

	if cfg.Invalidation.Enabled {
		c := a.Consumer()
		go func() {
			if err := c.Start(ctx); err != nil {
				appLog.Error("change consumer stopped", "err", err)
			}
		}()
	}

	handler := server.NewHandler(cfg, appLog, prov, a.RouterDeps())
	if err := server.Run(ctx, cfg.Addr, handler, appLog); err != nil {
		appLog.Error("server exited with error", "err", err)
		return fmt.Errorf("serve: %w", err)
	}
	appLog.Info("server stopped")
	return nil
}
