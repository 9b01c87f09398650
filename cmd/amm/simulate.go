package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"swapEngine/internal/amm"
	"swapEngine/internal/config"
	"swapEngine/internal/metrics"
	"swapEngine/internal/simulate"
	"swapEngine/internal/storage"
	"swapEngine/internal/storage/postgres"
)

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSimulate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Scenario == "" {
		return fmt.Errorf("scenario path is required")
	}
	scenario, err := simulate.LoadScenario(cfg.Scenario)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := simulate.Options{Logger: logger}
	if cfg.Out != "" {
		opts.Logs = storage.NewJsonlStorage(cfg.Out)
	}
	if cfg.Snapshots != "" {
		opts.Snapshots = storage.NewJsonlStorage(cfg.Snapshots)
	}
	if cfg.Events != "" {
		events, err := storage.NewJSONLWriter(cfg.Events, false)
		if err != nil {
			return err
		}
		defer events.Close()
		opts.Events = events
	}

	collector, gatherer, err := metrics.New(nil)
	if err != nil {
		return err
	}
	opts.Metrics = collector

	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		opts.Store = store
	}

	runner, err := simulate.NewRunner(scenario, opts)
	if err != nil {
		return err
	}

	logger.Info("simulate start",
		zap.String("scenario", cfg.Scenario),
		zap.Int("tokens", len(scenario.Tokens)),
		zap.Int("steps", len(scenario.Steps)),
		zap.String("out", cfg.Out),
		zap.String("events", cfg.Events),
		zap.String("snapshots", cfg.Snapshots),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
	)

	result, err := runner.Run(ctx)
	for _, step := range result.Steps {
		if step.Err == nil {
			continue
		}
		logger.Info("step reverted",
			zap.Int("step", step.Index),
			zap.String("op", step.Op),
			zap.String("kind", amm.KindOf(step.Err).String()),
			zap.Error(step.Err),
		)
	}
	if err != nil {
		return err
	}

	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile, gatherer); err != nil {
			return err
		}
	}

	for _, snap := range result.Snapshots {
		logger.Info("pool state",
			zap.String("pool", snap.Address),
			zap.String("reserve0", snap.Reserve0),
			zap.String("reserve1", snap.Reserve1),
			zap.String("total_supply", snap.TotalSupply),
		)
	}
	return nil
}
