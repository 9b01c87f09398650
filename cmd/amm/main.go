package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"swapEngine/internal/chain"
	"swapEngine/internal/config"
	"swapEngine/internal/indexer"
	"swapEngine/internal/registry"
	"swapEngine/internal/storage"
)

func main() {
	root := &cobra.Command{
		Use:          "amm",
		Short:        "Constant-product AMM simulator, quoter and pair indexer",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Index pair and factory logs over JSON-RPC",
		RunE:  runIndex,
	}

	indexCmd.Flags().String("rpc", "", "JSON-RPC URL")
	indexCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	indexCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	indexCmd.Flags().StringSlice("address", nil, "pair addresses (comma-separated)")
	indexCmd.Flags().StringSlice("pair", nil, "tokenA:tokenB pairs whose address is derived from the factory")
	indexCmd.Flags().String("factory", config.DefaultFactory, "factory address")
	indexCmd.Flags().String("init-code-hash", registry.DefaultInitCodeHash.Hex(), "pair init code hash")
	indexCmd.Flags().Bool("include-factory", true, "also index PairCreated logs of the factory")
	indexCmd.Flags().StringSlice("topic0", nil, "topic0 signatures (comma-separated), default pair and factory events")
	indexCmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	indexCmd.Flags().String("out", "./data/logs.jsonl", "output JSONL path")
	indexCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	indexCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	indexCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	indexCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	indexCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(indexCmd)

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a scenario against in-memory pools",
		RunE:  runSimulate,
	}

	simulateCmd.Flags().String("scenario", "", "scenario file (yaml, json or toml)")
	simulateCmd.Flags().String("out", "./data/sim_logs.jsonl", "raw logs JSONL, empty to skip")
	simulateCmd.Flags().String("events", "./data/sim_events.jsonl", "typed events JSONL, empty to skip")
	simulateCmd.Flags().String("snapshots", "./data/sim_snapshots.jsonl", "final pair states JSONL, empty to skip")
	simulateCmd.Flags().String("metrics-file", "", "optional Prometheus textfile output")
	simulateCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for pairs and snapshots")
	simulateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(simulateCmd)

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Quote a multi-hop swap from static or live reserves",
		RunE:  runQuote,
	}

	quoteCmd.Flags().String("rpc", "", "JSON-RPC URL, reserves are read from live pairs")
	quoteCmd.Flags().Uint64("block", 0, "block to read reserves at, 0 means latest")
	quoteCmd.Flags().String("factory", config.DefaultFactory, "factory address")
	quoteCmd.Flags().String("init-code-hash", registry.DefaultInitCodeHash.Hex(), "pair init code hash")
	quoteCmd.Flags().StringSlice("path", nil, "token path (comma-separated)")
	quoteCmd.Flags().String("amount-in", "", "exact input amount")
	quoteCmd.Flags().String("amount-out", "", "exact output amount")
	quoteCmd.Flags().StringSlice("reserve", nil, "static reserves as tokenA:tokenB:reserveA:reserveB")
	quoteCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(quoteCmd)

	addressCmd := &cobra.Command{
		Use:   "address <tokenA> <tokenB>",
		Short: "Derive the pair address of two tokens",
		Args:  cobra.ExactArgs(2),
		RunE:  runAddress,
	}

	addressCmd.Flags().String("factory", config.DefaultFactory, "factory address")
	addressCmd.Flags().String("init-code-hash", registry.DefaultInitCodeHash.Hex(), "pair init code hash")

	root.AddCommand(addressCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode raw logs into typed events",
		RunE:  runDecode,
	}

	decodeCmd.Flags().String("rpc", "", "JSON-RPC URL, needed for pairs without a PairCreated log in the input")
	decodeCmd.Flags().String("in", "", "input raw logs JSONL")
	decodeCmd.Flags().String("out", "./data/typed_events.jsonl", "output typed events JSONL")
	decodeCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	decodeCmd.Flags().String("topic0-map", "", "extra topic0->event mappings (comma-separated key=value)")
	decodeCmd.Flags().Bool("include-live-meta", false, "include getReserves at the log block (requires archive RPC)")
	decodeCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(decodeCmd)

	aggregateCmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate typed events into window metrics",
		RunE:  runAggregate,
	}

	aggregateCmd.Flags().String("rpc", "", "JSON-RPC URL for token decimals")
	aggregateCmd.Flags().String("in", "", "input typed events JSONL")
	aggregateCmd.Flags().String("window", "5m", "aggregation window (e.g. 1m, 5m, 1h)")
	aggregateCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	aggregateCmd.Flags().Int("batch-size", 1000, "batch size for DB writes")
	aggregateCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	aggregateCmd.Flags().String("state-name", "aggregate", "state row name when progress is kept in Postgres")
	aggregateCmd.Flags().String("recompute-from", "", "recompute from timestamp (unix seconds or RFC3339)")
	aggregateCmd.Flags().String("decimals", "", "token decimals overrides (comma-separated address=decimals)")
	aggregateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(aggregateCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runIndex(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadIndex(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}

	addresses, err := indexer.ResolveAddresses(indexer.FilterSpec{
		Addresses:      cfg.Addresses,
		Pairs:          cfg.Pairs,
		Factory:        cfg.Factory,
		InitCodeHash:   cfg.InitCodeHash,
		IncludeFactory: cfg.IncludeFactory,
	})
	if err != nil {
		return err
	}
	if len(addresses) == 0 {
		return fmt.Errorf("address list is required")
	}

	topic0, err := indexer.ParseTopic0(cfg.Topic0)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	storageSink := storage.NewJsonlStorage(cfg.Out)

	runner := indexer.NewRunner(indexer.RunConfig{
		FromBlock:         cfg.FromBlock,
		ToBlock:           cfg.ToBlock,
		Addresses:         addresses,
		Topic0:            topic0,
		BatchSize:         cfg.BatchSize,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
	}, chainClient, storageSink, logger)

	logger.Info("index start",
		zap.String("rpc", cfg.RPCURL),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Int("addresses", len(addresses)),
		zap.Int("pairs", len(cfg.Pairs)),
		zap.Int("topic0", len(topic0)),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.String("out", cfg.Out),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.String("checkpoint", cfg.Checkpoint),
	)

	return runner.Run(ctx)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
