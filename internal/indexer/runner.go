package indexer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"swapEngine/internal/chain"
	"swapEngine/internal/dex"
	"swapEngine/internal/model"
	"swapEngine/internal/storage"
)

// RunConfig holds runtime settings for the indexer. An empty Topic0 selects
// the pair and factory events.
type RunConfig struct {
	FromBlock         uint64
	ToBlock           uint64
	Addresses         []common.Address
	Topic0            []common.Hash
	BatchSize         uint64
	CheckpointPath    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
}

// Runner streams pair logs from the chain and writes them to storage.
type Runner struct {
	cfg        RunConfig
	chain      *chain.Client
	storage    storage.Storage
	logger     *zap.Logger
	seen       map[string]struct{}
	checkpoint *CheckpointStore
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, chainClient *chain.Client, storageSink storage.Storage, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		chain:      chainClient,
		storage:    storageSink,
		logger:     logger,
		seen:       make(map[string]struct{}),
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
	}
}

// Run executes the indexing loop.
func (r *Runner) Run(ctx context.Context) error {
	if r.chain == nil {
		return fmt.Errorf("chain client is nil")
	}
	if r.storage == nil {
		return fmt.Errorf("storage is nil")
	}
	if r.cfg.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}
	if len(r.cfg.Addresses) == 0 {
		return fmt.Errorf("at least one address is required")
	}
	if len(r.cfg.Topic0) == 0 {
		topics, err := dex.DefaultTopics()
		if err != nil {
			return err
		}
		r.cfg.Topic0 = topics
	}
	filter := FilterFingerprint(r.cfg.Addresses, r.cfg.Topic0)

	chainID, err := r.chain.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}
	chainIDValue := chainID.Uint64()

	from := r.cfg.FromBlock
	to := r.cfg.ToBlock
	if to == 0 {
		latest, err := r.chain.LatestBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	cp, ok, err := r.checkpoint.Load()
	if err != nil {
		return err
	}
	switch {
	case ok && cp.Filter != "" && cp.Filter != filter:
		r.logger.Warn("checkpoint filter changed, ignoring checkpoint", zap.Uint64("last_processed", cp.LastProcessedBlock))
	case ok && cp.LastProcessedBlock >= from:
		from = cp.LastProcessedBlock + 1
		r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", cp.LastProcessedBlock), zap.Uint64("from", from))
	}

	if from > to {
		r.logger.Info("nothing to sync", zap.Uint64("from", from), zap.Uint64("to", to))
		return nil
	}

	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		r.logger.Info("fetch logs", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))

		logs, err := r.fetchLogs(ctx, blockRange)
		if err != nil {
			return fmt.Errorf("filter logs: %w", err)
		}

		logs = r.dedupe(logs)
		timestamps, err := r.blockTimestampsWithRetry(ctx, blockNumbers(logs))
		if err != nil {
			return fmt.Errorf("block timestamps: %w", err)
		}

		ingestedAt := time.Now().UTC()
		records := make([]model.LogRecord, 0, len(logs))
		for _, log := range logs {
			record := dex.NewLogRecord(chainIDValue, log, timestamps[log.BlockNumber], ingestedAt)
			record.Source = model.SourceChain
			records = append(records, record)
		}

		if err := r.storage.PutLogBatch(records); err != nil {
			return fmt.Errorf("store logs: %w", err)
		}
		if err := r.checkpoint.Save(blockRange.To, filter); err != nil {
			return err
		}

		r.logger.Info("batch complete", zap.Int("logs", len(records)), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
	}

	return nil
}

// fetchLogs filters one range, halving it while the provider rejects the
// result size.
func (r *Runner) fetchLogs(ctx context.Context, blockRange BlockRange) ([]types.Log, error) {
	logs, err := r.filterLogsWithRetry(ctx, blockRange.From, blockRange.To)
	if err == nil || !isRangeLimit(err) {
		return logs, err
	}
	left, right, ok := blockRange.Halve()
	if !ok {
		return nil, err
	}
	r.logger.Info("range too large, splitting",
		zap.Uint64("from", blockRange.From),
		zap.Uint64("to", blockRange.To),
		zap.Uint64("mid", left.To),
	)

	first, err := r.fetchLogs(ctx, left)
	if err != nil {
		return nil, err
	}
	second, err := r.fetchLogs(ctx, right)
	if err != nil {
		return nil, err
	}
	return append(first, second...), nil
}

func (r *Runner) filterLogsWithRetry(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error) {
	var logs []types.Log
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = r.chain.FilterLogs(ctx, fromBlock, toBlock, r.cfg.Addresses, r.cfg.Topic0)
		if err != nil && isRangeLimit(err) {
			return permanent(err)
		}
		if err != nil {
			r.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", fromBlock), zap.Uint64("to", toBlock))
		}
		return err
	})
	return logs, err
}

func (r *Runner) blockTimestampsWithRetry(ctx context.Context, numbers []uint64) (map[uint64]uint64, error) {
	if len(numbers) == 0 {
		return map[uint64]uint64{}, nil
	}
	var out map[uint64]uint64
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		out, err = r.chain.BlockTimestamps(ctx, numbers)
		if err != nil {
			r.logger.Warn("block timestamp fetch failed", zap.Error(err), zap.Int("blocks", len(numbers)))
		}
		return err
	})
	return out, err
}

func (r *Runner) dedupe(logs []types.Log) []types.Log {
	out := logs[:0]
	for _, log := range logs {
		id := fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
		if _, ok := r.seen[id]; ok {
			continue
		}
		r.seen[id] = struct{}{}
		out = append(out, log)
	}
	return out
}

func blockNumbers(logs []types.Log) []uint64 {
	seen := make(map[uint64]struct{}, len(logs))
	out := make([]uint64, 0, len(logs))
	for _, log := range logs {
		if _, ok := seen[log.BlockNumber]; ok {
			continue
		}
		seen[log.BlockNumber] = struct{}{}
		out = append(out, log.BlockNumber)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
