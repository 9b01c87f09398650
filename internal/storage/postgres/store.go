package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"swapEngine/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// Store provides Postgres persistence for pairs, snapshots and metrics.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables when they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const upsertPoolSQL = `
	INSERT INTO pools (
		chain_id, pool_address, factory, token0, token1, first_seen_block, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, now(), now())
	ON CONFLICT (chain_id, pool_address)
	DO UPDATE SET
		factory = COALESCE(NULLIF(EXCLUDED.factory, ''), pools.factory),
		token0 = EXCLUDED.token0,
		token1 = EXCLUDED.token1,
		first_seen_block = LEAST(pools.first_seen_block, EXCLUDED.first_seen_block),
		updated_at = now()
`

// UpsertPools inserts or updates pair metadata.
func (s *Store) UpsertPools(ctx context.Context, pools []model.Pool) error {
	batch := &pgx.Batch{}
	for _, p := range pools {
		batch.Queue(upsertPoolSQL,
			int64(p.ChainID),
			p.Address,
			p.Factory,
			p.Token0,
			p.Token1,
			int64(p.FirstSeenBlock),
		)
	}
	return s.sendBatch(ctx, batch)
}

const upsertSnapshotSQL = `
	INSERT INTO pool_snapshots (
		chain_id, pool_address, block_number, snapshot_ts, reserve0, reserve1,
		block_timestamp_last, price0_cumulative_last, price1_cumulative_last, total_supply, updated_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,now())
	ON CONFLICT (chain_id, pool_address, block_number)
	DO UPDATE SET
		snapshot_ts = EXCLUDED.snapshot_ts,
		reserve0 = EXCLUDED.reserve0,
		reserve1 = EXCLUDED.reserve1,
		block_timestamp_last = EXCLUDED.block_timestamp_last,
		price0_cumulative_last = EXCLUDED.price0_cumulative_last,
		price1_cumulative_last = EXCLUDED.price1_cumulative_last,
		total_supply = EXCLUDED.total_supply,
		updated_at = now()
`

// UpsertSnapshots stores pair states keyed by block. A later snapshot in
// the same block replaces the earlier one.
func (s *Store) UpsertSnapshots(ctx context.Context, snapshots []model.PoolSnapshot) error {
	batch := &pgx.Batch{}
	for _, snap := range snapshots {
		batch.Queue(upsertSnapshotSQL,
			int64(snap.ChainID),
			snap.Address,
			int64(snap.BlockNumber),
			int64(snap.Timestamp),
			snap.Reserve0,
			snap.Reserve1,
			int64(snap.BlockTimestampLast),
			snap.Price0CumulativeLast,
			snap.Price1CumulativeLast,
			snap.TotalSupply,
		)
	}
	return s.sendBatch(ctx, batch)
}

const upsertWindowSQL = `
	INSERT INTO pool_window_metrics (
		chain_id, pool_address, window_size_seconds, window_start_ts, window_end_ts,
		swap_count, mint_count, burn_count, sync_count, volume0, volume1, fee0, fee1,
		fee_rate0, fee_rate1, tvl0, tvl1, apr, fee_method, tvl_method, created_at, updated_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,now(),now())
	ON CONFLICT (chain_id, pool_address, window_size_seconds, window_start_ts)
	DO UPDATE SET
		window_end_ts = EXCLUDED.window_end_ts,
		swap_count = EXCLUDED.swap_count,
		mint_count = EXCLUDED.mint_count,
		burn_count = EXCLUDED.burn_count,
		sync_count = EXCLUDED.sync_count,
		volume0 = EXCLUDED.volume0,
		volume1 = EXCLUDED.volume1,
		fee0 = EXCLUDED.fee0,
		fee1 = EXCLUDED.fee1,
		fee_rate0 = EXCLUDED.fee_rate0,
		fee_rate1 = EXCLUDED.fee_rate1,
		tvl0 = EXCLUDED.tvl0,
		tvl1 = EXCLUDED.tvl1,
		apr = EXCLUDED.apr,
		fee_method = EXCLUDED.fee_method,
		tvl_method = EXCLUDED.tvl_method,
		updated_at = now()
`

// UpsertWindowMetrics inserts or updates window metrics.
func (s *Store) UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error {
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(upsertWindowSQL,
			int64(m.ChainID),
			m.PoolAddress,
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			int64(m.SwapCount),
			int64(m.MintCount),
			int64(m.BurnCount),
			int64(m.SyncCount),
			m.Volume0,
			m.Volume1,
			m.Fee0,
			m.Fee1,
			m.FeeRate0,
			m.FeeRate1,
			m.TVL0,
			m.TVL1,
			m.APR,
			m.FeeMethod,
			m.TVLMethod,
		)
	}
	return s.sendBatch(ctx, batch)
}

func (s *Store) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch statement %d: %w", i, err)
		}
	}
	return nil
}

// LoadState returns last_processed_ts for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var ts int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_ts FROM indexer_state WHERE name=$1`, name)
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(ts), true, nil
}

// SaveState upserts last_processed_ts for a name.
func (s *Store) SaveState(ctx context.Context, name string, ts uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO indexer_state (name, last_processed_ts, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_ts = EXCLUDED.last_processed_ts, updated_at = now()
	`, name, int64(ts))
	return err
}
