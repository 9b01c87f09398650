package simulate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"swapEngine/internal/amm"
	"swapEngine/internal/asset"
	"swapEngine/internal/dex"
	"swapEngine/internal/ledger"
	"swapEngine/internal/metrics"
	"swapEngine/internal/model"
	"swapEngine/internal/pool"
	"swapEngine/internal/registry"
	"swapEngine/internal/router"
	"swapEngine/internal/storage"
)

var (
	defaultFactory = common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f")
	defaultRouter  = common.HexToAddress("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D")
)

// EventWriter receives decoded events, one per call.
type EventWriter interface {
	Write(value interface{}) error
}

// PoolStore persists pairs and their states.
type PoolStore interface {
	UpsertPools(ctx context.Context, pools []model.Pool) error
	UpsertSnapshots(ctx context.Context, snapshots []model.PoolSnapshot) error
}

// Options wires the outputs of a run. Every field is optional.
type Options struct {
	Logs      storage.Storage
	Events    EventWriter
	Snapshots storage.SnapshotSink
	Store     PoolStore
	Metrics   *metrics.Collector
	Logger    *zap.Logger
}

// StepResult reports the outcome of one step.
type StepResult struct {
	Index   int
	Op      string
	Block   uint64
	Err     error
	Amounts []string
	Logs    int
}

// Result is the outcome of a whole run.
type Result struct {
	Steps     []StepResult
	Snapshots []model.PoolSnapshot
	Logs      int
	Events    int
}

// Runner executes a scenario against an in-memory world.
type Runner struct {
	scenario Scenario
	opts     Options
	logger   *zap.Logger

	world    *ledger.World
	registry *registry.Registry
	router   *router.Router
	decoder  *dex.PairDecoder
	meta     *dex.PoolMetaCache

	tokens  map[string]*ledger.Token
	touched map[common.Address]struct{}
	result  Result
}

// NewRunner validates the scenario addresses and builds an empty world.
func NewRunner(sc Scenario, opts Options) (*Runner, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	factory, err := addressOr(sc.Factory, defaultFactory)
	if err != nil {
		return nil, fmt.Errorf("factory: %w", err)
	}
	routerAddr, err := addressOr(sc.Router, defaultRouter)
	if err != nil {
		return nil, fmt.Errorf("router: %w", err)
	}

	var regOpts []registry.Option
	if sc.InitCodeHash != "" {
		raw := common.FromHex(sc.InitCodeHash)
		if len(raw) != common.HashLength {
			return nil, fmt.Errorf("init code hash must be 32 bytes: %s", sc.InitCodeHash)
		}
		regOpts = append(regOpts, registry.WithInitCodeHash(common.BytesToHash(raw)))
	}

	decoder, err := dex.NewPairDecoder(dex.DecoderConfig{})
	if err != nil {
		return nil, err
	}

	world := ledger.NewWorld(sc.ChainID, sc.StartTime)
	reg := registry.New(factory, world, world, logger, regOpts...)
	return &Runner{
		scenario: sc,
		opts:     opts,
		logger:   logger,
		world:    world,
		registry: reg,
		router:   router.New(routerAddr, reg, world, world, logger),
		decoder:  decoder,
		meta:     dex.NewPoolMetaCache(),
		tokens:   make(map[string]*ledger.Token),
		touched:  make(map[common.Address]struct{}),
	}, nil
}

// World exposes the state the runner executes against.
func (r *Runner) World() *ledger.World {
	return r.world
}

func (r *Runner) Registry() *registry.Registry {
	return r.registry
}

// Run deploys the tokens, runs every step as its own transaction, and
// publishes the final pair states. A step whose outcome differs from its
// expect_error aborts the run.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	r.world.BeginTx()
	if err := pool.Atomic(r.world, r.setup); err != nil {
		return r.result, fmt.Errorf("setup: %w", err)
	}
	if err := r.commit(ctx, r.world.Finalise()); err != nil {
		return r.result, err
	}

	for i, step := range r.scenario.Steps {
		if err := ctx.Err(); err != nil {
			return r.result, err
		}
		res, err := r.runStep(ctx, i, step)
		r.result.Steps = append(r.result.Steps, res)
		if err != nil {
			return r.result, err
		}
	}

	snapshots := r.snapshots()
	if err := r.publishSnapshots(ctx, snapshots); err != nil {
		return r.result, err
	}
	r.result.Snapshots = snapshots

	r.logger.Info("simulation complete",
		zap.Int("steps", len(r.result.Steps)),
		zap.Int("pools", r.registry.Len()),
		zap.Int("logs", r.result.Logs),
		zap.Int("events", r.result.Events),
	)
	return r.result, nil
}

func (r *Runner) setup() error {
	for _, spec := range r.scenario.Tokens {
		behavior, err := ledger.ParseBehavior(spec.Behavior)
		if err != nil {
			return fmt.Errorf("token %s: %w", spec.Symbol, err)
		}
		symbol := strings.ToLower(strings.TrimSpace(spec.Symbol))
		if symbol == "" {
			return fmt.Errorf("token symbol is required")
		}
		if _, ok := r.tokens[symbol]; ok {
			return fmt.Errorf("duplicate token %s", spec.Symbol)
		}

		var token *ledger.Token
		if spec.Address != "" {
			if !common.IsHexAddress(spec.Address) {
				return fmt.Errorf("token %s: invalid address %s", spec.Symbol, spec.Address)
			}
			if token, err = r.world.NewTokenAt(common.HexToAddress(spec.Address), spec.Symbol, spec.Decimals, behavior); err != nil {
				return err
			}
		} else {
			token = r.world.DeployToken(spec.Symbol, spec.Decimals, behavior)
		}
		r.tokens[symbol] = token

		for name, raw := range spec.Balances {
			holder, err := r.scenario.accountAddress(name)
			if err != nil {
				return err
			}
			amount, err := ParseAmount(raw)
			if err != nil {
				return fmt.Errorf("token %s balance of %s: %w", spec.Symbol, name, err)
			}
			if err := token.Mint(holder, amount); err != nil {
				return err
			}
		}
		for _, name := range spec.ApproveRouter {
			owner, err := r.scenario.accountAddress(name)
			if err != nil {
				return err
			}
			if err := token.Approve(owner, r.router.Address(), maxUint256()); err != nil {
				return err
			}
		}
		r.logger.Debug("token deployed", zap.String("symbol", spec.Symbol), zap.String("address", token.Address().Hex()))
	}
	return nil
}

func (r *Runner) runStep(ctx context.Context, index int, step Step) (StepResult, error) {
	res := StepResult{Index: index, Op: step.Op, Block: r.world.BlockNumber()}

	r.world.BeginTx()
	var amounts []*uint256.Int
	stepErr := pool.Atomic(r.world, func() error {
		var err error
		amounts, err = r.exec(ctx, step)
		return err
	})
	logs := r.world.Finalise()
	res.Err = stepErr
	res.Logs = len(logs)
	for _, a := range amounts {
		res.Amounts = append(res.Amounts, a.ToBig().String())
	}

	if stepErr != nil {
		r.logger.Debug("step failed", zap.Int("step", index), zap.String("op", step.Op), zap.Error(stepErr))
	} else {
		r.logger.Debug("step done", zap.Int("step", index), zap.String("op", step.Op), zap.Strings("amounts", res.Amounts))
	}

	if err := matchExpectation(step, stepErr); err != nil {
		return res, fmt.Errorf("step %d (%s): %w", index, step.Op, err)
	}
	if err := r.commit(ctx, logs); err != nil {
		return res, err
	}
	return res, nil
}

func (r *Runner) exec(ctx context.Context, step Step) ([]*uint256.Int, error) {
	switch strings.ToLower(strings.TrimSpace(step.Op)) {
	case OpCreatePool:
		a, b, err := r.pair(step)
		if err != nil {
			return nil, err
		}
		p, err := r.registry.CreatePool(a, b)
		if err != nil {
			return nil, err
		}
		r.touch(p.Address())
		return nil, nil

	case OpAddLiquidity:
		from, to, err := r.parties(step)
		if err != nil {
			return nil, err
		}
		a, b, err := r.pair(step)
		if err != nil {
			return nil, err
		}
		amounts, err := parseAmounts(step.AmountA, step.AmountB, step.AmountAMin, step.AmountBMin)
		if err != nil {
			return nil, err
		}
		out, err := r.router.AddLiquidity(ctx, from, router.AddLiquidityParams{
			TokenA:         a,
			TokenB:         b,
			AmountADesired: amounts[0],
			AmountBDesired: amounts[1],
			AmountAMin:     amounts[2],
			AmountBMin:     amounts[3],
			To:             to,
			Deadline:       r.deadline(step),
		})
		if err != nil {
			return nil, err
		}
		r.touch(out.Pool)
		return []*uint256.Int{out.AmountA, out.AmountB, out.Liquidity}, nil

	case OpRemoveLiquidity:
		from, to, err := r.parties(step)
		if err != nil {
			return nil, err
		}
		a, b, err := r.pair(step)
		if err != nil {
			return nil, err
		}
		amounts, err := parseAmounts(step.Liquidity, step.AmountAMin, step.AmountBMin)
		if err != nil {
			return nil, err
		}
		if err := r.approveShares(from, a, b); err != nil {
			return nil, err
		}
		out, err := r.router.RemoveLiquidity(ctx, from, router.RemoveLiquidityParams{
			TokenA:     a,
			TokenB:     b,
			Liquidity:  amounts[0],
			AmountAMin: amounts[1],
			AmountBMin: amounts[2],
			To:         to,
			Deadline:   r.deadline(step),
		})
		if err != nil {
			return nil, err
		}
		r.touchPair(a, b)
		return []*uint256.Int{out.AmountA, out.AmountB}, nil

	case OpSwapExactIn:
		from, to, err := r.parties(step)
		if err != nil {
			return nil, err
		}
		path, err := r.path(step.Path)
		if err != nil {
			return nil, err
		}
		amounts, err := parseAmounts(step.AmountIn, step.AmountOutMin)
		if err != nil {
			return nil, err
		}
		out, err := r.router.SwapExactIn(ctx, from, router.SwapExactInParams{
			AmountIn:     amounts[0],
			AmountOutMin: amounts[1],
			Path:         path,
			To:           to,
			Deadline:     r.deadline(step),
		})
		if err != nil {
			return nil, err
		}
		r.touchPath(path)
		return out, nil

	case OpSwapExactOut:
		from, to, err := r.parties(step)
		if err != nil {
			return nil, err
		}
		path, err := r.path(step.Path)
		if err != nil {
			return nil, err
		}
		amounts, err := parseAmounts(step.AmountOut, step.AmountInMax)
		if err != nil {
			return nil, err
		}
		// An empty amount_in_max accepts any input.
		if step.AmountInMax == "" {
			amounts[1] = nil
		}
		out, err := r.router.SwapExactOut(ctx, from, router.SwapExactOutParams{
			AmountOut:   amounts[0],
			AmountInMax: amounts[1],
			Path:        path,
			To:          to,
			Deadline:    r.deadline(step),
		})
		if err != nil {
			return nil, err
		}
		r.touchPath(path)
		return out, nil

	case OpTransfer:
		token, err := r.token(step.Token)
		if err != nil {
			return nil, err
		}
		from, err := r.scenario.accountAddress(step.From)
		if err != nil {
			return nil, err
		}
		to, err := r.destination(step.To)
		if err != nil {
			return nil, err
		}
		amount, err := ParseAmount(step.Amount)
		if err != nil {
			return nil, err
		}
		if err := asset.SafeTransfer(token, from, to, amount); err != nil {
			return nil, err
		}
		return []*uint256.Int{amount}, nil

	case OpApprove:
		token, err := r.token(step.Token)
		if err != nil {
			return nil, err
		}
		owner, err := r.scenario.accountAddress(step.From)
		if err != nil {
			return nil, err
		}
		spender := r.router.Address()
		if step.Spender != "" {
			if spender, err = r.destination(step.Spender); err != nil {
				return nil, err
			}
		}
		amount, err := ParseAmount(step.Amount)
		if err != nil {
			return nil, err
		}
		return []*uint256.Int{amount}, token.Approve(owner, spender, amount)

	case OpSkim:
		p, err := r.pool(step)
		if err != nil {
			return nil, err
		}
		to, err := r.destination(step.To)
		if err != nil {
			return nil, err
		}
		return nil, p.Skim(to)

	case OpSync:
		p, err := r.pool(step)
		if err != nil {
			return nil, err
		}
		if err := p.Sync(); err != nil {
			return nil, err
		}
		r.touch(p.Address())
		return nil, nil

	case OpAdvance:
		if step.Seconds == 0 {
			return nil, fmt.Errorf("advance needs seconds")
		}
		r.world.AdvanceTime(step.Seconds)
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown op %q", step.Op)
	}
}

// commit stores, decodes and observes the logs of one transaction.
func (r *Runner) commit(ctx context.Context, logs []*types.Log) error {
	if len(logs) == 0 {
		return nil
	}
	now := time.Now()
	records := make([]model.LogRecord, 0, len(logs))
	for _, l := range logs {
		record := dex.NewLogRecord(r.world.ChainID(), *l, r.world.Now(), now)
		record.Source = model.SourceSimulated
		records = append(records, record)
	}
	r.result.Logs += len(records)

	if r.opts.Logs != nil {
		if err := r.opts.Logs.PutLogBatch(records); err != nil {
			return fmt.Errorf("store logs: %w", err)
		}
	}

	decodeCtx := dex.DecodeContext{Context: ctx, PoolMetaCache: r.meta, Logger: r.logger}
	for _, record := range records {
		if !r.decoder.CanDecode(record.Topic0()) {
			continue
		}
		event, err := r.decoder.Decode(record, decodeCtx)
		if err != nil {
			return fmt.Errorf("decode log %d of block %d: %w", record.LogIndex, record.BlockNumber, err)
		}
		r.result.Events++
		if r.opts.Events != nil {
			if err := r.opts.Events.Write(event); err != nil {
				return fmt.Errorf("write event: %w", err)
			}
		}
		if r.opts.Metrics != nil {
			if err := r.opts.Metrics.Observe(event); err != nil {
				return fmt.Errorf("observe event: %w", err)
			}
		}
	}
	return nil
}

func (r *Runner) snapshots() []model.PoolSnapshot {
	out := make([]model.PoolSnapshot, 0, len(r.touched))
	for _, p := range r.registry.AllPools() {
		if _, ok := r.touched[p.Address()]; !ok {
			continue
		}
		out = append(out, Snapshot(r.world.ChainID(), p.State(), r.world.BlockNumber()-1, r.world.Now()))
	}
	return out
}

func (r *Runner) publishSnapshots(ctx context.Context, snapshots []model.PoolSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	if r.opts.Snapshots != nil {
		if err := r.opts.Snapshots.PutSnapshots(snapshots); err != nil {
			return fmt.Errorf("store snapshots: %w", err)
		}
	}
	if r.opts.Metrics != nil {
		for _, snap := range snapshots {
			if err := r.opts.Metrics.ObserveSnapshot(snap); err != nil {
				return err
			}
		}
	}
	if r.opts.Store != nil {
		pools := make([]model.Pool, 0, len(snapshots))
		for _, snap := range snapshots {
			pools = append(pools, model.Pool{
				ChainID: snap.ChainID,
				Address: snap.Address,
				Factory: r.registry.Address().Hex(),
				Token0:  snap.Token0,
				Token1:  snap.Token1,
			})
		}
		if err := r.opts.Store.UpsertPools(ctx, pools); err != nil {
			return fmt.Errorf("upsert pools: %w", err)
		}
		if err := r.opts.Store.UpsertSnapshots(ctx, snapshots); err != nil {
			return fmt.Errorf("upsert snapshots: %w", err)
		}
	}
	return nil
}

// Snapshot converts a pool state to its stored form.
func Snapshot(chainID uint64, st pool.State, block, ts uint64) model.PoolSnapshot {
	return model.PoolSnapshot{
		ChainID:              chainID,
		Address:              st.Address.Hex(),
		Token0:               st.Token0.Hex(),
		Token1:               st.Token1.Hex(),
		Reserve0:             st.Reserve0.ToBig().String(),
		Reserve1:             st.Reserve1.ToBig().String(),
		BlockTimestampLast:   st.BlockTimestampLast,
		Price0CumulativeLast: st.Price0CumulativeLast.ToBig().String(),
		Price1CumulativeLast: st.Price1CumulativeLast.ToBig().String(),
		TotalSupply:          st.TotalSupply.ToBig().String(),
		BlockNumber:          block,
		Timestamp:            ts,
	}
}

func matchExpectation(step Step, err error) error {
	want := strings.TrimSpace(step.ExpectError)
	switch {
	case want == "" && err == nil:
		return nil
	case want == "":
		return err
	case err == nil:
		return fmt.Errorf("expected error %q, step succeeded", want)
	}
	if strings.EqualFold(amm.KindOf(err).String(), want) || strings.Contains(err.Error(), want) {
		return nil
	}
	return fmt.Errorf("expected error %q, got: %w", want, err)
}

func (r *Runner) token(symbol string) (*ledger.Token, error) {
	token, ok := r.tokens[strings.ToLower(strings.TrimSpace(symbol))]
	if !ok {
		return nil, fmt.Errorf("unknown token %q", symbol)
	}
	return token, nil
}

func (r *Runner) pair(step Step) (common.Address, common.Address, error) {
	a, err := r.token(step.TokenA)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	b, err := r.token(step.TokenB)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	return a.Address(), b.Address(), nil
}

func (r *Runner) pool(step Step) (*pool.Pool, error) {
	a, b, err := r.pair(step)
	if err != nil {
		return nil, err
	}
	p, ok := r.registry.Pool(a, b)
	if !ok {
		return nil, amm.ErrPoolNotFound
	}
	return p, nil
}

func (r *Runner) path(symbols []string) ([]common.Address, error) {
	path := make([]common.Address, 0, len(symbols))
	for _, symbol := range symbols {
		token, err := r.token(symbol)
		if err != nil {
			return nil, err
		}
		path = append(path, token.Address())
	}
	return path, nil
}

// parties resolves the caller and the recipient, which defaults to the
// caller.
func (r *Runner) parties(step Step) (common.Address, common.Address, error) {
	from, err := r.scenario.accountAddress(step.From)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	if step.To == "" {
		return from, from, nil
	}
	to, err := r.destination(step.To)
	return from, to, err
}

// destination resolves an account name, or "pool:A/B" for a pair address.
func (r *Runner) destination(name string) (common.Address, error) {
	if rest, ok := strings.CutPrefix(strings.TrimSpace(name), "pool:"); ok {
		symA, symB, ok := strings.Cut(rest, "/")
		if !ok {
			return common.Address{}, fmt.Errorf("pool reference %q needs A/B", name)
		}
		a, b, err := r.pair(Step{TokenA: symA, TokenB: symB})
		if err != nil {
			return common.Address{}, err
		}
		return r.registry.PoolAddress(a, b)
	}
	if strings.EqualFold(strings.TrimSpace(name), "router") {
		return r.router.Address(), nil
	}
	return r.scenario.accountAddress(name)
}

func (r *Runner) approveShares(owner, a, b common.Address) error {
	addr, err := r.registry.PoolAddress(a, b)
	if err != nil {
		return err
	}
	shares, ok := r.world.ShareToken(addr)
	if !ok {
		return amm.ErrPoolNotFound
	}
	if !shares.Allowance(owner, r.router.Address()).IsZero() {
		return nil
	}
	return shares.Approve(owner, r.router.Address(), maxUint256())
}

func (r *Runner) deadline(step Step) uint64 {
	now := r.world.Now()
	if step.Deadline < 0 {
		back := uint64(-step.Deadline)
		if back > now {
			return 0
		}
		return now - back
	}
	return now + uint64(step.Deadline)
}

func (r *Runner) touch(addr common.Address) {
	r.touched[addr] = struct{}{}
}

func (r *Runner) touchPair(a, b common.Address) {
	if p, ok := r.registry.Pool(a, b); ok {
		r.touch(p.Address())
	}
}

func (r *Runner) touchPath(path []common.Address) {
	for i := 0; i+1 < len(path); i++ {
		r.touchPair(path[i], path[i+1])
	}
}

func parseAmounts(values ...string) ([]*uint256.Int, error) {
	out := make([]*uint256.Int, 0, len(values))
	for _, v := range values {
		amount, err := ParseAmount(v)
		if err != nil {
			return nil, err
		}
		out = append(out, amount)
	}
	return out, nil
}

func addressOr(value string, fallback common.Address) (common.Address, error) {
	if value == "" {
		return fallback, nil
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, errors.New("invalid address " + value)
	}
	return common.HexToAddress(value), nil
}

func maxUint256() *uint256.Int {
	return new(uint256.Int).SetAllOne()
}
