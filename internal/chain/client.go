package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Client wraps go-ethereum RPC with the calls the pair tooling needs.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client

	mu      sync.RWMutex
	tsCache map[uint64]uint64
}

// NewClient dials rpcURL.
func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return NewFromRPC(rpcClient), nil
}

// NewFromRPC wraps an already connected RPC client.
func NewFromRPC(rpcClient *rpc.Client) *Client {
	return &Client{
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
		tsCache:   make(map[uint64]uint64),
	}
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	return c.ethClient.ChainID(ctx)
}

func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.ethClient.BlockNumber(ctx)
}

type blockTime struct {
	Timestamp hexutil.Uint64 `json:"timestamp"`
}

// BlockTimestamp returns the block timestamp, using an in-memory cache.
func (c *Client) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	if ts, ok := c.cachedTimestamp(number); ok {
		return ts, nil
	}

	var head *blockTime
	if err := c.rpcClient.CallContext(ctx, &head, "eth_getBlockByNumber", hexutil.EncodeUint64(number), false); err != nil {
		return 0, err
	}
	if head == nil {
		return 0, fmt.Errorf("block %d: %w", number, ethereum.NotFound)
	}
	c.storeTimestamp(number, uint64(head.Timestamp))
	return uint64(head.Timestamp), nil
}

// BlockTimestamps resolves many block timestamps with one batch request for
// the ones not cached yet.
func (c *Client) BlockTimestamps(ctx context.Context, numbers []uint64) (map[uint64]uint64, error) {
	out := make(map[uint64]uint64, len(numbers))
	var missing []uint64
	for _, n := range numbers {
		if ts, ok := c.cachedTimestamp(n); ok {
			out[n] = ts
			continue
		}
		if _, seen := out[n]; !seen {
			missing = append(missing, n)
			out[n] = 0
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	heads := make([]*blockTime, len(missing))
	batch := make([]rpc.BatchElem, len(missing))
	for i, n := range missing {
		batch[i] = rpc.BatchElem{
			Method: "eth_getBlockByNumber",
			Args:   []interface{}{hexutil.EncodeUint64(n), false},
			Result: &heads[i],
		}
	}
	if err := c.rpcClient.BatchCallContext(ctx, batch); err != nil {
		return nil, err
	}
	for i, elem := range batch {
		if elem.Error != nil {
			return nil, fmt.Errorf("block %d: %w", missing[i], elem.Error)
		}
		if heads[i] == nil {
			return nil, fmt.Errorf("block %d: %w", missing[i], ethereum.NotFound)
		}
		ts := uint64(heads[i].Timestamp)
		c.storeTimestamp(missing[i], ts)
		out[missing[i]] = ts
	}
	return out, nil
}

func (c *Client) cachedTimestamp(number uint64) (uint64, bool) {
	c.mu.RLock()
	ts, ok := c.tsCache[number]
	c.mu.RUnlock()
	return ts, ok
}

func (c *Client) storeTimestamp(number, ts uint64) {
	c.mu.Lock()
	c.tsCache[number] = ts
	c.mu.Unlock()
}

// FilterLogs returns logs in the given range for addresses and topic0 filters.
func (c *Client) FilterLogs(
	ctx context.Context,
	fromBlock uint64,
	toBlock uint64,
	addresses []common.Address,
	topic0 []common.Hash,
) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: addresses,
	}
	if len(topic0) > 0 {
		query.Topics = [][]common.Hash{topic0}
	}
	return c.ethClient.FilterLogs(ctx, query)
}

// CallContract performs an eth_call. A nil blockNumber targets the latest block.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.ethClient.CallContract(ctx, msg, blockNumber)
}
