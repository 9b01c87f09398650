package model

// PoolSnapshot is the full observable state of a pair at a point in time.
type PoolSnapshot struct {
	ChainID              uint64 `json:"chain_id"`
	Address              string `json:"address"`
	Token0               string `json:"token0"`
	Token1               string `json:"token1"`
	Reserve0             string `json:"reserve0"`
	Reserve1             string `json:"reserve1"`
	BlockTimestampLast   uint32 `json:"block_timestamp_last"`
	Price0CumulativeLast string `json:"price0_cumulative_last"`
	Price1CumulativeLast string `json:"price1_cumulative_last"`
	TotalSupply          string `json:"total_supply"`
	BlockNumber          uint64 `json:"block_number"`
	Timestamp            uint64 `json:"timestamp"`
}
