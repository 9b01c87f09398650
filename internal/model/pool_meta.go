package model

// PoolMeta captures immutable pair metadata with optional live reserves.
type PoolMeta struct {
	Token0   string        `json:"token0"`
	Token1   string        `json:"token1"`
	Factory  string        `json:"factory,omitempty"`
	Reserves *PoolReserves `json:"reserves,omitempty"`
}

// PoolReserves mirrors getReserves().
type PoolReserves struct {
	Reserve0           string `json:"reserve0"`
	Reserve1           string `json:"reserve1"`
	BlockTimestampLast uint32 `json:"block_timestamp_last"`
}
