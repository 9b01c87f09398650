package model

// Pool represents a pair metadata record for storage.
type Pool struct {
	ChainID        uint64 `json:"chain_id"`
	Address        string `json:"address"`
	Factory        string `json:"factory,omitempty"`
	Token0         string `json:"token0"`
	Token1         string `json:"token1"`
	FirstSeenBlock uint64 `json:"first_seen_block"`
}
