package model

import "math/big"

// TokenMeta captures ERC20 metadata.
type TokenMeta struct {
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol,omitempty"`
	Name     string `json:"name,omitempty"`
}

// Scale returns 10^Decimals, the raw units per whole token.
func (m TokenMeta) Scale() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(m.Decimals)), nil)
}
