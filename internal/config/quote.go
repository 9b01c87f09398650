package config

import (
	"github.com/spf13/pflag"

	"swapEngine/internal/registry"
)

// Uniswap V2 factory on Ethereum mainnet.
const DefaultFactory = "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f"

// QuoteConfig holds configuration for the quote and address commands.
type QuoteConfig struct {
	RPCURL       string
	Block        uint64
	Factory      string
	InitCodeHash string
	Path         []string
	AmountIn     string
	AmountOut    string
	// Reserves lists "tokenA:tokenB:reserveA:reserveB" entries used when no
	// RPC URL is given.
	Reserves []string
	LogLevel string
}

// LoadQuote merges config file, environment variables, and flags into QuoteConfig.
func LoadQuote(cfgFile string, flags *pflag.FlagSet) (QuoteConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{
		"factory":        DefaultFactory,
		"init-code-hash": registry.DefaultInitCodeHash.Hex(),
		"log-level":      "info",
	})
	if err != nil {
		return QuoteConfig{}, err
	}

	return QuoteConfig{
		RPCURL:       v.GetString("rpc"),
		Block:        v.GetUint64("block"),
		Factory:      v.GetString("factory"),
		InitCodeHash: v.GetString("init-code-hash"),
		Path:         getStringSlice(v, "path"),
		AmountIn:     v.GetString("amount-in"),
		AmountOut:    v.GetString("amount-out"),
		Reserves:     getStringSlice(v, "reserve"),
		LogLevel:     v.GetString("log-level"),
	}, nil
}
