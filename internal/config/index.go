package config

import (
	"time"

	"github.com/spf13/pflag"
)

// IndexConfig holds configuration for the pair-event indexer.
type IndexConfig struct {
	RPCURL    string
	FromBlock uint64
	ToBlock   uint64
	Addresses []string
	// Pairs lists "tokenA:tokenB" entries whose pair address is derived
	// from Factory and InitCodeHash.
	Pairs             []string
	Factory           string
	InitCodeHash      string
	IncludeFactory    bool
	Topic0            []string
	BatchSize         uint64
	Out               string
	Checkpoint        string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
	LogLevel          string
}

// LoadIndex merges config file, environment variables, and flags into IndexConfig.
func LoadIndex(cfgFile string, flags *pflag.FlagSet) (IndexConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{
		"batch-size":         uint64(2000),
		"out":                "./data/logs.jsonl",
		"checkpoint":         "./data/checkpoint.json",
		"checkpoint-enabled": true,
		"include-factory":    true,
		"max-retries":        5,
		"retry-backoff":      500 * time.Millisecond,
		"log-level":          "info",
	})
	if err != nil {
		return IndexConfig{}, err
	}

	return IndexConfig{
		RPCURL:            v.GetString("rpc"),
		FromBlock:         v.GetUint64("from"),
		ToBlock:           v.GetUint64("to"),
		Addresses:         getStringSlice(v, "address"),
		Pairs:             getStringSlice(v, "pair"),
		Factory:           v.GetString("factory"),
		InitCodeHash:      v.GetString("init-code-hash"),
		IncludeFactory:    v.GetBool("include-factory"),
		Topic0:            getStringSlice(v, "topic0"),
		BatchSize:         v.GetUint64("batch-size"),
		Out:               v.GetString("out"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		LogLevel:          v.GetString("log-level"),
	}, nil
}
