package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// AggregateConfig holds configuration for aggregation.
type AggregateConfig struct {
	RPCURL        string
	Input         string
	Window        string
	PGDSN         string
	BatchSize     int
	StateFile     string
	StateName     string
	RecomputeFrom string
	// Decimals maps token address to decimals, skipping RPC lookups.
	Decimals map[string]string
	LogLevel string
}

// LoadAggregate merges config file, environment variables, and flags into AggregateConfig.
func LoadAggregate(cfgFile string, flags *pflag.FlagSet) (AggregateConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{
		"batch-size": 1000,
		"log-level":  "info",
		"window":     "5m",
		"state-name": "aggregate",
	})
	if err != nil {
		return AggregateConfig{}, err
	}

	return AggregateConfig{
		RPCURL:        v.GetString("rpc"),
		Input:         v.GetString("in"),
		Window:        v.GetString("window"),
		PGDSN:         v.GetString("pg-dsn"),
		BatchSize:     v.GetInt("batch-size"),
		StateFile:     v.GetString("state-file"),
		StateName:     v.GetString("state-name"),
		RecomputeFrom: v.GetString("recompute-from"),
		Decimals:      getStringMap(v, "decimals"),
		LogLevel:      v.GetString("log-level"),
	}, nil
}

// ParseTimestamp parses a timestamp value (unix seconds or RFC3339).
func ParseTimestamp(input string) (uint64, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, nil
	}

	if val, err := strconv.ParseUint(input, 10, 64); err == nil {
		return val, nil
	}

	tm, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return 0, fmt.Errorf("timestamp %q: want unix seconds or RFC3339", input)
	}
	return uint64(tm.Unix()), nil
}
