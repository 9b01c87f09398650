package config

import "github.com/spf13/pflag"

// SimulateConfig holds configuration for the simulate command.
type SimulateConfig struct {
	Scenario    string
	Out         string
	Events      string
	Snapshots   string
	MetricsFile string
	PGDSN       string
	LogLevel    string
}

// LoadSimulate merges config file, environment variables, and flags into SimulateConfig.
func LoadSimulate(cfgFile string, flags *pflag.FlagSet) (SimulateConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{
		"out":       "./data/sim_logs.jsonl",
		"events":    "./data/sim_events.jsonl",
		"snapshots": "./data/sim_snapshots.jsonl",
		"log-level": "info",
	})
	if err != nil {
		return SimulateConfig{}, err
	}

	return SimulateConfig{
		Scenario:    v.GetString("scenario"),
		Out:         v.GetString("out"),
		Events:      v.GetString("events"),
		Snapshots:   v.GetString("snapshots"),
		MetricsFile: v.GetString("metrics-file"),
		PGDSN:       v.GetString("pg-dsn"),
		LogLevel:    v.GetString("log-level"),
	}, nil
}
