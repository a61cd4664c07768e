package config

import (
	"github.com/spf13/pflag"
)

// SimulateConfig holds configuration for the simulate command.
type SimulateConfig struct {
	PoolFile string
	Requests string
	Out      string
	LogLevel string
}

// LoadSimulate merges config file, environment variables, and flags into SimulateConfig.
func LoadSimulate(cfgFile string, flags *pflag.FlagSet) (SimulateConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"out":       "./data/pool_states.jsonl",
		"log-level": "info",
	})
	if err != nil {
		return SimulateConfig{}, err
	}

	cfg := SimulateConfig{
		PoolFile: v.GetString("pool"),
		Requests: v.GetString("requests"),
		Out:      v.GetString("out"),
		LogLevel: v.GetString("log-level"),
	}

	return cfg, nil
}
