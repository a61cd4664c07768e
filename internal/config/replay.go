package config

import (
	"github.com/spf13/pflag"
)

// ReplayConfig holds configuration for the replay command.
type ReplayConfig struct {
	In             string
	Out            string
	PGDSN          string
	StateFile      string
	StateName      string
	ProtocolFeePPM uint32
	TickTolerance  float64
	LogLevel       string
}

// LoadReplay merges config file, environment variables, and flags into ReplayConfig.
func LoadReplay(cfgFile string, flags *pflag.FlagSet) (ReplayConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"out":            "./data/positions.jsonl",
		"state-name":     "replay",
		"tick-tolerance": 1.0,
		"log-level":      "info",
	})
	if err != nil {
		return ReplayConfig{}, err
	}

	cfg := ReplayConfig{
		In:             v.GetString("in"),
		Out:            v.GetString("out"),
		PGDSN:          v.GetString("pg-dsn"),
		StateFile:      v.GetString("state-file"),
		StateName:      v.GetString("state-name"),
		ProtocolFeePPM: v.GetUint32("protocol-fee-ppm"),
		TickTolerance:  v.GetFloat64("tick-tolerance"),
		LogLevel:       v.GetString("log-level"),
	}

	return cfg, nil
}
