package config

import (
	"github.com/spf13/pflag"
)

// QuoteConfig holds configuration for the quote command.
type QuoteConfig struct {
	PoolFile string
	TokenIn  int
	TokenOut int
	AmountIn float64
	Out      string
	LogLevel string
}

// LoadQuote merges config file, environment variables, and flags into QuoteConfig.
func LoadQuote(cfgFile string, flags *pflag.FlagSet) (QuoteConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"token-in":  0,
		"token-out": 1,
		"log-level": "info",
	})
	if err != nil {
		return QuoteConfig{}, err
	}

	cfg := QuoteConfig{
		PoolFile: v.GetString("pool"),
		TokenIn:  v.GetInt("token-in"),
		TokenOut: v.GetInt("token-out"),
		AmountIn: v.GetFloat64("amount-in"),
		Out:      v.GetString("out"),
		LogLevel: v.GetString("log-level"),
	}

	return cfg, nil
}
