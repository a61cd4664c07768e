package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"poolSim/internal/config"
	"poolSim/internal/model"
	"poolSim/internal/pool"
	"poolSim/internal/storage"
)

func runQuote(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuote(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.PoolFile == "" {
		return fmt.Errorf("pool spec path is required")
	}

	spec, err := model.LoadPoolSpec(cfg.PoolFile)
	if err != nil {
		return err
	}

	p, err := pool.NewWeighted(
		spec.Balances,
		spec.Weights,
		spec.FeeOr(pool.DefaultFee),
		spec.FactoryFeeOr(0),
	)
	if err != nil {
		return fmt.Errorf("build pool: %w", err)
	}

	spotPrice, err := p.SpotPrice(cfg.TokenIn, cfg.TokenOut)
	if err != nil {
		return err
	}
	invariant, err := p.Invariant()
	if err != nil {
		return err
	}

	record := model.QuoteRecord{
		Pool:      spec.Name,
		TokenIn:   cfg.TokenIn,
		TokenOut:  cfg.TokenOut,
		SpotPrice: spotPrice,
		Fee:       p.Fee(),
		Invariant: invariant,
		Balances:  p.Balances(),
		QuotedAt:  time.Now().UTC().Format(time.RFC3339Nano),
	}

	if cfg.AmountIn > 0 {
		amountOut, err := p.SwapGivenIn(cfg.TokenIn, cfg.TokenOut, cfg.AmountIn)
		if err != nil {
			return err
		}
		record.AmountIn = cfg.AmountIn
		record.AmountOut = amountOut
	}

	logger.Info("quote",
		zap.String("pool", spec.Name),
		zap.Int("token_in", cfg.TokenIn),
		zap.Int("token_out", cfg.TokenOut),
		zap.Float64("amount_in", record.AmountIn),
		zap.Float64("amount_out", record.AmountOut),
		zap.Float64("spot_price", record.SpotPrice),
	)

	if cfg.Out != "" {
		return storage.NewJSONLSink(cfg.Out).Append(record)
	}

	encoder := json.NewEncoder(os.Stdout)
	return encoder.Encode(record)
}
