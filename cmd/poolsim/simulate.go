package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"poolSim/internal/config"
	"poolSim/internal/model"
	"poolSim/internal/replay"
	"poolSim/internal/storage"
)

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSimulate(cfgFile, cmd.Flags())
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
	if cfg.Requests == "" {
		return fmt.Errorf("requests path is required")
	}

	spec, err := model.LoadPoolSpec(cfg.PoolFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := replay.NewWeightedRunner(spec, storage.NewJSONLSink(cfg.Out), logger)

	logger.Info("simulate start",
		zap.String("pool", spec.Name),
		zap.String("requests", cfg.Requests),
		zap.String("out", cfg.Out),
	)

	return runner.Run(ctx, cfg.Requests)
}
