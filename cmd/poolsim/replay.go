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
	"poolSim/internal/replay"
	"poolSim/internal/storage"
	"poolSim/internal/storage/postgres"
)

func runReplay(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReplay(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.In == "" {
		return fmt.Errorf("input path is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store *postgres.Store
	if cfg.PGDSN != "" {
		store, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
	}

	var stateStore replay.StateStore
	switch {
	case cfg.StateFile != "":
		stateStore = &replay.FileStateStore{Path: cfg.StateFile}
	case store != nil:
		stateStore = &replay.DBStateStore{Store: store, Name: cfg.StateName}
	}

	replayer := replay.NewReplayer(replay.Config{
		ProtocolFeePPM: cfg.ProtocolFeePPM,
		TickTolerance:  cfg.TickTolerance,
		StateStore:     stateStore,
		Store:          store,
	}, storage.NewJSONLSink(cfg.Out), logger)

	logger.Info("replay start",
		zap.String("in", cfg.In),
		zap.String("out", cfg.Out),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Uint32("protocol_fee_ppm", cfg.ProtocolFeePPM),
		zap.Float64("tick_tolerance", cfg.TickTolerance),
	)

	return replayer.Run(ctx, cfg.In)
}
