package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "poolsim",
		Short:        "AMM pool pricing, simulation, and event replay",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Quote a weighted-pool swap without mutating state",
		RunE:  runQuote,
	}

	quoteCmd.Flags().String("pool", "", "pool spec JSON path")
	quoteCmd.Flags().Int("token-in", 0, "input token index")
	quoteCmd.Flags().Int("token-out", 1, "output token index")
	quoteCmd.Flags().Float64("amount-in", 0, "input amount (0 quotes the spot price only)")
	quoteCmd.Flags().String("out", "", "optional output JSONL path (default stdout)")
	quoteCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(quoteCmd)

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Apply a JSONL stream of swap requests to a weighted pool",
		RunE:  runSimulate,
	}

	simulateCmd.Flags().String("pool", "", "pool spec JSON path")
	simulateCmd.Flags().String("requests", "", "input swap requests JSONL")
	simulateCmd.Flags().String("out", "./data/pool_states.jsonl", "output pool states JSONL")
	simulateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(simulateCmd)

	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch and decode one pool's event history from the chain",
		RunE:  runIngest,
	}

	ingestCmd.Flags().String("rpc", "", "RPC URL")
	ingestCmd.Flags().String("pool", "", "pool contract address")
	ingestCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	ingestCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	ingestCmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	ingestCmd.Flags().String("out", "./data/pool_events.jsonl", "output events JSONL")
	ingestCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	ingestCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	ingestCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	ingestCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	ingestCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	ingestCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(ingestCmd)

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay ingested pool events and report position results",
		RunE:  runReplay,
	}

	replayCmd.Flags().String("in", "", "input pool events JSONL")
	replayCmd.Flags().String("out", "./data/positions.jsonl", "output positions JSONL")
	replayCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for result upserts")
	replayCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	replayCmd.Flags().String("state-name", "replay", "state row name when using Postgres")
	replayCmd.Flags().Uint32("protocol-fee-ppm", 0, "protocol fee share in parts per million")
	replayCmd.Flags().Float64("tick-tolerance", 1.0, "allowed tick drift in tick spacings")
	replayCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(replayCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
