package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"poolSim/internal/chain"
	"poolSim/internal/events"
	"poolSim/internal/model"
	"poolSim/internal/storage"
)

// RunConfig holds runtime settings for the event ingester.
type RunConfig struct {
	Pool              common.Address
	FromBlock         uint64
	ToBlock           uint64
	BatchSize         uint64
	CheckpointPath    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
}

// Runner streams one pool's event history from the chain, decodes it and
// writes ordered event records to the JSONL sink. Decode failures go to a
// separate error sink so a bad log never stops the run.
type Runner struct {
	cfg        RunConfig
	chain      *chain.Client
	decoder    *events.Decoder
	eventSink  *storage.JSONLSink
	errorSink  *storage.JSONLSink
	logger     *zap.Logger
	seen       map[string]struct{}
	checkpoint *CheckpointStore
	metaCache  *events.PoolMetaCache
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, chainClient *chain.Client, decoder *events.Decoder, eventSink, errorSink *storage.JSONLSink, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		chain:      chainClient,
		decoder:    decoder,
		eventSink:  eventSink,
		errorSink:  errorSink,
		logger:     logger,
		seen:       make(map[string]struct{}),
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.Pool.Hex(), cfg.CheckpointEnabled),
		metaCache:  events.NewPoolMetaCache(),
	}
}

// Run executes the ingest loop.
func (r *Runner) Run(ctx context.Context) error {
	if r.chain == nil {
		return fmt.Errorf("chain client is nil")
	}
	if r.decoder == nil {
		return fmt.Errorf("decoder is nil")
	}
	if r.eventSink == nil {
		return fmt.Errorf("event sink is nil")
	}
	if r.cfg.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}
	if r.cfg.Pool == (common.Address{}) {
		return fmt.Errorf("pool address is required")
	}

	chainID, err := r.chain.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}

	meta, err := r.poolMeta(ctx)
	if err != nil {
		return fmt.Errorf("pool meta: %w", err)
	}

	from := r.cfg.FromBlock
	to := r.cfg.ToBlock
	if to == 0 {
		latest, err := r.chain.LatestBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	if r.checkpoint != nil {
		cp, ok, err := r.checkpoint.Load()
		if err != nil {
			return err
		}
		if ok && cp.LastProcessedBlock >= from {
			from = cp.LastProcessedBlock + 1
			r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", cp.LastProcessedBlock), zap.Uint64("from", from))
		}
	}

	if from > to {
		r.logger.Info("nothing to ingest", zap.Uint64("from", from), zap.Uint64("to", to))
		return nil
	}

	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		r.logger.Info("fetch logs", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))

		logs, err := r.filterLogsWithRetry(ctx, blockRange.From, blockRange.To)
		if err != nil {
			return fmt.Errorf("filter logs: %w", err)
		}

		records := make([]interface{}, 0, len(logs))
		for _, log := range logs {
			if r.isDuplicate(log) {
				continue
			}
			if len(log.Topics) == 0 || !r.decoder.CanDecode(log.Topics[0]) {
				continue
			}

			ts, err := r.blockTimestampWithRetry(ctx, log.BlockNumber)
			if err != nil {
				return fmt.Errorf("block timestamp %d: %w", log.BlockNumber, err)
			}

			record, err := r.buildEventRecord(chainID, log, ts, meta)
			if err != nil {
				r.logger.Warn("decode failed", zap.Error(err), zap.Uint64("block", log.BlockNumber), zap.Uint("log_index", log.Index))
				if r.errorSink != nil {
					decodeErr := model.DecodeError{
						ChainID:     chainID,
						BlockNumber: log.BlockNumber,
						TxHash:      log.TxHash.Hex(),
						LogIndex:    uint64(log.Index),
						Address:     log.Address.Hex(),
						Topic0:      log.Topics[0].Hex(),
						Error:       err.Error(),
					}
					if sinkErr := r.errorSink.Append(decodeErr); sinkErr != nil {
						return fmt.Errorf("store decode error: %w", sinkErr)
					}
				}
				continue
			}
			records = append(records, record)
		}

		if err := r.eventSink.AppendBatch(records); err != nil {
			return fmt.Errorf("store events: %w", err)
		}

		if r.checkpoint != nil {
			if err := r.checkpoint.Save(blockRange.To); err != nil {
				return err
			}
		}

		r.logger.Info("batch complete", zap.Int("events", len(records)), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
	}

	return nil
}

func (r *Runner) buildEventRecord(chainID uint64, log types.Log, ts uint64, meta model.PoolMeta) (model.PoolEventRecord, error) {
	name, decoded, err := r.decoder.Decode(log)
	if err != nil {
		return model.PoolEventRecord{}, err
	}

	decoded = assignTokenID(decoded)

	raw, err := json.Marshal(decoded)
	if err != nil {
		return model.PoolEventRecord{}, fmt.Errorf("marshal decoded event: %w", err)
	}

	return model.PoolEventRecord{
		ChainID:     chainID,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash.Hex(),
		LogIndex:    uint64(log.Index),
		Address:     log.Address.Hex(),
		EventName:   name,
		Timestamp:   ts,
		Decoded:     raw,
		PoolMeta:    meta,
	}, nil
}

func (r *Runner) poolMeta(ctx context.Context) (model.PoolMeta, error) {
	if meta, ok := r.metaCache.Get(r.cfg.Pool); ok {
		return meta, nil
	}
	var meta model.PoolMeta
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		meta, err = events.FetchPoolMeta(ctx, r.chain, r.cfg.Pool)
		if err != nil {
			r.logger.Warn("pool meta fetch failed", zap.Error(err), zap.String("pool", r.cfg.Pool.Hex()))
		}
		return err
	})
	if err != nil {
		return model.PoolMeta{}, err
	}
	r.metaCache.Set(r.cfg.Pool, meta)
	return meta, nil
}

func (r *Runner) filterLogsWithRetry(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error) {
	var logs []types.Log
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = r.chain.PoolLogs(ctx, r.cfg.Pool, r.decoder.Topics(), fromBlock, toBlock)
		if err != nil {
			r.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", fromBlock), zap.Uint64("to", toBlock))
		}
		return err
	})
	return logs, err
}

func (r *Runner) blockTimestampWithRetry(ctx context.Context, blockNumber uint64) (uint64, error) {
	var ts uint64
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		ts, err = r.chain.BlockTimestamp(ctx, blockNumber)
		if err != nil {
			r.logger.Warn("block timestamp fetch failed", zap.Error(err), zap.Uint64("block_number", blockNumber))
		}
		return err
	})
	return ts, err
}

func (r *Runner) isDuplicate(log types.Log) bool {
	id := fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
	if _, ok := r.seen[id]; ok {
		return true
	}
	r.seen[id] = struct{}{}
	return false
}
