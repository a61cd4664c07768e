package replay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"

	"poolSim/internal/model"
	"poolSim/internal/pool"
	"poolSim/internal/storage"
	"poolSim/internal/storage/postgres"
)

// Config holds runtime settings for the event replayer.
type Config struct {
	// ProtocolFeePPM is the protocol's share of swap fees in parts per
	// million, applied to every replayed pool.
	ProtocolFeePPM uint32
	// TickTolerance bounds the allowed gap between the computed post-swap
	// tick and the event-carried one, in tick spacings.
	TickTolerance float64
	// StateStore resumes the replay past already processed blocks.
	StateStore StateStore
	// Store receives pool and position upserts when set.
	Store *postgres.Store
}

// Replayer reconstructs concentrated pools from ingested event streams and
// reports per-position holdings, fee income and profit estimates.
type Replayer struct {
	cfg    Config
	sink   *storage.JSONLSink
	logger *zap.Logger
	pools  map[string]*poolState
}

type poolState struct {
	pool      *pool.Concentrated
	meta      model.PoolMeta
	chainID   uint64
	address   string
	firstSeen uint64
}

func NewReplayer(cfg Config, positionsSink *storage.JSONLSink, logger *zap.Logger) *Replayer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TickTolerance <= 0 {
		cfg.TickTolerance = 1
	}
	return &Replayer{
		cfg:    cfg,
		sink:   positionsSink,
		logger: logger,
		pools:  make(map[string]*poolState),
	}
}

// Run replays the event file at eventsPath and writes position records.
func (r *Replayer) Run(ctx context.Context, eventsPath string) error {
	if r.sink == nil {
		return fmt.Errorf("positions sink is nil")
	}

	var startBlock uint64
	if r.cfg.StateStore != nil {
		last, ok, err := r.cfg.StateStore.Load(ctx)
		if err != nil {
			return err
		}
		if ok {
			startBlock = last
			r.logger.Info("resume replay", zap.Uint64("last_processed", last))
		}
	}

	file, err := os.Open(eventsPath)
	if err != nil {
		return fmt.Errorf("open events: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var total, applied, skipped, failed int
	maxBlock := startBlock
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		total++

		var record model.PoolEventRecord
		if err := json.Unmarshal(line, &record); err != nil {
			failed++
			r.logger.Warn("decode event record", zap.Error(err), zap.Int("line", total))
			continue
		}

		if record.BlockNumber <= startBlock {
			skipped++
			continue
		}

		ps, err := r.poolFor(record)
		if err != nil {
			return err
		}

		if err := r.applyEvent(ps, record); err != nil {
			failed++
			r.logger.Warn("event rejected",
				zap.Error(err),
				zap.String("pool", record.Address),
				zap.String("event", record.EventName),
				zap.Uint64("block", record.BlockNumber),
			)
			continue
		}
		applied++

		if record.BlockNumber > maxBlock {
			maxBlock = record.BlockNumber
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan events: %w", err)
	}

	if err := r.flush(ctx); err != nil {
		return err
	}

	if r.cfg.StateStore != nil && maxBlock > startBlock {
		if err := r.cfg.StateStore.Save(ctx, maxBlock); err != nil {
			return err
		}
	}

	r.logger.Info("replay complete",
		zap.Int("total", total),
		zap.Int("applied", applied),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
		zap.Int("pools", len(r.pools)),
	)

	return nil
}

func (r *Replayer) poolFor(record model.PoolEventRecord) (*poolState, error) {
	if ps, ok := r.pools[record.Address]; ok {
		return ps, nil
	}

	meta := record.PoolMeta
	p, err := pool.NewConcentrated(meta.Token0, meta.Token1, meta.Fee, r.cfg.ProtocolFeePPM, meta.TickSpacing)
	if err != nil {
		return nil, fmt.Errorf("build pool %s: %w", record.Address, err)
	}

	ps := &poolState{
		pool:      p,
		meta:      meta,
		chainID:   record.ChainID,
		address:   record.Address,
		firstSeen: record.BlockNumber,
	}
	r.pools[record.Address] = ps
	return ps, nil
}

func (r *Replayer) applyEvent(ps *poolState, record model.PoolEventRecord) error {
	switch record.EventName {
	case "Initialize":
		var data model.InitializeEventData
		if err := json.Unmarshal(record.Decoded, &data); err != nil {
			return fmt.Errorf("decode initialize: %w", err)
		}
		sqrtPrice, err := pool.SqrtPriceFromX96(data.SqrtPriceX96)
		if err != nil {
			return err
		}
		return ps.pool.InitializeWithTick(sqrtPrice, data.Tick)

	case "Mint":
		var data model.MintEventData
		if err := json.Unmarshal(record.Decoded, &data); err != nil {
			return fmt.Errorf("decode mint: %w", err)
		}
		liquidity, err := parseAmount(data.Amount)
		if err != nil {
			return err
		}
		amount0, err := parseAmount(data.Amount0)
		if err != nil {
			return err
		}
		amount1, err := parseAmount(data.Amount1)
		if err != nil {
			return err
		}
		return ps.pool.Mint(data.TokenID, data.Owner, data.TickLower, data.TickUpper, liquidity, amount0, amount1)

	case "Burn":
		var data model.BurnEventData
		if err := json.Unmarshal(record.Decoded, &data); err != nil {
			return fmt.Errorf("decode burn: %w", err)
		}
		liquidity, err := parseAmount(data.Amount)
		if err != nil {
			return err
		}
		amount0, err := parseAmount(data.Amount0)
		if err != nil {
			return err
		}
		amount1, err := parseAmount(data.Amount1)
		if err != nil {
			return err
		}
		return ps.pool.Burn(data.TokenID, liquidity, amount0, amount1)

	case "Collect":
		var data model.CollectEventData
		if err := json.Unmarshal(record.Decoded, &data); err != nil {
			return fmt.Errorf("decode collect: %w", err)
		}
		amount0, err := parseAmount(data.Amount0)
		if err != nil {
			return err
		}
		amount1, err := parseAmount(data.Amount1)
		if err != nil {
			return err
		}
		return ps.pool.Collect(data.TokenID, amount0, amount1)

	case "Swap":
		var data model.SwapEventData
		if err := json.Unmarshal(record.Decoded, &data); err != nil {
			return fmt.Errorf("decode swap: %w", err)
		}
		amount0, err := parseAmount(data.Amount0)
		if err != nil {
			return err
		}
		amount1, err := parseAmount(data.Amount1)
		if err != nil {
			return err
		}
		sqrtPrice, err := pool.SqrtPriceFromX96(data.SqrtPriceX96)
		if err != nil {
			return err
		}
		return ps.pool.SwapWithCheck(amount0, amount1, sqrtPrice, data.Tick, r.cfg.TickTolerance)

	default:
		return fmt.Errorf("unsupported event name: %s", record.EventName)
	}
}

// flush writes position records for every replayed pool and mirrors them to
// Postgres when a store is configured.
func (r *Replayer) flush(ctx context.Context) error {
	var pools []model.Pool
	var positions []model.PositionRecord

	for _, ps := range r.pools {
		pools = append(pools, model.Pool{
			ChainID:        ps.chainID,
			Address:        ps.address,
			Token0:         ps.meta.Token0,
			Token1:         ps.meta.Token1,
			Fee:            ps.meta.Fee,
			TickSpacing:    ps.meta.TickSpacing,
			FirstSeenBlock: ps.firstSeen,
		})
		for _, pos := range ps.pool.Positions() {
			positions = append(positions, positionRecord(ps, pos))
		}
	}

	records := make([]interface{}, 0, len(positions))
	for _, p := range positions {
		records = append(records, p)
	}
	if err := r.sink.AppendBatch(records); err != nil {
		return fmt.Errorf("store positions: %w", err)
	}

	if r.cfg.Store != nil {
		if err := r.cfg.Store.UpsertPools(ctx, pools); err != nil {
			return fmt.Errorf("upsert pools: %w", err)
		}
		if err := r.cfg.Store.UpsertPositions(ctx, positions); err != nil {
			return fmt.Errorf("upsert positions: %w", err)
		}
	}

	return nil
}

// positionRecord converts a replayed position into its output row. Profit is
// measured against the opening deposit: open positions count estimated
// holdings plus uncollected fees, closed ones count what was actually paid
// out.
func positionRecord(ps *poolState, pos pool.Position) model.PositionRecord {
	var pnl0, pnl1 float64
	if pos.Active {
		pnl0 = pos.Holdings0 + pos.FeesAccrued0 - pos.StartHoldings0
		pnl1 = pos.Holdings1 + pos.FeesAccrued1 - pos.StartHoldings1
	} else {
		pnl0 = pos.Collected0 - pos.StartHoldings0
		pnl1 = pos.Collected1 - pos.StartHoldings1
	}

	return model.PositionRecord{
		ChainID:      ps.chainID,
		PoolAddress:  ps.address,
		TokenID:      pos.TokenID,
		Owner:        pos.Owner,
		TickLower:    pos.TickLower,
		TickUpper:    pos.TickUpper,
		Liquidity:    pos.Liquidity,
		Holdings0:    pos.Holdings0,
		Holdings1:    pos.Holdings1,
		FeesAccrued0: pos.FeesAccrued0,
		FeesAccrued1: pos.FeesAccrued1,
		Collected0:   pos.Collected0,
		Collected1:   pos.Collected1,
		PnL0:         pnl0,
		PnL1:         pnl1,
		Active:       pos.Active,
	}
}

func parseAmount(value string) (float64, error) {
	if value == "" {
		return 0, nil
	}
	amount, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", value, err)
	}
	return amount, nil
}
