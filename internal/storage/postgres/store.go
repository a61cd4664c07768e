package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"poolSim/internal/model"
)

// Store provides Postgres persistence for replay results.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// UpsertPools inserts or updates pool metadata.
func (s *Store) UpsertPools(ctx context.Context, pools []model.Pool) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pool := range pools {
		batch.Queue(`
			INSERT INTO pools (
				chain_id, pool_address, token0, token1, fee, tick_spacing, first_seen_block, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
			ON CONFLICT (chain_id, pool_address)
			DO UPDATE SET
				token0 = EXCLUDED.token0,
				token1 = EXCLUDED.token1,
				fee = EXCLUDED.fee,
				tick_spacing = EXCLUDED.tick_spacing,
				first_seen_block = LEAST(pools.first_seen_block, EXCLUDED.first_seen_block),
				updated_at = now()
		`,
			int64(pool.ChainID),
			pool.Address,
			pool.Token0,
			pool.Token1,
			pool.Fee,
			pool.TickSpacing,
			int64(pool.FirstSeenBlock),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range pools {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// UpsertPositions inserts or updates replayed position results.
func (s *Store) UpsertPositions(ctx context.Context, positions []model.PositionRecord) error {
	if len(positions) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range positions {
		batch.Queue(`
			INSERT INTO pool_positions (
				chain_id, pool_address, token_id, owner, tick_lower, tick_upper,
				liquidity, holdings0, holdings1, fees_accrued0, fees_accrued1,
				collected0, collected1, pnl0, pnl1, active, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,now(),now())
			ON CONFLICT (chain_id, pool_address, token_id)
			DO UPDATE SET
				owner = EXCLUDED.owner,
				tick_lower = EXCLUDED.tick_lower,
				tick_upper = EXCLUDED.tick_upper,
				liquidity = EXCLUDED.liquidity,
				holdings0 = EXCLUDED.holdings0,
				holdings1 = EXCLUDED.holdings1,
				fees_accrued0 = EXCLUDED.fees_accrued0,
				fees_accrued1 = EXCLUDED.fees_accrued1,
				collected0 = EXCLUDED.collected0,
				collected1 = EXCLUDED.collected1,
				pnl0 = EXCLUDED.pnl0,
				pnl1 = EXCLUDED.pnl1,
				active = EXCLUDED.active,
				updated_at = now()
		`,
			int64(p.ChainID),
			p.PoolAddress,
			int64(p.TokenID),
			p.Owner,
			p.TickLower,
			p.TickUpper,
			p.Liquidity,
			p.Holdings0,
			p.Holdings1,
			p.FeesAccrued0,
			p.FeesAccrued1,
			p.Collected0,
			p.Collected1,
			p.PnL0,
			p.PnL1,
			p.Active,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range positions {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadReplayState returns the last fully processed block for a named replay.
func (s *Store) LoadReplayState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var block int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_block FROM replay_state WHERE name=$1`, name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(block), true, nil
}

// SaveReplayState upserts the last fully processed block for a named replay.
func (s *Store) SaveReplayState(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO replay_state (name, last_processed_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_block = EXCLUDED.last_processed_block, updated_at = now()
	`, name, int64(block))
	return err
}
