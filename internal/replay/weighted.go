package replay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"poolSim/internal/model"
	"poolSim/internal/pool"
	"poolSim/internal/storage"
)

// WeightedRunner drives a weighted pool through a JSONL stream of swap
// requests and writes a state snapshot after every applied swap. Requests
// that fail validation are logged and skipped; the pool keeps its state
// from before the failed request.
type WeightedRunner struct {
	spec   model.PoolSpec
	sink   *storage.JSONLSink
	logger *zap.Logger
}

func NewWeightedRunner(spec model.PoolSpec, sink *storage.JSONLSink, logger *zap.Logger) *WeightedRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WeightedRunner{spec: spec, sink: sink, logger: logger}
}

// Run applies every request from the JSONL file at requestsPath in order.
func (r *WeightedRunner) Run(ctx context.Context, requestsPath string) error {
	if r.sink == nil {
		return fmt.Errorf("output sink is nil")
	}

	p, err := pool.NewWeighted(
		r.spec.Balances,
		r.spec.Weights,
		r.spec.FeeOr(pool.DefaultFee),
		r.spec.FactoryFeeOr(0),
	)
	if err != nil {
		return fmt.Errorf("build pool: %w", err)
	}

	file, err := os.Open(requestsPath)
	if err != nil {
		return fmt.Errorf("open requests: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var total, applied, failed, seq int
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

		var req model.SwapRequest
		if err := json.Unmarshal(line, &req); err != nil {
			failed++
			r.logger.Warn("decode swap request", zap.Error(err), zap.Int("line", total))
			continue
		}

		amountIn, amountOut, err := applyRequest(p, req)
		if err != nil {
			failed++
			r.logger.Warn("swap rejected",
				zap.Error(err),
				zap.Int("token_in", req.TokenIn),
				zap.Int("token_out", req.TokenOut),
				zap.Float64("amount_in", req.AmountIn),
				zap.Float64("amount_out", req.AmountOut),
			)
			continue
		}

		seq++
		invariant, err := p.Invariant()
		if err != nil {
			return fmt.Errorf("invariant after swap %d: %w", seq, err)
		}
		record := model.PoolStateRecord{
			Pool:         r.spec.Name,
			Seq:          seq,
			TokenIn:      req.TokenIn,
			TokenOut:     req.TokenOut,
			AmountIn:     amountIn,
			AmountOut:    amountOut,
			Balances:     p.Balances(),
			ProtocolFees: p.ProtocolFees(),
			Invariant:    invariant,
		}
		if err := r.sink.Append(record); err != nil {
			return fmt.Errorf("store state record: %w", err)
		}
		applied++
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan requests: %w", err)
	}

	r.logger.Info("simulate complete",
		zap.Int("total", total),
		zap.Int("applied", applied),
		zap.Int("failed", failed),
	)

	return nil
}

func applyRequest(p *pool.Weighted, req model.SwapRequest) (amountIn, amountOut float64, err error) {
	switch {
	case req.AmountIn > 0 && req.AmountOut > 0:
		return 0, 0, fmt.Errorf("request sets both amount_in and amount_out")
	case req.AmountIn > 0:
		out, err := p.SwapGivenIn(req.TokenIn, req.TokenOut, req.AmountIn)
		if err != nil {
			return 0, 0, err
		}
		return req.AmountIn, out, nil
	case req.AmountOut > 0:
		in, err := p.SwapGivenOut(req.TokenIn, req.TokenOut, req.AmountOut)
		if err != nil {
			return 0, 0, err
		}
		return in, req.AmountOut, nil
	default:
		return 0, 0, fmt.Errorf("request sets neither amount_in nor amount_out")
	}
}
