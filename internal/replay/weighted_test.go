package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"poolSim/internal/model"
	"poolSim/internal/storage"
)

func writeJSONL(t *testing.T, path string, records ...interface{}) {
	t.Helper()
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer file.Close()
	for _, record := range records {
		line, err := json.Marshal(record)
		if err != nil {
			t.Fatalf("marshal record: %v", err)
		}
		if _, err := file.Write(append(line, '\n')); err != nil {
			t.Fatalf("write record: %v", err)
		}
	}
}

func readStateRecords(t *testing.T, path string) []model.PoolStateRecord {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer file.Close()

	var out []model.PoolStateRecord
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var record model.PoolStateRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			t.Fatalf("parse output: %v", err)
		}
		out = append(out, record)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan output: %v", err)
	}
	return out
}

func TestWeightedRunnerAppliesRequestsInOrder(t *testing.T) {
	dir := t.TempDir()
	requestsPath := filepath.Join(dir, "requests.jsonl")
	outputPath := filepath.Join(dir, "states.jsonl")

	writeJSONL(t, requestsPath,
		model.SwapRequest{TokenIn: 0, TokenOut: 1, AmountIn: 100},
		model.SwapRequest{TokenIn: 5, TokenOut: 1, AmountIn: 100},
		model.SwapRequest{TokenIn: 1, TokenOut: 0, AmountOut: 50},
	)

	zero := 0.0
	spec := model.PoolSpec{
		Name:       "5050",
		Balances:   []float64{1000, 1000},
		Weights:    []float64{0.5, 0.5},
		Fee:        &zero,
		FactoryFee: &zero,
	}

	runner := NewWeightedRunner(spec, storage.NewJSONLSink(outputPath), nil)
	if err := runner.Run(context.Background(), requestsPath); err != nil {
		t.Fatalf("run: %v", err)
	}

	states := readStateRecords(t, outputPath)
	if len(states) != 2 {
		t.Fatalf("expected 2 applied swaps, got %d", len(states))
	}
	if states[0].Seq != 1 || states[1].Seq != 2 {
		t.Fatalf("sequence mismatch: %d, %d", states[0].Seq, states[1].Seq)
	}
	if states[0].Pool != "5050" {
		t.Fatalf("pool name mismatch: %s", states[0].Pool)
	}

	// Fee-free swaps preserve the invariant.
	for _, state := range states {
		if math.Abs(state.Invariant-1000) > 1e-9 {
			t.Fatalf("invariant drifted: %v", state.Invariant)
		}
	}

	// The rejected request must not have moved the balances between swaps.
	first := states[0]
	if math.Abs(first.Balances[0]-1100) > 1e-9 {
		t.Fatalf("balance after first swap: %v", first.Balances[0])
	}
}

func TestWeightedRunnerRejectsBadSpec(t *testing.T) {
	dir := t.TempDir()
	requestsPath := filepath.Join(dir, "requests.jsonl")
	writeJSONL(t, requestsPath, model.SwapRequest{TokenIn: 0, TokenOut: 1, AmountIn: 1})

	spec := model.PoolSpec{
		Balances: []float64{1000, 1000},
		Weights:  []float64{0.6, 0.6},
	}

	runner := NewWeightedRunner(spec, storage.NewJSONLSink(filepath.Join(dir, "out.jsonl")), nil)
	if err := runner.Run(context.Background(), requestsPath); err == nil {
		t.Fatalf("expected error for invalid weights")
	}
}
