package ingest

import (
	"path/filepath"
	"testing"
)

const testPool = "0x36696169C63e42cd08ce11f5deeBbCeBae652050"

func TestCheckpointRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "checkpoint.json")
	store := NewCheckpointStore(path, testPool, true)

	if _, ok, err := store.Load(); err != nil || ok {
		t.Fatalf("expected no checkpoint, got ok=%v err=%v", ok, err)
	}

	if err := store.Save(12345); err != nil {
		t.Fatalf("save checkpoint: %v", err)
	}

	cp, ok, err := store.Load()
	if err != nil {
		t.Fatalf("load checkpoint: %v", err)
	}
	if !ok {
		t.Fatalf("expected checkpoint")
	}
	if cp.LastProcessedBlock != 12345 {
		t.Fatalf("last processed mismatch: %d", cp.LastProcessedBlock)
	}
	if cp.Pool != testPool {
		t.Fatalf("pool mismatch: %s", cp.Pool)
	}
}

func TestCheckpointRejectsOtherPool(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	if err := NewCheckpointStore(path, testPool, true).Save(42); err != nil {
		t.Fatalf("save checkpoint: %v", err)
	}

	other := NewCheckpointStore(path, "0x0000000000000000000000000000000000000001", true)
	if _, _, err := other.Load(); err == nil {
		t.Fatalf("expected error loading another pool's checkpoint")
	}
}

func TestCheckpointPoolCaseInsensitive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	if err := NewCheckpointStore(path, testPool, true).Save(7); err != nil {
		t.Fatalf("save checkpoint: %v", err)
	}

	lower := NewCheckpointStore(path, "0x36696169c63e42cd08ce11f5deebbcebae652050", true)
	if _, ok, err := lower.Load(); err != nil || !ok {
		t.Fatalf("address casing must not split checkpoints, got ok=%v err=%v", ok, err)
	}
}

func TestCheckpointDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	store := NewCheckpointStore(path, testPool, false)

	if err := store.Save(99); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, ok, err := store.Load(); err != nil || ok {
		t.Fatalf("disabled store must stay empty, got ok=%v err=%v", ok, err)
	}
}
