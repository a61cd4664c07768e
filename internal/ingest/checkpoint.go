package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Checkpoint records ingest progress for one pool so a later run can resume
// after the last fully processed block instead of refetching history.
type Checkpoint struct {
	Pool               string    `json:"pool"`
	LastProcessedBlock uint64    `json:"last_processed_block"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// CheckpointStore persists the checkpoint of a single pool to a JSON file.
// Loading a file written for a different pool fails: resuming a mixed
// checkpoint would skip that pool's history.
type CheckpointStore struct {
	path    string
	pool    string
	enabled bool
}

func NewCheckpointStore(path, pool string, enabled bool) *CheckpointStore {
	return &CheckpointStore{path: path, pool: pool, enabled: enabled}
}

func (c *CheckpointStore) Load() (Checkpoint, bool, error) {
	if !c.enabled || c.path == "" {
		return Checkpoint{}, false, nil
	}

	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return Checkpoint{}, false, nil
	}
	if err != nil {
		return Checkpoint{}, false, fmt.Errorf("read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, false, fmt.Errorf("parse checkpoint: %w", err)
	}
	if !strings.EqualFold(cp.Pool, c.pool) {
		return Checkpoint{}, false, fmt.Errorf("checkpoint %s belongs to pool %s, not %s", c.path, cp.Pool, c.pool)
	}

	return cp, true, nil
}

func (c *CheckpointStore) Save(lastProcessed uint64) error {
	if !c.enabled || c.path == "" {
		return nil
	}

	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}

	data, err := json.Marshal(Checkpoint{
		Pool:               c.pool,
		LastProcessedBlock: lastProcessed,
		UpdatedAt:          time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint tmp: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}
