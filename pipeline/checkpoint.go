package pipeline

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/poiesic/cebingest/core"
	"github.com/poiesic/cebingest/storage"
)

const (
	checkpointFilePrefix = "checkpoint_"
	checkpointTimeLayout = "20060102_150405"
)

// CheckpointManager writes periodic progress snapshots for one stage and
// category. Every checkpoint is a standalone JSON file in dir; when a
// repository is set the latest one is also kept in the run ledger.
//
// Checkpoints are advisory. Resuming never depends on their contents.
type CheckpointManager struct {
	dir      string
	stage    core.Stage
	category string
	interval int
	repo     storage.CheckpointRepository
	now      func() time.Time
	logger   *slog.Logger
}

// NewCheckpointManager creates a manager that saves every interval items.
// interval 0 disables periodic checkpoints. repo may be nil.
func NewCheckpointManager(dir string, stage core.Stage, category string, interval int, repo storage.CheckpointRepository) *CheckpointManager {
	return &CheckpointManager{
		dir:      dir,
		stage:    stage,
		category: category,
		interval: interval,
		repo:     repo,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   slog.Default().With("component", "checkpoint", "stage", stage, "category", category),
	}
}

// Dir returns the checkpoint directory.
func (m *CheckpointManager) Dir() string {
	return m.dir
}

// Due reports whether a checkpoint should be saved after done items.
func (m *CheckpointManager) Due(done int) bool {
	return m.interval > 0 && done > 0 && done%m.interval == 0
}

// Save writes a checkpoint recording processedCount and a snapshot of stats.
// Returns the path of the checkpoint file.
func (m *CheckpointManager) Save(ctx context.Context, processedCount int, stats core.RunStatistics) (string, error) {
	checkpoint := &core.CheckpointRecord{
		Stage:          m.stage,
		Category:       m.category,
		ProcessedCount: processedCount,
		Stats:          stats,
		Timestamp:      m.now(),
	}

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return "", fmt.Errorf("create checkpoint directory: %w", err)
	}
	name := fmt.Sprintf("%s%s_%d.json", checkpointFilePrefix, checkpoint.Timestamp.Format(checkpointTimeLayout), processedCount)
	path := filepath.Join(m.dir, name)
	if err := writeJSONAtomic(path, checkpoint); err != nil {
		return "", err
	}

	if m.repo != nil {
		if err := m.repo.SaveCheckpoint(ctx, checkpoint); err != nil {
			return path, fmt.Errorf("record checkpoint in ledger: %w", err)
		}
	}

	m.logger.Info("checkpoint saved", "processed", processedCount, "path", path)
	return path, nil
}

// Latest returns the newest checkpoint of this stage and category, looking
// at checkpoint files first and the ledger second. Returns nil, nil if
// none exists.
func (m *CheckpointManager) Latest(ctx context.Context) (*core.CheckpointRecord, error) {
	records, err := readCheckpoints(m.dir)
	if err != nil {
		return nil, err
	}
	records = slices.DeleteFunc(records, func(r *core.CheckpointRecord) bool {
		return r.Stage != m.stage || r.Category != m.category
	})
	if latest := newest(records); latest != nil {
		return latest, nil
	}
	if m.repo == nil {
		return nil, nil
	}
	return m.repo.LoadCheckpoint(ctx, m.stage, m.category)
}

// LatestCheckpoint returns the newest checkpoint file in dir, or nil if
// there is none.
func LatestCheckpoint(dir string) (*core.CheckpointRecord, error) {
	records, err := readCheckpoints(dir)
	if err != nil {
		return nil, err
	}
	return newest(records), nil
}

func readCheckpoints(dir string) ([]*core.CheckpointRecord, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read checkpoint directory: %w", err)
	}

	var records []*core.CheckpointRecord
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, checkpointFilePrefix) || filepath.Ext(name) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read checkpoint %s: %w", name, err)
		}
		var record core.CheckpointRecord
		if err := json.Unmarshal(data, &record); err != nil {
			slog.Warn("skipping unreadable checkpoint", "file", name, "err", err)
			continue
		}
		records = append(records, &record)
	}
	return records, nil
}

// newest orders by timestamp, then processed count.
func newest(records []*core.CheckpointRecord) *core.CheckpointRecord {
	if len(records) == 0 {
		return nil
	}
	return slices.MaxFunc(records, func(a, b *core.CheckpointRecord) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.ProcessedCount, b.ProcessedCount)
	})
}

// writeJSONAtomic writes v as indented JSON to a temporary file in the
// target directory and renames it into place.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
