package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/cebingest/core"
	"github.com/poiesic/cebingest/storage"
)

// RunRepository implements storage.RunRepository for BadgerDB.
//
// Runs are keyed by category and start time so ListRuns is a single
// prefix scan. A run ID index points at the run key for replacement
// and failure lookups.
type RunRepository struct {
	backend *Backend
}

var _ storage.RunRepository = (*RunRepository)(nil)

// NewRunRepository creates a new RunRepository.
func NewRunRepository(backend *Backend) *RunRepository {
	return &RunRepository{backend: backend}
}

// SaveRun stores stats and failures under stats.RunID.
func (r *RunRepository) SaveRun(ctx context.Context, stats *core.RunStatistics, failures []core.Failure) error {
	if stats.RunID == "" {
		return fmt.Errorf("save run: empty run id")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		idKey := makeRunIDKey(stats.RunID)
		runKey := makeRunKey(stats.Category, stats.StartTime, stats.RunID)

		// Drop the previous entry if the run was saved under another start time
		item, err := tx.Get(idKey)
		switch {
		case err == nil:
			previous, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if string(previous) != string(runKey) {
				if err := tx.Delete(previous); err != nil {
					return err
				}
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		if err := tx.Set(runKey, storage.MarshalRunStatistics(stats)); err != nil {
			return err
		}
		if err := tx.Set(idKey, runKey); err != nil {
			return err
		}
		return tx.Set(makeRunFailureKey(stats.RunID), storage.MarshalFailures(failures))
	}, true)
}

// ListRuns returns the runs of category, oldest first.
func (r *RunRepository) ListRuns(ctx context.Context, category string) ([]*core.RunStatistics, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var runs []*core.RunStatistics
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, makePartialRunKey(category), func(_, val []byte) error {
			stats, err := storage.UnmarshalRunStatistics(val)
			if err != nil {
				return err
			}
			runs = append(runs, stats)
			return nil
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return runs, nil
}

// LoadFailures returns the failure listing saved with runID.
func (r *RunRepository) LoadFailures(ctx context.Context, runID string) ([]core.Failure, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var failures []core.Failure
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeRunFailureKey(runID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: run %s", storage.ErrNotFound, runID)
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var unmarshalErr error
			failures, unmarshalErr = storage.UnmarshalFailures(val)
			return unmarshalErr
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return failures, nil
}
