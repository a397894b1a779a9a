package storage

import (
	"context"

	"github.com/poiesic/cebingest/core"
)

// CheckpointRepository keeps the most recent checkpoint of every
// stage and category pair.
type CheckpointRepository interface {
	// SaveCheckpoint stores checkpoint, replacing any earlier one for the
	// same stage and category.
	SaveCheckpoint(ctx context.Context, checkpoint *core.CheckpointRecord) error

	// LoadCheckpoint returns the latest checkpoint for stage and category.
	// Returns nil, nil if no checkpoint exists.
	LoadCheckpoint(ctx context.Context, stage core.Stage, category string) (*core.CheckpointRecord, error)
}

// RunRepository records finished stage runs.
type RunRepository interface {
	// SaveRun stores the final statistics of a run together with its
	// failure listing. Saving a run with an existing RunID replaces it.
	SaveRun(ctx context.Context, stats *core.RunStatistics, failures []core.Failure) error

	// ListRuns returns the runs of a category ordered by start time, oldest first.
	ListRuns(ctx context.Context, category string) ([]*core.RunStatistics, error)

	// LoadFailures returns the failure listing of a run.
	// Returns ErrNotFound if the run is unknown.
	LoadFailures(ctx context.Context, runID string) ([]core.Failure, error)
}
