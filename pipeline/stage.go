package pipeline

import (
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/cebingest/core"
)

// Result is what a stage run returns: its statistics and the items it
// could not process.
type Result struct {
	Stats    core.RunStatistics
	Failures []core.Failure
}

func (r *Result) fail(item string, err error) {
	r.Stats.Failed++
	r.Failures = append(r.Failures, core.NewFailure(item, err))
}

// Option configures a stage.
type Option func(*stageOptions)

type stageOptions struct {
	logger          *slog.Logger
	progress        io.Writer
	clock           func() time.Time
	pricePerMillion float64
}

// WithLogger sets the stage logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *stageOptions) {
		o.logger = logger
	}
}

// WithProgress sets where the progress line is written. Nil disables it.
func WithProgress(w io.Writer) Option {
	return func(o *stageOptions) {
		o.progress = w
	}
}

// WithClock overrides the time source used for statistics and records.
func WithClock(clock func() time.Time) Option {
	return func(o *stageOptions) {
		o.clock = clock
	}
}

// WithPricePerMillionTokens sets the price used for the embedding cost estimate.
func WithPricePerMillionTokens(price float64) Option {
	return func(o *stageOptions) {
		o.pricePerMillion = price
	}
}

func applyOptions(stage core.Stage, category string, opts []Option) stageOptions {
	o := stageOptions{
		clock:           func() time.Time { return time.Now().UTC() },
		pricePerMillion: defaultPricePerMillion,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	o.logger = o.logger.With("component", "pipeline", "stage", stage, "category", category)
	return o
}

func newResult(stage core.Stage, category string, now time.Time) *Result {
	return &Result{
		Stats: core.RunStatistics{
			RunID:     uuid.NewString(),
			Stage:     stage,
			Category:  category,
			StartTime: now,
		},
	}
}
