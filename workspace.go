// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cebingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/poiesic/cebingest/core"
	"github.com/poiesic/cebingest/pipeline"
	"github.com/poiesic/cebingest/report"
	"github.com/poiesic/cebingest/storage"
	"github.com/poiesic/cebingest/storage/badger"
)

// File names inside a category directory.
const (
	ChunksFile            = "chunks.jsonl"
	EmbeddingsFile        = "embeddings.jsonl"
	ProcessingLogFile     = "processing_log.json"
	EmbeddingLogFile      = "embedding_log.json"
	UploadLogFile         = "upload_log.json"
	UploadReportFile      = "upload_report.txt"
	FailedPDFsFile        = "failed_pdfs.txt"
	FailedEmbeddingsFile  = "failed_embeddings.txt"
	FailedUploadsFile     = "failed_uploads.txt"
	ledgerDir             = "ledger"
	defaultRecentRunCount = 5
)

// Workspace is the on-disk state of one category: the record stores,
// reports, checkpoints and the run ledger.
type Workspace struct {
	dir            string
	category       string
	backend        *badger.Backend
	checkpointRepo storage.CheckpointRepository
	runRepo        storage.RunRepository
	logger         *slog.Logger
}

// WorkspaceOption configures a Workspace.
type WorkspaceOption func(*workspaceOptions)

type workspaceOptions struct {
	inMemoryLedger bool
	logger         *slog.Logger
}

// WithInMemoryLedger keeps the run ledger in memory. Used by tests.
func WithInMemoryLedger() WorkspaceOption {
	return func(o *workspaceOptions) {
		o.inMemoryLedger = true
	}
}

// WithLogger sets the workspace logger.
func WithLogger(logger *slog.Logger) WorkspaceOption {
	return func(o *workspaceOptions) {
		o.logger = logger
	}
}

// OpenWorkspace opens (creating if needed) the directory <dataDir>/<category>
// and its run ledger.
func OpenWorkspace(dataDir, category string, opts ...WorkspaceOption) (*Workspace, error) {
	options := &workspaceOptions{}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	if err := core.ValidateCategory(category); err != nil {
		return nil, err
	}
	dir := filepath.Join(dataDir, category)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace %s: %w", dir, err)
	}

	ledgerPath := filepath.Join(dir, ledgerDir)
	if options.inMemoryLedger {
		ledgerPath = ""
	}
	backend, err := badger.OpenBackend(ledgerPath, options.inMemoryLedger)
	if err != nil {
		return nil, fmt.Errorf("open run ledger: %w", err)
	}

	return &Workspace{
		dir:            dir,
		category:       category,
		backend:        backend,
		checkpointRepo: badger.NewCheckpointRepository(backend),
		runRepo:        badger.NewRunRepository(backend),
		logger:         options.logger.With("component", "workspace", "category", category),
	}, nil
}

// Close closes the run ledger.
func (w *Workspace) Close() error {
	if err := w.backend.Close(); err != nil {
		w.logger.Error("error closing run ledger", "err", err)
		return err
	}
	return nil
}

// Dir returns the category directory.
func (w *Workspace) Dir() string {
	return w.dir
}

// Category returns the category name.
func (w *Workspace) Category() string {
	return w.category
}

// Path joins name onto the category directory.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, name)
}

// ChunksPath returns the chunk store path.
func (w *Workspace) ChunksPath() string {
	return w.Path(ChunksFile)
}

// EmbeddingsPath returns the embedding store path.
func (w *Workspace) EmbeddingsPath() string {
	return w.Path(EmbeddingsFile)
}

// StatisticsPath returns where the final statistics of stage are written.
func (w *Workspace) StatisticsPath(stage core.Stage) string {
	switch stage {
	case core.StageExtract:
		return w.Path(ProcessingLogFile)
	case core.StageEmbed:
		return w.Path(EmbeddingLogFile)
	default:
		return w.Path(UploadLogFile)
	}
}

// FailuresPath returns where the failure listing of stage is written.
func (w *Workspace) FailuresPath(stage core.Stage) string {
	switch stage {
	case core.StageExtract:
		return w.Path(FailedPDFsFile)
	case core.StageEmbed:
		return w.Path(FailedEmbeddingsFile)
	default:
		return w.Path(FailedUploadsFile)
	}
}

// RunRepository returns the ledger's run repository.
func (w *Workspace) RunRepository() storage.RunRepository {
	return w.runRepo
}

// CheckpointManager returns a manager writing checkpoints for stage into
// the category directory and the ledger.
func (w *Workspace) CheckpointManager(stage core.Stage, interval int) *pipeline.CheckpointManager {
	return pipeline.NewCheckpointManager(w.dir, stage, w.category, interval, w.checkpointRepo)
}

// Record persists the outcome of a stage run: the statistics log, the
// failure listing, the upload report for uploads and the ledger entry.
// Returns the files written.
func (w *Workspace) Record(ctx context.Context, result *pipeline.Result) ([]report.Output, error) {
	stats := &result.Stats
	if stats.Category != w.category {
		return nil, fmt.Errorf("result for category %q recorded in workspace %q", stats.Category, w.category)
	}

	statsPath := w.StatisticsPath(stats.Stage)
	if err := report.WriteStatistics(statsPath, stats); err != nil {
		return nil, fmt.Errorf("write statistics: %w", err)
	}
	outputs := []report.Output{{Label: "Statistics", Path: statsPath}}

	failuresPath := w.FailuresPath(stats.Stage)
	if err := report.WriteFailures(failuresPath, stats, result.Failures); err != nil {
		return outputs, fmt.Errorf("write failure listing: %w", err)
	}
	if len(result.Failures) > 0 {
		outputs = append(outputs, report.Output{Label: "Failures", Path: failuresPath})
	}

	if stats.Stage == core.StageUpload {
		reportPath := w.Path(UploadReportFile)
		if err := report.WriteUploadReport(reportPath, stats); err != nil {
			return outputs, fmt.Errorf("write upload report: %w", err)
		}
		outputs = append(outputs, report.Output{Label: "Report", Path: reportPath})
	}

	if err := w.runRepo.SaveRun(ctx, stats, result.Failures); err != nil {
		return outputs, fmt.Errorf("record run in ledger: %w", err)
	}
	return outputs, nil
}

// Runs returns the recorded runs of this category, oldest first.
func (w *Workspace) Runs(ctx context.Context) ([]*core.RunStatistics, error) {
	return w.runRepo.ListRuns(ctx, w.category)
}

// Status summarizes the state of the category's stores.
type Status struct {
	Category         string
	Dir              string
	Chunks           int
	Embeddings       int
	LatestCheckpoint *core.CheckpointRecord
	RecentRuns       []*core.RunStatistics
	// LastLogged holds the statistics log of each stage that has one, in
	// pipeline order.
	LastLogged []*core.RunStatistics
}

// Pending returns the number of chunks that have not been embedded yet.
func (s *Status) Pending() int {
	if s.Embeddings >= s.Chunks {
		return 0
	}
	return s.Chunks - s.Embeddings
}

// Status counts the records in both stores and collects the latest
// extraction checkpoint, the most recent runs and the statistics log of
// each stage.
func (w *Workspace) Status(ctx context.Context) (*Status, error) {
	chunks, err := storage.CountRecords(w.ChunksPath())
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}
	embeddings, err := storage.CountRecords(w.EmbeddingsPath())
	if err != nil {
		return nil, fmt.Errorf("count embeddings: %w", err)
	}

	checkpoint, err := w.CheckpointManager(core.StageExtract, 0).Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	runs, err := w.Runs(ctx)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	if len(runs) > defaultRecentRunCount {
		runs = runs[len(runs)-defaultRecentRunCount:]
	}

	var logged []*core.RunStatistics
	for _, stage := range []core.Stage{core.StageExtract, core.StageEmbed, core.StageUpload} {
		stats, err := report.ReadStatistics(w.StatisticsPath(stage))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("read %s statistics: %w", stage, err)
		}
		logged = append(logged, stats)
	}

	return &Status{
		Category:         w.category,
		Dir:              w.dir,
		Chunks:           chunks,
		Embeddings:       embeddings,
		LatestCheckpoint: checkpoint,
		RecentRuns:       runs,
		LastLogged:       logged,
	}, nil
}
