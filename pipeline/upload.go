package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/poiesic/cebingest/core"
	"github.com/poiesic/cebingest/storage"
	"github.com/poiesic/cebingest/vectorstore"
)

// MaxMetadataTextChars caps the chunk text stored as vector metadata.
const MaxMetadataTextChars = 10000

// UploadStage pushes the embedding store into the category's vector-store
// namespace.
type UploadStage struct {
	category       string
	embeddingsPath string
	store          vectorstore.Store
	config         *Config
	opts           stageOptions
}

// NewUploadStage creates an upload stage. A nil config uses DefaultConfig.
func NewUploadStage(category, embeddingsPath string, store vectorstore.Store, config *Config, opts ...Option) (*UploadStage, error) {
	if err := core.ValidateCategory(category); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("%w: vector store is required", ErrInvalidConfig)
	}
	config, err := resolveConfig(config)
	if err != nil {
		return nil, err
	}

	return &UploadStage{
		category:       category,
		embeddingsPath: embeddingsPath,
		store:          store,
		config:         config,
		opts:           applyOptions(core.StageUpload, category, opts),
	}, nil
}

// NewUploadItem converts an embedding record into the vector-store shape.
func NewUploadItem(record core.EmbeddingRecord, namespace string) vectorstore.UploadItem {
	return vectorstore.UploadItem{
		ID:     record.ChunkID,
		Vector: record.Embedding,
		Metadata: map[string]any{
			"source_file":  record.SourceFile,
			"category":     record.Category,
			"title":        record.Title,
			"section":      record.Section,
			"page_number":  record.PageNumber,
			"chunk_index":  record.ChunkIndex,
			"text":         truncateRunes(record.Text, MaxMetadataTextChars),
			"ceb_citation": record.Citation,
			"token_count":  record.TokenCount,
		},
		Namespace: namespace,
	}
}

func truncateRunes(s string, limit int) string {
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}

// Run upserts every embedding record, always starting from the first.
// Upserts replace by ID, so re-running after a partial failure is safe.
//
// A batch succeeds or fails as a whole: a failed upsert, after retries,
// counts every record of the batch as failed. There is no per-record
// fallback, unlike EmbedStage; the store is assumed to reject a batch
// atomically.
func (s *UploadStage) Run(ctx context.Context) (*Result, error) {
	records, err := storage.ReadAll[core.EmbeddingRecord](s.embeddingsPath)
	if err != nil {
		if errors.Is(err, storage.ErrStoreNotFound) {
			return nil, fmt.Errorf("%w: %s (run embed first)", ErrUpstreamMissing, s.embeddingsPath)
		}
		return nil, err
	}

	logger := s.opts.logger
	namespace := core.Namespace(s.category)
	res := newResult(core.StageUpload, s.category, s.opts.clock())
	res.Stats.TotalItems = len(records)
	res.Stats.Namespace = namespace

	logger.Info("starting upload", "records", len(records), "namespace", namespace, "batch_size", s.config.BatchSize)

	tracker := NewProgressTracker(s.opts.progress, len(records), s.config.ReportInterval, "vectors")
	tracker.Start(0)

	policy := s.config.RetryPolicy()
	var runErr error
	for start, batch := range Batches(records, s.config.BatchSize) {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		items := make([]vectorstore.UploadItem, 0, len(batch))
		for i := range batch {
			if err := core.ValidateEmbeddingRecord(&batch[i]); err != nil {
				logger.Error("skipping invalid embedding record", "chunk_id", batch[i].ChunkID, "err", err)
				res.fail(batch[i].ChunkID, err)
				continue
			}
			items = append(items, NewUploadItem(batch[i], namespace))
		}

		if len(items) > 0 {
			err := policy.Do(ctx, func(ctx context.Context) error {
				return s.store.Upsert(ctx, namespace, items)
			})
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					runErr = ctxErr
					break
				}
				logger.Error("failed to upload batch", "batch", start/s.config.BatchSize, "size", len(items), "err", err)
				for _, item := range items {
					res.fail(item.ID, err)
				}
			} else {
				res.Stats.Successful += len(items)
			}
		}
		tracker.Update(start + len(batch))

		if start+len(batch) < len(records) {
			if err := sleep(ctx, s.config.BatchDelay); err != nil {
				runErr = err
				break
			}
		}
	}
	tracker.Finish()
	res.Stats.Finish(s.opts.clock())

	logger.Info("upload finished", "successful", res.Stats.Successful, "failed", res.Stats.Failed, "namespace", namespace)
	return res, runErr
}
