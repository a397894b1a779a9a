package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/cebingest/ai"
	"github.com/poiesic/cebingest/core"
	"github.com/poiesic/cebingest/storage"
)

// defaultPricePerMillion is the text-embedding-3-small list price in dollars.
const defaultPricePerMillion = 0.02

// EmbedStage augments the chunk store with vectors, writing the embedding
// store. The embedding store's record count is the resume point.
type EmbedStage struct {
	category       string
	chunksPath     string
	embeddingsPath string
	embedder       ai.Embedder
	config         *Config
	opts           stageOptions
}

// embedOutcome is the result of embedding one chunk: a vector or the
// reason there is none.
type embedOutcome struct {
	chunk  core.ChunkRecord
	vector []float32
	err    error
}

// NewEmbedStage creates an embedding stage. A nil config uses DefaultConfig.
func NewEmbedStage(category, chunksPath, embeddingsPath string, embedder ai.Embedder, config *Config, opts ...Option) (*EmbedStage, error) {
	if err := core.ValidateCategory(category); err != nil {
		return nil, err
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	config, err := resolveConfig(config)
	if err != nil {
		return nil, err
	}

	return &EmbedStage{
		category:       category,
		chunksPath:     chunksPath,
		embeddingsPath: embeddingsPath,
		embedder:       embedder,
		config:         config,
		opts:           applyOptions(core.StageEmbed, category, opts),
	}, nil
}

// Run embeds every chunk not yet present in the embedding store.
//
// Each batch is one service call. When the call fails or its result does
// not line up with the batch, every chunk of the batch is retried on its
// own so one bad input cannot sink the others. Successful records are
// appended as they are produced and synced at the end of every batch.
func (s *EmbedStage) Run(ctx context.Context) (*Result, error) {
	chunks, err := storage.ReadAll[core.ChunkRecord](s.chunksPath)
	if err != nil {
		if errors.Is(err, storage.ErrStoreNotFound) {
			return nil, fmt.Errorf("%w: %s (run extract first)", ErrUpstreamMissing, s.chunksPath)
		}
		return nil, err
	}

	offset, err := resumeOffset(chunks, s.embeddingsPath)
	if err != nil {
		return nil, err
	}

	mode := storage.ModeTruncate
	if offset > 0 {
		mode = storage.ModeAppend
	}
	out, err := storage.OpenLog[core.EmbeddingRecord](s.embeddingsPath, mode)
	if err != nil {
		return nil, err
	}
	defer out.Close()

	logger := s.opts.logger
	res := newResult(core.StageEmbed, s.category, s.opts.clock())
	res.Stats.TotalItems = len(chunks)
	res.Stats.TotalChunks = len(chunks)
	res.Stats.Skipped = offset
	res.Stats.Model = s.embedder.Model()

	if offset > 0 {
		logger.Info("resuming embedding", "existing", offset, "remaining", len(chunks)-offset)
	}
	logger.Info("starting embedding", "chunks", len(chunks), "model", res.Stats.Model, "batch_size", s.config.BatchSize)

	tracker := NewProgressTracker(s.opts.progress, len(chunks), s.config.ReportInterval, "chunks")
	tracker.Start(offset)

	emit := func(o embedOutcome) error {
		if o.err != nil {
			logger.Error("failed to embed chunk", "chunk_id", o.chunk.ChunkID, "err", o.err)
			res.fail(o.chunk.ChunkID, o.err)
			return nil
		}
		if err := out.Append(core.NewEmbeddingRecord(o.chunk, o.vector, s.embedder.Model())); err != nil {
			return err
		}
		res.Stats.Successful++
		return nil
	}

	pending := chunks[offset:]
	var runErr error
	for start, batch := range Batches(pending, s.config.BatchSize) {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		tokens, err := s.embedBatch(ctx, batch, emit)
		res.Stats.TotalTokens += tokens
		if syncErr := out.Sync(); syncErr != nil && err == nil {
			err = syncErr
		}
		if err != nil {
			runErr = err
			break
		}
		tracker.Update(offset + start + len(batch))

		if start+len(batch) < len(pending) {
			if err := sleep(ctx, s.config.BatchDelay); err != nil {
				runErr = err
				break
			}
		}
	}
	tracker.Finish()

	res.Stats.EstimatedCost = ai.EstimateCost(res.Stats.TotalTokens, s.opts.pricePerMillion)
	res.Stats.Finish(s.opts.clock())

	logger.Info("embedding finished",
		"successful", res.Stats.Successful, "failed", res.Stats.Failed,
		"tokens", res.Stats.TotalTokens, "estimated_cost", res.Stats.EstimatedCost)
	return res, runErr
}

// embedBatch embeds one batch and passes every outcome to emit in input
// order. Returns the tokens consumed. Only emit errors and context
// cancellation are returned.
func (s *EmbedStage) embedBatch(ctx context.Context, batch []core.ChunkRecord, emit func(embedOutcome) error) (int, error) {
	texts := make([]string, len(batch))
	for i := range batch {
		texts[i] = batch[i].Text
	}

	tokens := 0
	result, err := s.embedder.EmbedTexts(ctx, texts)
	if err == nil {
		tokens = result.TotalTokens
		err = ai.CheckEmbeddings(result, len(batch))
	}
	if err == nil {
		for i := range batch {
			if err := emit(embedOutcome{chunk: batch[i], vector: result.Vectors[i]}); err != nil {
				return tokens, err
			}
		}
		return tokens, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return tokens, ctxErr
	}

	s.opts.logger.Warn("batch embedding failed, processing individually",
		"first_chunk", batch[0].ChunkID, "batch_size", len(batch), "err", err)

	policy := s.config.RetryPolicy()
	for i := range batch {
		vector, used, err := s.embedOne(ctx, policy, batch[i].Text)
		tokens += used
		if ctxErr := ctx.Err(); ctxErr != nil {
			return tokens, ctxErr
		}
		if err := emit(embedOutcome{chunk: batch[i], vector: vector, err: err}); err != nil {
			return tokens, err
		}
	}
	return tokens, nil
}

// embedOne embeds a single text under the retry policy.
func (s *EmbedStage) embedOne(ctx context.Context, policy RetryPolicy, text string) ([]float32, int, error) {
	result, err := Retry(ctx, policy, func(ctx context.Context) (*ai.Embeddings, error) {
		result, err := s.embedder.EmbedTexts(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		if err := ai.CheckEmbeddings(result, 1); err != nil {
			return nil, err
		}
		return result, nil
	})
	if err != nil {
		return nil, 0, err
	}
	return result.Vectors[0], result.TotalTokens, nil
}

// resumeOffset returns the index of the first chunk after the last one in
// the embedding store. Without earlier failures this equals the store's
// record count. Chunks that failed in earlier runs leave gaps that make the
// count smaller; those stay in the failure listing and are not revisited.
func resumeOffset(chunks []core.ChunkRecord, embeddingsPath string) (int, error) {
	count, err := storage.CountRecords(embeddingsPath)
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, nil
	}
	if count > len(chunks) {
		return 0, fmt.Errorf("%w: %d embeddings for %d chunks", ErrStoreMismatch, count, len(chunks))
	}

	last, ok, err := storage.LastRecord[core.EmbeddingRecord](embeddingsPath)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: no readable last record", ErrStoreMismatch)
	}

	pos := -1
	for i := count - 1; i < len(chunks); i++ {
		if chunks[i].ChunkID == last.ChunkID {
			pos = i
			break
		}
	}
	if pos < 0 {
		return 0, fmt.Errorf("%w: last embedding %q not found at or after chunk %d",
			ErrStoreMismatch, last.ChunkID, count)
	}
	want := chunks[pos]
	if last.ContentHash != "" && want.ContentHash != "" && last.ContentHash != want.ContentHash {
		return 0, fmt.Errorf("%w: content of %s changed since it was embedded", ErrStoreMismatch, want.ChunkID)
	}
	if gaps := pos + 1 - count; gaps > 0 {
		slog.Warn("embedding store has gaps from earlier failures", "missing", gaps, "resume_at", pos+1)
	}
	return pos + 1, nil
}
