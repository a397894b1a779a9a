package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/poiesic/cebingest/ai"
	"github.com/poiesic/cebingest/ai/mock"
	"github.com/poiesic/cebingest/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type embedFixture struct {
	chunks         []core.ChunkRecord
	chunksPath     string
	embeddingsPath string
	embedder       *mock.MockEmbedder
}

func newEmbedFixture(t *testing.T, n int) *embedFixture {
	t.Helper()
	dir := t.TempDir()
	f := &embedFixture{
		chunks:         makeChunks(n),
		chunksPath:     filepath.Join(dir, "chunks.jsonl"),
		embeddingsPath: filepath.Join(dir, "embeddings.jsonl"),
		embedder:       mock.NewMockEmbedder(),
	}
	writeRecords(t, f.chunksPath, f.chunks)
	return f
}

func (f *embedFixture) stage(t *testing.T, opts ...Option) *EmbedStage {
	t.Helper()
	stage, err := NewEmbedStage(testCategory, f.chunksPath, f.embeddingsPath, f.embedder, testConfig(), opts...)
	require.NoError(t, err)
	return stage
}

func (f *embedFixture) embedded(t *testing.T, chunks []core.ChunkRecord) []core.EmbeddingRecord {
	t.Helper()
	records := make([]core.EmbeddingRecord, len(chunks))
	for i, c := range chunks {
		records[i] = core.NewEmbeddingRecord(c, mock.DeterministicVector(c.Text, mock.DefaultDimensions), f.embedder.Model())
	}
	return records
}

func embeddingIDs(records []core.EmbeddingRecord) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ChunkID
	}
	return ids
}

func TestEmbedStage_AllChunks(t *testing.T) {
	f := newEmbedFixture(t, 25)

	res, err := f.stage(t).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 25, res.Stats.TotalItems)
	assert.Equal(t, 25, res.Stats.Successful)
	assert.Zero(t, res.Stats.Failed)
	assert.Zero(t, res.Stats.Skipped)
	assert.Equal(t, "mock-embedding", res.Stats.Model)
	assert.Equal(t, 3, f.embedder.CallCount(), "batches of 10, 10 and 5")

	wantTokens := 0
	for _, c := range f.chunks {
		wantTokens += ai.EstimateTokens(c.Text)
	}
	assert.Equal(t, wantTokens, res.Stats.TotalTokens)
	assert.InDelta(t, float64(wantTokens)/1e6*0.02, res.Stats.EstimatedCost, 1e-12)

	records := readRecords[core.EmbeddingRecord](t, f.embeddingsPath)
	assert.Equal(t, f.embedded(t, f.chunks), records)
}

func TestEmbedStage_CostUsesConfiguredPrice(t *testing.T) {
	f := newEmbedFixture(t, 3)
	f.embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) (*ai.Embeddings, error) {
		res := mock.DeterministicEmbeddings(texts, 4)
		res.TotalTokens = 500_000
		return res, nil
	}

	res, err := f.stage(t, WithPricePerMillionTokens(0.13)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 500_000, res.Stats.TotalTokens)
	assert.InDelta(t, 0.065, res.Stats.EstimatedCost, 1e-12)
}

func TestEmbedStage_Resume(t *testing.T) {
	f := newEmbedFixture(t, 25)
	writeRecords(t, f.embeddingsPath, f.embedded(t, f.chunks[:12]))

	res, err := f.stage(t).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, res.Stats.Skipped)
	assert.Equal(t, 13, res.Stats.Successful)

	var sent []string
	for _, call := range f.embedder.Calls() {
		sent = append(sent, call...)
	}
	require.Len(t, sent, 13)
	assert.Equal(t, f.chunks[12].Text, sent[0], "embedding resumes at the first missing chunk")

	records := readRecords[core.EmbeddingRecord](t, f.embeddingsPath)
	assert.Equal(t, embeddingIDs(f.embedded(t, f.chunks)), embeddingIDs(records))
}

func TestEmbedStage_ResumeRepairsTornTail(t *testing.T) {
	f := newEmbedFixture(t, 5)
	writeRecords(t, f.embeddingsPath, f.embedded(t, f.chunks[:2]))
	appendRaw(t, f.embeddingsPath, `{"chunk_id":"family_law_guide`)

	res, err := f.stage(t).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Stats.Skipped)

	records := readRecords[core.EmbeddingRecord](t, f.embeddingsPath)
	assert.Equal(t, embeddingIDs(f.embedded(t, f.chunks)), embeddingIDs(records))
}

func TestEmbedStage_ResumeAfterEarlierFailures(t *testing.T) {
	f := newEmbedFixture(t, 6)
	// chunk 2 failed in an earlier run
	existing := f.embedded(t, []core.ChunkRecord{f.chunks[0], f.chunks[1], f.chunks[3]})
	writeRecords(t, f.embeddingsPath, existing)

	res, err := f.stage(t).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, res.Stats.Skipped)
	assert.Equal(t, 2, res.Stats.Successful)

	records := readRecords[core.EmbeddingRecord](t, f.embeddingsPath)
	assert.Len(t, records, 5)
}

func TestEmbedStage_StoreMismatch(t *testing.T) {
	t.Run("unknown last record", func(t *testing.T) {
		f := newEmbedFixture(t, 5)
		other := makeChunks(2)
		other[1].ChunkID = "family_law_other_0001"
		writeRecords(t, f.embeddingsPath, f.embedded(t, other))

		_, err := f.stage(t).Run(context.Background())
		assert.ErrorIs(t, err, ErrStoreMismatch)
		assert.Zero(t, f.embedder.CallCount())
	})

	t.Run("more embeddings than chunks", func(t *testing.T) {
		f := newEmbedFixture(t, 2)
		writeRecords(t, f.embeddingsPath, f.embedded(t, makeChunks(3)))

		_, err := f.stage(t).Run(context.Background())
		assert.ErrorIs(t, err, ErrStoreMismatch)
	})

	t.Run("changed content", func(t *testing.T) {
		f := newEmbedFixture(t, 4)
		stale := f.embedded(t, f.chunks[:2])
		stale[1].ContentHash = core.ContentHash("old text")
		writeRecords(t, f.embeddingsPath, stale)

		_, err := f.stage(t).Run(context.Background())
		assert.ErrorIs(t, err, ErrStoreMismatch)
	})
}

func TestEmbedStage_UpstreamMissing(t *testing.T) {
	stage, err := NewEmbedStage(testCategory, filepath.Join(t.TempDir(), "chunks.jsonl"),
		filepath.Join(t.TempDir(), "embeddings.jsonl"), mock.NewMockEmbedder(), testConfig())
	require.NoError(t, err)

	_, err = stage.Run(context.Background())
	assert.ErrorIs(t, err, ErrUpstreamMissing)
}

func TestEmbedStage_FailureIsolation(t *testing.T) {
	f := newEmbedFixture(t, 10)
	poisoned := f.chunks[4]
	f.chunks[4].Text = "POISON " + poisoned.Text
	writeRecords(t, f.chunksPath, f.chunks)

	f.embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) (*ai.Embeddings, error) {
		for _, text := range texts {
			if strings.HasPrefix(text, "POISON") {
				return nil, core.Permanent(errors.New("invalid input"))
			}
		}
		return mock.DeterministicEmbeddings(texts, mock.DefaultDimensions), nil
	}

	res, err := f.stage(t).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, res.Stats.Successful)
	assert.Equal(t, 1, res.Stats.Failed)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, f.chunks[4].ChunkID, res.Failures[0].Item)
	assert.Contains(t, res.Failures[0].Error, "invalid input")

	// one batch call, then one call per item; permanent errors are not retried
	assert.Equal(t, 11, f.embedder.CallCount())

	records := readRecords[core.EmbeddingRecord](t, f.embeddingsPath)
	require.Len(t, records, 9)
	for _, r := range records {
		assert.NotEqual(t, f.chunks[4].ChunkID, r.ChunkID)
		assert.NotEmpty(t, r.Embedding)
	}
}

func TestEmbedStage_TruncatedResultFallsBack(t *testing.T) {
	f := newEmbedFixture(t, 5)
	f.embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) (*ai.Embeddings, error) {
		res := mock.DeterministicEmbeddings(texts, mock.DefaultDimensions)
		if len(texts) > 1 {
			res.Vectors = res.Vectors[:len(texts)-1]
		}
		return res, nil
	}

	res, err := f.stage(t).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, res.Stats.Successful)
	assert.Equal(t, 6, f.embedder.CallCount())

	records := readRecords[core.EmbeddingRecord](t, f.embeddingsPath)
	assert.Equal(t, f.embedded(t, f.chunks), records, "vectors pair with their own chunks")
}

func TestEmbedStage_TransientErrorsRetried(t *testing.T) {
	f := newEmbedFixture(t, 3)
	var calls atomic.Int32
	f.embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) (*ai.Embeddings, error) {
		n := calls.Add(1)
		// batch call and the first single-item attempt fail
		if n <= 2 {
			return nil, errors.New("connection reset by peer")
		}
		return mock.DeterministicEmbeddings(texts, mock.DefaultDimensions), nil
	}

	res, err := f.stage(t).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Stats.Successful)
	assert.Zero(t, res.Stats.Failed)
	assert.Equal(t, 5, f.embedder.CallCount())
}

func TestEmbedStage_RetriesExhausted(t *testing.T) {
	f := newEmbedFixture(t, 2)
	f.embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) (*ai.Embeddings, error) {
		return nil, errors.New("rate limited")
	}

	res, err := f.stage(t).Run(context.Background())
	require.NoError(t, err, "item failures never abort the run")
	assert.Equal(t, 2, res.Stats.Failed)
	assert.Zero(t, res.Stats.Successful)
	assert.Contains(t, res.Failures[0].Error, "retries exhausted")
	// 1 batch call + 2 items x (MaxRetries+1) attempts
	assert.Equal(t, 7, f.embedder.CallCount())
	assert.Empty(t, readRecords[core.EmbeddingRecord](t, f.embeddingsPath))
}

func TestEmbedStage_Cancelled(t *testing.T) {
	f := newEmbedFixture(t, 20)
	ctx, cancel := context.WithCancel(context.Background())
	f.embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) (*ai.Embeddings, error) {
		defer cancel()
		return mock.DeterministicEmbeddings(texts, mock.DefaultDimensions), nil
	}

	res, err := f.stage(t).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Equal(t, 10, res.Stats.Successful)
	assert.Len(t, readRecords[core.EmbeddingRecord](t, f.embeddingsPath), 10)
}

func TestNewEmbedStage_Validation(t *testing.T) {
	_, err := NewEmbedStage(testCategory, "c", "e", nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewEmbedStage("", "c", "e", mock.NewMockEmbedder(), nil)
	assert.ErrorIs(t, err, core.ErrInvalidCategory)
}
