// Package langchain implements ai.Embedder on top of langchaingo's OpenAI
// client. It suits OpenAI-compatible servers (Ollama, LocalAI, vLLM) whose
// responses langchaingo already understands. langchaingo does not surface
// token usage, so TotalTokens is estimated from the input length.
package langchain

import (
	"context"
	"log/slog"

	"github.com/poiesic/cebingest/ai"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder implements ai.Embedder using OpenAI-compatible embedding APIs.
type Embedder struct {
	embedder embeddings.Embedder
	model    string
	logger   *slog.Logger
}

// NewEmbedder creates a new embedder using the provided configuration.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.EmbeddingHost),
		openai.WithToken(config.APIKey),
		openai.WithEmbeddingModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, err
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}

	return &Embedder{
		embedder: embedder,
		model:    config.EmbeddingModel,
		logger:   slog.Default().With("component", "langchain-embedder"),
	}, nil
}

// Model returns the embedding model identifier.
func (e *Embedder) Model() string {
	return e.model
}

// EmbedTexts generates vector embeddings for multiple text strings in a batch.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) (*ai.Embeddings, error) {
	if len(texts) == 0 {
		return &ai.Embeddings{}, nil
	}
	e.logger.Debug("generating embeddings for texts", "count", len(texts))

	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, err
	}

	res := &ai.Embeddings{Vectors: vectors}
	if err := ai.CheckEmbeddings(res, len(texts)); err != nil {
		return nil, err
	}

	for _, text := range texts {
		res.TotalTokens += ai.EstimateTokens(text)
	}
	return res, nil
}

var _ ai.Embedder = (*Embedder)(nil)
