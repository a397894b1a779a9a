package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/poiesic/cebingest/ai"
	"github.com/poiesic/cebingest/core"
)

// maxErrorBody caps how much of a failed response is kept for the error message.
const maxErrorBody = 4096

// Embedder implements ai.Embedder using the OpenAI embeddings endpoint.
type Embedder struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	logger     *slog.Logger
}

// Option configures an Embedder.
type Option func(*Embedder)

// WithHTTPClient replaces the HTTP client. The configured timeout is not
// applied to a client supplied this way.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Embedder) {
		e.client = client
	}
}

// APIError is a non-2xx response from the embeddings endpoint.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openai error (status %d): %s", e.StatusCode, e.Message)
}

// Retryable reports whether the status suggests a transient condition.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode >= 500
}

type embeddingRequest struct {
	Model          string   `json:"model"`
	Input          []string `json:"input"`
	Dimensions     int      `json:"dimensions,omitempty"`
	EncodingFormat string   `json:"encoding_format"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewEmbedder creates a new embedder using the provided configuration.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config, opts ...Option) (ai.Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	e := &Embedder{
		client:     &http.Client{Timeout: config.Timeout},
		baseURL:    config.EmbeddingHost,
		apiKey:     config.APIKey,
		model:      config.EmbeddingModel,
		dimensions: config.Dimensions,
		logger:     slog.Default().With("component", "openai-embedder"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Model returns the embedding model identifier.
func (e *Embedder) Model() string {
	return e.model
}

// EmbedTexts generates vector embeddings for multiple text strings in one request.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) (*ai.Embeddings, error) {
	if len(texts) == 0 {
		return &ai.Embeddings{}, nil
	}
	e.logger.Debug("generating embeddings for texts", "count", len(texts))

	body, err := json.Marshal(embeddingRequest{
		Model:          e.model,
		Input:          texts,
		Dimensions:     e.dimensions,
		EncodingFormat: "float",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, e.statusError(resp)
	}

	var decoded embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if decoded.Error != nil {
		return nil, fmt.Errorf("openai error: %s", decoded.Error.Message)
	}

	vectors, err := orderByIndex(decoded, len(texts))
	if err != nil {
		e.logger.Error("embedding response does not match request", "count", len(texts), "err", err)
		return nil, err
	}

	return &ai.Embeddings{Vectors: vectors, TotalTokens: decoded.Usage.TotalTokens}, nil
}

func (e *Embedder) statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(raw)}
	var decoded embeddingResponse
	if json.Unmarshal(raw, &decoded) == nil && decoded.Error != nil {
		apiErr.Message = decoded.Error.Message
	}

	if apiErr.Retryable() {
		return apiErr
	}
	return core.Permanent(apiErr)
}

// orderByIndex places every returned embedding at its declared input
// position and rejects responses that do not cover each input exactly once.
func orderByIndex(resp embeddingResponse, want int) ([][]float32, error) {
	if len(resp.Data) != want {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", ai.ErrResultMismatch, want, len(resp.Data))
	}

	vectors := make([][]float32, want)
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= want {
			return nil, fmt.Errorf("%w: index %d out of range", ai.ErrResultMismatch, d.Index)
		}
		if vectors[d.Index] != nil {
			return nil, fmt.Errorf("%w: duplicate index %d", ai.ErrResultMismatch, d.Index)
		}
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("%w: empty embedding at index %d", ai.ErrResultMismatch, d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

var _ ai.Embedder = (*Embedder)(nil)
