package mock

import (
	"context"
	"hash/fnv"
	"math"
	"sync"

	"github.com/poiesic/cebingest/ai"
)

// DefaultDimensions is the vector size produced by default.
const DefaultDimensions = 8

// MockEmbedder is a test double for ai.Embedder.
// It allows custom behavior injection via function fields.
type MockEmbedder struct {
	// EmbedTextsFunc is called by EmbedTexts if set.
	// If nil, uses default deterministic behavior.
	EmbedTextsFunc func(ctx context.Context, texts []string) (*ai.Embeddings, error)

	// ModelName is returned by Model.
	ModelName string

	// Dimensions sets the size of default vectors.
	Dimensions int

	mu    sync.Mutex
	calls [][]string
}

// NewMockEmbedder creates a mock embedder with default deterministic behavior.
// Note: Returns concrete type to allow test assertions.
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		ModelName:  "mock-embedding",
		Dimensions: DefaultDimensions,
	}
}

// EmbedTexts records the call and returns deterministic embeddings unless
// EmbedTextsFunc is set.
func (m *MockEmbedder) EmbedTexts(ctx context.Context, texts []string) (*ai.Embeddings, error) {
	m.mu.Lock()
	m.calls = append(m.calls, append([]string(nil), texts...))
	m.mu.Unlock()

	if m.EmbedTextsFunc != nil {
		return m.EmbedTextsFunc(ctx, texts)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return DeterministicEmbeddings(texts, m.Dimensions), nil
}

// Model returns ModelName.
func (m *MockEmbedder) Model() string {
	return m.ModelName
}

// CallCount returns the number of times EmbedTexts was called.
func (m *MockEmbedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Calls returns the inputs of every EmbedTexts call in order.
func (m *MockEmbedder) Calls() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// Reset clears recorded calls and custom behavior.
func (m *MockEmbedder) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.EmbedTextsFunc = nil
}

// DeterministicEmbeddings returns one hash-derived vector per text and an
// estimated token count.
func DeterministicEmbeddings(texts []string, dim int) *ai.Embeddings {
	if dim <= 0 {
		dim = DefaultDimensions
	}
	res := &ai.Embeddings{Vectors: make([][]float32, len(texts))}
	for i, text := range texts {
		res.Vectors[i] = DeterministicVector(text, dim)
		res.TotalTokens += ai.EstimateTokens(text)
	}
	return res
}

// DeterministicVector creates a unit-length vector from text.
// It uses FNV hash to ensure the same text always produces the same vector.
func DeterministicVector(text string, dim int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vector := make([]float32, dim)
	for i := range vector {
		seed = seed*1664525 + 1013904223 // LCG constants
		vector[i] = float32(seed%1000)/1000.0 + 0.001
	}

	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}
	norm := float32(1 / math.Sqrt(sumSquares))
	for i := range vector {
		vector[i] *= norm
	}
	return vector
}

var _ ai.Embedder = (*MockEmbedder)(nil)
