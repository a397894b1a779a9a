package ai

import (
	"context"
	"fmt"
	"unicode/utf8"
)

// Embeddings is the result of one embedding call.
type Embeddings struct {
	// Vectors holds one embedding per input text, in input order.
	Vectors [][]float32

	// TotalTokens is the usage the service reported for the call. Providers
	// that receive no usage figure report an estimate.
	TotalTokens int
}

// Embedder generates vector embeddings from text.
type Embedder interface {
	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned vectors are in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) (*Embeddings, error)

	// Model returns the model identifier recorded with every embedding.
	Model() string
}

// CheckEmbeddings verifies that res carries exactly want non-empty vectors
// of a single dimensionality.
func CheckEmbeddings(res *Embeddings, want int) error {
	if res == nil {
		return fmt.Errorf("%w: nil result", ErrResultMismatch)
	}
	if len(res.Vectors) != want {
		return fmt.Errorf("%w: expected %d embeddings, got %d", ErrResultMismatch, want, len(res.Vectors))
	}
	dims := -1
	for i, v := range res.Vectors {
		if len(v) == 0 {
			return fmt.Errorf("%w: empty embedding at position %d", ErrResultMismatch, i)
		}
		if dims >= 0 && len(v) != dims {
			return fmt.Errorf("%w: embedding %d has %d dimensions, expected %d", ErrResultMismatch, i, len(v), dims)
		}
		dims = len(v)
	}
	return nil
}

// EstimateTokens approximates the token count of text at four characters
// per token.
func EstimateTokens(text string) int {
	return utf8.RuneCountInString(text) / 4
}

// EstimateCost converts a token count into dollars at the given price per
// million tokens.
func EstimateCost(tokens int, pricePerMillion float64) float64 {
	return float64(tokens) / 1_000_000 * pricePerMillion
}
