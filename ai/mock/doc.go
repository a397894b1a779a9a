// Package mock provides a test double for ai.Embedder.
//
// # Usage in Tests
//
//	// Basic usage with default behavior
//	embedder := mock.NewMockEmbedder()
//	res, err := embedder.EmbedTexts(ctx, []string{"test"})
//
//	// Custom behavior injection
//	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) (*ai.Embeddings, error) {
//	    if len(texts) > 1 {
//	        return nil, errors.New("batch rejected")
//	    }
//	    return mock.DeterministicEmbeddings(texts, 8), nil
//	}
//
//	// Check calls
//	count := embedder.CallCount()
//	batches := embedder.Calls()
//
// # Default Behavior
//
// Vectors are derived from an FNV hash of the text, so the same text always
// produces the same vector. Usage is estimated at four characters per token.
package mock
