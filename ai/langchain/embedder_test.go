package langchain

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/poiesic/cebingest/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// embeddingsServer answers OpenAI-style embedding requests with one
// two-dimensional vector per input.
func embeddingsServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		data := make([]string, len(req.Input))
		for i := range req.Input {
			data[i] = fmt.Sprintf(`{"object":"embedding","embedding":[%d.5,1.0],"index":%d}`, i, i)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"object":"list","data":[%s],"model":%q,"usage":{"prompt_tokens":1,"total_tokens":1}}`,
			strings.Join(data, ","), req.Model)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewEmbedder_RequiresKey(t *testing.T) {
	_, err := NewEmbedder(ai.NewConfig(ai.WithEmbeddingHost("http://localhost:1")))
	assert.ErrorIs(t, err, ai.ErrMissingCredentials)
}

func TestEmbedTexts(t *testing.T) {
	srv := embeddingsServer(t)
	embedder, err := NewEmbedder(ai.NewConfig(
		ai.WithEmbeddingHost(srv.URL),
		ai.WithAPIKey("none"),
		ai.WithEmbeddingModel("nomic-embed-text"),
	))
	require.NoError(t, err)
	assert.Equal(t, "nomic-embed-text", embedder.Model())

	texts := []string{strings.Repeat("a", 40), strings.Repeat("b", 80)}
	res, err := embedder.EmbedTexts(context.Background(), texts)
	require.NoError(t, err)

	require.Len(t, res.Vectors, 2)
	assert.Equal(t, []float32{0.5, 1.0}, res.Vectors[0])
	assert.Equal(t, []float32{1.5, 1.0}, res.Vectors[1])
	// usage is estimated from input length
	assert.Equal(t, 30, res.TotalTokens)
}

func TestEmbedTexts_Empty(t *testing.T) {
	srv := embeddingsServer(t)
	embedder, err := NewEmbedder(ai.NewConfig(ai.WithEmbeddingHost(srv.URL), ai.WithAPIKey("none")))
	require.NoError(t, err)

	res, err := embedder.EmbedTexts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Vectors)
}
