package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/poiesic/cebingest/ai"
	"github.com/poiesic/cebingest/core"
	"github.com/poiesic/cebingest/vectorstore"
)

// DefaultTopK is the number of hits returned when none is requested.
const DefaultTopK = 5

// Result is one ranked chunk returned by a search.
type Result struct {
	ID         string
	Score      float64
	Title      string
	Section    string
	Citation   string
	SourceFile string
	PageNumber int
	ChunkIndex int
	Text       string
	Verbatim   bool
}

// Searcher runs similarity queries against the uploaded corpus.
type Searcher struct {
	embedder      ai.Embedder
	store         vectorstore.Store
	minScore      float64
	verbatimBoost float64
	logger        *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithMinScore drops hits scoring below min. Default is 0 (keep all).
func WithMinScore(min float64) Option {
	return func(s *Searcher) error {
		if min < 0 || min > 1 {
			return fmt.Errorf("min score must be in [0, 1], got %v", min)
		}
		s.minScore = min
		return nil
	}
}

// WithVerbatimBoost adds boost to the score of hits whose text contains
// every significant query word. Default is 0.
func WithVerbatimBoost(boost float64) Option {
	return func(s *Searcher) error {
		if boost < 0 {
			return fmt.Errorf("verbatim boost cannot be negative, got %v", boost)
		}
		s.verbatimBoost = boost
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(embedder ai.Embedder, store vectorstore.Store, opts ...Option) (*Searcher, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if store == nil {
		return nil, ErrStoreRequired
	}

	s := &Searcher{
		embedder: embedder,
		store:    store,
		logger:   slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Search returns up to topK chunks of category similar to query, ranked by
// score. A topK of zero or less uses DefaultTopK.
func (s *Searcher) Search(ctx context.Context, category, query string, topK int) ([]*Result, error) {
	return s.SearchWithMonitor(ctx, category, query, topK, nil)
}

// SearchWithMonitor is Search with monitoring.
// The monitor receives callbacks at each stage of the search process.
func (s *Searcher) SearchWithMonitor(ctx context.Context, category, query string, topK int, monitor SearchMonitor) ([]*Result, error) {
	if err := core.ValidateCategory(category); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	// Use noop monitor if none provided
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	namespace := core.Namespace(category)
	monitor.Start(namespace, query)

	embeddings, err := s.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}
	if err := ai.CheckEmbeddings(embeddings, 1); err != nil {
		return nil, err
	}
	vector := embeddings.Vectors[0]
	monitor.AfterEmbedding(len(vector), embeddings.TotalTokens)

	matches, err := s.store.Query(ctx, vectorstore.QueryRequest{
		Vector:          vector,
		TopK:            topK,
		Namespace:       namespace,
		IncludeMetadata: true,
	})
	if err != nil {
		s.logger.Error("error querying vector store", "namespace", namespace, "err", err)
		return nil, err
	}
	monitor.AfterQuery(matches)

	results := make([]*Result, 0, len(matches))
	for _, match := range matches {
		if match.Score < s.minScore {
			continue
		}
		result := resultFromMatch(match)
		if containsAllQueryWords(result.Text, query) {
			result.Verbatim = true
			result.Score += s.verbatimBoost
			monitor.VerbatimHit(result)
		}
		results = append(results, result)
	}

	// Sort by score descending
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	monitor.Finish(results)

	s.logger.Debug("search finished", "namespace", namespace, "matches", len(matches), "results", len(results))
	return results, nil
}

func resultFromMatch(match vectorstore.Match) *Result {
	md := match.Metadata
	return &Result{
		ID:         match.ID,
		Score:      match.Score,
		Title:      stringField(md, "title"),
		Section:    stringField(md, "section"),
		Citation:   stringField(md, "ceb_citation"),
		SourceFile: stringField(md, "source_file"),
		PageNumber: intField(md, "page_number"),
		ChunkIndex: intField(md, "chunk_index"),
		Text:       stringField(md, "text"),
	}
}

func stringField(md map[string]any, key string) string {
	s, _ := md[key].(string)
	return s
}

// intField accepts both native ints and the float64 values JSON decoding produces.
func intField(md map[string]any, key string) int {
	switch v := md[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
