// Package mock provides an in-memory vectorstore.Store for tests.
package mock

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/poiesic/cebingest/vectorstore"
)

// MockStore keeps vectors in memory, keyed by namespace and ID.
// Query ranks by cosine similarity.
type MockStore struct {
	// UpsertFunc is called by Upsert if set. Returning nil still stores the items.
	UpsertFunc func(ctx context.Context, namespace string, items []vectorstore.UploadItem) error

	mu          sync.Mutex
	namespaces  map[string]map[string]vectorstore.UploadItem
	upsertCalls int
}

// NewMockStore creates an empty store.
func NewMockStore() *MockStore {
	return &MockStore{namespaces: make(map[string]map[string]vectorstore.UploadItem)}
}

// Upsert implements vectorstore.Store.
func (m *MockStore) Upsert(ctx context.Context, namespace string, items []vectorstore.UploadItem) error {
	m.mu.Lock()
	m.upsertCalls++
	m.mu.Unlock()

	if m.UpsertFunc != nil {
		if err := m.UpsertFunc(ctx, namespace, items); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	ns, ok := m.namespaces[namespace]
	if !ok {
		ns = make(map[string]vectorstore.UploadItem)
		m.namespaces[namespace] = ns
	}
	for _, item := range items {
		ns[item.ID] = item
	}
	return nil
}

// Query implements vectorstore.Store.
func (m *MockStore) Query(ctx context.Context, req vectorstore.QueryRequest) ([]vectorstore.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	matches := make([]vectorstore.Match, 0, len(m.namespaces[req.Namespace]))
	for id, item := range m.namespaces[req.Namespace] {
		match := vectorstore.Match{ID: id, Score: cosine(req.Vector, item.Vector)}
		if req.IncludeMetadata {
			match.Metadata = item.Metadata
		}
		matches = append(matches, match)
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score == matches[j].Score {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].Score > matches[j].Score
	})
	if req.TopK > 0 && len(matches) > req.TopK {
		matches = matches[:req.TopK]
	}
	return matches, nil
}

// Info implements vectorstore.Store.
func (m *MockStore) Info(ctx context.Context) (*vectorstore.Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info := &vectorstore.Info{
		SimilarityFunction: "COSINE",
		Namespaces:         make(map[string]vectorstore.NamespaceInfo, len(m.namespaces)),
	}
	for name, ns := range m.namespaces {
		info.VectorCount += len(ns)
		info.Namespaces[name] = vectorstore.NamespaceInfo{VectorCount: len(ns)}
		for _, item := range ns {
			info.Dimension = len(item.Vector)
			break
		}
	}
	return info, nil
}

// Items returns the stored items of a namespace keyed by ID.
func (m *MockStore) Items(namespace string) map[string]vectorstore.UploadItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]vectorstore.UploadItem, len(m.namespaces[namespace]))
	for id, item := range m.namespaces[namespace] {
		out[id] = item
	}
	return out
}

// UpsertCalls returns how many times Upsert was called.
func (m *MockStore) UpsertCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upsertCalls
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

var _ vectorstore.Store = (*MockStore)(nil)
