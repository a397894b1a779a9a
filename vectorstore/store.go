package vectorstore

import (
	"context"
	"errors"
)

var (
	// ErrMissingCredentials indicates the store URL or token is not configured.
	ErrMissingCredentials = errors.New("missing vector store credentials")

	// ErrEmptyNamespace indicates an operation was called without a namespace.
	ErrEmptyNamespace = errors.New("namespace cannot be empty")
)

// UploadItem is the wire shape of one vector sent to the store.
type UploadItem struct {
	ID        string         `json:"id"`
	Vector    []float32      `json:"vector"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Namespace string         `json:"namespace,omitempty"`
}

// QueryRequest asks for the TopK nearest neighbours of Vector.
type QueryRequest struct {
	Vector          []float32
	TopK            int
	Namespace       string
	IncludeMetadata bool
}

// Match is one ranked query result.
type Match struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NamespaceInfo holds per-namespace counters.
type NamespaceInfo struct {
	VectorCount        int `json:"vectorCount"`
	PendingVectorCount int `json:"pendingVectorCount"`
}

// Info describes the index.
type Info struct {
	VectorCount        int                      `json:"vectorCount"`
	PendingVectorCount int                      `json:"pendingVectorCount"`
	IndexSize          int64                    `json:"indexSize"`
	Dimension          int                      `json:"dimension"`
	SimilarityFunction string                   `json:"similarityFunction"`
	Namespaces         map[string]NamespaceInfo `json:"namespaces"`
}

// Store is a remote vector index.
type Store interface {
	// Upsert writes items into namespace, replacing items with the same ID.
	// A batch either succeeds or fails as a whole.
	Upsert(ctx context.Context, namespace string, items []UploadItem) error

	// Query returns the nearest neighbours of a vector within a namespace.
	Query(ctx context.Context, req QueryRequest) ([]Match, error)

	// Info returns index statistics.
	Info(ctx context.Context) (*Info, error)
}
