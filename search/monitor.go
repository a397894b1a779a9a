package search

import "github.com/poiesic/cebingest/vectorstore"

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(namespace, query string)
	AfterEmbedding(dimensions, tokens int)
	AfterQuery(matches []vectorstore.Match)
	VerbatimHit(result *Result)
	Finish(results []*Result)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_, _ string)                {}
func (n *noopMonitor) AfterEmbedding(_, _ int)          {}
func (n *noopMonitor) AfterQuery(_ []vectorstore.Match) {}
func (n *noopMonitor) VerbatimHit(_ *Result)            {}
func (n *noopMonitor) Finish(_ []*Result)               {}
