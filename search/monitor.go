package search

import (
	"github.com/poiesic/plotdex/core"
	"github.com/poiesic/plotdex/index"
)

// SearchMonitor provides hooks to observe the search process.
type SearchMonitor interface {
	Start(query string)
	AfterEmbedding(vectors core.MultiVector)
	AfterQuery(points []index.ScoredPoint)
	Finish(hits []core.Hit)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                     {}
func (n *noopMonitor) AfterEmbedding(_ core.MultiVector)  {}
func (n *noopMonitor) AfterQuery(_ []index.ScoredPoint)   {}
func (n *noopMonitor) Finish(_ []core.Hit)                {}
