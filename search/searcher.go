package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/plotdex/ai"
	"github.com/poiesic/plotdex/core"
	"github.com/poiesic/plotdex/index"
)

// Payload keys read back into a Hit.
const (
	PayloadTitle = "title"
	PayloadYear  = "year"
)

// Searcher runs nearest-neighbour queries against one collection.
type Searcher struct {
	embedder   ai.Embedder
	backend    index.Backend
	collection string
	logger     *slog.Logger
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

// NewSearcher creates a new searcher over collection.
func NewSearcher(embedder ai.Embedder, backend index.Backend, collection string, opts ...Option) (*Searcher, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if backend == nil {
		return nil, ErrBackendRequired
	}
	if collection == "" {
		return nil, core.ErrEmptyCollectionName
	}

	s := &Searcher{
		embedder:   embedder,
		backend:    backend,
		collection: collection,
		logger:     slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "searcher", "collection", collection)

	return s, nil
}

// Search returns up to topK hits for query, best first.
func (s *Searcher) Search(ctx context.Context, query string, topK int) ([]core.Hit, error) {
	return s.SearchWithMonitor(ctx, query, topK, nil)
}

// SearchWithMonitor is Search with callbacks at each step.
func (s *Searcher) SearchWithMonitor(ctx context.Context, query string, topK int, monitor SearchMonitor) ([]core.Hit, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		return nil, fmt.Errorf("%w: %d", index.ErrInvalidLimit, topK)
	}

	monitor.Start(query)

	vectors, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, &core.DimensionError{Row: 0, Token: -1}
	}
	monitor.AfterEmbedding(vectors)

	points, err := s.backend.Query(ctx, s.collection, vectors, topK)
	if err != nil {
		s.logger.Error("error querying collection", "err", err)
		return nil, err
	}
	monitor.AfterQuery(points)

	hits := make([]core.Hit, len(points))
	for i, p := range points {
		hits[i] = core.Hit{
			ID:    p.ID,
			Title: p.Payload[PayloadTitle],
			Year:  p.Payload[PayloadYear],
			Score: p.Score,
		}
	}
	s.logger.Debug("search complete", "query", query, "hits", len(hits))
	monitor.Finish(hits)

	return hits, nil
}
