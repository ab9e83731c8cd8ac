package memory

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"sync"

	"github.com/poiesic/plotdex/core"
	"github.com/poiesic/plotdex/index"
)

type collection struct {
	spec   core.CollectionSpec
	points map[core.PointID]core.IndexPoint
}

// Backend is an in-process index.Backend. Queries are exact: every point is
// scored with cosine max-sim.
type Backend struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

var _ index.Backend = (*Backend)(nil)

// New returns an empty backend.
func New() *Backend {
	return &Backend{collections: make(map[string]*collection)}
}

// ListCollections returns collection names in sorted order.
func (b *Backend) ListCollections(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Sorted(maps.Keys(b.collections)), nil
}

// CreateCollection creates an empty collection.
func (b *Backend) CreateCollection(ctx context.Context, spec core.CollectionSpec) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := core.ValidateCollectionSpec(spec); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.collections[spec.Name]; ok {
		return fmt.Errorf("%w: %s", index.ErrCollectionExists, spec.Name)
	}
	b.collections[spec.Name] = &collection{spec: spec, points: make(map[core.PointID]core.IndexPoint)}
	return nil
}

// UpsertPoints validates every point against the collection vector size and
// then stores the batch. A batch with any invalid point is rejected whole.
func (b *Backend) UpsertPoints(ctx context.Context, name string, points []core.IndexPoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.collections[name]
	if !ok {
		return fmt.Errorf("%w: %s", index.ErrCollectionNotFound, name)
	}
	for i, p := range points {
		if err := core.ValidateMultiVector(i, p.Vector, c.spec.VectorSize); err != nil {
			return fmt.Errorf("point %d: %w", p.ID, err)
		}
	}
	for _, p := range points {
		c.points[p.ID] = core.IndexPoint{
			ID:      p.ID,
			Vector:  cloneMultiVector(p.Vector),
			Payload: maps.Clone(p.Payload),
		}
	}
	return nil
}

// Query scores every point and returns the best limit, highest score first.
// Ties are broken by ascending id.
func (b *Backend) Query(ctx context.Context, name string, query core.MultiVector, limit int) ([]index.ScoredPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, index.ErrInvalidLimit
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	c, ok := b.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", index.ErrCollectionNotFound, name)
	}
	if err := core.ValidateMultiVector(0, query, c.spec.VectorSize); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	results := make([]index.ScoredPoint, 0, len(c.points))
	for _, p := range c.points {
		results = append(results, index.ScoredPoint{
			ID:      p.ID,
			Score:   MaxSim(query, p.Vector),
			Payload: maps.Clone(p.Payload),
		})
	}
	slices.SortFunc(results, func(x, y index.ScoredPoint) int {
		switch {
		case x.Score > y.Score:
			return -1
		case x.Score < y.Score:
			return 1
		case x.ID < y.ID:
			return -1
		case x.ID > y.ID:
			return 1
		}
		return 0
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Close is a no-op. Stored data is kept.
func (b *Backend) Close() error {
	return nil
}

// Count returns the number of points in a collection.
func (b *Backend) Count(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if c, ok := b.collections[name]; ok {
		return len(c.points)
	}
	return 0
}

// Point returns a stored point.
func (b *Backend) Point(name string, id core.PointID) (core.IndexPoint, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c, ok := b.collections[name]
	if !ok {
		return core.IndexPoint{}, false
	}
	p, ok := c.points[id]
	return p, ok
}

// Spec returns the spec a collection was created with.
func (b *Backend) Spec(name string) (core.CollectionSpec, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c, ok := b.collections[name]
	if !ok {
		return core.CollectionSpec{}, false
	}
	return c.spec, true
}

// MaxSim sums, over every query vector, its highest cosine similarity
// against the document vectors.
func MaxSim(query, doc core.MultiVector) float32 {
	var total float64
	for _, q := range query {
		best := math.Inf(-1)
		for _, d := range doc {
			if s := cosine(q, d); s > best {
				best = s
			}
		}
		if !math.IsInf(best, -1) {
			total += best
		}
	}
	return float32(total)
}

func cosine(a, b []float32) float64 {
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

func cloneMultiVector(mv core.MultiVector) core.MultiVector {
	out := make(core.MultiVector, len(mv))
	for i, v := range mv {
		out[i] = slices.Clone(v)
	}
	return out
}
