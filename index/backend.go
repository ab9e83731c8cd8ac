package index

import (
	"context"

	"github.com/poiesic/plotdex/core"
)

// ScoredPoint is a query result as returned by a backend.
type ScoredPoint struct {
	ID      core.PointID
	Score   float32
	Payload core.Payload
}

// Backend is a vector index holding named multi-vector collections.
// Implementations must be safe for concurrent use.
type Backend interface {
	// ListCollections returns the names of all existing collections.
	ListCollections(ctx context.Context) ([]string, error)

	// CreateCollection creates a collection with the given geometry.
	CreateCollection(ctx context.Context, spec core.CollectionSpec) error

	// UpsertPoints inserts or overwrites points by id. The call returns once
	// the backend has accepted the whole batch.
	UpsertPoints(ctx context.Context, collection string, points []core.IndexPoint) error

	// Query returns up to limit points ranked by multi-vector similarity to query.
	Query(ctx context.Context, collection string, query core.MultiVector, limit int) ([]ScoredPoint, error)

	// Close releases the backend connection.
	Close() error
}
