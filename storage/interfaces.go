package storage

import (
	"context"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/poiesic/plotdex/core"
)

// LedgerKey identifies one corpus loaded into one collection.
type LedgerKey struct {
	Collection  string
	Fingerprint uint64
}

// LedgerRepository records which corpus rows have been committed to a
// collection, so an interrupted ingestion can resume.
// Implementations must be thread-safe and support concurrent access.
type LedgerRepository interface {
	// LoadCheckpoint returns the checkpoint for key.
	// Returns nil, nil if no checkpoint exists.
	LoadCheckpoint(ctx context.Context, key LedgerKey) (*core.Checkpoint, error)

	// Committed returns the set of committed row indices for key.
	// Returns an empty bitmap if nothing was recorded.
	Committed(ctx context.Context, key LedgerKey) (*roaring.Bitmap, error)

	// MarkCommitted adds rows to the committed set of key and updates its
	// checkpoint. total is the number of rows in the corpus.
	MarkCommitted(ctx context.Context, key LedgerKey, rows core.RowRange, total int) error

	// Reset removes every checkpoint recorded for collection.
	// Returns the number of checkpoints removed.
	Reset(ctx context.Context, collection string) (int, error)

	// ListCheckpoints returns all checkpoints ordered by collection, then
	// by most recent update.
	ListCheckpoints(ctx context.Context) ([]*core.Checkpoint, error)

	// Close releases resources held by the repository.
	Close() error
}
