// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/plotdex/core"
	"github.com/poiesic/plotdex/storage"
)

// LedgerRepository implements storage.LedgerRepository for BadgerDB.
// Each ledger key owns two records: a checkpoint and a roaring bitmap of
// committed rows.
type LedgerRepository struct {
	backend *Backend
	owned   bool
	mu      sync.Mutex
}

var _ storage.LedgerRepository = (*LedgerRepository)(nil)

// NewLedgerRepository creates a LedgerRepository on an open backend.
// The caller keeps ownership of the backend.
func NewLedgerRepository(backend *Backend) *LedgerRepository {
	return &LedgerRepository{backend: backend}
}

// OpenLedger opens a ledger database at path. Closing the repository closes
// the database.
func OpenLedger(path string) (*LedgerRepository, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, err
	}
	return &LedgerRepository{backend: backend, owned: true}, nil
}

func (r *LedgerRepository) checkOpen(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return nil
}

// LoadCheckpoint retrieves the checkpoint for key.
// Returns nil, nil if no checkpoint exists.
func (r *LedgerRepository) LoadCheckpoint(ctx context.Context, key storage.LedgerKey) (*core.Checkpoint, error) {
	if err := r.checkOpen(ctx); err != nil {
		return nil, err
	}
	var checkpoint *core.Checkpoint
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		checkpoint, err = getCheckpoint(tx, key)
		return err
	}, false)
	return checkpoint, err
}

// Committed returns the committed row set for key.
func (r *LedgerRepository) Committed(ctx context.Context, key storage.LedgerKey) (*roaring.Bitmap, error) {
	if err := r.checkOpen(ctx); err != nil {
		return nil, err
	}
	var bm *roaring.Bitmap
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		bm, err = getRows(tx, key)
		return err
	}, false)
	return bm, err
}

// MarkCommitted adds rows to the committed set and refreshes the checkpoint.
// Calls are serialized so concurrent uploaders never lose updates.
func (r *LedgerRepository) MarkCommitted(ctx context.Context, key storage.LedgerKey, rows core.RowRange, total int) error {
	if rows.Start < 0 || rows.Len() <= 0 {
		return fmt.Errorf("%w: [%d, %d)", storage.ErrInvalidRange, rows.Start, rows.End)
	}
	if err := r.checkOpen(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.backend.WithTx(func(tx *badger.Txn) error {
		bm, err := getRows(tx, key)
		if err != nil {
			return err
		}
		bm.AddRange(uint64(rows.Start), uint64(rows.End))

		data, err := storage.MarshalBitmap(bm)
		if err != nil {
			return err
		}
		if err := tx.Set(makeRowsKey(key), data); err != nil {
			return err
		}

		checkpoint := &core.Checkpoint{
			Collection:  key.Collection,
			Fingerprint: key.Fingerprint,
			Rows:        uint64(total),
			Committed:   bm.GetCardinality(),
			UpdatedAt:   time.Now().UTC().UnixMicro(),
		}
		if err := tx.Set(makeCheckpointKey(key), storage.MarshalCheckpoint(checkpoint)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Reset deletes every checkpoint and row set of collection.
func (r *LedgerRepository) Reset(ctx context.Context, collection string) (int, error) {
	if err := r.checkOpen(ctx); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	checkpoints, err := r.scanCheckpoints()
	if err != nil {
		return 0, err
	}

	removed := 0
	err = r.backend.WithTx(func(tx *badger.Txn) error {
		for _, c := range checkpoints {
			if c.Collection != collection {
				continue
			}
			key := storage.LedgerKey{Collection: c.Collection, Fingerprint: c.Fingerprint}
			if err := tx.Delete(makeCheckpointKey(key)); err != nil {
				return err
			}
			if err := tx.Delete(makeRowsKey(key)); err != nil {
				return err
			}
			removed++
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return 0, err
	}
	r.backend.logger.Info("ledger reset", "collection", collection, "checkpoints", removed)
	return removed, nil
}

// ListCheckpoints returns every stored checkpoint.
func (r *LedgerRepository) ListCheckpoints(ctx context.Context) ([]*core.Checkpoint, error) {
	if err := r.checkOpen(ctx); err != nil {
		return nil, err
	}
	checkpoints, err := r.scanCheckpoints()
	if err != nil {
		return nil, err
	}
	slices.SortFunc(checkpoints, func(a, b *core.Checkpoint) int {
		if c := strings.Compare(a.Collection, b.Collection); c != 0 {
			return c
		}
		// Most recent first
		switch {
		case a.UpdatedAt > b.UpdatedAt:
			return -1
		case a.UpdatedAt < b.UpdatedAt:
			return 1
		}
		return 0
	})
	return checkpoints, nil
}

// Close closes the underlying database if the repository opened it.
func (r *LedgerRepository) Close() error {
	if r.owned {
		return r.backend.Close()
	}
	return nil
}

func (r *LedgerRepository) scanCheckpoints() ([]*core.Checkpoint, error) {
	var checkpoints []*core.Checkpoint
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(ledgerPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()
			if !bytes.HasSuffix(item.Key(), []byte(checkpointSuffix)) {
				continue
			}
			err := item.Value(func(val []byte) error {
				checkpoint, err := storage.UnmarshalCheckpoint(val)
				if err != nil {
					return err
				}
				checkpoints = append(checkpoints, checkpoint)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	return checkpoints, err
}

func getCheckpoint(tx *badger.Txn, key storage.LedgerKey) (*core.Checkpoint, error) {
	item, err := tx.Get(makeCheckpointKey(key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var checkpoint *core.Checkpoint
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		checkpoint, unmarshalErr = storage.UnmarshalCheckpoint(val)
		return unmarshalErr
	})
	return checkpoint, err
}

func getRows(tx *badger.Txn, key storage.LedgerKey) (*roaring.Bitmap, error) {
	item, err := tx.Get(makeRowsKey(key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return roaring.New(), nil
		}
		return nil, err
	}
	var bm *roaring.Bitmap
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		bm, unmarshalErr = storage.UnmarshalBitmap(val)
		return unmarshalErr
	})
	return bm, err
}
