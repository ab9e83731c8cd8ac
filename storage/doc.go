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

// Package storage provides the persistence abstraction for the ingestion
// run ledger.
//
// The ledger remembers, per collection and corpus fingerprint, which rows
// have been accepted by the index backend. A later run over the same corpus
// can skip those rows instead of re-uploading them.
//
// # Usage
//
//	ledger, err := badger.OpenLedger("/var/lib/plotdex/ledger")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ledger.Close()
//
//	key := storage.LedgerKey{Collection: "movie_plots", Fingerprint: core.Fingerprint(texts)}
//	done, err := ledger.Committed(ctx, key)
//
// Use in tests with in-memory storage:
//
//	ledger, err := badger.NewMemoryLedger()
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
