package badger

import (
	"fmt"

	"github.com/poiesic/plotdex/storage"
)

// Key prefixes for ledger data
const (
	ledgerPrefix     = "ledger:"
	checkpointSuffix = ":chkpt"
	rowsSuffix       = ":rows"
)

// makeLedgerKeyBase renders ledger:<fingerprint>:<collection>. The fixed-width
// fingerprint comes first so collection names may contain any byte.
func makeLedgerKeyBase(key storage.LedgerKey) string {
	return fmt.Sprintf("%s%016x:%s", ledgerPrefix, key.Fingerprint, key.Collection)
}

// makeCheckpointKey generates the key of a checkpoint record.
func makeCheckpointKey(key storage.LedgerKey) []byte {
	return []byte(makeLedgerKeyBase(key) + checkpointSuffix)
}

// makeRowsKey generates the key of a committed row bitmap.
func makeRowsKey(key storage.LedgerKey) []byte {
	return []byte(makeLedgerKeyBase(key) + rowsSuffix)
}
