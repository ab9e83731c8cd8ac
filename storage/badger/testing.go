package badger

// NewMemoryLedger creates an in-memory ledger for testing.
// Closing the ledger releases the database.
func NewMemoryLedger() (*LedgerRepository, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, err
	}
	return &LedgerRepository{backend: backend, owned: true}, nil
}
