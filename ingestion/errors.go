package ingestion

import "errors"

var (
	// ErrBackendRequired is returned when an index backend is not provided.
	ErrBackendRequired = errors.New("index backend required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrLedgerRequired is returned when resuming without a run ledger.
	ErrLedgerRequired = errors.New("run ledger required to resume")

	// ErrPlanRequired is returned when Run is called without a load plan.
	ErrPlanRequired = errors.New("load plan required")

	// ErrPayloadsRequired is returned when an upload has no payload source.
	ErrPayloadsRequired = errors.New("payload source required")

	// ErrPayloadMismatch is returned when embeddings and payload rows differ in count.
	ErrPayloadMismatch = errors.New("embedding and payload row counts differ")
)
