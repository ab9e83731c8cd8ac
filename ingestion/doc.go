// Package ingestion loads a movie plots corpus into a vector index.
//
// A Pipeline run moves through fixed stages:
//
//	load -> derive -> project -> embed -> validate -> provision -> upload
//
// Every text is embedded and every multi-vector is checked against the
// collection vector size before the backend is touched, so a failing model
// or a dimension mismatch never leaves a half-created collection behind.
//
// The Provisioner creates the collection only when it is absent. The
// Uploader sends points in fixed-size batches keyed by row index, which
// makes a re-run overwrite rather than duplicate. When a run ledger is
// configured, committed batches are recorded and a later run can resume
// from where an interrupted one stopped.
package ingestion
