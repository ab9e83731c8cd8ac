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


package core

import (
	"errors"
	"fmt"
	"strings"
)

// Domain validation errors
var (
	// ErrInvalidCollectionSpec indicates a CollectionSpec failed validation.
	ErrInvalidCollectionSpec = errors.New("invalid collection spec")

	// ErrEmptyCollectionName indicates the collection name is empty.
	ErrEmptyCollectionName = errors.New("collection name cannot be empty")

	// ErrInvalidVectorSize indicates a non-positive vector size.
	ErrInvalidVectorSize = errors.New("vector size must be greater than 0")
)

// SchemaError reports a missing column or a failed type coercion.
type SchemaError struct {
	Column string
	Row    int // -1 when the error is not tied to a row
	Value  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Row >= 0 {
		return fmt.Sprintf("schema error: column %q row %d value %q: %s", e.Column, e.Row, e.Value, e.Reason)
	}
	return fmt.Sprintf("schema error: column %q: %s", e.Column, e.Reason)
}

// ProjectionError reports that a column required for text derivation is missing.
type ProjectionError struct {
	Column string
}

func (e *ProjectionError) Error() string {
	return fmt.Sprintf("projection error: required column %q not found", e.Column)
}

// BackendExecutionError reports that the embedding backend failed to run or
// reported an explicit failure.
type BackendExecutionError struct {
	Message     string
	Diagnostics string // Captured diagnostic output (stderr)
	cause       error
}

// NewBackendExecutionError creates a BackendExecutionError wrapping cause.
func NewBackendExecutionError(message, diagnostics string, cause error) *BackendExecutionError {
	return &BackendExecutionError{Message: message, Diagnostics: diagnostics, cause: cause}
}

func (e *BackendExecutionError) Error() string {
	msg := "embedding backend failed: " + e.Message
	if d := strings.TrimSpace(e.Diagnostics); d != "" {
		msg += "\n" + d
	}
	return msg
}

func (e *BackendExecutionError) Unwrap() error { return e.cause }

// BackendDecodeError reports a malformed embedding backend response.
// Raw carries the undecodable payload.
type BackendDecodeError struct {
	Raw   []byte
	cause error
}

// NewBackendDecodeError creates a BackendDecodeError wrapping cause.
func NewBackendDecodeError(raw []byte, cause error) *BackendDecodeError {
	return &BackendDecodeError{Raw: raw, cause: cause}
}

func (e *BackendDecodeError) Error() string {
	raw := string(e.Raw)
	if len(raw) > 256 {
		raw = raw[:256] + "..."
	}
	return fmt.Sprintf("embedding backend returned malformed payload: %v: %q", e.cause, raw)
}

func (e *BackendDecodeError) Unwrap() error { return e.cause }

// BackendCountMismatchError reports that the number of embeddings returned
// differs from the number of texts sent.
type BackendCountMismatchError struct {
	Expected int
	Actual   int
}

func (e *BackendCountMismatchError) Error() string {
	return fmt.Sprintf("embedding count mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// CheckCount returns a BackendCountMismatchError when got != want.
func CheckCount(want, got int) error {
	if want != got {
		return &BackendCountMismatchError{Expected: want, Actual: got}
	}
	return nil
}

// DimensionError reports an embedding whose token vectors do not match the
// collection vector size. Actual is 0 for an embedding with no vectors.
type DimensionError struct {
	Row      int
	Token    int
	Expected int
	Actual   int
}

func (e *DimensionError) Error() string {
	if e.Actual == 0 && e.Token < 0 {
		return fmt.Sprintf("dimension mismatch: row %d has no vectors", e.Row)
	}
	return fmt.Sprintf("dimension mismatch: row %d token %d: expected %d, got %d", e.Row, e.Token, e.Expected, e.Actual)
}

// ProvisionError reports a failed collection listing or creation.
type ProvisionError struct {
	Collection string
	Op         string // "list" or "create"
	cause      error
}

// NewProvisionError creates a ProvisionError wrapping cause.
func NewProvisionError(collection, op string, cause error) *ProvisionError {
	return &ProvisionError{Collection: collection, Op: op, cause: cause}
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("provision collection %q: %s failed: %v", e.Collection, e.Op, e.cause)
}

func (e *ProvisionError) Unwrap() error { return e.cause }

// RowIndexError reports a row index outside the table bounds.
type RowIndexError struct {
	Row int
	Len int
}

func (e *RowIndexError) Error() string {
	return fmt.Sprintf("row index %d out of bounds (rows: %d)", e.Row, e.Len)
}

// UploadError reports a failed batch upsert. Batches listed in Committed were
// accepted by the backend before the failure and remain in the collection.
type UploadError struct {
	Batch     RowRange
	Committed []RowRange
	cause     error
}

// NewUploadError creates an UploadError wrapping cause.
func NewUploadError(batch RowRange, committed []RowRange, cause error) *UploadError {
	return &UploadError{Batch: batch, Committed: committed, cause: cause}
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upsert rows [%d, %d) failed: %v (committed: %s)",
		e.Batch.Start, e.Batch.End, e.cause, FormatRanges(e.Committed))
}

func (e *UploadError) Unwrap() error { return e.cause }

// StageError names the pipeline stage in which err occurred.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return e.Stage + " stage: " + e.Err.Error()
}

func (e *StageError) Unwrap() error { return e.Err }

// FormatRanges renders ranges as "[a, b) [c, d)", or "none".
func FormatRanges(ranges []RowRange) string {
	if len(ranges) == 0 {
		return "none"
	}
	parts := make([]string, len(ranges))
	for i, r := range ranges {
		parts[i] = fmt.Sprintf("[%d, %d)", r.Start, r.End)
	}
	return strings.Join(parts, " ")
}
