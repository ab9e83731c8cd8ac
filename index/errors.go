package index

import "errors"

var (
	// ErrCollectionNotFound is returned when operating on a missing collection.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrCollectionExists is returned when creating a collection that already exists.
	ErrCollectionExists = errors.New("collection already exists")

	// ErrInvalidURL is returned for a malformed backend URL.
	ErrInvalidURL = errors.New("invalid backend url")

	// ErrInvalidLimit is returned for a non-positive query limit.
	ErrInvalidLimit = errors.New("query limit must be greater than 0")
)
