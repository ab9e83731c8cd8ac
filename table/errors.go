package table

import "errors"

var (
	// ErrNoSource is returned when materializing a plan without a source.
	ErrNoSource = errors.New("plan has no source")
)
