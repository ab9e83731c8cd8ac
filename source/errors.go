package source

import "errors"

var (
	// ErrEmptyURI is returned when no source location is given.
	ErrEmptyURI = errors.New("source uri is empty")

	// ErrInvalidS3URI is returned for s3:// locations without a bucket or key.
	ErrInvalidS3URI = errors.New("invalid s3 uri, expected s3://bucket/key")
)
