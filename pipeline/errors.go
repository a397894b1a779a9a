package pipeline

import "errors"

var (
	// ErrInvalidConfig is returned when a stage configuration has out-of-range values.
	ErrInvalidConfig = errors.New("invalid pipeline config")

	// ErrInvalidMaxRetries is returned when MaxRetries is negative
	ErrInvalidMaxRetries = errors.New("max retries must not be negative")

	// ErrRetriesExhausted wraps the last error of an operation that failed on every attempt.
	ErrRetriesExhausted = errors.New("retries exhausted")

	// ErrInputDirMissing is returned when the document directory does not exist.
	ErrInputDirMissing = errors.New("input directory not found")

	// ErrNoDocuments is returned when the document directory holds no PDFs.
	ErrNoDocuments = errors.New("no PDF files found")

	// ErrInvalidResumeOffset is returned when a resume offset is outside the document list.
	ErrInvalidResumeOffset = errors.New("resume offset out of range")

	// ErrUpstreamMissing is returned when the previous stage's store does not exist yet.
	ErrUpstreamMissing = errors.New("upstream store not found")

	// ErrStoreMismatch is returned when the embedding store does not line up
	// with the chunk store it was produced from.
	ErrStoreMismatch = errors.New("embedding store does not match chunk store")
)
