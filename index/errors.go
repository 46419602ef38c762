package index

import "errors"

var (
	// ErrNoDocuments is returned when Build is called with no documents.
	ErrNoDocuments = errors.New("no documents to index")

	// ErrNoStore is returned by Restore when no snapshot store is configured.
	ErrNoStore = errors.New("no snapshot store configured")

	// ErrDimensionMismatch indicates embeddings of different lengths.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrCountMismatch indicates the embedder returned a different number of
	// vectors than texts.
	ErrCountMismatch = errors.New("embedding count mismatch")

	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")
)
