package reembed

import "errors"

var (
	// ErrInvalidBatchSize is returned when the iterator batch size is not positive.
	ErrInvalidBatchSize = errors.New("batch size must be greater than 0")

	// ErrCountChanged indicates the stored documents changed while they were read.
	ErrCountChanged = errors.New("document count changed during reembedding")
)
