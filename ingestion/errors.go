package ingestion

import "errors"

var (
	// ErrEmptyInput is returned (wrapped in *core.EncodingError) when the input has no header row.
	ErrEmptyInput = errors.New("input has no header row")

	// ErrInvalidUTF8 is returned (wrapped in *core.EncodingError) when a cell is not valid UTF-8.
	ErrInvalidUTF8 = errors.New("invalid UTF-8")

	// ErrUnknownKeyField is returned when a duplicate key names an unknown field.
	ErrUnknownKeyField = errors.New("unknown duplicate key field")

	// ErrInvalidChunkSize is returned when the chunk size is not positive.
	ErrInvalidChunkSize = errors.New("chunk size must be greater than 0")

	// ErrSinkFailed is returned when the record sink rejects a chunk.
	ErrSinkFailed = errors.New("record sink failed")
)
