package core

import (
	"errors"
	"fmt"
	"strings"
)

// Error taxonomy. Typed errors below match these with errors.Is.
var (
	// ErrSchema indicates the input header cannot be mapped. Fatal for the file.
	ErrSchema = errors.New("schema error")

	// ErrEncoding indicates the input cannot be decoded as delimited text. Fatal for the file.
	ErrEncoding = errors.New("encoding error")

	// ErrValidation indicates a single row failed validation. Not fatal.
	ErrValidation = errors.New("validation error")

	// ErrEmbeddingService indicates the embedding service failed. Fatal for the current build only.
	ErrEmbeddingService = errors.New("embedding service error")

	// ErrGenerationService indicates the generation service failed. Not fatal to a query.
	ErrGenerationService = errors.New("generation service error")

	// ErrInvalidQuery indicates an empty or malformed question.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrNotReady indicates a query was issued before any successful index build.
	ErrNotReady = errors.New("index not ready")

	// ErrModelVersionMismatch indicates an index is queried or restored with a
	// different embedding model than it was built with.
	ErrModelVersionMismatch = errors.New("embedding model version mismatch")

	// ErrInvalidRecord indicates a CanonicalRecord failed validation.
	ErrInvalidRecord = errors.New("invalid record")
)

// SchemaError names the logical fields that could not be resolved to exactly
// one column of a header.
type SchemaError struct {
	Missing   []string
	Ambiguous []string
	Detail    string
}

func (e *SchemaError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required columns: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Ambiguous) > 0 {
		parts = append(parts, "ambiguous columns: "+strings.Join(e.Ambiguous, ", "))
	}
	if e.Detail != "" {
		parts = append(parts, e.Detail)
	}
	if len(parts) == 0 {
		return ErrSchema.Error()
	}
	return ErrSchema.Error() + ": " + strings.Join(parts, "; ")
}

func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema
}

// EncodingError reports why an input could not be decoded.
type EncodingError struct {
	Line int // 0 when not tied to a line
	Err  error
}

func (e *EncodingError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: line %d: %v", ErrEncoding, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", ErrEncoding, e.Err)
}

func (e *EncodingError) Is(target error) bool {
	return target == ErrEncoding
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}

// ValidationError explains why one input row was rejected.
type ValidationError struct {
	Row    int
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: row %d: %s", ErrValidation, e.Row, e.Reason)
	}
	return fmt.Sprintf("%s: row %d: %s: %s", ErrValidation, e.Row, e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
