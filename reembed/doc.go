// Package reembed rebuilds the vector index from stored documents, for
// example after the embedding model version changed.
//
// Documents are streamed from storage in batches and handed to one wholesale
// index build; progress is written to an io.Writer.
package reembed
