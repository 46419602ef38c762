package storage

import (
	"context"
	"fmt"

	"github.com/10JERRY01/GreehouseGasEmissionRAG/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// Close releases resources held by the repository. It does not close a
	// shared backend.
	Close() error
}

// Generation stages one complete ingestion result. Nothing written to a
// generation is visible to readers until Commit; Discard throws it away.
// After Commit or Discard every method returns ErrGenerationClosed.
type Generation interface {
	// AddRecords appends records in the order given.
	AddRecords(ctx context.Context, records ...*core.CanonicalRecord) error

	// AddDocuments appends documents in the order given.
	AddDocuments(ctx context.Context, docs ...*core.Document) error

	// Commit atomically replaces the visible records and documents with the
	// staged ones and deletes the previous generation.
	Commit(ctx context.Context) error

	// Discard drops everything staged. Safe to call after Commit.
	Discard() error
}

// RecordRepository persists canonical records produced by ingestion.
type RecordRepository interface {
	Repository

	// BeginGeneration starts staging a replacement record and document set.
	BeginGeneration(ctx context.Context) (Generation, error)

	// Records returns the committed records in ingestion order.
	Records(ctx context.Context) ([]*core.CanonicalRecord, error)

	// CountRecords returns the number of committed records.
	CountRecords(ctx context.Context) (int, error)
}

// DocumentRepository reads the documents committed alongside the records.
type DocumentRepository interface {
	Repository

	// GetDocument retrieves a document by id.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id string) (*core.Document, error)

	// GetDocumentsBatch returns up to limit documents starting at offset, in
	// ingestion order. An offset past the end yields an empty slice.
	GetDocumentsBatch(ctx context.Context, offset, limit int) ([]*core.Document, error)

	// CountDocuments returns the number of committed documents.
	CountDocuments(ctx context.Context) (int, error)
}

// Snapshot is a persisted vector index: its manifest plus one document and
// one vector per entry, in build order.
type Snapshot struct {
	Manifest  core.IndexManifest
	Documents []*core.Document
	Vectors   [][]float32
}

// SnapshotRepository persists built vector indexes.
type SnapshotRepository interface {
	Repository

	// SaveSnapshot replaces the stored snapshot. The previous snapshot stays
	// readable until the new one is complete.
	SaveSnapshot(ctx context.Context, snapshot *Snapshot) error

	// LoadSnapshot returns the stored snapshot.
	// Returns ErrNotFound if none has been saved.
	LoadSnapshot(ctx context.Context) (*Snapshot, error)

	// DeleteSnapshot removes the stored snapshot. Deleting when nothing is
	// stored is not an error.
	DeleteSnapshot(ctx context.Context) error
}

// Validate checks that a snapshot is internally consistent.
func (s *Snapshot) Validate() error {
	if len(s.Documents) != len(s.Vectors) {
		return fmt.Errorf("%w: %d documents, %d vectors", ErrTruncatedData, len(s.Documents), len(s.Vectors))
	}
	if s.Manifest.Documents != len(s.Documents) {
		return fmt.Errorf("%w: manifest lists %d documents, found %d", ErrTruncatedData, s.Manifest.Documents, len(s.Documents))
	}
	for i, v := range s.Vectors {
		if len(v) != s.Manifest.Dimension {
			return fmt.Errorf("%w: entry %d has %d, manifest %d", ErrDimensionMismatch, i, len(v), s.Manifest.Dimension)
		}
	}
	return nil
}
