package badger

import (
	"context"
	"sync"

	"github.com/10JERRY01/GreehouseGasEmissionRAG/core"
	"github.com/10JERRY01/GreehouseGasEmissionRAG/storage"
	"github.com/dgraph-io/badger/v4"
)

// Generation implements storage.Generation for BadgerDB. Writes go through a
// WriteBatch under keys of a generation number that no reader looks at until
// Commit moves the data generation pointer.
type Generation struct {
	backend *Backend
	id      uint64

	mu      sync.Mutex
	batch   *badger.WriteBatch
	records uint64
	docs    uint64
	done    bool
	commit  bool
}

var _ storage.Generation = (*Generation)(nil)

func newGeneration(backend *Backend) (*Generation, error) {
	id, err := backend.nextGeneration()
	if err != nil {
		return nil, err
	}
	return &Generation{
		backend: backend,
		id:      id,
		batch:   backend.db.NewWriteBatch(),
	}, nil
}

// AddRecords stages records in the order given.
func (g *Generation) AddRecords(ctx context.Context, records ...*core.CanonicalRecord) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done {
		return storage.ErrGenerationClosed
	}
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		value, err := storage.MarshalRecord(record)
		if err != nil {
			return err
		}
		if err := g.batch.Set(makePositionKey(recordPrefix, g.id, g.records), value); err != nil {
			return err
		}
		g.records++
	}
	return nil
}

// AddDocuments stages documents in the order given.
func (g *Generation) AddDocuments(ctx context.Context, docs ...*core.Document) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done {
		return storage.ErrGenerationClosed
	}
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		value, err := storage.MarshalDocument(doc)
		if err != nil {
			return err
		}
		if err := g.batch.Set(makeDocumentKey(g.id, doc.ID), value); err != nil {
			return err
		}
		if err := g.batch.Set(makePositionKey(documentOrderPrefix, g.id, g.docs), []byte(doc.ID)); err != nil {
			return err
		}
		g.docs++
	}
	return nil
}

// Commit flushes the staged writes, makes them visible and deletes the
// generation they replace.
func (g *Generation) Commit(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done {
		return storage.ErrGenerationClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	g.done = true
	if err := g.batch.Flush(); err != nil {
		return err
	}

	previous, err := g.backend.swapGeneration(dataGenerationKey, g.id)
	if err != nil {
		if dropErr := g.backend.deletePrefixes(dataGenerationPrefixes(g.id)...); dropErr != nil {
			g.backend.logger.Warn("failed to drop uncommitted generation", "generation", g.id, "error", dropErr)
		}
		return err
	}
	g.commit = true

	if previous != 0 {
		if err := g.backend.deletePrefixes(dataGenerationPrefixes(previous)...); err != nil {
			g.backend.logger.Warn("failed to drop replaced generation", "generation", previous, "error", err)
		}
	}
	g.backend.logger.Debug("committed generation", "generation", g.id, "records", g.records, "documents", g.docs)
	return nil
}

// Discard drops the staged writes. It does nothing after a successful Commit.
func (g *Generation) Discard() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.commit {
		return nil
	}
	if !g.done {
		g.batch.Cancel()
		g.done = true
	}
	// A WriteBatch commits as it fills, so part of it may be on disk.
	return g.backend.deletePrefixes(dataGenerationPrefixes(g.id)...)
}
