package badger

import (
	"context"
	"fmt"

	"github.com/10JERRY01/GreehouseGasEmissionRAG/core"
	"github.com/10JERRY01/GreehouseGasEmissionRAG/storage"
	"github.com/dgraph-io/badger/v4"
)

// DocumentRepository implements storage.DocumentRepository for BadgerDB.
type DocumentRepository struct {
	backend *Backend
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(backend *Backend) *DocumentRepository {
	return &DocumentRepository{backend: backend}
}

// Close does nothing; the backend is closed by its owner.
func (r *DocumentRepository) Close() error {
	return nil
}

// GetDocument retrieves a committed document by id.
func (r *DocumentRepository) GetDocument(ctx context.Context, id string) (*core.Document, error) {
	var doc *core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		gen, err := currentGeneration(tx, dataGenerationKey)
		if err != nil {
			return err
		}
		if gen == 0 {
			return storage.ErrNotFound
		}
		doc, err = readDocument(tx, gen, id)
		return err
	}, false)
	return doc, err
}

// GetDocumentsBatch returns up to limit documents starting at offset, in
// ingestion order.
func (r *DocumentRepository) GetDocumentsBatch(ctx context.Context, offset, limit int) ([]*core.Document, error) {
	if offset < 0 || limit < 0 {
		return nil, fmt.Errorf("%w: offset %d, limit %d", storage.ErrInvalidQuery, offset, limit)
	}
	docs := make([]*core.Document, 0, limit)
	if limit == 0 {
		return docs, nil
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		gen, err := currentGeneration(tx, dataGenerationKey)
		if err != nil || gen == 0 {
			return err
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeGenerationPrefix(documentOrderPrefix, gen)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(makePositionKey(documentOrderPrefix, gen, uint64(offset))); iter.Valid() && len(docs) < limit; iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			id, err := iter.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			doc, err := readDocument(tx, gen, string(id))
			if err != nil {
				return err
			}
			docs = append(docs, doc)
		}
		return nil
	}, false)
	return docs, err
}

// CountDocuments returns the number of committed documents.
func (r *DocumentRepository) CountDocuments(ctx context.Context) (int, error) {
	var n int
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		gen, err := currentGeneration(tx, dataGenerationKey)
		if err != nil || gen == 0 {
			return err
		}
		n = countPrefix(tx, makeGenerationPrefix(documentOrderPrefix, gen))
		return nil
	}, false)
	return n, err
}

func readDocument(tx *badger.Txn, gen uint64, id string) (*core.Document, error) {
	item, err := tx.Get(makeDocumentKey(gen, id))
	if err == badger.ErrKeyNotFound {
		return nil, fmt.Errorf("%w: document %s", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	var doc *core.Document
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		doc, unmarshalErr = storage.UnmarshalDocument(val)
		return unmarshalErr
	})
	return doc, err
}
