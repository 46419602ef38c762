package badger

import (
	"context"

	"github.com/10JERRY01/GreehouseGasEmissionRAG/core"
	"github.com/10JERRY01/GreehouseGasEmissionRAG/storage"
	"github.com/dgraph-io/badger/v4"
)

// RecordRepository implements storage.RecordRepository for BadgerDB.
type RecordRepository struct {
	backend *Backend
}

var _ storage.RecordRepository = (*RecordRepository)(nil)

// NewRecordRepository creates a new RecordRepository.
func NewRecordRepository(backend *Backend) *RecordRepository {
	return &RecordRepository{backend: backend}
}

// Close does nothing; the backend is closed by its owner.
func (r *RecordRepository) Close() error {
	return nil
}

// BeginGeneration starts staging a replacement record and document set.
func (r *RecordRepository) BeginGeneration(ctx context.Context) (storage.Generation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return newGeneration(r.backend)
}

// Records returns the committed records in ingestion order.
func (r *RecordRepository) Records(ctx context.Context) ([]*core.CanonicalRecord, error) {
	var records []*core.CanonicalRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		gen, err := currentGeneration(tx, dataGenerationKey)
		if err != nil || gen == 0 {
			return err
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeGenerationPrefix(recordPrefix, gen)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := iter.Item().Value(func(val []byte) error {
				record, err := storage.UnmarshalRecord(val)
				if err != nil {
					return err
				}
				records = append(records, record)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	return records, err
}

// CountRecords returns the number of committed records.
func (r *RecordRepository) CountRecords(ctx context.Context) (int, error) {
	var n int
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		gen, err := currentGeneration(tx, dataGenerationKey)
		if err != nil || gen == 0 {
			return err
		}
		n = countPrefix(tx, makeGenerationPrefix(recordPrefix, gen))
		return nil
	}, false)
	return n, err
}
