package badger

import (
	"context"

	"github.com/10JERRY01/GreehouseGasEmissionRAG/core"
	"github.com/10JERRY01/GreehouseGasEmissionRAG/storage"
	"github.com/dgraph-io/badger/v4"
)

// SnapshotRepository implements storage.SnapshotRepository for BadgerDB.
type SnapshotRepository struct {
	backend *Backend
}

var _ storage.SnapshotRepository = (*SnapshotRepository)(nil)

// NewSnapshotRepository creates a new SnapshotRepository.
func NewSnapshotRepository(backend *Backend) *SnapshotRepository {
	return &SnapshotRepository{backend: backend}
}

// Close does nothing; the backend is closed by its owner.
func (r *SnapshotRepository) Close() error {
	return nil
}

// SaveSnapshot writes the snapshot under a new generation and then points
// the snapshot generation at it.
func (r *SnapshotRepository) SaveSnapshot(ctx context.Context, snapshot *storage.Snapshot) error {
	if err := snapshot.Validate(); err != nil {
		return err
	}
	gen, err := r.backend.nextGeneration()
	if err != nil {
		return err
	}

	if err := r.writeSnapshot(ctx, gen, snapshot); err != nil {
		if dropErr := r.backend.deletePrefixes(snapshotGenerationPrefixes(gen)...); dropErr != nil {
			r.backend.logger.Warn("failed to drop partial snapshot", "generation", gen, "error", dropErr)
		}
		return err
	}

	previous, err := r.backend.swapGeneration(snapshotGenerationKey, gen)
	if err != nil {
		return err
	}
	if previous != 0 {
		if err := r.backend.deletePrefixes(snapshotGenerationPrefixes(previous)...); err != nil {
			r.backend.logger.Warn("failed to drop replaced snapshot", "generation", previous, "error", err)
		}
	}
	return nil
}

// DeleteSnapshot clears the snapshot generation pointer and drops the data
// it pointed at.
func (r *SnapshotRepository) DeleteSnapshot(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	previous, err := r.backend.swapGeneration(snapshotGenerationKey, 0)
	if err != nil {
		return err
	}
	if previous != 0 {
		if err := r.backend.deletePrefixes(snapshotGenerationPrefixes(previous)...); err != nil {
			r.backend.logger.Warn("failed to drop deleted snapshot", "generation", previous, "error", err)
		}
	}
	return nil
}

func (r *SnapshotRepository) writeSnapshot(ctx context.Context, gen uint64, snapshot *storage.Snapshot) error {
	wb := r.backend.db.NewWriteBatch()
	defer wb.Cancel()

	for i, doc := range snapshot.Documents {
		if err := ctx.Err(); err != nil {
			return err
		}
		value, err := storage.MarshalEntry(doc, snapshot.Vectors[i])
		if err != nil {
			return err
		}
		if err := wb.Set(makePositionKey(snapshotEntryPrefix, gen, uint64(i)), value); err != nil {
			return err
		}
	}

	manifest, err := storage.MarshalManifest(&snapshot.Manifest)
	if err != nil {
		return err
	}
	if err := wb.Set(makeGenerationPrefix(snapshotManifestPrefix, gen), manifest); err != nil {
		return err
	}
	return wb.Flush()
}

// LoadSnapshot returns the current snapshot or storage.ErrNotFound.
func (r *SnapshotRepository) LoadSnapshot(ctx context.Context) (*storage.Snapshot, error) {
	var snapshot *storage.Snapshot
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		gen, err := currentGeneration(tx, snapshotGenerationKey)
		if err != nil {
			return err
		}
		if gen == 0 {
			return storage.ErrNotFound
		}

		item, err := tx.Get(makeGenerationPrefix(snapshotManifestPrefix, gen))
		if err == badger.ErrKeyNotFound {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		var manifest *core.IndexManifest
		err = item.Value(func(val []byte) error {
			var unmarshalErr error
			manifest, unmarshalErr = storage.UnmarshalManifest(val)
			return unmarshalErr
		})
		if err != nil {
			return err
		}

		snapshot = &storage.Snapshot{
			Manifest:  *manifest,
			Documents: make([]*core.Document, 0, manifest.Documents),
			Vectors:   make([][]float32, 0, manifest.Documents),
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeGenerationPrefix(snapshotEntryPrefix, gen)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := iter.Item().Value(func(val []byte) error {
				doc, vector, err := storage.UnmarshalEntry(val)
				if err != nil {
					return err
				}
				snapshot.Documents = append(snapshot.Documents, doc)
				snapshot.Vectors = append(snapshot.Vectors, vector)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return snapshot.Validate()
	}, false)
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}
