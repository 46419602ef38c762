package badger

import "errors"

// Stores bundles the repositories that share one Backend.
type Stores struct {
	Backend   *Backend
	Records   *RecordRepository
	Documents *DocumentRepository
	Snapshots *SnapshotRepository
}

// OpenStores opens a backend at path and builds every repository on it.
func OpenStores(path string, inMemory bool) (*Stores, error) {
	backend, err := OpenBackend(path, inMemory)
	if err != nil {
		return nil, err
	}
	return &Stores{
		Backend:   backend,
		Records:   NewRecordRepository(backend),
		Documents: NewDocumentRepository(backend),
		Snapshots: NewSnapshotRepository(backend),
	}, nil
}

// Close closes the repositories and then the backend.
func (s *Stores) Close() error {
	return errors.Join(
		s.Records.Close(),
		s.Documents.Close(),
		s.Snapshots.Close(),
		s.Backend.Close(),
	)
}
