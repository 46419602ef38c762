package badger

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/10JERRY01/GreehouseGasEmissionRAG/storage"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

const (
	defaultSequenceBandwidth = 100
	deleteBatchSize          = 1000
)

// Backend wraps a BadgerDB instance and provides low-level operations.
type Backend struct {
	db     *badger.DB
	genSeq *badger.Sequence
	logger *slog.Logger
}

// badgerLoggerAdapter adapts slog.Logger to badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

// Badger is chatty at info level; its progress lines go to debug.
func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// OpenBackend opens a BadgerDB database at the specified path.
// Creates the directory if it doesn't exist. With inMemory set the path is
// ignored and nothing touches disk.
func OpenBackend(filePath string, inMemory bool) (*Backend, error) {
	var opts badger.Options

	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := ensureDir(filePath); err != nil {
			return nil, err
		}
		opts = badger.DefaultOptions(filePath)
	}

	logger := slog.Default().With("component", "badger")
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	genSeq, err := db.GetSequence([]byte(generationSeqKey), defaultSequenceBandwidth)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Backend{
		db:     db,
		genSeq: genSeq,
		logger: logger,
	}, nil
}

func ensureDir(filePath string) error {
	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(filePath, 0755); err != nil {
			return err
		}
		info, err = os.Stat(filePath)
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", filePath)
	}
	return nil
}

// Close releases the generation sequence and closes the BadgerDB database.
func (b *Backend) Close() error {
	if b.db.IsClosed() {
		return nil
	}
	seqErr := b.genSeq.Release()
	if err := b.db.Close(); err != nil {
		return err
	}
	return seqErr
}

// IsClosed returns true if the database is closed.
func (b *Backend) IsClosed() bool {
	return b.db.IsClosed()
}

// WithTx executes a function within a BadgerDB transaction.
// If isWrite is true, creates a read-write transaction.
// The transaction is automatically discarded if fn returns an error.
func (b *Backend) WithTx(fn func(tx *badger.Txn) error, isWrite bool) error {
	if b.db.IsClosed() {
		return storage.ErrStorageClosed
	}
	tx := b.db.NewTransaction(isWrite)
	defer tx.Discard()
	return fn(tx)
}

// nextGeneration returns a fresh, never zero, generation number.
func (b *Backend) nextGeneration() (uint64, error) {
	if b.db.IsClosed() {
		return 0, storage.ErrStorageClosed
	}
	id, err := b.genSeq.Next()
	if err != nil {
		return 0, err
	}
	// BadgerDB sequences can return 0 on first call, so we skip it
	if id == 0 {
		return b.genSeq.Next()
	}
	return id, nil
}

// currentGeneration reads the generation pointer stored at key.
// Returns 0 when the pointer was never written.
func currentGeneration(tx *badger.Txn, key string) (uint64, error) {
	item, err := tx.Get([]byte(key))
	if err == badger.ErrKeyNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var gen uint64
	err = item.Value(func(val []byte) error {
		var decodeErr error
		gen, decodeErr = decodeUint64(val)
		return decodeErr
	})
	return gen, err
}

// swapGeneration points key at gen and returns the generation it replaced.
func (b *Backend) swapGeneration(key string, gen uint64) (uint64, error) {
	var previous uint64
	err := b.WithTx(func(tx *badger.Txn) error {
		var err error
		previous, err = currentGeneration(tx, key)
		if err != nil {
			return err
		}
		if err := tx.Set([]byte(key), encodeUint64(gen)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	return previous, err
}

// deletePrefixes removes every key under the given prefixes.
func (b *Backend) deletePrefixes(prefixes ...[]byte) error {
	for _, prefix := range prefixes {
		for {
			keys, err := b.keysWithPrefix(prefix, deleteBatchSize)
			if err != nil {
				return err
			}
			if len(keys) == 0 {
				break
			}
			wb := b.db.NewWriteBatch()
			for _, k := range keys {
				if err := wb.Delete(k); err != nil {
					wb.Cancel()
					return err
				}
			}
			if err := wb.Flush(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *Backend) keysWithPrefix(prefix []byte, limit int) ([][]byte, error) {
	var keys [][]byte
	err := b.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid() && len(keys) < limit; iter.Next() {
			keys = append(keys, iter.Item().KeyCopy(nil))
		}
		return nil
	}, false)
	return keys, err
}

// countPrefix counts the keys under prefix without reading values.
func countPrefix(tx *badger.Txn, prefix []byte) int {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)
	defer iter.Close()

	n := 0
	for iter.Rewind(); iter.Valid(); iter.Next() {
		n++
	}
	return n
}
