// Package pgvector stores index snapshots in PostgreSQL using the pgvector
// extension. It implements storage.SnapshotRepository only; records and
// documents stay in the embedded store.
package pgvector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/10JERRY01/GreehouseGasEmissionRAG/core"
	"github.com/10JERRY01/GreehouseGasEmissionRAG/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

// DefaultTable is the entry table name used when none is configured.
const DefaultTable = "ghg_index"

// ErrInvalidTable indicates a table name that cannot be used unquoted.
var ErrInvalidTable = errors.New("invalid table name")

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,55}$`)

// ValidateTable checks that name is a plain lower-case identifier short
// enough to take the _manifest suffix.
func ValidateTable(name string) error {
	if !tableName.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidTable, name)
	}
	return nil
}

// Store implements storage.SnapshotRepository on a pgx pool.
type Store struct {
	pool   *pgxpool.Pool
	table  string
	logger *slog.Logger
}

var _ storage.SnapshotRepository = (*Store)(nil)

// Open connects to connString, installs the vector extension and creates the
// snapshot tables if missing.
func Open(ctx context.Context, connString, table string) (*Store, error) {
	if table == "" {
		table = DefaultTable
	}
	if err := ValidateTable(table); err != nil {
		return nil, err
	}

	// The vector type must exist before pooled connections register it.
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	_, err = conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	conn.Close(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create vector extension: %w", err)
	}

	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, err
	}
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{
		pool:   pool,
		table:  table,
		logger: slog.Default().With("component", "pgvector", "table", table),
	}
	if err := s.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	for _, stmt := range schemaStatements(s.table) {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create snapshot tables: %w", err)
		}
	}
	return nil
}

// schemaStatements returns the DDL for the entry and manifest tables. The
// embedding column has no fixed dimension so a new model can replace the
// snapshot without a migration.
func schemaStatements(table string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			position INTEGER PRIMARY KEY,
			document_id TEXT NOT NULL,
			document JSONB NOT NULL,
			embedding vector NOT NULL
		)`, table),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s_manifest (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			model_version TEXT NOT NULL,
			dimension INTEGER NOT NULL,
			documents INTEGER NOT NULL,
			built_at TIMESTAMPTZ NOT NULL
		)`, table),
	}
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// SaveSnapshot replaces the stored snapshot in one transaction.
func (s *Store) SaveSnapshot(ctx context.Context, snapshot *storage.Snapshot) error {
	if err := snapshot.Validate(); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s", s.table)); err != nil {
		return err
	}

	rows := make([][]any, len(snapshot.Documents))
	for i, doc := range snapshot.Documents {
		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
		}
		rows[i] = []any{i, doc.ID, data, pgvector.NewVector(snapshot.Vectors[i])}
	}
	copied, err := tx.CopyFrom(ctx,
		pgx.Identifier{s.table},
		[]string{"position", "document_id", "document", "embedding"},
		pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to copy snapshot entries: %w", err)
	}

	m := snapshot.Manifest
	_, err = tx.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s_manifest (id, model_version, dimension, documents, built_at)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			model_version = EXCLUDED.model_version,
			dimension = EXCLUDED.dimension,
			documents = EXCLUDED.documents,
			built_at = EXCLUDED.built_at`, s.table),
		m.ModelVersion, m.Dimension, m.Documents, m.BuiltAt)
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	s.logger.Info("saved snapshot", "documents", copied, "model_version", m.ModelVersion)
	return nil
}

// DeleteSnapshot removes the manifest and every entry in one transaction.
func (s *Store) DeleteSnapshot(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s_manifest", s.table)); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s", s.table)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit snapshot delete: %w", err)
	}
	s.logger.Info("deleted snapshot")
	return nil
}

// LoadSnapshot reads the stored snapshot or returns storage.ErrNotFound.
func (s *Store) LoadSnapshot(ctx context.Context) (*storage.Snapshot, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var m core.IndexManifest
	err = tx.QueryRow(ctx, fmt.Sprintf(
		"SELECT model_version, dimension, documents, built_at FROM %s_manifest WHERE id = 1", s.table)).
		Scan(&m.ModelVersion, &m.Dimension, &m.Documents, &m.BuiltAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, fmt.Sprintf(
		"SELECT document, embedding FROM %s ORDER BY position", s.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snapshot := &storage.Snapshot{
		Manifest:  m,
		Documents: make([]*core.Document, 0, m.Documents),
		Vectors:   make([][]float32, 0, m.Documents),
	}
	for rows.Next() {
		var data []byte
		var embedding pgvector.Vector
		if err := rows.Scan(&data, &embedding); err != nil {
			return nil, err
		}
		doc := &core.Document{}
		if err := json.Unmarshal(data, doc); err != nil {
			return nil, fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
		}
		snapshot.Documents = append(snapshot.Documents, doc)
		snapshot.Vectors = append(snapshot.Vectors, embedding.Slice())
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := snapshot.Validate(); err != nil {
		return nil, err
	}
	return snapshot, nil
}
