// Package ghgrag answers questions about greenhouse gas emission factors
// from NAICS supply chain tables.
//
// A System owns the record store, the vector index and the query engine:
//
//	sys, err := ghgrag.Open(ctx, cfg)
//	report, err := sys.IngestFile(ctx, "SupplyChainGHGEmissionFactors.csv")
//	answer, err := sys.Answer(ctx, "What is the emission factor for soybean farming?")
package ghgrag

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"sync"

	"github.com/10JERRY01/GreehouseGasEmissionRAG/ai"
	"github.com/10JERRY01/GreehouseGasEmissionRAG/ai/mock"
	"github.com/10JERRY01/GreehouseGasEmissionRAG/ai/openai"
	"github.com/10JERRY01/GreehouseGasEmissionRAG/analysis"
	"github.com/10JERRY01/GreehouseGasEmissionRAG/config"
	"github.com/10JERRY01/GreehouseGasEmissionRAG/core"
	"github.com/10JERRY01/GreehouseGasEmissionRAG/document"
	"github.com/10JERRY01/GreehouseGasEmissionRAG/index"
	"github.com/10JERRY01/GreehouseGasEmissionRAG/ingestion"
	"github.com/10JERRY01/GreehouseGasEmissionRAG/reembed"
	"github.com/10JERRY01/GreehouseGasEmissionRAG/search"
	"github.com/10JERRY01/GreehouseGasEmissionRAG/storage"
	"github.com/10JERRY01/GreehouseGasEmissionRAG/storage/badger"
	"github.com/10JERRY01/GreehouseGasEmissionRAG/storage/pgvector"
)

// ErrNoRecords is returned by Ingest when the input held no acceptable rows.
// Previously ingested data stays in place.
var ErrNoRecords = errors.New("no records accepted")

// System wires storage, the AI provider, ingestion, the index and the query
// engine together.
type System struct {
	cfg       *config.Config
	stores    *badger.Stores
	staging   storage.RecordRepository
	pgStore   *pgvector.Store
	provider  ai.AIProvider
	pipeline  *ingestion.Pipeline
	index     *index.Index
	engine    *search.Engine
	logger    *slog.Logger
	ingestMu  sync.Mutex
	recordsMu sync.RWMutex
	records   []*core.CanonicalRecord
	stale     *core.IndexManifest
}

// Option configures Open.
type Option func(*options)

type options struct {
	provider    ai.AIProvider
	inMemory    bool
	progress    index.Reporter
	monitor     search.QueryMonitor
	autoReembed bool
	reembedOut  io.Writer
	logger      *slog.Logger
}

// WithProvider uses provider instead of the one named by the configuration.
// The System closes it.
func WithProvider(provider ai.AIProvider) Option {
	return func(o *options) {
		o.provider = provider
	}
}

// WithInMemoryStorage keeps records and the index in memory only.
func WithInMemoryStorage() Option {
	return func(o *options) {
		o.inMemory = true
	}
}

// WithBuildProgress reports index build progress to r.
func WithBuildProgress(r index.Reporter) Option {
	return func(o *options) {
		o.progress = r
	}
}

// WithQueryMonitor observes every Answer call.
func WithQueryMonitor(m search.QueryMonitor) Option {
	return func(o *options) {
		o.monitor = m
	}
}

// WithAutoReembed controls whether Open rebuilds an index persisted under a
// different embedding model version. Enabled by default. Progress goes to w,
// which may be nil.
func WithAutoReembed(enabled bool, w io.Writer) Option {
	return func(o *options) {
		o.autoReembed = enabled
		o.reembedOut = w
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Open validates cfg, opens storage and restores the persisted index when
// one exists.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*System, error) {
	o := &options{autoReembed: true, logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &System{cfg: cfg, logger: o.logger.With("component", "system")}
	ok := false
	defer func() {
		if !ok {
			s.Close()
		}
	}()

	stores, err := badger.OpenStores(cfg.Storage.Path, o.inMemory)
	if err != nil {
		return nil, err
	}
	s.stores = stores
	s.staging = stores.Records

	var snapshots storage.SnapshotRepository = stores.Snapshots
	if cfg.Storage.Driver == config.DriverPgvector {
		s.pgStore, err = pgvector.Open(ctx, cfg.Storage.PostgresURL, cfg.Storage.Table)
		if err != nil {
			return nil, err
		}
		snapshots = s.pgStore
	}

	s.provider = o.provider
	if s.provider == nil {
		if s.provider, err = newProvider(cfg); err != nil {
			return nil, err
		}
	}

	if s.pipeline, err = newPipeline(cfg, o.logger); err != nil {
		return nil, err
	}

	indexOpts := []index.Option{
		index.WithBatchSize(cfg.Index.BatchSize),
		index.WithMaxRetries(cfg.Index.MaxRetries),
		index.WithRetryDelay(cfg.Index.RetryDelay),
		index.WithRateLimit(cfg.Index.RateLimit),
		index.WithEmbedTimeout(cfg.Index.EmbedTimeout),
		index.WithStore(snapshots),
		index.WithLogger(o.logger.With("component", "index")),
	}
	if o.progress != nil {
		indexOpts = append(indexOpts, index.WithProgress(o.progress))
	}
	if s.index, err = index.New(s.provider.Embedder(), s.provider.EmbeddingModelVersion(), indexOpts...); err != nil {
		return nil, err
	}

	s.engine, err = search.NewEngine(s.index, s.provider.Generator(),
		search.WithTopK(cfg.Query.TopK),
		search.WithContextBudget(cfg.Query.ContextBudget),
		search.WithGenerationTimeout(cfg.Query.GenerationTimeout),
		search.WithMinScore(float32(cfg.Query.MinScore)),
		search.WithFallback(s.keywordFallback),
		search.WithMonitor(o.monitor),
		search.WithLogger(o.logger.With("component", "search")),
	)
	if err != nil {
		return nil, err
	}

	records, err := stores.Records.Records(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading records: %w", err)
	}
	s.records = records

	if err := s.restore(ctx, o); err != nil {
		return nil, err
	}

	ok = true
	return s, nil
}

func newProvider(cfg *config.Config) (ai.AIProvider, error) {
	switch cfg.AI.Provider {
	case config.ProviderMock:
		return mock.NewMockProviderWithServices(mock.NewMockEmbedder(), mock.NewMockGenerator(), cfg.Index.EmbeddingModelVersion), nil
	default:
		return openai.NewProvider(cfg.AIConfig())
	}
}

func newPipeline(cfg *config.Config, logger *slog.Logger) (*ingestion.Pipeline, error) {
	opts := []ingestion.Option{
		ingestion.WithChunkSize(cfg.Ingestion.ChunkSize),
		ingestion.WithDuplicateKeyFields(cfg.Ingestion.DuplicateKeyFields...),
		ingestion.WithMaxRejections(cfg.Ingestion.MaxRejections),
		ingestion.WithLogger(logger),
	}
	if cfg.Ingestion.PoolSize > 0 {
		opts = append(opts, ingestion.WithPoolSize(cfg.Ingestion.PoolSize))
	}
	return ingestion.NewPipeline(opts...)
}

// restore serves the persisted index. An index built under another model
// version is rebuilt from stored documents when auto reembed is on, and
// otherwise left stale until Reembed is called.
func (s *System) restore(ctx context.Context, o *options) error {
	manifest, err := s.index.Restore(ctx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		s.logger.Info("no persisted index", "records", len(s.records))
		return nil
	case errors.Is(err, core.ErrModelVersionMismatch):
	default:
		s.logger.Warn("persisted index unusable, ingest or reembed to rebuild", "error", err)
		return nil
	}

	if !reembed.NeedsReembed(&manifest, s.index.ModelVersion()) {
		return nil
	}
	if !o.autoReembed {
		s.logger.Warn("persisted index uses another embedding model", "built_with", manifest.ModelVersion, "configured", s.index.ModelVersion())
		s.stale = &manifest
		return nil
	}

	s.logger.Info("embedding model changed, reembedding", "from", manifest.ModelVersion, "to", s.index.ModelVersion())
	if err := s.Reembed(ctx, o.reembedOut); err != nil {
		s.stale = &manifest
		return fmt.Errorf("reembedding for %s: %w", s.index.ModelVersion(), err)
	}
	return nil
}

// Ingest reads an emission table from r, stores its records and documents,
// and rebuilds the index from them. The new data replaces the old only once
// the index is built; on any failure the previous records, documents and
// index stay in place.
func (s *System) Ingest(ctx context.Context, r io.Reader) (*ingestion.Report, error) {
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	gen, err := s.staging.BeginGeneration(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			if err := gen.Discard(); err != nil {
				s.logger.Warn("discarding staged records failed", "error", err)
			}
		}
	}()

	var records []*core.CanonicalRecord
	var docs []*core.Document
	report, err := s.pipeline.Run(ctx, r, func(ctx context.Context, chunk []*core.CanonicalRecord) error {
		chunkDocs := document.BuildAll(chunk)
		if err := gen.AddRecords(ctx, chunk...); err != nil {
			return err
		}
		if err := gen.AddDocuments(ctx, chunkDocs...); err != nil {
			return err
		}
		records = append(records, chunk...)
		docs = append(docs, chunkDocs...)
		return nil
	})
	if err != nil {
		return report, err
	}
	if len(records) == 0 {
		return report, ErrNoRecords
	}

	previous := s.index.Checkpoint()
	if err := s.index.Build(ctx, docs); err != nil {
		return report, err
	}

	if err := gen.Commit(ctx); err != nil {
		// The new snapshot is already served and persisted; put the old one back
		// so the index matches the records that stay visible.
		if revertErr := s.index.Revert(context.WithoutCancel(ctx), previous); revertErr != nil {
			s.logger.Error("reverting index after failed commit", "error", revertErr)
			err = errors.Join(err, revertErr)
		}
		return report, fmt.Errorf("committing records: %w", err)
	}
	committed = true

	s.recordsMu.Lock()
	s.records = records
	s.stale = nil
	s.recordsMu.Unlock()

	s.logger.Info("ingest complete", "records", len(records), "rejected", report.Rejected, "duplicates", report.Duplicates)
	return report, nil
}

// IngestFile opens path and ingests it.
func (s *System) IngestFile(ctx context.Context, path string) (*ingestion.Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return s.Ingest(ctx, f)
}

// Answer answers question from the indexed documents.
func (s *System) Answer(ctx context.Context, question string) (*core.Answer, error) {
	return s.engine.Answer(ctx, question)
}

// Related returns up to k indexed documents similar to question.
func (s *System) Related(ctx context.Context, question string, k int) ([]*core.SearchResult, error) {
	return s.engine.Related(ctx, question, k)
}

// Reembed rebuilds the index from stored documents under the configured
// embedding model. Progress is written to w, which may be nil.
func (s *System) Reembed(ctx context.Context, w io.Writer) error {
	s.ingestMu.Lock()
	defer s.ingestMu.Unlock()

	r := reembed.NewReembedder(s.stores.Documents, s.index, &reembed.Config{
		BatchSize:      s.cfg.Index.BatchSize,
		ReportInterval: s.cfg.Index.BatchSize,
	}, w)
	if err := r.Run(ctx); err != nil {
		return err
	}

	s.recordsMu.Lock()
	s.stale = nil
	s.recordsMu.Unlock()
	return nil
}

func (s *System) keywordFallback(_ context.Context, question string, limit int) ([]*core.Document, error) {
	return document.BuildAll(analysis.Keywords(s.Records(), question, limit)), nil
}

// Records returns the ingested records in source order.
func (s *System) Records() []*core.CanonicalRecord {
	s.recordsMu.RLock()
	defer s.recordsMu.RUnlock()
	return slices.Clone(s.records)
}

// Summary summarizes the ingested records.
func (s *System) Summary() *analysis.Summary {
	return analysis.Summarize(s.Records())
}

// SearchNAICS finds industries by code or title substring.
func (s *System) SearchNAICS(term string) []analysis.Match {
	return analysis.SearchNAICS(s.Records(), term)
}

// Trends returns the records of a NAICS code by schema year.
func (s *System) Trends(code string) []*core.CanonicalRecord {
	return analysis.Trends(s.Records(), code)
}

// TrendSummary averages the factors of a NAICS code per schema year.
func (s *System) TrendSummary(code string) []analysis.YearTrend {
	return analysis.TrendSummary(s.Records(), code)
}

// Status describes the stored data and the serving index.
type Status struct {
	Ready        bool
	ModelVersion string
	Manifest     core.IndexManifest
	Records      int
	Documents    int
	// Stale is set when the persisted index was built with another model
	// and has not been rebuilt yet.
	Stale *core.IndexManifest
	// Storage names the snapshot backend: "badger" or "pgvector".
	Storage string
}

// Status reports readiness and counts.
func (s *System) Status(ctx context.Context) (*Status, error) {
	docs, err := s.stores.Documents.CountDocuments(ctx)
	if err != nil {
		return nil, err
	}

	st := &Status{
		Ready:        s.index.Ready(),
		ModelVersion: s.index.ModelVersion(),
		Documents:    docs,
		Storage:      s.cfg.Storage.Driver,
	}
	st.Manifest, _ = s.index.Manifest()

	s.recordsMu.RLock()
	st.Records = len(s.records)
	st.Stale = s.stale
	s.recordsMu.RUnlock()
	return st, nil
}

// Ready reports whether questions can be answered.
func (s *System) Ready() bool {
	return s.index.Ready()
}

// Close releases every resource. It is safe to call on a partially opened
// System.
func (s *System) Close() error {
	var errs []error
	if s.provider != nil {
		if err := s.provider.Close(); err != nil {
			s.logger.Error("error closing AI provider", "err", err)
			errs = append(errs, err)
		}
	}
	if s.pipeline != nil {
		s.pipeline.Release()
	}
	if s.index != nil {
		errs = append(errs, s.index.Close())
	}
	if s.pgStore != nil {
		errs = append(errs, s.pgStore.Close())
	}
	if s.stores != nil {
		if err := s.stores.Close(); err != nil {
			s.logger.Error("error closing storage", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
