package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/10JERRY01/GreehouseGasEmissionRAG/ai"
	"github.com/10JERRY01/GreehouseGasEmissionRAG/core"
	"github.com/10JERRY01/GreehouseGasEmissionRAG/storage"
	"github.com/panjf2000/ants/v2"
	"golang.org/x/time/rate"
)

// snapshot is one immutable build. Queries read it without locking.
type snapshot struct {
	manifest core.IndexManifest
	docs     []*core.Document
	vectors  [][]float32
	byID     map[string]int
}

func newSnapshot(manifest core.IndexManifest, docs []*core.Document, vectors [][]float32) *snapshot {
	byID := make(map[string]int, len(docs))
	for i, d := range docs {
		if _, ok := byID[d.ID]; !ok {
			byID[d.ID] = i
		}
	}
	return &snapshot{manifest: manifest, docs: docs, vectors: vectors, byID: byID}
}

// Index is a brute-force cosine index over the documents of the last
// successful build.
type Index struct {
	embedder     ai.Embedder
	modelVersion string

	batchSize    int
	poolSize     int
	maxRetries   int
	retryDelay   time.Duration
	rateLimit    float64
	embedTimeout time.Duration
	store        storage.SnapshotRepository
	progress     Reporter
	logger       *slog.Logger

	pool    *ants.Pool
	limiter *rate.Limiter

	buildMu sync.Mutex
	current atomic.Pointer[snapshot]
}

// New creates an empty index that embeds with embedder. modelVersion
// identifies the embedding model; snapshots built under another version are
// refused.
func New(embedder ai.Embedder, modelVersion string, opts ...Option) (*Index, error) {
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if modelVersion == "" {
		return nil, errors.New("model version is required")
	}

	idx := &Index{
		embedder:     embedder,
		modelVersion: modelVersion,
		batchSize:    DefaultBatchSize,
		poolSize:     defaultPoolSize(),
		maxRetries:   DefaultMaxRetries,
		retryDelay:   DefaultRetryDelay,
		logger:       slog.Default().With("component", "index"),
	}
	for _, opt := range opts {
		if err := opt(idx); err != nil {
			return nil, err
		}
	}

	pool, err := ants.NewPool(idx.poolSize)
	if err != nil {
		return nil, err
	}
	idx.pool = pool

	if idx.rateLimit > 0 {
		idx.limiter = rate.NewLimiter(rate.Limit(idx.rateLimit), 1)
	}
	return idx, nil
}

// Close releases the worker pool.
func (idx *Index) Close() error {
	idx.pool.Release()
	return nil
}

// ModelVersion returns the embedding model version the index builds with.
func (idx *Index) ModelVersion() string {
	return idx.modelVersion
}

// Ready reports whether a build or restore has succeeded.
func (idx *Index) Ready() bool {
	return idx.current.Load() != nil
}

// Manifest describes the serving snapshot. ok is false before the first build.
func (idx *Index) Manifest() (manifest core.IndexManifest, ok bool) {
	snap := idx.current.Load()
	if snap == nil {
		return core.IndexManifest{}, false
	}
	return snap.manifest, true
}

// Len returns the number of indexed documents.
func (idx *Index) Len() int {
	snap := idx.current.Load()
	if snap == nil {
		return 0
	}
	return len(snap.docs)
}

// Document looks up an indexed document by id.
func (idx *Index) Document(id string) (*core.Document, bool) {
	snap := idx.current.Load()
	if snap == nil {
		return nil, false
	}
	i, ok := snap.byID[id]
	if !ok {
		return nil, false
	}
	return snap.docs[i], true
}

// Build embeds docs with the configured progress reporter and replaces the
// serving snapshot.
func (idx *Index) Build(ctx context.Context, docs []*core.Document) error {
	return idx.BuildWithProgress(ctx, docs, idx.progress)
}

// BuildWithProgress embeds docs, persists the result and swaps it in. On any
// failure the previous snapshot keeps serving. progress may be nil.
func (idx *Index) BuildWithProgress(ctx context.Context, docs []*core.Document, progress Reporter) error {
	if len(docs) == 0 {
		return ErrNoDocuments
	}

	idx.buildMu.Lock()
	defer idx.buildMu.Unlock()

	start := time.Now()
	idx.logger.Info("building index", "documents", len(docs), "batch_size", idx.batchSize, "model_version", idx.modelVersion)

	if progress != nil {
		progress.Start(len(docs))
	}
	vectors, err := idx.embedAll(ctx, docs, progress)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		idx.logger.Error("index build failed", "error", err)
		return fmt.Errorf("%w: %w", core.ErrEmbeddingService, err)
	}
	if progress != nil {
		progress.Finish()
	}

	manifest := core.IndexManifest{
		ModelVersion: idx.modelVersion,
		Dimension:    len(vectors[0]),
		Documents:    len(docs),
		BuiltAt:      time.Now().UTC().Truncate(time.Microsecond),
	}
	built := slices.Clone(docs)

	if idx.store != nil {
		err := idx.store.SaveSnapshot(ctx, &storage.Snapshot{
			Manifest:  manifest,
			Documents: built,
			Vectors:   vectors,
		})
		if err != nil {
			return fmt.Errorf("failed to persist index snapshot: %w", err)
		}
	}

	idx.current.Store(newSnapshot(manifest, built, vectors))
	idx.logger.Info("index built", "documents", len(docs), "dimension", manifest.Dimension, "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

// Checkpoint is the serving state of an Index at one moment. The zero value
// is an index that was never built.
type Checkpoint struct {
	snap *snapshot
}

// Checkpoint captures the serving snapshot so a later build can be undone
// with Revert.
func (idx *Index) Checkpoint() Checkpoint {
	return Checkpoint{snap: idx.current.Load()}
}

// Revert serves cp again and rewrites the persisted snapshot to match it.
// Reverting to a checkpoint taken before the first build leaves the index
// not ready and deletes the persisted snapshot. The in-memory state is
// reverted even when persisting fails.
func (idx *Index) Revert(ctx context.Context, cp Checkpoint) error {
	idx.buildMu.Lock()
	defer idx.buildMu.Unlock()

	idx.current.Store(cp.snap)
	if idx.store == nil {
		return nil
	}

	var err error
	if cp.snap == nil {
		err = idx.store.DeleteSnapshot(ctx)
	} else {
		err = idx.store.SaveSnapshot(ctx, &storage.Snapshot{
			Manifest:  cp.snap.manifest,
			Documents: cp.snap.docs,
			Vectors:   cp.snap.vectors,
		})
	}
	if err != nil {
		return fmt.Errorf("failed to persist reverted snapshot: %w", err)
	}
	idx.logger.Info("index reverted", "documents", len(cp.Documents()))
	return nil
}

// Documents returns the documents served at the checkpoint.
func (cp Checkpoint) Documents() []*core.Document {
	if cp.snap == nil {
		return nil
	}
	return cp.snap.docs
}

// Restore loads the persisted snapshot and starts serving it. A snapshot
// built with another model version is refused with
// core.ErrModelVersionMismatch; storage.ErrNotFound means nothing was saved.
func (idx *Index) Restore(ctx context.Context) (core.IndexManifest, error) {
	if idx.store == nil {
		return core.IndexManifest{}, ErrNoStore
	}

	snap, err := idx.store.LoadSnapshot(ctx)
	if err != nil {
		return core.IndexManifest{}, err
	}
	if snap.Manifest.ModelVersion != idx.modelVersion {
		return snap.Manifest, fmt.Errorf("%w: snapshot built with %q, embedder is %q",
			core.ErrModelVersionMismatch, snap.Manifest.ModelVersion, idx.modelVersion)
	}
	if err := snap.Validate(); err != nil {
		return snap.Manifest, err
	}

	idx.buildMu.Lock()
	defer idx.buildMu.Unlock()
	idx.current.Store(newSnapshot(snap.Manifest, snap.Documents, snap.Vectors))
	idx.logger.Info("index restored", "documents", snap.Manifest.Documents, "built_at", snap.Manifest.BuiltAt)
	return snap.Manifest, nil
}

// Query returns up to k documents most similar to text, highest score first.
// Equal scores keep build order. A served snapshot always carries the index's
// model version: Build stamps it and Restore refuses any other.
func (idx *Index) Query(ctx context.Context, text string, k int) ([]*core.SearchResult, error) {
	snap := idx.current.Load()
	if snap == nil {
		return nil, core.ErrNotReady
	}
	if k <= 0 {
		return []*core.SearchResult{}, nil
	}
	vector, err := idx.embedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrEmbeddingService, err)
	}
	if len(vector) != snap.manifest.Dimension {
		return nil, fmt.Errorf("%w: %w: query has %d, index %d",
			core.ErrEmbeddingService, ErrDimensionMismatch, len(vector), snap.manifest.Dimension)
	}

	return snap.search(vector, k), nil
}

func (s *snapshot) search(vector []float32, k int) []*core.SearchResult {
	scores := make([]float32, len(s.docs))
	order := make([]int, len(s.docs))
	for i, v := range s.vectors {
		scores[i] = dotProduct(vector, v)
		order[i] = i
	}

	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case scores[a] > scores[b]:
			return -1
		case scores[a] < scores[b]:
			return 1
		}
		return 0
	})

	k = min(k, len(order))
	results := make([]*core.SearchResult, k)
	for i, pos := range order[:k] {
		results[i] = &core.SearchResult{Document: s.docs[pos], Score: scores[pos]}
	}
	return results
}
