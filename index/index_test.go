package index

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/10JERRY01/GreehouseGasEmissionRAG/ai/mock"
	"github.com/10JERRY01/GreehouseGasEmissionRAG/core"
	"github.com/10JERRY01/GreehouseGasEmissionRAG/document"
	"github.com/10JERRY01/GreehouseGasEmissionRAG/storage"
	"github.com/10JERRY01/GreehouseGasEmissionRAG/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(code, title string, factor float64) *core.CanonicalRecord {
	return &core.CanonicalRecord{
		NAICSCode:           code,
		NAICSTitle:          title,
		SchemaYear:          2017,
		GHG:                 "CO2",
		Unit:                "kg CO2e/2022 USD, purchaser price",
		FactorWithoutMargin: factor,
		Margin:              0.01,
		FactorWithMargin:    factor + 0.01,
	}
}

func farmDocs() []*core.Document {
	return document.BuildAll([]*core.CanonicalRecord{
		record("111140", "Wheat Farming", 0.51),
		record("111110", "Soybean Farming", 0.389),
		record("211120", "Crude Petroleum Extraction", 0.9),
	})
}

func numberedDocs(n int) []*core.Document {
	docs := make([]*core.Document, n)
	for i := range docs {
		docs[i] = &core.Document{ID: fmt.Sprintf("doc-%d", i), Text: fmt.Sprintf("document number%d", i)}
	}
	return docs
}

func newIndex(t *testing.T, embedder *mock.MockEmbedder, opts ...Option) *Index {
	t.Helper()
	opts = append([]Option{WithRetryDelay(time.Millisecond)}, opts...)
	idx, err := New(embedder, mock.DefaultModelVersion, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, "v1")
	assert.Error(t, err)

	_, err = New(mock.NewMockEmbedder(), "")
	assert.Error(t, err)

	tests := []struct {
		name string
		opt  Option
	}{
		{"batch size", WithBatchSize(0)},
		{"pool size", WithPoolSize(-1)},
		{"max retries", WithMaxRetries(0)},
		{"retry delay", WithRetryDelay(-time.Second)},
		{"rate limit", WithRateLimit(-1)},
		{"embed timeout", WithEmbedTimeout(-time.Second)},
		{"logger", WithLogger(nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(mock.NewMockEmbedder(), "v1", tt.opt)
			assert.Error(t, err)
		})
	}
}

func TestQuery_NotReady(t *testing.T) {
	idx := newIndex(t, mock.NewMockEmbedder())

	for _, k := range []int{-1, 0, 4} {
		_, err := idx.Query(context.Background(), "soybean", k)
		assert.ErrorIs(t, err, core.ErrNotReady, "k=%d", k)
	}
	assert.False(t, idx.Ready())
	_, ok := idx.Manifest()
	assert.False(t, ok)
}

func TestBuild_NoDocuments(t *testing.T) {
	idx := newIndex(t, mock.NewMockEmbedder())

	err := idx.Build(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoDocuments)
	assert.False(t, idx.Ready())
}

func TestQuery_SoybeanFirst(t *testing.T) {
	idx := newIndex(t, mock.NewMockEmbedder())
	docs := farmDocs()
	require.NoError(t, idx.Build(context.Background(), docs))

	results, err := idx.Query(context.Background(), "What is the emission factor for soybean farming?", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "111110", results[0].Document.Metadata.NAICSCode)
	assert.Equal(t, "Soybean Farming", results[0].Document.Metadata.NAICSTitle)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestQuery_K(t *testing.T) {
	idx := newIndex(t, mock.NewMockEmbedder())
	require.NoError(t, idx.Build(context.Background(), farmDocs()))

	tests := []struct {
		k    int
		want int
	}{
		{-2, 0},
		{0, 0},
		{1, 1},
		{3, 3},
		{10, 3},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("k=%d", tt.k), func(t *testing.T) {
			results, err := idx.Query(context.Background(), "farming", tt.k)
			require.NoError(t, err)
			assert.Len(t, results, tt.want)
		})
	}
}

func TestQuery_TiesKeepBuildOrder(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	same := func(n int) [][]float32 {
		out := make([][]float32, n)
		for i := range out {
			out[i] = []float32{1, 1}
		}
		return out
	}
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return same(len(texts)), nil
	}
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 0}, nil
	}

	idx := newIndex(t, embedder, WithBatchSize(2), WithPoolSize(4))
	docs := numberedDocs(9)
	require.NoError(t, idx.Build(context.Background(), docs))

	results, err := idx.Query(context.Background(), "anything", 9)
	require.NoError(t, err)
	for i, r := range results {
		assert.Equal(t, docs[i].ID, r.Document.ID)
	}
}

// oneHot embeds "document numberN" as the N-th unit vector.
func oneHot(text string) []float32 {
	var n int
	fmt.Sscanf(text, "document number%d", &n)
	v := make([]float32, 32)
	v[n] = 1
	return v
}

func TestBuild_ConcurrentBatchesKeepPositions(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return oneHot(text), nil
	}
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = oneHot(text)
		}
		return out, nil
	}

	idx := newIndex(t, embedder, WithBatchSize(3), WithPoolSize(4))
	docs := numberedDocs(20)
	require.NoError(t, idx.Build(context.Background(), docs))
	assert.Equal(t, 20, idx.Len())

	for _, want := range []int{0, 7, 19} {
		results, err := idx.Query(context.Background(), docs[want].Text, 1)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, docs[want].ID, results[0].Document.ID)
		assert.InDelta(t, 1.0, results[0].Score, 1e-5)
	}
}

func TestBuild_FailureKeepsPreviousSnapshot(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	idx := newIndex(t, embedder, WithMaxRetries(2))
	ctx := context.Background()

	require.NoError(t, idx.Build(ctx, farmDocs()))
	before, _ := idx.Manifest()

	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("service unavailable")
	}
	err := idx.Build(ctx, numberedDocs(5))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrEmbeddingService)
	assert.ErrorContains(t, err, "service unavailable")

	after, ok := idx.Manifest()
	require.True(t, ok)
	assert.Equal(t, before, after)
	assert.Equal(t, 3, idx.Len())

	embedder.EmbedTextsFunc = nil
	results, err := idx.Query(ctx, "soybean farming", 1)
	require.NoError(t, err)
	assert.Equal(t, "111110", results[0].Document.Metadata.NAICSCode)
}

func TestBuild_RetriesTransientFailures(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	var calls atomic.Int32
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		if calls.Add(1) <= 2 {
			return nil, errors.New("timeout")
		}
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = mock.WordVector(text, 16)
		}
		return out, nil
	}

	idx := newIndex(t, embedder, WithMaxRetries(3), WithBatchSize(10))
	require.NoError(t, idx.Build(context.Background(), numberedDocs(4)))
	assert.Equal(t, int32(3), calls.Load())
}

func TestBuild_EmbedderContractViolations(t *testing.T) {
	tests := []struct {
		name    string
		fn      func(ctx context.Context, texts []string) ([][]float32, error)
		wantErr error
	}{
		{
			name: "count mismatch",
			fn: func(ctx context.Context, texts []string) ([][]float32, error) {
				return [][]float32{{1}}, nil
			},
			wantErr: ErrCountMismatch,
		},
		{
			name: "dimension mismatch",
			fn: func(ctx context.Context, texts []string) ([][]float32, error) {
				out := make([][]float32, len(texts))
				for i := range out {
					out[i] = make([]float32, 2+len(texts[i])%2)
					out[i][0] = 1
				}
				return out, nil
			},
			wantErr: ErrDimensionMismatch,
		},
		{
			name: "empty vectors",
			fn: func(ctx context.Context, texts []string) ([][]float32, error) {
				return make([][]float32, len(texts)), nil
			},
			wantErr: ErrDimensionMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			embedder := mock.NewMockEmbedder()
			embedder.EmbedTextsFunc = tt.fn
			idx := newIndex(t, embedder, WithMaxRetries(1))

			docs := []*core.Document{{ID: "a", Text: "ab"}, {ID: "b", Text: "abc"}}
			err := idx.Build(context.Background(), docs)
			assert.ErrorIs(t, err, core.ErrEmbeddingService)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.False(t, idx.Ready())
		})
	}
}

func TestBuild_Cancelled(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	ctx, cancel := context.WithCancel(context.Background())
	embedder.EmbedTextsFunc = func(c context.Context, texts []string) ([][]float32, error) {
		cancel()
		return nil, c.Err()
	}

	idx := newIndex(t, embedder)
	err := idx.Build(ctx, farmDocs())
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, core.ErrEmbeddingService)
	assert.False(t, idx.Ready())
}

func TestQuery_EmbeddingFailure(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	idx := newIndex(t, embedder, WithMaxRetries(1))
	require.NoError(t, idx.Build(context.Background(), farmDocs()))

	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("down")
	}
	_, err := idx.Query(context.Background(), "soybean", 2)
	assert.ErrorIs(t, err, core.ErrEmbeddingService)

	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 0}, nil
	}
	_, err = idx.Query(context.Background(), "soybean", 2)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestDocument(t *testing.T) {
	idx := newIndex(t, mock.NewMockEmbedder())
	docs := farmDocs()
	require.NoError(t, idx.Build(context.Background(), docs))

	got, ok := idx.Document(docs[1].ID)
	require.True(t, ok)
	assert.Equal(t, docs[1], got)

	_, ok = idx.Document("missing")
	assert.False(t, ok)
}

type countingReporter struct {
	mu       sync.Mutex
	total    int
	done     int
	finished bool
}

func (r *countingReporter) Start(total int) { r.mu.Lock(); r.total = total; r.mu.Unlock() }
func (r *countingReporter) Increment(n int) { r.mu.Lock(); r.done += n; r.mu.Unlock() }
func (r *countingReporter) Finish()         { r.mu.Lock(); r.finished = true; r.mu.Unlock() }

func TestBuild_ReportsProgress(t *testing.T) {
	reporter := &countingReporter{}
	idx := newIndex(t, mock.NewMockEmbedder(), WithBatchSize(4), WithProgress(reporter), WithRateLimit(1000))
	require.NoError(t, idx.Build(context.Background(), numberedDocs(10)))

	assert.Equal(t, 10, reporter.total)
	assert.Equal(t, 10, reporter.done)
	assert.True(t, reporter.finished)
}

func TestQuery_ConcurrentWithRebuild(t *testing.T) {
	idx := newIndex(t, mock.NewMockEmbedder(), WithBatchSize(2))
	ctx := context.Background()
	require.NoError(t, idx.Build(ctx, numberedDocs(6)))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				results, err := idx.Query(ctx, "document", 10)
				if assert.NoError(t, err) {
					n := len(results)
					assert.True(t, n == 6 || n == 9, "saw partial snapshot of %d", n)
				}
			}
		}()
	}
	require.NoError(t, idx.Build(ctx, numberedDocs(9)))
	wg.Wait()
	assert.Equal(t, 9, idx.Len())
}

func TestPersistAndRestore(t *testing.T) {
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()
	ctx := context.Background()

	built := newIndex(t, mock.NewMockEmbedder(), WithStore(stores.Snapshots))
	require.NoError(t, built.Build(ctx, farmDocs()))
	want, _ := built.Manifest()

	embedder := mock.NewMockEmbedder()
	restored := newIndex(t, embedder, WithStore(stores.Snapshots))
	manifest, err := restored.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, want.Documents, manifest.Documents)
	assert.Equal(t, 0, embedder.CallCount(), "restore must not embed documents")

	results, err := restored.Query(ctx, "soybean farming", 1)
	require.NoError(t, err)
	assert.Equal(t, "111110", results[0].Document.Metadata.NAICSCode)
	assert.Equal(t, 1, embedder.CallCount())
}

func TestRestore_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("no store", func(t *testing.T) {
		idx := newIndex(t, mock.NewMockEmbedder())
		_, err := idx.Restore(ctx)
		assert.ErrorIs(t, err, ErrNoStore)
	})

	t.Run("nothing saved", func(t *testing.T) {
		stores, err := badger.NewMemoryStores()
		require.NoError(t, err)
		defer stores.Close()

		idx := newIndex(t, mock.NewMockEmbedder(), WithStore(stores.Snapshots))
		_, err = idx.Restore(ctx)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("model version mismatch", func(t *testing.T) {
		stores, err := badger.NewMemoryStores()
		require.NoError(t, err)
		defer stores.Close()

		old, err := New(mock.NewMockEmbedder(), "old-model", WithStore(stores.Snapshots))
		require.NoError(t, err)
		defer old.Close()
		require.NoError(t, old.Build(ctx, farmDocs()))

		idx := newIndex(t, mock.NewMockEmbedder(), WithStore(stores.Snapshots))
		manifest, err := idx.Restore(ctx)
		assert.ErrorIs(t, err, core.ErrModelVersionMismatch)
		assert.Equal(t, "old-model", manifest.ModelVersion)
		assert.False(t, idx.Ready())
		_, err = idx.Query(ctx, "soybean farming", 1)
		assert.ErrorIs(t, err, core.ErrNotReady, "vectors of another model are never served")

		require.NoError(t, idx.Build(ctx, farmDocs()))
		rebuilt, ok := idx.Manifest()
		require.True(t, ok)
		assert.Equal(t, idx.ModelVersion(), rebuilt.ModelVersion)
	})
}

func TestRevert(t *testing.T) {
	ctx := context.Background()

	t.Run("to previous build", func(t *testing.T) {
		stores, err := badger.NewMemoryStores()
		require.NoError(t, err)
		defer stores.Close()

		idx := newIndex(t, mock.NewMockEmbedder(), WithStore(stores.Snapshots))
		require.NoError(t, idx.Build(ctx, farmDocs()))
		cp := idx.Checkpoint()
		assert.Len(t, cp.Documents(), 3)

		require.NoError(t, idx.Build(ctx, numberedDocs(5)))
		require.Equal(t, 5, idx.Len())

		require.NoError(t, idx.Revert(ctx, cp))
		assert.Equal(t, 3, idx.Len())
		_, ok := idx.Document(farmDocs()[1].ID)
		assert.True(t, ok)

		restored := newIndex(t, mock.NewMockEmbedder(), WithStore(stores.Snapshots))
		manifest, err := restored.Restore(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, manifest.Documents)
	})

	t.Run("to never built", func(t *testing.T) {
		stores, err := badger.NewMemoryStores()
		require.NoError(t, err)
		defer stores.Close()

		idx := newIndex(t, mock.NewMockEmbedder(), WithStore(stores.Snapshots))
		cp := idx.Checkpoint()
		assert.Empty(t, cp.Documents())

		require.NoError(t, idx.Build(ctx, farmDocs()))
		require.NoError(t, idx.Revert(ctx, cp))
		assert.False(t, idx.Ready())

		_, err = stores.Snapshots.LoadSnapshot(ctx)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("without store", func(t *testing.T) {
		idx := newIndex(t, mock.NewMockEmbedder())
		cp := idx.Checkpoint()
		require.NoError(t, idx.Build(ctx, farmDocs()))
		require.NoError(t, idx.Revert(ctx, cp))
		_, err := idx.Query(ctx, "soybean", 1)
		assert.ErrorIs(t, err, core.ErrNotReady)
	})
}
