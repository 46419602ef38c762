package index

import (
	"context"
	"fmt"
	"sync"

	"github.com/10JERRY01/GreehouseGasEmissionRAG/core"
)

type batchSpan struct {
	start, end int
}

func (idx *Index) batches(n int) []batchSpan {
	spans := make([]batchSpan, 0, (n+idx.batchSize-1)/idx.batchSize)
	for start := 0; start < n; start += idx.batchSize {
		spans = append(spans, batchSpan{start: start, end: min(start+idx.batchSize, n)})
	}
	return spans
}

// embedAll embeds every document and returns unit vectors by document
// position. The first failing batch cancels the rest.
func (idx *Index) embedAll(ctx context.Context, docs []*core.Document, progress Reporter) ([][]float32, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	vectors := make([][]float32, len(docs))
	spans := idx.batches(len(docs))

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for i, span := range spans {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			texts := make([]string, span.end-span.start)
			for j := range texts {
				texts[j] = docs[span.start+j].Text
			}
			embedded, err := idx.embedBatch(ctx, texts)
			if err != nil {
				fail(fmt.Errorf("batch %d (documents %d-%d): %w", i, span.start, span.end-1, err))
				return
			}
			copy(vectors[span.start:span.end], embedded)
			if progress != nil {
				progress.Increment(len(texts))
			}
		}
		if err := idx.pool.Submit(task); err != nil {
			task()
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: empty embedding", ErrDimensionMismatch)
	}
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: document %d has %d, expected %d", ErrDimensionMismatch, i, len(v), dim)
		}
	}
	return vectors, nil
}

// embedBatch embeds texts with rate limiting and retries.
func (idx *Index) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var embedded [][]float32
	err := RetryWithBackoff(ctx, idx.logger, func() error {
		if err := idx.wait(ctx); err != nil {
			return err
		}
		callCtx, cancel := idx.callContext(ctx)
		defer cancel()

		result, err := idx.embedder.EmbedTexts(callCtx, texts)
		if err != nil {
			return err
		}
		if len(result) != len(texts) {
			return fmt.Errorf("%w: expected %d, got %d", ErrCountMismatch, len(texts), len(result))
		}
		embedded = result
		return nil
	}, idx.maxRetries, idx.retryDelay)
	if err != nil {
		return nil, err
	}

	for i := range embedded {
		embedded[i] = NormalizeVector(embedded[i])
	}
	return embedded, nil
}

// embedQuery embeds one query text the same way documents were embedded.
func (idx *Index) embedQuery(ctx context.Context, text string) ([]float32, error) {
	var vector []float32
	err := RetryWithBackoff(ctx, idx.logger, func() error {
		if err := idx.wait(ctx); err != nil {
			return err
		}
		callCtx, cancel := idx.callContext(ctx)
		defer cancel()

		v, err := idx.embedder.EmbedText(callCtx, text)
		if err != nil {
			return err
		}
		vector = v
		return nil
	}, idx.maxRetries, idx.retryDelay)
	if err != nil {
		return nil, err
	}
	return NormalizeVector(vector), nil
}

func (idx *Index) wait(ctx context.Context) error {
	if idx.limiter == nil {
		return nil
	}
	return idx.limiter.Wait(ctx)
}

func (idx *Index) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if idx.embedTimeout > 0 {
		return context.WithTimeout(ctx, idx.embedTimeout)
	}
	return context.WithCancel(ctx)
}
