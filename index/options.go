package index

import (
	"errors"
	"log/slog"
	"runtime"
	"time"

	"github.com/10JERRY01/GreehouseGasEmissionRAG/storage"
)

const (
	DefaultBatchSize  = 100
	DefaultMaxRetries = 3
	DefaultRetryDelay = time.Second
)

// Reporter receives build progress in documents.
type Reporter interface {
	Start(total int)
	Increment(delta int)
	Finish()
}

// Option configures an Index.
type Option func(*Index) error

// WithBatchSize sets how many documents go to the embedder per call.
func WithBatchSize(n int) Option {
	return func(idx *Index) error {
		if n <= 0 {
			return errors.New("batch size must be positive")
		}
		idx.batchSize = n
		return nil
	}
}

// WithPoolSize sets how many batches are embedded concurrently.
func WithPoolSize(n int) Option {
	return func(idx *Index) error {
		if n <= 0 {
			return errors.New("pool size must be positive")
		}
		idx.poolSize = n
		return nil
	}
}

// WithMaxRetries sets the attempts per batch, including the first.
func WithMaxRetries(n int) Option {
	return func(idx *Index) error {
		if n <= 0 {
			return ErrInvalidMaxAttempts
		}
		idx.maxRetries = n
		return nil
	}
}

// WithRetryDelay sets the base delay of the exponential backoff.
func WithRetryDelay(d time.Duration) Option {
	return func(idx *Index) error {
		if d < 0 {
			return errors.New("retry delay must not be negative")
		}
		idx.retryDelay = d
		return nil
	}
}

// WithRateLimit caps embedding calls per second. Zero means unlimited.
func WithRateLimit(perSecond float64) Option {
	return func(idx *Index) error {
		if perSecond < 0 {
			return errors.New("rate limit must not be negative")
		}
		idx.rateLimit = perSecond
		return nil
	}
}

// WithEmbedTimeout bounds each embedding call. Zero means no bound beyond
// the caller's context.
func WithEmbedTimeout(d time.Duration) Option {
	return func(idx *Index) error {
		if d < 0 {
			return errors.New("embed timeout must not be negative")
		}
		idx.embedTimeout = d
		return nil
	}
}

// WithStore persists every successful build and enables Restore.
func WithStore(store storage.SnapshotRepository) Option {
	return func(idx *Index) error {
		idx.store = store
		return nil
	}
}

// WithProgress reports build progress to r.
func WithProgress(r Reporter) Option {
	return func(idx *Index) error {
		idx.progress = r
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(idx *Index) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		idx.logger = logger
		return nil
	}
}

func defaultPoolSize() int {
	return max(1, runtime.NumCPU()/2)
}
