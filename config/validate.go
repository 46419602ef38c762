package config

import (
	"errors"
	"fmt"

	"github.com/10JERRY01/GreehouseGasEmissionRAG/core"
	"github.com/10JERRY01/GreehouseGasEmissionRAG/search"
	"github.com/10JERRY01/GreehouseGasEmissionRAG/storage/pgvector"
)

// ErrInvalidConfig is matched by every FieldError.
var ErrInvalidConfig = errors.New("invalid configuration")

// FieldError names one invalid setting by its YAML path.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *FieldError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// Validate reports every invalid setting, joined.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, field, reason string, args ...any) {
		if !ok {
			errs = append(errs, &FieldError{Field: field, Reason: fmt.Sprintf(reason, args...)})
		}
	}

	check(c.Ingestion.ChunkSize > 0, "ingestion.chunk_size", "must be positive, got %d", c.Ingestion.ChunkSize)
	check(len(c.Ingestion.DuplicateKeyFields) > 0, "ingestion.duplicate_key_fields", "must name at least one field")
	for _, f := range c.Ingestion.DuplicateKeyFields {
		check(core.IsKeyField(f), "ingestion.duplicate_key_fields", "unknown field %q", f)
	}
	check(c.Ingestion.PoolSize >= 0, "ingestion.pool_size", "must not be negative")
	check(c.Ingestion.MaxRejections >= 0, "ingestion.max_rejections", "must not be negative")

	check(c.Index.BatchSize > 0, "index.batch_size", "must be positive, got %d", c.Index.BatchSize)
	check(c.Index.MaxRetries >= 1, "index.max_retries", "must be at least 1, got %d", c.Index.MaxRetries)
	check(c.Index.RetryDelay >= 0, "index.retry_delay", "must not be negative")
	check(c.Index.RateLimit >= 0, "index.rate_limit", "must not be negative")
	check(c.Index.EmbedTimeout >= 0, "index.embed_timeout", "must not be negative")

	check(c.Query.TopK >= 1 && c.Query.TopK <= search.MaxTopK, "query.top_k", "must be within 1..%d, got %d", search.MaxTopK, c.Query.TopK)
	check(c.Query.ContextBudget > 0, "query.context_budget", "must be positive")
	check(c.Query.GenerationTimeout > 0, "query.generation_timeout", "must be positive")
	check(c.Query.MinScore >= -1 && c.Query.MinScore <= 1, "query.min_score", "must be within [-1, 1]")

	switch c.AI.Provider {
	case ProviderOpenAI:
		check(c.AI.EmbeddingHost != "", "ai.embedding_host", "is required")
		check(c.AI.GenerationHost != "", "ai.generation_host", "is required")
		check(c.AI.EmbeddingModel != "", "ai.embedding_model", "is required")
		check(c.AI.GenerationModel != "", "ai.generation_model", "is required")
		check(c.AI.Temperature >= 0 && c.AI.Temperature <= 2, "ai.temperature", "must be within [0, 2]")
		check(c.AI.MaxTokens > 0, "ai.max_tokens", "must be positive")
	case ProviderMock:
	default:
		check(false, "ai.provider", "unknown provider %q", c.AI.Provider)
	}
	check(c.ModelVersion() != "", "index.embedding_model_version", "is required when ai.embedding_model is empty")

	switch c.Storage.Driver {
	case DriverBadger:
		check(c.Storage.Path != "", "storage.path", "is required")
	case DriverPgvector:
		check(c.Storage.Path != "", "storage.path", "is required")
		check(c.Storage.PostgresURL != "", "storage.postgres_url", "is required for the pgvector driver")
		check(pgvector.ValidateTable(c.Storage.Table) == nil, "storage.table", "invalid table name %q", c.Storage.Table)
	default:
		check(false, "storage.driver", "unknown driver %q", c.Storage.Driver)
	}

	return errors.Join(errs...)
}
