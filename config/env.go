package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GHGRAG_"

type envBinding struct {
	name  string
	apply func(c *Config, value string) error
}

func intVar(dst func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst(c) = n
		return nil
	}
}

func floatVar(dst func(*Config) *float64) func(*Config, string) error {
	return func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*dst(c) = f
		return nil
	}
}

func durationVar(dst func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*dst(c) = d
		return nil
	}
}

func stringVar(dst func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*dst(c) = v
		return nil
	}
}

var envBindings = []envBinding{
	{EnvPrefix + "CHUNK_SIZE", intVar(func(c *Config) *int { return &c.Ingestion.ChunkSize })},
	{EnvPrefix + "DUPLICATE_KEY_FIELDS", func(c *Config, v string) error {
		c.Ingestion.DuplicateKeyFields = splitList(v)
		return nil
	}},
	{EnvPrefix + "POOL_SIZE", intVar(func(c *Config) *int { return &c.Ingestion.PoolSize })},
	{EnvPrefix + "EMBEDDING_MODEL_VERSION", stringVar(func(c *Config) *string { return &c.Index.EmbeddingModelVersion })},
	{EnvPrefix + "BATCH_SIZE", intVar(func(c *Config) *int { return &c.Index.BatchSize })},
	{EnvPrefix + "MAX_RETRIES", intVar(func(c *Config) *int { return &c.Index.MaxRetries })},
	{EnvPrefix + "RETRY_DELAY", durationVar(func(c *Config) *time.Duration { return &c.Index.RetryDelay })},
	{EnvPrefix + "RATE_LIMIT", floatVar(func(c *Config) *float64 { return &c.Index.RateLimit })},
	{EnvPrefix + "TOP_K", intVar(func(c *Config) *int { return &c.Query.TopK })},
	{EnvPrefix + "CONTEXT_BUDGET", intVar(func(c *Config) *int { return &c.Query.ContextBudget })},
	{EnvPrefix + "GENERATION_TIMEOUT", durationVar(func(c *Config) *time.Duration { return &c.Query.GenerationTimeout })},
	{EnvPrefix + "MIN_SCORE", floatVar(func(c *Config) *float64 { return &c.Query.MinScore })},
	{EnvPrefix + "AI_PROVIDER", stringVar(func(c *Config) *string { return &c.AI.Provider })},
	{EnvPrefix + "EMBEDDING_HOST", stringVar(func(c *Config) *string { return &c.AI.EmbeddingHost })},
	{EnvPrefix + "EMBEDDING_MODEL", stringVar(func(c *Config) *string { return &c.AI.EmbeddingModel })},
	{EnvPrefix + "GENERATION_HOST", stringVar(func(c *Config) *string { return &c.AI.GenerationHost })},
	{EnvPrefix + "GENERATION_MODEL", stringVar(func(c *Config) *string { return &c.AI.GenerationModel })},
	{"OPENAI_API_KEY", stringVar(func(c *Config) *string { return &c.AI.APIKey })},
	{EnvPrefix + "API_KEY", stringVar(func(c *Config) *string { return &c.AI.APIKey })},
	{EnvPrefix + "STORAGE_DRIVER", stringVar(func(c *Config) *string { return &c.Storage.Driver })},
	{EnvPrefix + "STORAGE_PATH", stringVar(func(c *Config) *string { return &c.Storage.Path })},
	{EnvPrefix + "POSTGRES_URL", stringVar(func(c *Config) *string { return &c.Storage.PostgresURL })},
	{EnvPrefix + "TABLE", stringVar(func(c *Config) *string { return &c.Storage.Table })},
}

// ApplyEnv overrides fields from the environment through lookup. Unset and
// empty variables are skipped. GHGRAG_API_KEY wins over OPENAI_API_KEY.
// Unparseable values are reported together.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	for _, b := range envBindings {
		v, ok := lookup(b.name)
		if !ok || v == "" {
			continue
		}
		if err := b.apply(c, v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", b.name, err))
		}
	}
	return errors.Join(errs...)
}
