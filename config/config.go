// Package config loads application settings from YAML, .env files and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/10JERRY01/GreehouseGasEmissionRAG/ai"
	"github.com/10JERRY01/GreehouseGasEmissionRAG/core"
	"github.com/10JERRY01/GreehouseGasEmissionRAG/index"
	"github.com/10JERRY01/GreehouseGasEmissionRAG/ingestion"
	"github.com/10JERRY01/GreehouseGasEmissionRAG/search"
	"github.com/10JERRY01/GreehouseGasEmissionRAG/storage/pgvector"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverBadger   = "badger"
	DriverPgvector = "pgvector"
)

// AI providers.
const (
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// Config is the root application configuration.
type Config struct {
	Ingestion IngestionConfig `yaml:"ingestion"`
	Index     IndexConfig     `yaml:"index"`
	Query     QueryConfig     `yaml:"query"`
	AI        AIConfig        `yaml:"ai"`
	Storage   StorageConfig   `yaml:"storage"`
}

type IngestionConfig struct {
	ChunkSize          int      `yaml:"chunk_size"`
	DuplicateKeyFields []string `yaml:"duplicate_key_fields"`
	PoolSize           int      `yaml:"pool_size"`
	MaxRejections      int      `yaml:"max_rejections"`
}

type IndexConfig struct {
	// EmbeddingModelVersion pins the model identity recorded in the index.
	// Empty means the embedding model name.
	EmbeddingModelVersion string        `yaml:"embedding_model_version"`
	BatchSize             int           `yaml:"batch_size"`
	MaxRetries            int           `yaml:"max_retries"`
	RetryDelay            time.Duration `yaml:"retry_delay"`
	// RateLimit is embedding calls per second, 0 for unlimited.
	RateLimit    float64       `yaml:"rate_limit"`
	EmbedTimeout time.Duration `yaml:"embed_timeout"`
}

type QueryConfig struct {
	TopK              int           `yaml:"top_k"`
	ContextBudget     int           `yaml:"context_budget"`
	GenerationTimeout time.Duration `yaml:"generation_timeout"`
	MinScore          float64       `yaml:"min_score"`
}

type AIConfig struct {
	Provider        string  `yaml:"provider"`
	EmbeddingHost   string  `yaml:"embedding_host"`
	EmbeddingModel  string  `yaml:"embedding_model"`
	GenerationHost  string  `yaml:"generation_host"`
	GenerationModel string  `yaml:"generation_model"`
	APIKey          string  `yaml:"api_key"`
	Temperature     float64 `yaml:"temperature"`
	MaxTokens       int     `yaml:"max_tokens"`
}

type StorageConfig struct {
	Driver      string `yaml:"driver"`
	Path        string `yaml:"path"`
	PostgresURL string `yaml:"postgres_url"`
	Table       string `yaml:"table"`
}

// Default returns the configuration used when no file sets a value.
func Default() *Config {
	aiDefaults := ai.DefaultConfig()
	return &Config{
		Ingestion: IngestionConfig{
			ChunkSize:          ingestion.DefaultChunkSize,
			DuplicateKeyFields: append([]string(nil), core.DefaultDuplicateKeyFields...),
			MaxRejections:      ingestion.DefaultMaxRejections,
		},
		Index: IndexConfig{
			BatchSize:  index.DefaultBatchSize,
			MaxRetries: index.DefaultMaxRetries,
			RetryDelay: index.DefaultRetryDelay,
		},
		Query: QueryConfig{
			TopK:              search.DefaultTopK,
			ContextBudget:     search.DefaultContextBudget,
			GenerationTimeout: search.DefaultGenerationTimeout,
			MinScore:          -1,
		},
		AI: AIConfig{
			Provider:        ProviderOpenAI,
			EmbeddingHost:   aiDefaults.EmbeddingHost,
			EmbeddingModel:  aiDefaults.EmbeddingModel,
			GenerationHost:  aiDefaults.GenerationHost,
			GenerationModel: aiDefaults.GenerationModel,
			APIKey:          aiDefaults.APIKey,
			Temperature:     aiDefaults.Temperature,
			MaxTokens:       aiDefaults.MaxTokens,
		},
		Storage: StorageConfig{
			Driver: DriverBadger,
			Path:   defaultDataDir(),
			Table:  pgvector.DefaultTable,
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies .env and
// environment overrides. An empty path searches DefaultPaths and falls back
// to the defaults when none exists. An explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range DefaultPaths() {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := LoadDotEnv(); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultPaths lists the locations Load searches, in order.
func DefaultPaths() []string {
	paths := []string{"ghgrag.yaml", "ghgrag.yml", "config.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "ghgrag", "config.yaml"))
	}
	return paths
}

// LoadDotEnv loads the given .env files, or ./.env when none are named, into
// the process environment. Variables already set win. Missing files are
// ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// Save writes cfg as YAML, creating parent directories.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// ModelVersion returns the embedding model version the index is built with.
func (c *Config) ModelVersion() string {
	if c.Index.EmbeddingModelVersion != "" {
		return c.Index.EmbeddingModelVersion
	}
	return c.AI.EmbeddingModel
}

// AIConfig converts the ai section to an ai.Config.
func (c *Config) AIConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(c.AI.EmbeddingHost),
		ai.WithGenerationHost(c.AI.GenerationHost),
		ai.WithEmbeddingModel(c.AI.EmbeddingModel),
		ai.WithEmbeddingModelVersion(c.ModelVersion()),
		ai.WithGenerationModel(c.AI.GenerationModel),
		ai.WithAPIKey(c.AI.APIKey),
		ai.WithTemperature(c.AI.Temperature),
		ai.WithMaxTokens(c.AI.MaxTokens),
	)
}

func defaultDataDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "ghgrag")
	}
	return filepath.Join(".", ".ghgrag")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
