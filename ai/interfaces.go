package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use and deterministic
// for a fixed model version.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator answers a question from retrieved context.
// Implementations must be thread-safe for concurrent use.
type Generator interface {
	// Generate returns the answer text for question grounded on context.
	// Timeouts, rate limiting and authentication failures are all returned
	// as errors; callers do not distinguish between them.
	Generate(ctx context.Context, question, context string) (string, error)
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
type AIProvider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Generator returns the answer generation service.
	Generator() Generator

	// EmbeddingModelVersion identifies the embedding model. Vectors produced
	// under different versions are not comparable.
	EmbeddingModelVersion() string

	// Close releases resources held by the provider and its services.
	Close() error
}
