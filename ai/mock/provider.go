package mock

import "github.com/10JERRY01/GreehouseGasEmissionRAG/ai"

// DefaultModelVersion is the embedding model version reported by MockProvider.
const DefaultModelVersion = "mock-bow-384"

// MockProvider is a test double for ai.AIProvider.
type MockProvider struct {
	embedder     *MockEmbedder
	generator    *MockGenerator
	modelVersion string
}

// NewMockProvider creates a new mock provider with default mock services.
//
// Returns ai.AIProvider interface for consistency with production constructors.
// Use GetMockEmbedder()/GetMockGenerator() to access concrete types for test assertions.
func NewMockProvider() ai.AIProvider {
	return &MockProvider{
		embedder:     NewMockEmbedder(),
		generator:    NewMockGenerator(),
		modelVersion: DefaultModelVersion,
	}
}

// NewMockProviderWithServices creates a mock provider with custom mock services.
func NewMockProviderWithServices(embedder *MockEmbedder, generator *MockGenerator, modelVersion string) ai.AIProvider {
	if modelVersion == "" {
		modelVersion = DefaultModelVersion
	}
	return &MockProvider{
		embedder:     embedder,
		generator:    generator,
		modelVersion: modelVersion,
	}
}

// Embedder returns the mock embedder.
func (p *MockProvider) Embedder() ai.Embedder {
	return p.embedder
}

// Generator returns the mock generator.
func (p *MockProvider) Generator() ai.Generator {
	return p.generator
}

// EmbeddingModelVersion returns the configured model version.
func (p *MockProvider) EmbeddingModelVersion() string {
	return p.modelVersion
}

// Close is a no-op for mock provider.
func (p *MockProvider) Close() error {
	return nil
}

// GetMockEmbedder returns the underlying mock embedder for test assertions.
func (p *MockProvider) GetMockEmbedder() *MockEmbedder {
	return p.embedder
}

// GetMockGenerator returns the underlying mock generator for test assertions.
func (p *MockProvider) GetMockGenerator() *MockGenerator {
	return p.generator
}
