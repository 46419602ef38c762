// Package mock provides test doubles for the ai package interfaces.
//
// The mocks need no network and are deterministic, so tests of the index,
// the query engine and the CLI can run offline.
//
// # Usage
//
//	provider := mock.NewMockProvider()
//	embedder := provider.(*mock.MockProvider).GetMockEmbedder()
//
//	// Inject failures
//	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
//	    return nil, errors.New("service down")
//	}
//
//	// Check call counts
//	count := embedder.CallCount()
//
// # Default Behavior
//
//   - MockEmbedder: hashes each word of the text into a bag-of-words vector,
//     so texts sharing words score higher under cosine similarity
//   - MockGenerator: returns a fixed answer that quotes the first context line
//   - MockProvider: aggregates both with a configurable model version
package mock
