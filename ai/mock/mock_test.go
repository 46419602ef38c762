package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func TestWordVector(t *testing.T) {
	v := WordVector("Soybean farming, soybean!", 64)
	assert.Len(t, v, 64)
	assert.InDelta(t, 1.0, dot(v, v), 1e-5)
	assert.Equal(t, v, WordVector("SOYBEAN farming soybean", 64))

	zero := WordVector("  ...  ", 64)
	assert.InDelta(t, 0.0, dot(zero, zero), 1e-9)
}

func TestWordVectorSimilarity(t *testing.T) {
	q := WordVector("soybean farming emission factor", DefaultDimension)
	soy := WordVector("NAICS 111110 Soybean Farming emission factor 0.42", DefaultDimension)
	oil := WordVector("NAICS 211120 Crude Petroleum Extraction emission factor 0.9", DefaultDimension)
	assert.Greater(t, dot(q, soy), dot(q, oil))
}

func TestMockEmbedder(t *testing.T) {
	ctx := context.Background()
	m := NewMockEmbedder()

	v, err := m.EmbedText(ctx, "hello")
	require.NoError(t, err)
	assert.Len(t, v, DefaultDimension)

	vs, err := m.EmbedTexts(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vs, 2)
	assert.Equal(t, 2, m.CallCount())

	m.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("down")
	}
	_, err = m.EmbedTexts(ctx, []string{"a"})
	assert.Error(t, err)

	m.Reset()
	assert.Equal(t, 0, m.CallCount())
	_, err = m.EmbedTexts(ctx, []string{"a"})
	assert.NoError(t, err)
}

func TestMockGenerator(t *testing.T) {
	g := NewMockGenerator()
	answer, err := g.Generate(context.Background(), "q?", "line one\nline two")
	require.NoError(t, err)
	assert.Equal(t, "Based on the records: line one", answer)

	q, c := g.LastCall()
	assert.Equal(t, "q?", q)
	assert.Equal(t, "line one\nline two", c)
	assert.Equal(t, 1, g.CallCount())

	answer, err = g.Generate(context.Background(), "q?", "")
	require.NoError(t, err)
	assert.Contains(t, answer, "do not cover")
}

func TestMockProvider(t *testing.T) {
	p := NewMockProvider().(*MockProvider)
	assert.Equal(t, DefaultModelVersion, p.EmbeddingModelVersion())
	assert.Same(t, p.GetMockEmbedder(), p.Embedder())
	assert.Same(t, p.GetMockGenerator(), p.Generator())
	assert.NoError(t, p.Close())

	custom := NewMockProviderWithServices(NewMockEmbedder(), NewMockGenerator(), "v2")
	assert.Equal(t, "v2", custom.EmbeddingModelVersion())
}
