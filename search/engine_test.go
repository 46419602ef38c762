package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/10JERRY01/GreehouseGasEmissionRAG/ai/mock"
	"github.com/10JERRY01/GreehouseGasEmissionRAG/core"
	"github.com/10JERRY01/GreehouseGasEmissionRAG/document"
	"github.com/10JERRY01/GreehouseGasEmissionRAG/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type retrieverFunc func(ctx context.Context, text string, k int) ([]*core.SearchResult, error)

func (f retrieverFunc) Query(ctx context.Context, text string, k int) ([]*core.SearchResult, error) {
	return f(ctx, text, k)
}

func fixedResults(results ...*core.SearchResult) retrieverFunc {
	return func(ctx context.Context, text string, k int) ([]*core.SearchResult, error) {
		return results[:min(k, len(results))], nil
	}
}

func result(id, text string, score float32) *core.SearchResult {
	return &core.SearchResult{Document: &core.Document{ID: id, Text: text}, Score: score}
}

func farmIndex(t *testing.T) *index.Index {
	t.Helper()
	rec := func(code, title string, f float64) *core.CanonicalRecord {
		return &core.CanonicalRecord{
			NAICSCode: code, NAICSTitle: title, SchemaYear: 2017, GHG: "CO2",
			Unit: "kg CO2e/2022 USD, purchaser price", FactorWithoutMargin: f, Margin: 0.01, FactorWithMargin: f + 0.01,
		}
	}
	idx, err := index.New(mock.NewMockEmbedder(), mock.DefaultModelVersion)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	require.NoError(t, idx.Build(context.Background(), document.BuildAll([]*core.CanonicalRecord{
		rec("111140", "Wheat Farming", 0.51),
		rec("111110", "Soybean Farming", 0.389),
		rec("211120", "Crude Petroleum Extraction", 0.9),
	})))
	return idx
}

func TestNewEngine(t *testing.T) {
	gen := mock.NewMockGenerator()
	r := fixedResults()

	_, err := NewEngine(nil, gen)
	assert.ErrorIs(t, err, ErrRetrieverRequired)

	_, err = NewEngine(r, nil)
	assert.ErrorIs(t, err, ErrGeneratorRequired)

	tests := []struct {
		name    string
		opt     Option
		wantErr bool
	}{
		{"top_k lower bound", WithTopK(1), false},
		{"top_k upper bound", WithTopK(MaxTopK), false},
		{"top_k zero", WithTopK(0), true},
		{"top_k too large", WithTopK(MaxTopK + 1), true},
		{"budget", WithContextBudget(0), true},
		{"timeout", WithGenerationTimeout(0), true},
		{"min score", WithMinScore(1.5), true},
		{"nil monitor", WithMonitor(nil), false},
		{"nil logger", WithLogger(nil), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine(r, gen, tt.opt)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAnswer_InvalidQuery(t *testing.T) {
	gen := mock.NewMockGenerator()
	engine, err := NewEngine(fixedResults(), gen)
	require.NoError(t, err)

	for _, q := range []string{"", "   ", "\n\t"} {
		_, err := engine.Answer(context.Background(), q)
		assert.ErrorIs(t, err, core.ErrInvalidQuery)
	}
	assert.Zero(t, gen.CallCount())
}

func TestAnswer_NotReady(t *testing.T) {
	idx, err := index.New(mock.NewMockEmbedder(), mock.DefaultModelVersion)
	require.NoError(t, err)
	defer idx.Close()

	gen := mock.NewMockGenerator()
	engine, err := NewEngine(idx, gen)
	require.NoError(t, err)

	_, err = engine.Answer(context.Background(), "soybean")
	assert.ErrorIs(t, err, core.ErrNotReady)
	assert.Zero(t, gen.CallCount())
}

func TestAnswer_Soybean(t *testing.T) {
	gen := mock.NewMockGenerator()
	engine, err := NewEngine(farmIndex(t), gen, WithTopK(2))
	require.NoError(t, err)

	answer, err := engine.Answer(context.Background(), "  What is the emission factor for soybean farming? ")
	require.NoError(t, err)

	assert.Equal(t, "What is the emission factor for soybean farming?", answer.Question)
	require.Len(t, answer.Results, 2)
	assert.Equal(t, "111110", answer.Results[0].Document.Metadata.NAICSCode)
	assert.False(t, answer.GenerationUnavailable)
	assert.Contains(t, answer.Text, "Soybean Farming")

	question, contextText := gen.LastCall()
	assert.Equal(t, answer.Question, question)
	assert.Equal(t, answer.Context, contextText)
	assert.True(t, strings.HasPrefix(contextText, "NAICS 111110"))
}

func TestAnswer_GenerationTimeout(t *testing.T) {
	gen := mock.NewMockGenerator()
	gen.GenerateFunc = func(ctx context.Context, question, context string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}
	engine, err := NewEngine(farmIndex(t), gen, WithGenerationTimeout(20*time.Millisecond))
	require.NoError(t, err)

	start := time.Now()
	answer, err := engine.Answer(context.Background(), "soybean farming")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	assert.True(t, answer.GenerationUnavailable)
	assert.Equal(t, core.GenerationUnavailableMarker, answer.Text)
	assert.ErrorIs(t, answer.GenerationError, core.ErrGenerationService)
	assert.ErrorIs(t, answer.GenerationError, context.DeadlineExceeded)
	require.NotEmpty(t, answer.Results)
	assert.Equal(t, "111110", answer.Results[0].Document.Metadata.NAICSCode)
}

func TestAnswer_GenerationError(t *testing.T) {
	gen := mock.NewMockGenerator()
	gen.GenerateFunc = func(ctx context.Context, question, context string) (string, error) {
		return "", errors.New("connection refused")
	}
	engine, err := NewEngine(fixedResults(result("a", "alpha", 0.9)), gen)
	require.NoError(t, err)

	answer, err := engine.Answer(context.Background(), "alpha")
	require.NoError(t, err)
	assert.True(t, answer.GenerationUnavailable)
	assert.ErrorContains(t, answer.GenerationError, "connection refused")
	assert.Len(t, answer.Results, 1)
}

func TestAnswer_CallerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := mock.NewMockGenerator()
	gen.GenerateFunc = func(c context.Context, question, context string) (string, error) {
		cancel()
		return "", c.Err()
	}
	engine, err := NewEngine(fixedResults(result("a", "alpha", 0.9)), gen)
	require.NoError(t, err)

	_, err = engine.Answer(ctx, "alpha")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnswer_RetrievalErrorPropagates(t *testing.T) {
	boom := fmt.Errorf("%w: down", core.ErrEmbeddingService)
	engine, err := NewEngine(retrieverFunc(func(ctx context.Context, text string, k int) ([]*core.SearchResult, error) {
		return nil, boom
	}), mock.NewMockGenerator())
	require.NoError(t, err)

	_, err = engine.Answer(context.Background(), "alpha")
	assert.ErrorIs(t, err, core.ErrEmbeddingService)
}

func TestAnswer_ContextBudgetDropsLowestScores(t *testing.T) {
	results := []*core.SearchResult{
		result("a", strings.Repeat("a", 40), 0.9),
		result("b", strings.Repeat("b", 40), 0.8),
		result("c", strings.Repeat("c", 40), 0.7),
	}
	gen := mock.NewMockGenerator()
	engine, err := NewEngine(fixedResults(results...), gen, WithTopK(3), WithContextBudget(100))
	require.NoError(t, err)

	answer, err := engine.Answer(context.Background(), "letters")
	require.NoError(t, err)
	require.Len(t, answer.Results, 2)
	assert.Equal(t, "a", answer.Results[0].Document.ID)
	assert.Equal(t, "b", answer.Results[1].Document.ID)
	assert.Equal(t, strings.Repeat("a", 40)+"\n\n"+strings.Repeat("b", 40), answer.Context)
	require.Len(t, answer.Dropped, 1)
	assert.Equal(t, "c", answer.Dropped[0].Document.ID)
	assert.Len(t, answer.Retrieved(), 3)
}

func TestAnswer_OversizedTopDocumentIsReported(t *testing.T) {
	long := result("long", strings.Repeat("x", 200), 0.9)
	short := result("short", "short", 0.5)
	engine, err := NewEngine(fixedResults(long, short), mock.NewMockGenerator(), WithTopK(2), WithContextBudget(100))
	require.NoError(t, err)

	answer, err := engine.Answer(context.Background(), "pipes")
	require.NoError(t, err)
	assert.Empty(t, answer.Results)
	assert.Empty(t, answer.Context)
	// lower scored documents never take the place of a higher scored one
	require.Len(t, answer.Dropped, 2)
	assert.Same(t, long, answer.Dropped[0])
	assert.Same(t, short, answer.Dropped[1])
	assert.Equal(t, []*core.SearchResult{long, short}, answer.Retrieved())
}

func TestBuildContext_NeverExceedsBudget(t *testing.T) {
	var results []*core.SearchResult
	for i := range 12 {
		// multi-byte text so bytes and characters differ
		results = append(results, result(fmt.Sprint(i), strings.Repeat("é—", 5+i*7), 1-float32(i)/20))
	}

	for budget := 1; budget <= 900; budget += 13 {
		text, included := BuildContext(results, budget)
		assert.LessOrEqual(t, utf8.RuneCountInString(text), budget, "budget %d", budget)
		for i, r := range included {
			assert.Same(t, results[i], r, "included documents are the highest scored prefix")
		}
	}
}

func TestBuildContext_OversizedFirstDocument(t *testing.T) {
	text, included := BuildContext([]*core.SearchResult{
		result("big", strings.Repeat("x", 50), 0.9),
		result("small", "y", 0.8),
	}, 10)
	assert.Empty(t, text)
	assert.Empty(t, included)
}

func TestAnswer_LexicalFallback(t *testing.T) {
	fallbackDoc := &core.Document{ID: "kw", Text: "NAICS 111110 — Soybean Farming"}
	var fallbackCalls int
	fallback := func(ctx context.Context, question string, limit int) ([]*core.Document, error) {
		fallbackCalls++
		return []*core.Document{fallbackDoc}, nil
	}

	t.Run("used when nothing clears min score", func(t *testing.T) {
		fallbackCalls = 0
		engine, err := NewEngine(fixedResults(result("low", "unrelated", 0.05)), mock.NewMockGenerator(),
			WithMinScore(0.2), WithFallback(fallback))
		require.NoError(t, err)

		answer, err := engine.Answer(context.Background(), "soybean")
		require.NoError(t, err)
		assert.True(t, answer.Fallback)
		require.Len(t, answer.Results, 1)
		assert.Equal(t, "kw", answer.Results[0].Document.ID)
		assert.Equal(t, 1, fallbackCalls)
	})

	t.Run("skipped when retrieval is relevant", func(t *testing.T) {
		fallbackCalls = 0
		engine, err := NewEngine(fixedResults(result("hit", "soybean", 0.8)), mock.NewMockGenerator(),
			WithMinScore(0.2), WithFallback(fallback))
		require.NoError(t, err)

		answer, err := engine.Answer(context.Background(), "soybean")
		require.NoError(t, err)
		assert.False(t, answer.Fallback)
		assert.Equal(t, "hit", answer.Results[0].Document.ID)
		assert.Zero(t, fallbackCalls)
	})

	t.Run("fallback failure leaves results empty", func(t *testing.T) {
		engine, err := NewEngine(fixedResults(), mock.NewMockGenerator(),
			WithFallback(func(ctx context.Context, question string, limit int) ([]*core.Document, error) {
				return nil, errors.New("no records")
			}))
		require.NoError(t, err)

		answer, err := engine.Answer(context.Background(), "soybean")
		require.NoError(t, err)
		assert.False(t, answer.Fallback)
		assert.Empty(t, answer.Results)
		assert.Contains(t, answer.Text, "do not cover")
	})
}

func TestRelated(t *testing.T) {
	engine, err := NewEngine(farmIndex(t), mock.NewMockGenerator(), WithTopK(2))
	require.NoError(t, err)

	results, err := engine.Related(context.Background(), "soybean farming", 0)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = engine.Related(context.Background(), "soybean farming", 3)
	require.NoError(t, err)
	assert.Len(t, results, 3)

	_, err = engine.Related(context.Background(), " ", 3)
	assert.ErrorIs(t, err, core.ErrInvalidQuery)
}

type recordingMonitor struct {
	events []string
}

func (m *recordingMonitor) Start(q string) { m.events = append(m.events, "start:"+q) }
func (m *recordingMonitor) OnRetrieve(r []*core.SearchResult, fallback bool) {
	m.events = append(m.events, fmt.Sprintf("retrieve:%d:%t", len(r), fallback))
}
func (m *recordingMonitor) OnContext(included, dropped, chars int) {
	m.events = append(m.events, fmt.Sprintf("context:%d:%d:%d", included, dropped, chars))
}
func (m *recordingMonitor) OnGenerate(text string, err error) {
	m.events = append(m.events, fmt.Sprintf("generate:%t", err == nil))
}
func (m *recordingMonitor) Finish(a *core.Answer) { m.events = append(m.events, "finish") }

func TestAnswer_Monitor(t *testing.T) {
	monitor := &recordingMonitor{}
	engine, err := NewEngine(fixedResults(result("a", "alpha", 0.9), result("b", "beta", 0.5)),
		mock.NewMockGenerator(), WithMonitor(monitor))
	require.NoError(t, err)

	_, err = engine.Answer(context.Background(), "alpha")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"start:alpha",
		"retrieve:2:false",
		"context:2:0:11",
		"generate:true",
		"finish",
	}, monitor.events)
}
