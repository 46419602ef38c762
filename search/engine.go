package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/10JERRY01/GreehouseGasEmissionRAG/ai"
	"github.com/10JERRY01/GreehouseGasEmissionRAG/core"
)

const (
	DefaultTopK              = 4
	MaxTopK                  = 20
	DefaultContextBudget     = 6000
	DefaultGenerationTimeout = 30 * time.Second
)

// Retriever returns the k documents most similar to text.
type Retriever interface {
	Query(ctx context.Context, text string, k int) ([]*core.SearchResult, error)
}

// Fallback supplies up to limit documents for a question by other means than
// vector similarity.
type Fallback func(ctx context.Context, question string, limit int) ([]*core.Document, error)

// Engine answers questions from retrieved emission factor documents.
type Engine struct {
	retriever         Retriever
	generator         ai.Generator
	topK              int
	contextBudget     int
	generationTimeout time.Duration
	minScore          float32
	fallback          Fallback
	monitor           QueryMonitor
	logger            *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithTopK sets how many documents are retrieved per question.
func WithTopK(k int) Option {
	return func(e *Engine) error {
		if k < 1 || k > MaxTopK {
			return fmt.Errorf("%w: %d", ErrInvalidTopK, k)
		}
		e.topK = k
		return nil
	}
}

// WithContextBudget caps the context handed to the generator, in characters.
func WithContextBudget(chars int) Option {
	return func(e *Engine) error {
		if chars <= 0 {
			return errors.New("context budget must be positive")
		}
		e.contextBudget = chars
		return nil
	}
}

// WithGenerationTimeout bounds each generation call.
func WithGenerationTimeout(d time.Duration) Option {
	return func(e *Engine) error {
		if d <= 0 {
			return errors.New("generation timeout must be positive")
		}
		e.generationTimeout = d
		return nil
	}
}

// WithMinScore drops retrieved documents scoring below s. The default of -1
// keeps every result.
func WithMinScore(s float32) Option {
	return func(e *Engine) error {
		if s < -1 || s > 1 {
			return errors.New("min score must be within [-1, 1]")
		}
		e.minScore = s
		return nil
	}
}

// WithFallback sets the source used when retrieval finds nothing relevant.
func WithFallback(fn Fallback) Option {
	return func(e *Engine) error {
		e.fallback = fn
		return nil
	}
}

// WithMonitor observes every Answer call.
func WithMonitor(m QueryMonitor) Option {
	return func(e *Engine) error {
		if m == nil {
			m = noopMonitor{}
		}
		e.monitor = m
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// NewEngine creates an engine over retriever and generator.
func NewEngine(retriever Retriever, generator ai.Generator, opts ...Option) (*Engine, error) {
	if retriever == nil {
		return nil, ErrRetrieverRequired
	}
	if generator == nil {
		return nil, ErrGeneratorRequired
	}

	e := &Engine{
		retriever:         retriever,
		generator:         generator,
		topK:              DefaultTopK,
		contextBudget:     DefaultContextBudget,
		generationTimeout: DefaultGenerationTimeout,
		minScore:          -1,
		monitor:           noopMonitor{},
		logger:            slog.Default().With("component", "search"),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// TopK returns the configured number of documents retrieved per question.
func (e *Engine) TopK() int {
	return e.topK
}

// Answer retrieves supporting documents for question and asks the generator
// to answer from them.
//
// Errors are returned for an empty question (core.ErrInvalidQuery), an index
// that was never built (core.ErrNotReady), a failed retrieval, or a cancelled
// ctx. A generation failure is not an error: the Answer carries the retrieved
// documents with GenerationUnavailable set.
func (e *Engine) Answer(ctx context.Context, question string) (*core.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, core.ErrInvalidQuery
	}
	e.monitor.Start(question)

	results, fallback, err := e.retrieve(ctx, question, e.topK)
	if err != nil {
		return nil, err
	}
	e.monitor.OnRetrieve(results, fallback)

	contextText, included := BuildContext(results, e.contextBudget)
	e.monitor.OnContext(len(included), len(results)-len(included), len([]rune(contextText)))
	if len(included) < len(results) {
		e.logger.Info("context budget dropped documents", "kept", len(included), "dropped", len(results)-len(included), "budget", e.contextBudget)
	}

	answer := &core.Answer{
		Question: question,
		Context:  contextText,
		Results:  included,
		Dropped:  results[len(included):],
		Fallback: fallback,
	}

	genCtx, cancel := context.WithTimeout(ctx, e.generationTimeout)
	text, err := e.generator.Generate(genCtx, question, contextText)
	cancel()
	e.monitor.OnGenerate(text, err)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		e.logger.Warn("generation unavailable", "error", err, "documents", len(included))
		answer.Text = core.GenerationUnavailableMarker
		answer.GenerationUnavailable = true
		answer.GenerationError = fmt.Errorf("%w: %w", core.ErrGenerationService, err)
	} else {
		answer.Text = text
	}

	e.monitor.Finish(answer)
	return answer, nil
}

// Related returns up to k documents similar to question without generating
// an answer. k <= 0 selects the configured top_k.
func (e *Engine) Related(ctx context.Context, question string, k int) ([]*core.SearchResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, core.ErrInvalidQuery
	}
	if k <= 0 {
		k = e.topK
	}
	results, _, err := e.retrieve(ctx, question, k)
	return results, err
}

// retrieve queries the index, drops results under the minimum score, and
// consults the fallback when nothing is left.
func (e *Engine) retrieve(ctx context.Context, question string, k int) ([]*core.SearchResult, bool, error) {
	results, err := e.retriever.Query(ctx, question, k)
	if err != nil {
		return nil, false, err
	}

	relevant := make([]*core.SearchResult, 0, len(results))
	for _, r := range results {
		if r.Score >= e.minScore {
			relevant = append(relevant, r)
		}
	}
	if len(relevant) > 0 || e.fallback == nil {
		return relevant, false, nil
	}

	docs, err := e.fallback(ctx, question, k)
	if err != nil {
		e.logger.Warn("lexical fallback failed", "error", err)
		return relevant, false, nil
	}
	if len(docs) == 0 {
		return relevant, false, nil
	}

	e.logger.Debug("using lexical fallback", "documents", len(docs))
	fallbackResults := make([]*core.SearchResult, len(docs))
	for i, d := range docs {
		fallbackResults[i] = &core.SearchResult{Document: d}
	}
	return fallbackResults, true, nil
}
