package mock

import (
	"context"
	"strings"
	"sync"
)

// MockGenerator is a test double for ai.Generator.
type MockGenerator struct {
	// GenerateFunc is called by Generate if set.
	GenerateFunc func(ctx context.Context, question, context string) (string, error)

	mu           sync.Mutex
	callCount    int
	lastQuestion string
	lastContext  string
}

// NewMockGenerator creates a mock generator with default behavior.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// Generate records its arguments and returns a canned answer quoting the
// first line of context.
func (m *MockGenerator) Generate(ctx context.Context, question, context string) (string, error) {
	m.mu.Lock()
	m.callCount++
	m.lastQuestion = question
	m.lastContext = context
	fn := m.GenerateFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, question, context)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	first, _, _ := strings.Cut(context, "\n")
	if first == "" {
		return "The records provided do not cover this question.", nil
	}
	return "Based on the records: " + first, nil
}

// CallCount returns the number of Generate calls.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastCall returns the question and context of the most recent call.
func (m *MockGenerator) LastCall() (question, context string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastQuestion, m.lastContext
}

// Reset clears recorded calls and injected behavior.
func (m *MockGenerator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.lastQuestion = ""
	m.lastContext = ""
	m.GenerateFunc = nil
}
