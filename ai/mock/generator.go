package mock

import (
	"context"
	"fmt"

	"github.com/fiscus/taxchat/ai"
)

// MockGenerator is a test double for ai.Generator.
// It allows custom behavior injection via function fields.
type MockGenerator struct {
	// GenerateFunc is called by Generate if set.
	// If nil, uses default canned-answer behavior.
	GenerateFunc func(ctx context.Context, messages []ai.Message) (string, error)

	callCount int
	lastSeen  []ai.Message
}

// NewMockGenerator creates a mock generator with default canned behavior.
// Note: Returns concrete type to allow test assertions via GetMockGenerator().
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// Generate returns a deterministic answer echoing the final user turn.
func (m *MockGenerator) Generate(ctx context.Context, messages []ai.Message) (string, error) {
	m.callCount++
	m.lastSeen = messages

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, messages)
	}

	// Default: echo the last user message so tests can assert plumbing
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == ai.RoleUser {
			return fmt.Sprintf("mock answer to: %s", messages[i].Content), nil
		}
	}
	return "mock answer", nil
}

// CallCount returns the number of times Generate was called.
func (m *MockGenerator) CallCount() int {
	return m.callCount
}

// LastMessages returns the conversation passed to the most recent Generate call.
func (m *MockGenerator) LastMessages() []ai.Message {
	return m.lastSeen
}

// Reset clears the call count and custom functions.
func (m *MockGenerator) Reset() {
	m.callCount = 0
	m.lastSeen = nil
	m.GenerateFunc = nil
}
