package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/fiscus/taxchat/ai"
	"github.com/fiscus/taxchat/core"
	"github.com/fiscus/taxchat/retrieval"
)

const (
	// DefaultHistoryLimit caps the conversation window at 20 messages
	// (10 exchanges); the oldest turns are dropped first.
	DefaultHistoryLimit = 20

	// DefaultSearchLimit is how many chunks are retrieved per question.
	DefaultSearchLimit = retrieval.DefaultLimit
)

// Retriever finds the stored chunks most relevant to a query.
type Retriever interface {
	Search(ctx context.Context, query string, limit int) ([]*core.SearchResult, error)
}

// Session is one retrieval-grounded conversation. It keeps a bounded
// history of prior turns and is safe for concurrent use.
type Session struct {
	retriever       Retriever
	generator       ai.Generator
	searchLimit     int
	maxContextChars int
	historyLimit    int
	logger          *slog.Logger

	mu      sync.Mutex
	history []ai.Message
}

// Option configures a Session.
type Option func(*Session) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithHistoryLimit sets the conversation window size in messages.
// Default is 20.
func WithHistoryLimit(n int) Option {
	return func(s *Session) error {
		if n < 2 {
			return fmt.Errorf("history limit must hold at least one exchange, got %d", n)
		}
		s.historyLimit = n
		return nil
	}
}

// WithSearchLimit sets how many chunks are retrieved per question.
// Default is 20.
func WithSearchLimit(n int) Option {
	return func(s *Session) error {
		if n < 1 {
			return fmt.Errorf("search limit must be positive, got %d", n)
		}
		s.searchLimit = n
		return nil
	}
}

// WithMaxContextChars caps the assembled context size.
// Default is 15000.
func WithMaxContextChars(n int) Option {
	return func(s *Session) error {
		if n < 1 {
			return fmt.Errorf("max context chars must be positive, got %d", n)
		}
		s.maxContextChars = n
		return nil
	}
}

// NewSession creates a conversation session over the given retriever and
// AI provider.
func NewSession(retriever Retriever, provider ai.Provider, opts ...Option) (*Session, error) {
	if retriever == nil {
		return nil, ErrRetrieverRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	s := &Session{
		retriever:       retriever,
		generator:       provider.Generator(),
		searchLimit:     DefaultSearchLimit,
		maxContextChars: retrieval.DefaultMaxContextChars,
		historyLimit:    DefaultHistoryLimit,
		logger:          slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	s.logger = s.logger.With("component", "chat")

	return s, nil
}

// Answer responds to one user message. It retrieves relevant chunks,
// grounds the system prompt in them, sends the bounded history plus the
// new turn to the generator, and records the exchange. A question with
// no retrieval hits is still answered from general knowledge.
//
// The exchange enters the history only after a successful generation;
// failed turns leave the conversation unchanged.
func (s *Session) Answer(ctx context.Context, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", ErrEmptyMessage
	}

	results, err := s.retriever.Search(ctx, message, s.searchLimit)
	if err != nil {
		s.logger.Error("retrieval failed", "err", err)
		return "", fmt.Errorf("retrieving context: %w", err)
	}

	contextText := retrieval.BuildContext(results, s.maxContextChars)

	s.mu.Lock()
	window := make([]ai.Message, len(s.history))
	copy(window, s.history)
	s.mu.Unlock()

	messages := make([]ai.Message, 0, len(window)+2)
	messages = append(messages, ai.Message{Role: ai.RoleSystem, Content: systemPrompt(contextText)})
	messages = append(messages, window...)
	messages = append(messages, ai.Message{Role: ai.RoleUser, Content: message})

	answer, err := s.generator.Generate(ctx, messages)
	if err != nil {
		s.logger.Error("generation failed", "err", err)
		return "", fmt.Errorf("generating answer: %w", err)
	}

	s.mu.Lock()
	s.history = append(s.history,
		ai.Message{Role: ai.RoleUser, Content: message},
		ai.Message{Role: ai.RoleAssistant, Content: answer},
	)
	if len(s.history) > s.historyLimit {
		s.history = s.history[len(s.history)-s.historyLimit:]
	}
	historyLen := len(s.history)
	s.mu.Unlock()

	s.logger.Info("answered message", "hits", len(results), "history", historyLen)
	return answer, nil
}

// Reset clears the conversation history.
func (s *Session) Reset() {
	s.mu.Lock()
	s.history = nil
	s.mu.Unlock()

	s.logger.Info("chat history cleared")
}

// History returns a copy of the current conversation window.
func (s *Session) History() []ai.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ai.Message(nil), s.history...)
}
