package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// Batch processing is more efficient than calling EmbedText multiple times.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Role identifies the author of a chat message.
type Role int

const (
	// RoleSystem carries instructions and retrieved context.
	RoleSystem Role = iota + 1
	// RoleUser carries the human's question.
	RoleUser
	// RoleAssistant carries a prior model answer.
	RoleAssistant
)

// String returns the transcript name of the role.
func (r Role) String() string {
	switch r {
	case RoleSystem:
		return "system"
	case RoleUser:
		return "user"
	case RoleAssistant:
		return "assistant"
	default:
		return "unknown"
	}
}

// Message is one turn of a conversation sent to a Generator.
type Message struct {
	Role    Role
	Content string
}

// Generator produces a chat-completion answer from a conversation.
// Implementations must be thread-safe for concurrent use.
type Generator interface {
	// Generate returns the model's answer to the given conversation.
	// Messages are sent in order; the last message is normally the
	// user's current question.
	// Returns an error if generation fails or the model returns no choices.
	Generate(ctx context.Context, messages []Message) (string, error)
}

// Provider aggregates AI services for convenient initialization and lifecycle management.
// A provider creates and manages Embedder and Generator instances,
// ensuring they share configuration and resources appropriately.
type Provider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Generator returns the answer generation service.
	// The returned Generator is safe for concurrent use.
	Generator() Generator

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
