package chat

import "errors"

var (
	// ErrEmptyMessage is returned by Answer when the message is blank.
	ErrEmptyMessage = errors.New("message cannot be empty")

	// ErrRetrieverRequired is returned when a retriever is not provided.
	ErrRetrieverRequired = errors.New("retriever required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")
)
