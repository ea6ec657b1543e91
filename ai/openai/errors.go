package openai

import "errors"

var (
	// ErrNoMessages is returned when Generate is called with an empty conversation.
	ErrNoMessages = errors.New("no messages provided")

	// ErrNoChoices is returned when the model responds without any choices.
	ErrNoChoices = errors.New("model returned no choices")

	// ErrUnknownRole is returned for a message role this client cannot map.
	ErrUnknownRole = errors.New("unknown message role")
)
