// Copyright 2026 Fiscus Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package openai

import (
	"context"
	"log/slog"

	"github.com/fiscus/taxchat/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Generator implements ai.Generator using OpenAI-compatible chat APIs.
type Generator struct {
	client      llms.Model
	temperature float64
	logger      *slog.Logger
}

// newGenerator is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newGenerator(config *ai.Config) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.ChatHost),
		openai.WithToken(config.APIKey),
		openai.WithModel(config.ChatModel),
	)
	if err != nil {
		return nil, err
	}

	return &Generator{
		client:      client,
		temperature: config.Temperature,
		logger:      slog.Default().With("component", "openai-generator"),
	}, nil
}

// NewGenerator creates a new answer generator using the provided configuration.
//
// Returns ai.Generator interface to enforce abstraction.
func NewGenerator(config *ai.Config) (ai.Generator, error) {
	return newGenerator(config)
}

// Generate produces the model's answer to the given conversation.
func (g *Generator) Generate(ctx context.Context, messages []ai.Message) (string, error) {
	if len(messages) == 0 {
		return "", ErrNoMessages
	}

	content := make([]llms.MessageContent, 0, len(messages))
	for _, msg := range messages {
		role, err := chatMessageType(msg.Role)
		if err != nil {
			return "", err
		}
		content = append(content, llms.MessageContent{
			Role:  role,
			Parts: []llms.ContentPart{llms.TextPart(msg.Content)},
		})
	}

	g.logger.Debug("generating answer", "turns", len(content))

	response, err := g.client.GenerateContent(ctx, content, llms.WithTemperature(g.temperature))
	if err != nil {
		g.logger.Error("failed to generate content", "err", err)
		return "", err
	}

	if len(response.Choices) < 1 {
		g.logger.Warn("no choices returned from model")
		return "", ErrNoChoices
	}

	return response.Choices[0].Content, nil
}

// chatMessageType maps an ai.Role onto the wire-level message type.
func chatMessageType(role ai.Role) (llms.ChatMessageType, error) {
	switch role {
	case ai.RoleSystem:
		return llms.ChatMessageTypeSystem, nil
	case ai.RoleUser:
		return llms.ChatMessageTypeHuman, nil
	case ai.RoleAssistant:
		return llms.ChatMessageTypeAI, nil
	default:
		return "", ErrUnknownRole
	}
}
