// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package synthesis

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIBackend calls the OpenAI Chat Completions API through the official
// SDK. It exists for deployments that cannot reach the Anthropic API.
type OpenAIBackend struct {
	client openai.Client
	model  string
}

// NewOpenAIBackend builds a backend for the given model. Extra options are
// passed through to the SDK so tests can point it at a local server.
func NewOpenAIBackend(apiKey, model string, opts ...option.RequestOption) *OpenAIBackend {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIBackend{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// Name returns the backend identifier.
func (b *OpenAIBackend) Name() string { return "openai" }

// Complete sends the prompt as a single user message and returns the first
// choice's text.
func (b *OpenAIBackend) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(b.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("calling OpenAI API: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("OpenAI API returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
