package llm

import (
	"context"
	"errors"
	"fmt"
	"math"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures the OpenAI-compatible completion client.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // optional; empty means the official endpoint
	Model   string
}

// OpenAIClient calls an OpenAI-compatible chat completion API.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient constructs the completion client.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm: API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}, nil
}

// Complete sends the messages to the chat completion API and returns the
// first choice.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (Response, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := m.Role
		if role != openai.ChatMessageRoleSystem && role != openai.ChatMessageRoleUser && role != openai.ChatMessageRoleAssistant {
			// coerce anything unknown to user
			role = openai.ChatMessageRoleUser
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	// The client library marshals Temperature with omitempty, so a zero
	// value never reaches the API and the provider default applies instead.
	// Substitute the smallest positive float so "near-deterministic"
	// survives serialization.
	temperature := req.Temperature
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return Response{}, fmt.Errorf("llm: completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, nil
	}
	return Response{Text: resp.Choices[0].Message.Content}, nil
}
