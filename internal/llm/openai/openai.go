// Package openai wraps the official OpenAI SDK as the chat completion
// collaborator. Errors are passed through to the caller; retries and
// fallbacks are not this layer's business.
package openai

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"imaging-rag/internal/domain"
)

// Client produces chat completions with a fixed model and temperature.
type Client struct {
	client      openai.Client
	model       string
	temperature float64
}

// Config configures the chat client. APIKeyEnv names the environment
// variable holding the key.
type Config struct {
	BaseURL     string
	APIKeyEnv   string
	Model       string
	Temperature float64
}

// NewClient creates a chat completion client.
func NewClient(cfg Config) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	opts := []option.RequestOption{option.WithAPIKey(key)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Client{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Complete sends the messages and returns the generated answer.
func (c *Client) Complete(ctx context.Context, messages []domain.Message) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, c.params(messages))
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream sends the messages and delivers the answer incrementally through
// onDelta, returning the accumulated text once the stream ends.
func (c *Client) Stream(ctx context.Context, messages []domain.Message, onDelta func(string)) (string, error) {
	stream := c.client.Chat.Completions.NewStreaming(ctx, c.params(messages))
	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)
		if len(chunk.Choices) > 0 {
			if delta := chunk.Choices[0].Delta.Content; delta != "" && onDelta != nil {
				onDelta(delta)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("chat completion stream: %w", err)
	}
	if len(acc.Choices) == 0 {
		return "", errors.New("chat completion stream returned no choices")
	}
	return acc.Choices[0].Message.Content, nil
}

func (c *Client) params(messages []domain.Message) openai.ChatCompletionNewParams {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case domain.RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case domain.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}
	return openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    msgs,
		Temperature: openai.Float(c.temperature),
	}
}
