// Package llm provides chat-completion access behind an explicit
// provider selection. Every supported provider speaks the OpenAI-shaped
// chat API, so provider choice is a configuration value resolved at
// construction, never runtime introspection of client objects.
package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Provider identifies a supported chat-completion backend.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGroq   Provider = "groq"
)

// groqBaseURL is Groq's OpenAI-compatible endpoint.
const groqBaseURL = "https://api.groq.com/openai/v1"

// Client performs chat completions against the selected provider.
type Client struct {
	client   *openai.Client
	provider Provider
	model    string
}

// Config carries the construction parameters for a Client.
type Config struct {
	Provider Provider
	BaseURL  string // optional endpoint override
	Model    string
}

// NewClient creates a chat-completion client for the configured
// provider. OpenAI reads OPENAI_API_KEY, Groq reads GROQ_API_KEY.
func NewClient(cfg Config) (*Client, error) {
	var opts []option.RequestOption

	switch cfg.Provider {
	case ProviderOpenAI:
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
		opts = append(opts, option.WithAPIKey(apiKey))
	case ProviderGroq:
		apiKey := os.Getenv("GROQ_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("GROQ_API_KEY environment variable not set")
		}
		opts = append(opts, option.WithAPIKey(apiKey), option.WithBaseURL(groqBaseURL))
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}

	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	client := openai.NewClient(opts...)
	return &Client{
		client:   &client,
		provider: cfg.Provider,
		model:    cfg.Model,
	}, nil
}

// Complete submits a system prompt and a user message and returns the
// generated text.
func (c *Client) Complete(ctx context.Context, system, user string, temperature float64) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Model:       c.model,
		Temperature: openai.Float(temperature),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion (provider %s, model %s): %w", c.provider, c.model, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion (provider %s, model %s): empty response", c.provider, c.model)
	}
	return resp.Choices[0].Message.Content, nil
}
