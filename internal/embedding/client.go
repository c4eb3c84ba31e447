// Package embedding turns knowledge records and queries into vectors
// usable for nearest-neighbor search.
package embedding

import (
	"context"
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Client wraps the OpenAI client for embedding generation.
type Client struct {
	client *openai.Client
}

// NewClient creates a new OpenAI client for embedding generation.
// It reads OPENAI_API_KEY from the environment and returns an error if
// not set. A non-empty baseURL points the client at any OpenAI-compatible
// embeddings endpoint.
func NewClient(baseURL string) (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)

	return &Client{client: &client}, nil
}

// Embed generates a single embedding for text using the given model.
func (c *Client) Embed(ctx context.Context, model, text string) ([]float32, error) {
	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
		Model: model,
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings call (model %s): %w", model, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embeddings call (model %s): empty response", model)
	}
	return toFloat32(resp.Data[0].Embedding), nil
}

// toFloat32 converts []float64 to []float32.
// The API returns float64, but the vector store uses float32.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
