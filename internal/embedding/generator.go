package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/afinal/feira-rag/internal/knowledge"
)

// FallbackModel is tried whenever the configured primary model fails.
// Deliberately hardcoded: it is the known-stable model of last resort,
// not a tuning knob.
const FallbackModel = "text-embedding-ada-002"

// Default retry parameters, used when the configured values are zero.
const (
	DefaultRetryCount = 3
	DefaultRetryDelay = 2 * time.Second
)

// ErrUnavailable signals that no embedding could be produced after all
// retries. Callers must treat it as "no embedding available" and fall
// back to lexical search, never as a fatal error.
var ErrUnavailable = errors.New("embedding unavailable")

// API is the single-call embedding boundary. Client implements it
// against the OpenAI embeddings endpoint.
type API interface {
	Embed(ctx context.Context, model, text string) ([]float32, error)
}

// Generator produces embeddings with a primary model, a hardcoded
// fallback model tried within the same attempt, and a bounded
// fixed-delay retry loop around the whole attempt.
type Generator struct {
	api        API
	model      string
	dimension  int
	retryCount int
	retryDelay time.Duration
	logger     *slog.Logger
}

// GeneratorConfig carries the construction parameters for a Generator.
type GeneratorConfig struct {
	Model      string
	Dimension  int
	RetryCount int
	RetryDelay time.Duration
}

// NewGenerator creates a Generator over the given embedding API.
// Zero retry parameters fall back to the defaults.
func NewGenerator(api API, cfg GeneratorConfig, logger *slog.Logger) *Generator {
	if cfg.RetryCount <= 0 {
		cfg.RetryCount = DefaultRetryCount
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		api:        api,
		model:      cfg.Model,
		dimension:  cfg.Dimension,
		retryCount: cfg.RetryCount,
		retryDelay: cfg.RetryDelay,
		logger:     logger,
	}
}

// EmbedRecord generates the embedding for a knowledge record.
func (g *Generator) EmbedRecord(ctx context.Context, rec knowledge.Record) ([]float32, error) {
	return g.embed(ctx, rec.EmbeddingText())
}

// EmbedQuery generates the embedding for a free-text query.
func (g *Generator) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	return g.embed(ctx, query)
}

// embed runs the attempt loop: primary model, then the fallback model
// within the same attempt, with a fixed delay between attempts. On
// exhaustion it returns ErrUnavailable rather than the provider error.
func (g *Generator) embed(ctx context.Context, text string) ([]float32, error) {
	var vector []float32

	operation := func() error {
		vec, err := g.api.Embed(ctx, g.model, text)
		if err != nil {
			g.logger.Warn("primary embedding model failed, trying fallback",
				"model", g.model, "fallback", FallbackModel, "error", err, "input_len", len(text))
			vec, err = g.api.Embed(ctx, FallbackModel, text)
			if err != nil {
				return err
			}
		}
		if g.dimension > 0 && len(vec) != g.dimension {
			return fmt.Errorf("embedding has %d dimensions, expected %d", len(vec), g.dimension)
		}
		vector = vec
		return nil
	}

	// Fixed-delay backoff, not exponential: the retry budget is small and
	// the delay is an operator-tuned parameter.
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(g.retryDelay), uint64(g.retryCount-1)),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		g.logger.Error("all embedding attempts failed",
			"model", g.model, "attempts", g.retryCount, "input_len", len(text), "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return vector, nil
}
