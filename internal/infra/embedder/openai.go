// Package embedder implements the Embedder port with the OpenAI embeddings API.
package embedder

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/boddenberg/wa-commerce-bot/internal/infra/resilience"
)

var tracer = otel.Tracer("openai")

const serviceName = "openai"

// Embedder computes text embeddings. SDK retries are disabled; retries go
// through resilience.RetryWithBackoff behind the circuit breaker.
type Embedder struct {
	client openai.Client
	model  string
	cb     *gobreaker.CircuitBreaker
	cfg    resilience.Config
}

// NewEmbedder creates an embedder for model.
func NewEmbedder(httpClient *http.Client, apiKey, baseURL, model string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *Embedder {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Embedder{
		client: openai.NewClient(opts...),
		model:  model,
		cb:     cb,
		cfg:    cfg,
	}
}

// Model reports the embedding model name.
func (e *Embedder) Model() string { return e.model }

// Embed returns the vector for text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	ctx, span := tracer.Start(ctx, "OpenAIEmbedder.Embed")
	defer span.End()
	span.SetAttributes(attribute.String("embedding.model", e.model))

	vec, err := resilience.Execute(e.cb, serviceName, func() ([]float64, error) {
		var out []float64
		err := resilience.RetryWithBackoff(ctx, e.cfg, func() error {
			resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
				Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
				Model: openai.EmbeddingModel(e.model),
			})
			if err != nil {
				var apiErr *openai.Error
				if errors.As(err, &apiErr) && apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusTooManyRequests {
					return resilience.Permanent(err)
				}
				return err
			}
			if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
				return resilience.Permanent(fmt.Errorf("embeddings response has no data"))
			}
			out = resp.Data[0].Embedding
			return nil
		})
		return out, err
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("embedding.dimensions", len(vec)))
	return vec, nil
}
