package ai

import (
	"context"
	"errors"
	"fmt"

	"study-assistant-platform/internal/telemetry"

	"github.com/google/generative-ai-go/genai"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
)

// Embedder turns texts into fixed-length vectors, one per input, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Model() string
}

// maxEmbedBatch is the BatchEmbedContents request limit.
const maxEmbedBatch = 100

type GeminiEmbedder struct {
	client      *genai.Client
	model       string
	dimension   int
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
}

func NewGeminiEmbedder(ctx context.Context, apiKey, model string, dimension int, tier string, metrics *telemetry.Metrics) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, errors.New("missing GEMINI_API_KEY for embeddings")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid embedding dimension %d", dimension)
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiEmbedder{
		client:      client,
		model:       model,
		dimension:   dimension,
		breaker:     newBreaker("GeminiEmbeddings", metrics),
		rateLimiter: newLimiter(getRateLimits(tier)),
	}, nil
}

func (e *GeminiEmbedder) Dimension() int { return e.dimension }
func (e *GeminiEmbedder) Model() string  { return e.model }

// Embed sends texts in batches. Any failure aborts the whole call; no retries here.
func (e *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, span := otel.Tracer("gemini-client").Start(ctx, "gemini.embed")
	defer span.End()
	span.SetAttributes(attribute.Int("embed.texts", len(texts)), attribute.String("gemini.model", e.model))

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxEmbedBatch {
		end := min(start+maxEmbedBatch, len(texts))
		batchVectors, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			span.RecordError(err)
			return nil, &EmbeddingServiceError{Model: e.model, Err: err}
		}
		vectors = append(vectors, batchVectors...)
	}
	return vectors, nil
}

func (e *GeminiEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRateLimited, err)
	}

	result, err := e.breaker.Execute(func() (interface{}, error) {
		em := e.client.EmbeddingModel(e.model)
		batch := em.NewBatch()
		for _, t := range texts {
			batch.AddContent(genai.Text(t))
		}
		return em.BatchEmbedContents(ctx, batch)
	})
	if err != nil {
		return nil, err
	}

	res := result.(*genai.BatchEmbedContentsResponse)
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(res.Embeddings))
	}

	out := make([][]float32, len(texts))
	for i, emb := range res.Embeddings {
		if emb == nil || len(emb.Values) != e.dimension {
			got := 0
			if emb != nil {
				got = len(emb.Values)
			}
			return nil, fmt.Errorf("embedding %d has dimension %d, want %d", i, got, e.dimension)
		}
		out[i] = emb.Values
	}
	return out, nil
}

func (e *GeminiEmbedder) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}
