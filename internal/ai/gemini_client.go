package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"study-assistant-platform/internal/telemetry"

	"github.com/google/generative-ai-go/genai"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
)

// LLM turns a prompt into raw text. No structured output is guaranteed.
type LLM interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type GeminiOptions struct {
	Model           string
	Tier            string
	Temperature     float32
	MaxOutputTokens int32
	Metrics         *telemetry.Metrics
}

type GeminiClient struct {
	client       *genai.Client
	model        string
	temperature  float32
	maxTokens    int32
	breaker      *gobreaker.CircuitBreaker
	rateLimiter  *rate.Limiter
	tokenCounter *TokenCounter
	metrics      *telemetry.Metrics
}

func NewGeminiClient(ctx context.Context, apiKey string, opts GeminiOptions) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New("missing GEMINI_API_KEY")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	if opts.Model == "" {
		opts.Model = "gemini-2.0-flash"
	}
	if opts.Temperature == 0 {
		opts.Temperature = 0.7
	}
	if opts.MaxOutputTokens == 0 {
		opts.MaxOutputTokens = 4096
	}

	limits := getRateLimits(opts.Tier)

	return &GeminiClient{
		client:       client,
		model:        opts.Model,
		temperature:  opts.Temperature,
		maxTokens:    opts.MaxOutputTokens,
		breaker:      newBreaker("GeminiAPI", opts.Metrics),
		rateLimiter:  newLimiter(limits),
		tokenCounter: NewTokenCounter(limits),
		metrics:      opts.Metrics,
	}, nil
}

// Generate performs a single generation call. Every failure is an *LLMServiceError.
func (gc *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, span := otel.Tracer("gemini-client").Start(ctx, "gemini.generate_content")
	defer span.End()

	estimatedTokens := estimateTokens(prompt)
	span.SetAttributes(
		attribute.Int("gemini.estimated_tokens", estimatedTokens),
		attribute.String("gemini.model", gc.model),
	)

	fail := func(err error) (string, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", &LLMServiceError{Model: gc.model, Err: err}
	}

	if !gc.tokenCounter.CanConsume(estimatedTokens, 1) {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return fail(ErrRateLimited)
	}

	if err := gc.rateLimiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return fail(err)
	}

	result, err := gc.breaker.Execute(func() (interface{}, error) {
		model := gc.client.GenerativeModel(gc.model)
		model.SetTemperature(gc.temperature)
		model.SetMaxOutputTokens(gc.maxTokens)

		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return nil, err
		}

		actualTokens := extractTokenUsage(resp)
		gc.tokenCounter.RecordUsage(actualTokens, 1)
		gc.metrics.RecordTokensUsed(int64(actualTokens), gc.model)
		span.SetAttributes(attribute.Int("gemini.actual_tokens", actualTokens))

		return responseText(resp), nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			span.SetAttributes(attribute.Bool("gemini.circuit_breaker_open", true))
		}
		return fail(err)
	}

	text := result.(string)
	if strings.TrimSpace(text) == "" {
		return fail(errors.New("empty response"))
	}
	return text, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
		// first candidate with content wins
		if sb.Len() > 0 {
			break
		}
	}
	return sb.String()
}

func extractTokenUsage(resp *genai.GenerateContentResponse) int {
	if resp.UsageMetadata != nil {
		return int(resp.UsageMetadata.TotalTokenCount)
	}
	return estimateTokens(responseText(resp))
}

func (gc *GeminiClient) Close() error {
	if gc.client != nil {
		return gc.client.Close()
	}
	return nil
}
