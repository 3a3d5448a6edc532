package ai

import (
	"errors"
	"fmt"
)

// ErrRateLimited is wrapped when the local token budget or limiter refuses a call.
var ErrRateLimited = errors.New("rate limit exceeded: wait before retry")

// EmbeddingServiceError reports a failed call to the embedding service.
type EmbeddingServiceError struct {
	Model string
	Err   error
}

func (e *EmbeddingServiceError) Error() string {
	return fmt.Sprintf("embedding service (%s): %v", e.Model, e.Err)
}

func (e *EmbeddingServiceError) Unwrap() error { return e.Err }

// LLMServiceError reports a failed or unusable generation call.
type LLMServiceError struct {
	Model string
	Err   error
}

func (e *LLMServiceError) Error() string {
	return fmt.Sprintf("llm service (%s): %v", e.Model, e.Err)
}

func (e *LLMServiceError) Unwrap() error { return e.Err }
