package quiz

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotReady = errors.New("document is not processed yet")
	ErrInvalidRequest   = errors.New("invalid quiz request")
	ErrAttemptCompleted = errors.New("attempt already submitted")
)

// InvalidGenerationResponseError means the model's output could not be turned into questions.
type InvalidGenerationResponseError struct {
	Reason string
	Err    error
}

func (e *InvalidGenerationResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid generation response: %s: %v", e.Reason, e.Err)
	}
	return "invalid generation response: " + e.Reason
}

func (e *InvalidGenerationResponseError) Unwrap() error { return e.Err }
