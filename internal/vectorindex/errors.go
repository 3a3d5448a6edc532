package vectorindex

import (
	"errors"
	"fmt"
)

// ErrIndexNotFound is returned by Load when no usable artifact exists.
var ErrIndexNotFound = errors.New("vector index not found")

// IndexCorruptError means an artifact exists but cannot be decoded. It
// matches ErrIndexNotFound so callers that only need "usable or not" can
// test a single sentinel.
type IndexCorruptError struct {
	DocumentID string
	Err        error
}

func (e *IndexCorruptError) Error() string {
	return fmt.Sprintf("vector index for %s is corrupt: %v", e.DocumentID, e.Err)
}

func (e *IndexCorruptError) Unwrap() error { return e.Err }

func (e *IndexCorruptError) Is(target error) bool { return target == ErrIndexNotFound }
