package utils

import (
	"context"
	"time"
)

const (
	// DefaultTimeout bounds single database round trips
	DefaultTimeout = 10 * time.Second

	// CleanupTimeout bounds compensating work after a failed job
	CleanupTimeout = 30 * time.Second

	// ShortTimeout is for health checks and lock releases
	ShortTimeout = 2 * time.Second
)

func WithTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, DefaultTimeout)
}

func WithShortTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, ShortTimeout)
}

// Detached keeps parent's values, such as the active span, but not its
// cancellation, so cleanup still runs after a task deadline has passed.
func Detached(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(parent), d)
}
