package helper

import (
	"context"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// NewBackOff returns the bounded exponential backoff shared by all upstream calls.
// maxRetries is the number of retries after the first attempt.
func NewBackOff(ctx context.Context, initialInterval time.Duration, maxRetries int) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if initialInterval > 0 {
		b.InitialInterval = initialInterval
	}
	b.MaxElapsedTime = 0 // bounded by maxRetries instead
	if maxRetries < 0 {
		maxRetries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxRetries)), ctx)
}

// IsTransientStatus reports whether an HTTP status code is worth retrying.
func IsTransientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
