package generative

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// DefaultMaxAttempts is used when a FunctionDefinition's RetryPolicy does not
// override it.
const DefaultMaxAttempts = 3

const (
	backoffBase = time.Second
	backoffCap  = 60 * time.Second
)

// withRetry calls fn up to maxAttempts times, retrying only on a
// *ProviderError with Retryable set, waiting an exponentially increasing,
// jittered delay between attempts (capped at backoffCap), honoring an
// explicit RetryAfter from the provider when present.
func withRetry(ctx context.Context, maxAttempts int, fn func(attempt int) (Response, error)) (Response, int, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		resp, err := fn(attempt)
		if err == nil {
			return resp, attempt, nil
		}
		lastErr = err

		var perr *ProviderError
		if !errors.As(err, &perr) || !perr.Retryable || attempt == maxAttempts-1 {
			return Response{}, attempt, err
		}

		delay := backoffDelay(attempt, perr.RetryAfter)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return Response{}, attempt, ctx.Err()
		}
	}
	return Response{}, maxAttempts - 1, lastErr
}

func backoffDelay(attempt, retryAfterSeconds int) time.Duration {
	if retryAfterSeconds > 0 {
		return time.Duration(retryAfterSeconds) * time.Second
	}
	base := float64(backoffBase) * math.Pow(2, float64(attempt))
	jittered := base * (0.5 + rand.Float64()*0.5)
	d := time.Duration(jittered)
	if d > backoffCap {
		return backoffCap
	}
	return d
}
