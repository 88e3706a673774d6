package claude

import (
	"errors"
	"strconv"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/runforge/execengine/generative"
)

// classifyError turns an SDK error into a *generative.ProviderError,
// deciding retryability the way the rest of this module's retry policy
// expects: 429 and 5xx are retryable, everything else is not.
func classifyError(err error) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return &generative.ProviderError{Err: err, Retryable: false}
	}

	status := apiErr.StatusCode
	retryable := status == 429 || status >= 500

	var retryAfter int
	if v := apiErr.Response.Header.Get("Retry-After"); v != "" {
		if n, convErr := strconv.Atoi(v); convErr == nil {
			retryAfter = n
		}
	}

	return &generative.ProviderError{Err: err, Retryable: retryable, RetryAfter: retryAfter}
}
