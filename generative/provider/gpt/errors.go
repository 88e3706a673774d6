package gpt

import (
	"errors"
	"strconv"

	"github.com/openai/openai-go"

	"github.com/runforge/execengine/generative"
)

var errNoChoices = errors.New("provider returned no completion choices")

// classifyError mirrors the claude adapter's retry classification: 429 and
// 5xx are retryable, everything else is not.
func classifyError(err error) error {
	var apiErr *openai.Error
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
