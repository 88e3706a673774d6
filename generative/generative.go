// Package generative implements the single-shot Generative tier: prompt
// rendering, provider dispatch with retry, schema-validated output parsing,
// and result caching.
package generative

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/runforge/execengine/cache/resultcache"
	"github.com/runforge/execengine/execid"
	"github.com/runforge/execengine/function"
	"github.com/runforge/execengine/schema"
	"github.com/runforge/execengine/telemetry"
)

// DefaultProviderRPS bounds outbound dispatch to each provider family that
// has no SetProviderLimit override. The default limiter's burst equals this
// rate.
const DefaultProviderRPS = 5

// DefaultModel is used when a GenerativeSpec declares no model.
const DefaultModel = "claude-3-sonnet"

// DefaultTimeoutMs is the tier's own fallback when neither the caller's
// context nor the function definition specify a deadline.
const DefaultTimeoutMs = 30000

// MaxSchemaRetries bounds the extra attempts made when the model's output
// fails OutputSchema validation (up to 2 additional attempts).
const MaxSchemaRetries = 2

// Tier runs Generative-tier executions end to end.
type Tier struct {
	Providers map[string]ModelClient
	Cache     *resultcache.Cache
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics

	limitersMu sync.Mutex
	limiters   map[string]*rate.Limiter
}

// New constructs a Tier. providers maps a model family key ("claude", "gpt")
// to its ModelClient. logger/metrics default to no-ops when nil. Outbound
// dispatch to each provider family is throttled to DefaultProviderRPS; use
// SetProviderLimit to override a family's budget.
func New(providers map[string]ModelClient, cache *resultcache.Cache, logger telemetry.Logger, metrics telemetry.Metrics) *Tier {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	return &Tier{
		Providers: providers,
		Cache:     cache,
		Logger:    logger,
		Metrics:   metrics,
		limiters:  make(map[string]*rate.Limiter),
	}
}

// SetProviderLimit overrides the token-bucket rate applied to a provider
// family's outbound dispatch. burst defaults to 1 when non-positive.
func (t *Tier) SetProviderLimit(family string, rps float64, burst int) {
	if burst <= 0 {
		burst = 1
	}
	t.limitersMu.Lock()
	defer t.limitersMu.Unlock()
	if t.limiters == nil {
		t.limiters = make(map[string]*rate.Limiter)
	}
	t.limiters[family] = rate.NewLimiter(rate.Limit(rps), burst)
}

func (t *Tier) limiterFor(family string) *rate.Limiter {
	t.limitersMu.Lock()
	defer t.limitersMu.Unlock()
	if t.limiters == nil {
		t.limiters = make(map[string]*rate.Limiter)
	}
	l, ok := t.limiters[family]
	if !ok {
		l = rate.NewLimiter(rate.Limit(DefaultProviderRPS), DefaultProviderRPS)
		t.limiters[family] = l
	}
	return l
}

// Execute runs def against input and returns the uniform function.Result.
// def.Type must be function.TypeGenerative and def.Generative must be
// non-nil.
func (t *Tier) Execute(ctx context.Context, def *function.FunctionDefinition, input map[string]any) *function.Result {
	start := time.Now()
	result := &function.Result{
		ExecutionID:     execid.New(),
		FunctionID:      def.ID,
		FunctionVersion: def.Version,
		Metadata:        function.Metadata{StartedAt: start},
	}

	model := def.Generative.Model
	if model == "" {
		model = DefaultModel
	}

	system, err := Render(def.Generative.SystemPrompt, input)
	if err != nil {
		return t.fail(result, start, function.New(function.ErrInvalidInput, "%s", err.Error()))
	}
	user, err := Render(def.Generative.UserPrompt, input)
	if err != nil {
		return t.fail(result, start, function.New(function.ErrInvalidInput, "%s", err.Error()))
	}
	messages, err := buildMessages(def.Generative.UserPrompt, def.Generative.Examples, user)
	if err != nil {
		return t.fail(result, start, function.New(function.ErrInvalidInput, "%s", err.Error()))
	}

	ctx, cancel := t.boundContext(ctx, def)
	defer cancel()

	if t.Cache != nil {
		if entry, ok, err := t.Cache.Get(ctx, def.ID, model, system, user); err == nil && ok {
			t.Metrics.IncCounter("generative_cache_hit", map[string]string{"model": model})
			return t.complete(result, start, model, system, user, entry.Output, entry.RawResponse, entry.StopReason, function.TokenUsage{}, true, 0)
		}
	}
	t.Metrics.IncCounter("generative_cache_miss", map[string]string{"model": model})

	client, provErr := t.clientFor(model)
	if provErr != nil {
		return t.fail(result, start, provErr)
	}
	limiter := t.limiterFor(familyOf(model))

	maxAttempts := DefaultMaxAttempts
	if def.RetryPolicy != nil && def.RetryPolicy.MaxAttempts > 0 {
		maxAttempts = def.RetryPolicy.MaxAttempts
	}

	var resp Response
	var retries int
	var parsed any
	var lastErr error

	for schemaAttempt := 0; schemaAttempt <= MaxSchemaRetries; schemaAttempt++ {
		if schemaAttempt > 0 {
			retries++
		}
		var attemptCount int
		resp, attemptCount, lastErr = withRetry(ctx, maxAttempts, func(int) (Response, error) {
			if err := limiter.Wait(ctx); err != nil {
				return Response{}, err
			}
			return client.Complete(ctx, Request{
				Model:       ResolveModelID(model),
				System:      system,
				User:        user,
				Messages:    messages,
				MaxTokens:   def.Generative.MaxTokens,
				Temperature: def.Generative.Temperature,
			})
		})
		retries += attemptCount
		if lastErr != nil {
			return t.fail(result, start, function.FromError(lastErr).WithRetryable(false))
		}

		parsed, lastErr = parseOutput(resp.Text)
		if lastErr != nil {
			parsed = resp.Text
			lastErr = nil
		}

		if len(def.OutputSchema) == 0 {
			lastErr = nil
			break
		}
		var coerced any
		coerced, lastErr = schema.Validate(def.OutputSchema, parsed)
		if lastErr == nil {
			parsed = coerced
			break
		}
	}
	if lastErr != nil {
		return t.fail(result, start, function.New(function.ErrValidation, "%s", lastErr.Error()))
	}

	tokens := function.TokenUsage{
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
		TotalTokens:  resp.InputTokens + resp.OutputTokens,
	}

	if t.Cache != nil {
		_ = t.Cache.Put(ctx, def.ID, model, system, user, resultcache.Entry{
			Output:      parsed,
			RawResponse: resp.Text,
			StopReason:  resp.StopReason,
		}, resultcache.DefaultTTL)
	}

	res := t.complete(result, start, model, system, user, parsed, resp.Text, resp.StopReason, tokens, false, retries)
	return res
}

func (t *Tier) boundContext(ctx context.Context, def *function.FunctionDefinition) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	timeoutMs, err := execid.ParseDuration(def.Timeout)
	if err != nil || timeoutMs <= 0 {
		timeoutMs = DefaultTimeoutMs
	}
	return context.WithTimeout(ctx, time.Duration(timeoutMs)*time.Millisecond)
}

func (t *Tier) clientFor(model string) (ModelClient, *function.Error) {
	family := familyOf(model)
	client, ok := t.Providers[family]
	if !ok {
		return nil, function.New(function.ErrUnsupportedModel, "no provider configured for model family %q", family)
	}
	return client, nil
}

func familyOf(model string) string {
	switch {
	case strings.HasPrefix(model, "claude"):
		return "claude"
	case strings.HasPrefix(model, "gpt"):
		return "gpt"
	case strings.HasPrefix(model, "gemini"):
		return "gemini"
	default:
		return model
	}
}

// buildMessages renders the few-shot transcript ahead of the final user
// turn: for each example, the user template rendered against the example's
// own input, followed by an assistant message holding the example's output
// (stringified with 2-space indentation when it isn't already a string).
// finalUser is appended last as the real user turn.
func buildMessages(userTemplate string, examples []function.FewShotExample, finalUser string) ([]Message, error) {
	if len(examples) == 0 {
		return nil, nil
	}
	messages := make([]Message, 0, len(examples)*2+1)
	for _, ex := range examples {
		exampleInput, _ := ex.Input.(map[string]any)
		rendered, err := Render(userTemplate, exampleInput)
		if err != nil {
			return nil, err
		}
		messages = append(messages,
			Message{Role: "user", Content: rendered},
			Message{Role: "assistant", Content: stringifyExampleOutput(ex.Output)},
		)
	}
	messages = append(messages, Message{Role: "user", Content: finalUser})
	return messages, nil
}

// stringifyExampleOutput renders a few-shot example's expected output as
// assistant message text: strings pass through unchanged, everything else
// is JSON-encoded with 2-space indentation.
func stringifyExampleOutput(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ""
	}
	return string(raw)
}

var fencePattern = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

// parseOutput strips an optional surrounding markdown code fence and parses
// the remainder as JSON.
func parseOutput(text string) (any, error) {
	trimmed := strings.TrimSpace(text)
	if m := fencePattern.FindStringSubmatch(trimmed); m != nil {
		trimmed = strings.TrimSpace(m[1])
	}
	var v any
	if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
		return nil, err
	}
	return v, nil
}

func (t *Tier) fail(result *function.Result, start time.Time, fe *function.Error) *function.Result {
	result.Status = function.StatusFailed
	result.Error = fe
	completed := time.Now()
	result.Metadata.CompletedAt = &completed
	result.Metrics = function.Metrics{DurationMs: completed.Sub(start).Milliseconds()}
	return result
}

func (t *Tier) complete(result *function.Result, start time.Time, model, system, user string, output any, raw, stopReason string, tokens function.TokenUsage, cached bool, retries int) *function.Result {
	completed := time.Now()
	result.Status = function.StatusCompleted
	result.Output = output
	result.Metadata.CompletedAt = &completed
	outBytes, _ := json.Marshal(output)
	result.Metrics = function.Metrics{
		DurationMs:      completed.Sub(start).Milliseconds(),
		OutputSizeBytes: len(outBytes),
		RetryCount:      retries,
		Tokens:          &tokens,
	}
	result.Generative = &function.GenerativeResult{
		Model:       model,
		Tokens:      tokens,
		Prompt:      function.Prompt{System: system, User: user},
		RawResponse: raw,
		Cached:      cached,
		StopReason:  stopReason,
	}
	return result
}
