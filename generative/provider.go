package generative

import "context"

// Message is one turn of a rendered prompt transcript, in provider-neutral
// form. Role is "user" or "assistant".
type Message struct {
	Role    string
	Content string
}

// Request is one single-shot call to a generative model. Messages, when
// non-empty, is the full transcript to send (a rendered few-shot prelude
// followed by the final user turn); User is always that final turn's text
// on its own, for callers/adapters that only care about the last prompt.
type Request struct {
	Model       string
	System      string
	User        string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Response is a completed model call.
type Response struct {
	Text         string
	StopReason   string
	InputTokens  int
	OutputTokens int
}

// ProviderError carries the HTTP-ish facts a retry policy needs: whether the
// call is safely retryable, and how long to wait before the next attempt
// when the provider told us explicitly (Retry-After).
type ProviderError struct {
	Err        error
	Retryable  bool
	RetryAfter int // seconds, 0 if not specified
}

func (e *ProviderError) Error() string { return e.Err.Error() }
func (e *ProviderError) Unwrap() error { return e.Err }

// ModelClient dispatches a single Request to one model family.
type ModelClient interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// shortNames maps a spec-facing short model identifier to the dated,
// provider-facing model ID. Both providers use the same mapping shape.
var shortNames = map[string]string{
	"claude-4-opus":   "claude-opus-4-20250514",
	"claude-4-sonnet": "claude-sonnet-4-20250514",
	"claude-3-sonnet": "claude-3-sonnet-20240229",
	"claude-3-opus":   "claude-3-opus-20240229",
	"claude-3-haiku":  "claude-3-haiku-20240307",
	"gpt-4":           "gpt-4-turbo",
	"gpt-4o":          "gpt-4o",
	"gpt-3.5":         "gpt-3.5-turbo",
}

// ResolveModelID maps a short name to its provider-facing ID, or returns
// name unchanged when it is not one of the known short forms (callers may
// already pass a fully-qualified ID).
func ResolveModelID(name string) string {
	if resolved, ok := shortNames[name]; ok {
		return resolved
	}
	return name
}
