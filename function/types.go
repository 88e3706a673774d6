// Package function defines the data model shared by every execution tier:
// function definitions, code sources, sandbox policy, tool definitions, and
// the uniform (tier-augmented) execution result.
package function

import (
	"context"
	"encoding/json"
	"time"
)

// Type discriminates the four execution paradigms a FunctionDefinition can
// describe. Exactly one of the tier-specific blocks on FunctionDefinition is
// populated, matching Type.
type Type string

const (
	// TypeCode runs deterministic compute inside a sandbox.
	TypeCode Type = "code"
	// TypeGenerative issues a single-shot call to a generative model.
	TypeGenerative Type = "generative"
	// TypeAgentic runs a multi-step think-act-observe loop with tools.
	TypeAgentic Type = "agentic"
	// TypeHuman routes to a human-in-the-loop approval workflow. Only the
	// approval-gate contract used by the Agentic tier is specified here;
	// the Human tier itself is an external collaborator.
	TypeHuman Type = "human"
)

// RetryPolicy controls how a tier retries failed provider calls.
// Schema-validation retries are bounded separately and do not read it.
// Zero-valued fields fall back to the tier's documented default.
type RetryPolicy struct {
	// MaxAttempts caps the number of attempts including the first. Zero
	// means the tier's default applies.
	MaxAttempts int
}

// FewShotExample pairs a templated input with its expected rendered output
// for Generative few-shot prompting.
type FewShotExample struct {
	Input  any
	Output any
}

// FunctionDefinition is immutable once created; a new version produces a new
// record rather than mutating this one.
type FunctionDefinition struct {
	// Common fields, present regardless of Type.
	ID          string
	Name        string
	Version     string
	Description string
	Timeout     any // number (ms) or duration string; parsed via execid.ParseDuration
	RetryPolicy *RetryPolicy
	Tags        []string
	InputSchema map[string]any
	OutputSchema map[string]any

	Type Type

	// Code carries Code-tier-specific fields. Non-nil iff Type == TypeCode.
	Code *CodeSpec

	// Generative carries Generative-tier-specific fields. Non-nil iff
	// Type == TypeGenerative.
	Generative *GenerativeSpec

	// Agentic carries Agentic-tier-specific fields. Non-nil iff
	// Type == TypeAgentic.
	Agentic *AgenticSpec
}

// CodeSpec holds the Code-tier portion of a FunctionDefinition.
type CodeSpec struct {
	Language      string
	Source        CodeSource
	Sandbox       SandboxConfig
	DefaultConfig map[string]any
}

// GenerativeSpec holds the Generative-tier portion of a FunctionDefinition.
type GenerativeSpec struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	Examples     []FewShotExample
	Temperature  float64
	MaxTokens    int
}

// AgenticSpec holds the Agentic-tier portion of a FunctionDefinition.
type AgenticSpec struct {
	SystemPrompt             string
	Goal                     string
	Tools                    []ToolDefinition
	MaxIterations            int
	MaxToolCallsPerIteration int
	EnableMemory             bool
	EnableReasoning          bool
	Model                    string
	// MaxTotalTokens caps cumulative input+output tokens across every
	// iteration. Zero means unbounded.
	MaxTotalTokens int
	// RequireApproval gates tool calls through the Agentic tier's approval
	// channel by name or by action category. Nil means no tool requires
	// approval.
	RequireApproval *ApprovalConfig
}

// ApprovalConfig names which tools, or which action categories a tool is
// known to perform (via the built-in tool-name-to-action map), must be
// approved before the Agentic tier runs them.
type ApprovalConfig struct {
	Tools   []string
	Actions []string
}

// ToolDefinition describes a tool made available to an Agentic function.
// Name must be unique per function; Handler is bound at registration and is
// never serialized.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema map[string]any
	Handler     ToolHandler
}

// ToolHandler executes a single tool invocation. Implementations may be
// synchronous Go functions or thin wrappers around nested function calls
// (modeled opaquely).
type ToolHandler func(ctx context.Context, tc ToolContext, input json.RawMessage) (any, error)

// ToolContext carries the identifiers a tool handler needs to correlate its
// execution with the enclosing agentic run, without exposing runtime
// internals.
type ToolContext struct {
	ExecutionID string
	RunID       string
	SessionID   string
}

// SandboxConfig configures the Code tier's isolation and runtime policy.
type SandboxConfig struct {
	// Isolate optionally overrides backend selection with a Router backend
	// name (v8, wasm, python); a name with no registered backend fails with
	// ErrConfiguration. Empty means let the router decide.
	Isolate        string
	Deterministic  bool
	AllowedGlobals []string
	Runtime        RuntimePolicy
}

// RuntimePolicy bounds resource usage and network access for a single Code
// execution.
type RuntimePolicy struct {
	MemoryLimitMb    int
	CPULimitMs       int
	NetworkEnabled   bool
	NetworkAllowlist []string
}

// Metrics is the uniform metrics block attached to every FunctionResult.
type Metrics struct {
	DurationMs      int64
	InputSizeBytes  int
	OutputSizeBytes int
	RetryCount      int
	Tokens          *TokenUsage
	ComputeUnits    float64
}

// TokenUsage tracks token consumption for a Generative or Agentic execution.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Metadata carries identity and correlation information not central to the
// outcome itself.
type Metadata struct {
	StartedAt       time.Time
	CompletedAt     *time.Time
	TraceID         string
	SpanID          string
	TriggeredBy     string
	WorkflowContext map[string]any
}
