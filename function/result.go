package function

// Status classifies how an execution ended.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusTimeout   Status = "timeout"
	StatusCancelled Status = "cancelled"
)

// Result is the uniform execution result returned by every tier. At most one
// tier-augmentation field (Code/Generative/Agentic) is populated, matching
// the originating FunctionDefinition.Type; the Code and Generative tiers
// leave theirs nil when the execution does not complete.
type Result struct {
	ExecutionID     string
	FunctionID      string
	FunctionVersion string

	Status Status

	// Output is present iff Status == StatusCompleted, except the Code
	// tier may also populate it with a handler-carried PartialResult when
	// the handler throws an error that carries one.
	Output any

	// Error is present iff Status != StatusCompleted.
	Error *Error

	Metrics  Metrics
	Metadata Metadata

	Code       *CodeResult
	Generative *GenerativeResult
	Agentic    *AgenticResult
}

// CodeResult augments Result for TypeCode executions.
type CodeResult struct {
	Language          string
	IsolateType       string
	MemoryUsedBytes   int64
	CPUTimeMs         int64
	Deterministic     bool
	CompilationTimeMs int64
	CacheHit          bool
}

// GenerativeResult augments Result for TypeGenerative executions.
type GenerativeResult struct {
	Model          string
	Tokens         TokenUsage
	Prompt         Prompt
	RawResponse    string
	Cached         bool
	StopReason     string
	ModelLatencyMs int64
}

// Prompt captures the rendered system/user prompt text surfaced on a
// GenerativeResult for observability.
type Prompt struct {
	System string
	User   string
}

// AgenticResult augments Result for TypeAgentic executions.
type AgenticResult struct {
	Model            string
	TotalTokens      int
	Iterations       int
	Trace            []Iteration
	ToolsUsed        []string
	GoalAchieved     bool
	ReasoningSummary string
	CostEstimate     float64
}

// Iteration is one think-act-observe turn of an Agentic execution.
type Iteration struct {
	Iteration   int
	TimestampMs int64
	Reasoning   string
	ToolCalls   []ToolCallRecord
	Tokens      TokenUsage
	DurationMs  int64
}

// ToolCallRecord is the outcome of a single tool invocation within one
// Iteration.
type ToolCallRecord struct {
	Tool       string
	Input      any
	Output     any
	DurationMs int64
	Success    bool
	Error      string
	Approval   *Approval
}

// Approval records the approval-gate outcome for a tool call that required
// one.
type Approval struct {
	Required   bool
	Granted    bool
	ApprovedBy string
}
