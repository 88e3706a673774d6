// Package agentic implements the multi-step Agentic tier: a bounded
// think-act-observe loop over a Planner, dispatching tool calls (with input
// validation and an optional human approval gate) and accumulating a
// per-iteration trace.
package agentic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/runforge/execengine/execid"
	"github.com/runforge/execengine/function"
	"github.com/runforge/execengine/schema"
	"github.com/runforge/execengine/telemetry"
)

// builtinToolActions ties a well-known tool name to the action category an
// ApprovalConfig.Actions entry names, so a caller can gate a whole class of
// tool (e.g. every shell_exec call) without listing each tool by name.
var builtinToolActions = map[string]string{
	"file_write":     "write_file",
	"email_send":     "send_email",
	"database_query": "modify_data",
	"shell_exec":     "external_api",
}

// requiresApproval reports whether toolName must pass through the approval
// gate under cfg: either named directly in cfg.Tools, or tied by
// builtinToolActions to an action listed in cfg.Actions.
func requiresApproval(toolName string, cfg *function.ApprovalConfig) bool {
	if cfg == nil {
		return false
	}
	for _, t := range cfg.Tools {
		if t == toolName {
			return true
		}
	}
	if action, ok := builtinToolActions[toolName]; ok {
		for _, a := range cfg.Actions {
			if a == action {
				return true
			}
		}
	}
	return false
}

// Config bounds and shapes one Agentic execution. Zero-valued fields fall
// back to the documented defaults.
type Config struct {
	MaxIterations            int
	MaxToolCallsPerIteration int
	EnableReasoning          bool
	EnableMemory             bool
	Timeout                  time.Duration
	Model                    string
	// MaxTotalTokens caps cumulative input+output tokens across every
	// iteration. Zero means unbounded.
	MaxTotalTokens int
	// ApprovalTimeout bounds how long a gated tool call waits for
	// ApproveToolCall before failing. Zero means wait indefinitely
	// (bounded only by the overall run Timeout).
	ApprovalTimeout time.Duration
	// RequireApproval names the tools/action categories that must pass
	// through the approval gate. Nil means nothing requires approval.
	RequireApproval *function.ApprovalConfig
}

// DefaultConfig returns the tier's documented defaults, applied wherever a
// Config field is left zero-valued.
func DefaultConfig() Config {
	return Config{
		MaxIterations:            10,
		MaxToolCallsPerIteration: 5,
		EnableReasoning:          true,
		EnableMemory:             false,
		Timeout:                  5 * time.Minute,
		Model:                    "claude-3-sonnet",
	}
}

func mergeDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = def.MaxIterations
	}
	if cfg.MaxToolCallsPerIteration <= 0 {
		cfg.MaxToolCallsPerIteration = def.MaxToolCallsPerIteration
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	return cfg
}

// Executor runs Agentic-tier executions end to end.
type Executor struct {
	Planner Planner
	Logger  telemetry.Logger
	Metrics telemetry.Metrics
	// Handlers optionally supplies host-wide tool handlers, used for a
	// tool the function declares in its Tools list without a Handler of
	// its own. A call naming a tool that appears only here, with no
	// matching ToolDefinition, does not dispatch: it is recorded as
	// "not found in registered tools".
	Handlers map[string]function.ToolHandler

	gate *approvalGate
	// cancelled marks runs that ApproveToolCall-independent cancellation
	// requested; keyed by executionID.
	mu        sync.Mutex
	cancelled map[string]bool
}

// New constructs an Executor. logger/metrics default to no-ops when nil.
func New(planner Planner, logger telemetry.Logger, metrics telemetry.Metrics) *Executor {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	return &Executor{
		Planner:   planner,
		Logger:    logger,
		Metrics:   metrics,
		gate:      newApprovalGate(),
		cancelled: make(map[string]bool),
	}
}

// ApproveToolCall resolves a pending approval for (executionID, tool). A
// second call for the same (executionID, tool) pair after the first has
// already been resolved is a no-op: there is no longer a waiter to notify.
func (e *Executor) ApproveToolCall(executionID, tool string, granted bool) {
	e.gate.Approve(executionID, tool, granted)
}

// Cancel marks a run for cancellation. The run observes it at its next
// suspension point (start of an iteration, or before executing a tool call)
// and ends with StatusCancelled.
func (e *Executor) Cancel(executionID string) {
	e.mu.Lock()
	e.cancelled[executionID] = true
	e.mu.Unlock()
}

func (e *Executor) isCancelled(executionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelled[executionID]
}

func (e *Executor) forget(executionID string) {
	e.mu.Lock()
	delete(e.cancelled, executionID)
	e.mu.Unlock()
}

// Execute runs def against input and returns the uniform function.Result.
// def.Type must be function.TypeAgentic and def.Agentic must be non-nil.
func (e *Executor) Execute(ctx context.Context, def *function.FunctionDefinition, input map[string]any) *function.Result {
	return e.ExecuteWithID(ctx, execid.New(), def, input)
}

// ExecuteWithID runs def under a caller-supplied executionID. Callers that
// need to approve a gated tool call while the run is still in flight must
// use this form: they have no way to learn the ID Execute would generate
// until after it returns.
func (e *Executor) ExecuteWithID(ctx context.Context, executionID string, def *function.FunctionDefinition, input map[string]any) *function.Result {
	start := time.Now()
	defer e.forget(executionID)

	result := &function.Result{
		ExecutionID:     executionID,
		FunctionID:      def.ID,
		FunctionVersion: def.Version,
		Metadata:        function.Metadata{StartedAt: start},
	}

	spec := def.Agentic
	cfg := mergeDefaults(Config{
		MaxIterations:            spec.MaxIterations,
		MaxToolCallsPerIteration: spec.MaxToolCallsPerIteration,
		EnableReasoning:          spec.EnableReasoning,
		EnableMemory:             spec.EnableMemory,
		Model:                    spec.Model,
		MaxTotalTokens:           spec.MaxTotalTokens,
		RequireApproval:          spec.RequireApproval,
	})

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	tools := make(map[string]function.ToolDefinition, len(spec.Tools))
	for _, t := range spec.Tools {
		tools[t.Name] = t
	}

	goalBytes, _ := json.Marshal(input)
	history := []Message{
		{Role: "user", Content: fmt.Sprintf("%s\nInput: %s", spec.Goal, string(goalBytes))},
	}

	var trace []function.Iteration
	var toolsUsedSet = make(map[string]bool)
	var totalTokens function.TokenUsage
	var lastReasoning string
	var finalAnswer string
	goalAchieved := false

	// pendingCalls carries tool calls a prior iteration couldn't fit under
	// MaxToolCallsPerIteration into the next iteration, so they still run.
	var pendingCalls []ToolCallRequest

	for iter := 1; iter <= cfg.MaxIterations; iter++ {
		if e.isCancelled(executionID) {
			result.Status = function.StatusCancelled
			result.Error = function.New(function.ErrGeneric, "execution cancelled")
			e.finish(result, start, &trace, toolsUsedSet, totalTokens, lastReasoning, goalAchieved, cfg.Model)
			return result
		}
		if ctx.Err() != nil {
			result.Status = function.StatusTimeout
			result.Error = function.New(function.ErrTimeout, "agentic run exceeded timeout after %d iteration(s)", iter-1)
			e.finish(result, start, &trace, toolsUsedSet, totalTokens, lastReasoning, goalAchieved, cfg.Model)
			return result
		}

		iterStart := time.Now()

		var planResp PlanResponse
		synthetic := len(pendingCalls) > 0
		if synthetic {
			// Serve the queued excess as this iteration's AI response
			// without consulting the planner again.
			planResp = PlanResponse{ToolCalls: pendingCalls, StopReason: "tool_use"}
		} else {
			planReq := PlanRequest{
				Model:    cfg.Model,
				System:   spec.SystemPrompt,
				Messages: history,
				Tools:    spec.Tools,
			}
			var err error
			planResp, err = e.Planner.Plan(ctx, planReq)
			if err != nil {
				result.Status = function.StatusFailed
				result.Error = function.FromError(err)
				e.finish(result, start, &trace, toolsUsedSet, totalTokens, lastReasoning, goalAchieved, cfg.Model)
				return result
			}

			lastReasoning = planResp.Reasoning
			next := totalTokens
			next.InputTokens += planResp.Tokens.InputTokens
			next.OutputTokens += planResp.Tokens.OutputTokens
			next.TotalTokens = next.InputTokens + next.OutputTokens

			// Budget check before committing: a response that would push
			// usage past the cap is not added to the running total.
			if cfg.MaxTotalTokens > 0 && next.TotalTokens > cfg.MaxTotalTokens {
				result.Status = function.StatusFailed
				result.Error = function.New(function.ErrBudgetExceeded, "agentic run exceeded token budget: response would bring usage to %d of %d", next.TotalTokens, cfg.MaxTotalTokens)
				e.finish(result, start, &trace, toolsUsedSet, totalTokens, lastReasoning, goalAchieved, cfg.Model)
				return result
			}
			totalTokens = next

			history = append(history, Message{Role: "assistant", Content: planResp.Reasoning})
		}

		calls := planResp.ToolCalls
		pendingCalls = nil
		if len(calls) > cfg.MaxToolCallsPerIteration {
			pendingCalls = calls[cfg.MaxToolCallsPerIteration:]
			calls = calls[:cfg.MaxToolCallsPerIteration]
		}

		var records []function.ToolCallRecord
		if len(calls) > 0 {
			records = e.runToolCalls(ctx, executionID, tools, calls, cfg.RequireApproval, cfg.ApprovalTimeout)
			for _, rec := range records {
				toolsUsedSet[rec.Tool] = true
				obs := fmt.Sprintf("tool %s: ", rec.Tool)
				if rec.Success {
					outBytes, _ := json.Marshal(rec.Output)
					obs += string(outBytes)
				} else {
					obs += "error: " + rec.Error
				}
				history = append(history, Message{Role: "tool", Content: obs})
			}
		}

		trace = append(trace, function.Iteration{
			Iteration:   iter,
			TimestampMs: iterStart.UnixMilli(),
			Reasoning:   planResp.Reasoning,
			ToolCalls:   records,
			Tokens:      planResp.Tokens,
			DurationMs:  time.Since(iterStart).Milliseconds(),
		})

		if !synthetic && len(pendingCalls) == 0 &&
			(planResp.StopReason == "end_turn" || (len(planResp.ToolCalls) == 0 && planResp.FinalAnswer != "")) {
			finalAnswer = planResp.FinalAnswer
			goalAchieved = true
			break
		}
	}

	if !goalAchieved {
		result.Status = function.StatusFailed
		result.Error = function.New(function.ErrGeneric, "agentic run did not reach a final answer within %d iterations", cfg.MaxIterations)
		e.finish(result, start, &trace, toolsUsedSet, totalTokens, lastReasoning, goalAchieved, cfg.Model)
		return result
	}

	result.Status = function.StatusCompleted
	result.Output = parseFinalAnswer(finalAnswer)
	e.finish(result, start, &trace, toolsUsedSet, totalTokens, lastReasoning, goalAchieved, cfg.Model)
	return result
}

// runToolCalls executes calls concurrently, passing each handler the run's
// ctx, and returns their records in call order once every call has
// returned. A failing call never aborts the others.
func (e *Executor) runToolCalls(ctx context.Context, executionID string, tools map[string]function.ToolDefinition, calls []ToolCallRequest, approval *function.ApprovalConfig, approvalTimeout time.Duration) []function.ToolCallRecord {
	records := make([]function.ToolCallRecord, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call ToolCallRequest) {
			defer wg.Done()
			records[i] = e.runToolCall(ctx, executionID, tools, call, approval, approvalTimeout)
		}(i, call)
	}
	wg.Wait()
	return records
}

func (e *Executor) runToolCall(ctx context.Context, executionID string, tools map[string]function.ToolDefinition, call ToolCallRequest, approval *function.ApprovalConfig, approvalTimeout time.Duration) function.ToolCallRecord {
	rec := function.ToolCallRecord{Tool: call.Tool, Input: call.Input}
	callStart := time.Now()

	def, hasDef := tools[call.Tool]
	handler := def.Handler
	if handler == nil {
		handler = e.Handlers[call.Tool]
	}

	switch {
	case !hasDef && handler == nil:
		rec.Error = fmt.Sprintf("%s: not found — no handler registered", call.Tool)
		rec.DurationMs = time.Since(callStart).Milliseconds()
		return rec
	case hasDef && handler == nil:
		rec.Error = fmt.Sprintf("No handler registered for tool: %s", call.Tool)
		rec.DurationMs = time.Since(callStart).Milliseconds()
		return rec
	case !hasDef && handler != nil:
		rec.Error = fmt.Sprintf("%s: not found in registered tools", call.Tool)
		rec.DurationMs = time.Since(callStart).Milliseconds()
		return rec
	}

	if len(def.InputSchema) > 0 {
		if _, err := schema.Validate(def.InputSchema, call.Input); err != nil {
			var missing *schema.MissingFieldError
			if errors.As(err, &missing) {
				rec.Error = fmt.Sprintf("Input validation failed: Missing required field: %s (validation error)", missing.Field)
			} else {
				rec.Error = err.Error()
			}
			rec.DurationMs = time.Since(callStart).Milliseconds()
			return rec
		}
	}

	if requiresApproval(call.Tool, approval) {
		granted, err := e.awaitApproval(ctx, executionID, call.Tool, approvalTimeout)
		rec.Approval = &function.Approval{Required: true, Granted: granted}
		if err != nil {
			rec.Error = "Approval timeout"
			rec.DurationMs = time.Since(callStart).Milliseconds()
			return rec
		}
		if !granted {
			rec.Error = fmt.Sprintf("tool call denied by approval gate: %s", call.Tool)
			rec.DurationMs = time.Since(callStart).Milliseconds()
			return rec
		}
	}

	if e.isCancelled(executionID) {
		rec.Error = "execution cancelled"
		rec.DurationMs = time.Since(callStart).Milliseconds()
		return rec
	}

	inputBytes, _ := json.Marshal(call.Input)
	tc := function.ToolContext{ExecutionID: executionID, RunID: executionID}
	output, err := handler(ctx, tc, json.RawMessage(inputBytes))
	rec.DurationMs = time.Since(callStart).Milliseconds()
	if err != nil {
		rec.Error = err.Error()
		return rec
	}
	rec.Output = output
	rec.Success = true
	return rec
}

// awaitApproval blocks until ApproveToolCall resolves the pending approval
// for (executionID, tool), approvalTimeout elapses (if positive), or ctx is
// cancelled.
func (e *Executor) awaitApproval(ctx context.Context, executionID, tool string, approvalTimeout time.Duration) (bool, error) {
	ch := e.gate.wait(executionID, tool)

	if approvalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, approvalTimeout)
		defer cancel()
	}

	select {
	case granted := <-ch:
		return granted, nil
	case <-ctx.Done():
		e.gate.cancel(executionID, tool)
		return false, ctx.Err()
	}
}

func (e *Executor) finish(result *function.Result, start time.Time, trace *[]function.Iteration, toolsUsed map[string]bool, tokens function.TokenUsage, reasoning string, goalAchieved bool, model string) {
	completed := time.Now()
	result.Metadata.CompletedAt = &completed

	used := make([]string, 0, len(toolsUsed))
	for name := range toolsUsed {
		used = append(used, name)
	}
	sort.Strings(used)

	outBytes, _ := json.Marshal(result.Output)
	result.Metrics = function.Metrics{
		DurationMs:      completed.Sub(start).Milliseconds(),
		OutputSizeBytes: len(outBytes),
		Tokens:          &tokens,
	}
	result.Agentic = &function.AgenticResult{
		Model:            model,
		TotalTokens:      tokens.TotalTokens,
		Iterations:       len(*trace),
		Trace:            *trace,
		ToolsUsed:        used,
		GoalAchieved:     goalAchieved,
		ReasoningSummary: reasoning,
	}

	e.Metrics.ObserveDuration("agentic_execution", result.Metrics.DurationMs, map[string]string{"model": model})
}

// parseFinalAnswer tries to interpret the planner's final answer as JSON,
// falling back to the raw string when it isn't.
func parseFinalAnswer(answer string) any {
	var v any
	if err := json.Unmarshal([]byte(answer), &v); err == nil {
		return v
	}
	return answer
}
