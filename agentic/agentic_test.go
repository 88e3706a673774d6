package agentic

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runforge/execengine/function"
)

// fakePlanner replays a fixed script of PlanResponses, one per call.
type fakePlanner struct {
	calls     int
	responses []PlanResponse
	errs      []error
}

func (f *fakePlanner) Plan(context.Context, PlanRequest) (PlanResponse, error) {
	i := f.calls
	f.calls++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], err
	}
	return PlanResponse{}, err
}

func echoTool(name string) function.ToolDefinition {
	return function.ToolDefinition{
		Name:        name,
		Description: "echoes its input",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []any{"value"},
		},
		Handler: func(_ context.Context, _ function.ToolContext, input json.RawMessage) (any, error) {
			var m map[string]any
			_ = json.Unmarshal(input, &m)
			return m["value"], nil
		},
	}
}

func baseDef(tools ...function.ToolDefinition) *function.FunctionDefinition {
	return &function.FunctionDefinition{
		ID: "fn-agentic", Type: function.TypeAgentic,
		Agentic: &function.AgenticSpec{
			SystemPrompt: "be helpful",
			Goal:         "say hi",
			Tools:        tools,
		},
	}
}

func TestExecuteReachesFinalAnswer(t *testing.T) {
	planner := &fakePlanner{responses: []PlanResponse{
		{Reasoning: "I can answer directly", FinalAnswer: `"hello"`, StopReason: "end_turn", Tokens: function.TokenUsage{InputTokens: 10, OutputTokens: 5}},
	}}
	exec := New(planner, nil, nil)
	result := exec.Execute(context.Background(), baseDef(), map[string]any{})
	require.Equal(t, function.StatusCompleted, result.Status)
	assert.Equal(t, "hello", result.Output)
	require.NotNil(t, result.Agentic)
	assert.True(t, result.Agentic.GoalAchieved)
	assert.Equal(t, 1, result.Agentic.Iterations)
	assert.Equal(t, 15, result.Agentic.TotalTokens)
}

func TestExecuteDispatchesToolCallsAcrossIterations(t *testing.T) {
	planner := &fakePlanner{responses: []PlanResponse{
		{
			Reasoning:  "need to look something up",
			ToolCalls:  []ToolCallRequest{{Tool: "lookup", Input: map[string]any{"value": "x"}}},
			StopReason: "tool_use",
		},
		{
			Reasoning:   "done",
			FinalAnswer: `"x"`,
			StopReason:  "end_turn",
		},
	}}
	exec := New(planner, nil, nil)
	result := exec.Execute(context.Background(), baseDef(echoTool("lookup")), map[string]any{})
	require.Equal(t, function.StatusCompleted, result.Status)
	assert.Equal(t, "x", result.Output)
	require.Len(t, result.Agentic.Trace, 2)
	require.Len(t, result.Agentic.Trace[0].ToolCalls, 1)
	assert.True(t, result.Agentic.Trace[0].ToolCalls[0].Success)
	assert.Equal(t, []string{"lookup"}, result.Agentic.ToolsUsed)
}

func TestExecuteUnknownToolRecordsError(t *testing.T) {
	planner := &fakePlanner{responses: []PlanResponse{
		{ToolCalls: []ToolCallRequest{{Tool: "missing", Input: map[string]any{}}}, StopReason: "tool_use"},
		{FinalAnswer: `"done"`, StopReason: "end_turn"},
	}}
	exec := New(planner, nil, nil)
	result := exec.Execute(context.Background(), baseDef(), map[string]any{})
	require.Equal(t, function.StatusCompleted, result.Status)
	require.Len(t, result.Agentic.Trace[0].ToolCalls, 1)
	rec := result.Agentic.Trace[0].ToolCalls[0]
	assert.False(t, rec.Success)
	assert.Contains(t, rec.Error, "not found")
}

func TestExecuteHandlerWithoutDefinitionRecordsError(t *testing.T) {
	planner := &fakePlanner{responses: []PlanResponse{
		{ToolCalls: []ToolCallRequest{{Tool: "orphan", Input: map[string]any{}}}, StopReason: "tool_use"},
		{FinalAnswer: `"done"`, StopReason: "end_turn"},
	}}
	exec := New(planner, nil, nil)
	exec.Handlers = map[string]function.ToolHandler{
		"orphan": func(context.Context, function.ToolContext, json.RawMessage) (any, error) { return nil, nil },
	}
	result := exec.Execute(context.Background(), baseDef(), map[string]any{})
	rec := result.Agentic.Trace[0].ToolCalls[0]
	assert.False(t, rec.Success)
	assert.Contains(t, rec.Error, "not found in registered tools")
}

func TestExecuteKnownToolWithoutHandlerRecordsError(t *testing.T) {
	noHandler := function.ToolDefinition{Name: "lookup", InputSchema: map[string]any{"type": "object"}}
	planner := &fakePlanner{responses: []PlanResponse{
		{ToolCalls: []ToolCallRequest{{Tool: "lookup", Input: map[string]any{}}}, StopReason: "tool_use"},
		{FinalAnswer: `"done"`, StopReason: "end_turn"},
	}}
	exec := New(planner, nil, nil)
	result := exec.Execute(context.Background(), baseDef(noHandler), map[string]any{})
	rec := result.Agentic.Trace[0].ToolCalls[0]
	assert.False(t, rec.Success)
	assert.Contains(t, rec.Error, "No handler registered for tool")
}

func TestExecuteMissingRequiredInputFailsValidation(t *testing.T) {
	planner := &fakePlanner{responses: []PlanResponse{
		{ToolCalls: []ToolCallRequest{{Tool: "lookup", Input: map[string]any{}}}, StopReason: "tool_use"},
		{FinalAnswer: `"done"`, StopReason: "end_turn"},
	}}
	exec := New(planner, nil, nil)
	result := exec.Execute(context.Background(), baseDef(echoTool("lookup")), map[string]any{})
	rec := result.Agentic.Trace[0].ToolCalls[0]
	assert.False(t, rec.Success)
	assert.Contains(t, rec.Error, "Input validation failed: Missing required field: value (validation error)")
}

func TestExecuteExcessToolCallsDispatchOnNextIteration(t *testing.T) {
	calls := make([]ToolCallRequest, 0, 7)
	for i := 0; i < 7; i++ {
		calls = append(calls, ToolCallRequest{Tool: "lookup", Input: map[string]any{"value": "x"}})
	}
	planner := &fakePlanner{responses: []PlanResponse{
		{ToolCalls: calls, StopReason: "tool_use"},
		{FinalAnswer: `"done"`, StopReason: "end_turn"},
	}}
	exec := New(planner, nil, nil)
	result := exec.Execute(context.Background(), baseDef(echoTool("lookup")), map[string]any{})
	require.Equal(t, function.StatusCompleted, result.Status)

	// 5 in iteration 1 (the default MaxToolCallsPerIteration), 2 carried
	// into a synthetic iteration 2, then the planner's real "done" response
	// is iteration 3.
	require.Len(t, result.Agentic.Trace, 3)
	require.Len(t, result.Agentic.Trace[0].ToolCalls, 5)
	require.Len(t, result.Agentic.Trace[1].ToolCalls, 2)
	require.Empty(t, result.Agentic.Trace[2].ToolCalls)
	for _, iter := range result.Agentic.Trace[:2] {
		for _, rec := range iter.ToolCalls {
			assert.True(t, rec.Success)
			assert.Equal(t, "x", rec.Output)
		}
	}
	// Only 2 real planner calls were made: the synthetic iteration never
	// consulted the planner.
	assert.Equal(t, 2, planner.calls)
}

func TestExecuteTokenBudgetExceeded(t *testing.T) {
	planner := &fakePlanner{responses: []PlanResponse{
		{ToolCalls: []ToolCallRequest{{Tool: "lookup", Input: map[string]any{"value": "x"}}}, StopReason: "tool_use", Tokens: function.TokenUsage{InputTokens: 1000, OutputTokens: 1000}},
	}}
	exec := New(planner, nil, nil)
	def := baseDef(echoTool("lookup"))
	def.Agentic.MaxIterations = 3
	def.Agentic.MaxTotalTokens = 500
	result := exec.Execute(context.Background(), def, map[string]any{})
	require.Equal(t, function.StatusFailed, result.Status)
	require.NotNil(t, result.Error)
	assert.Equal(t, function.ErrBudgetExceeded, result.Error.Name)
}

func TestExecuteApprovalGateGrantThenDeny(t *testing.T) {
	planner := &fakePlanner{responses: []PlanResponse{
		{ToolCalls: []ToolCallRequest{{Tool: "lookup", Input: map[string]any{"value": "x"}}}, StopReason: "tool_use"},
		{FinalAnswer: `"done"`, StopReason: "end_turn"},
	}}
	exec := New(planner, nil, nil)
	def := baseDef(echoTool("lookup"))
	def.Agentic.RequireApproval = &function.ApprovalConfig{Tools: []string{"lookup"}}
	executionID := "exec-approval-test"

	done := make(chan *function.Result, 1)
	go func() {
		done <- exec.ExecuteWithID(context.Background(), executionID, def, map[string]any{})
	}()

	time.Sleep(20 * time.Millisecond)
	exec.ApproveToolCall(executionID, "lookup", true)

	// second Approve on an already-resolved key is a documented no-op and
	// must not panic or deadlock.
	assert.NotPanics(t, func() {
		exec.ApproveToolCall(executionID, "lookup", false)
	})

	select {
	case result := <-done:
		require.Equal(t, function.StatusCompleted, result.Status)
		rec := result.Agentic.Trace[0].ToolCalls[0]
		assert.True(t, rec.Success)
		require.NotNil(t, rec.Approval)
		assert.True(t, rec.Approval.Required)
		assert.True(t, rec.Approval.Granted)
	case <-time.After(2 * time.Second):
		t.Fatal("execution did not return after approval was granted")
	}
}

func TestExecuteApprovalGateTimeout(t *testing.T) {
	planner := &fakePlanner{responses: []PlanResponse{
		{ToolCalls: []ToolCallRequest{{Tool: "lookup", Input: map[string]any{"value": "x"}}}, StopReason: "tool_use"},
		{FinalAnswer: `"done"`, StopReason: "end_turn"},
	}}
	exec := New(planner, nil, nil)
	def := baseDef(echoTool("lookup"))
	def.Agentic.RequireApproval = &function.ApprovalConfig{Tools: []string{"lookup"}}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	result := exec.Execute(ctx, def, map[string]any{})
	require.Equal(t, function.StatusTimeout, result.Status)
	require.Len(t, result.Agentic.Trace, 1)
	rec := result.Agentic.Trace[0].ToolCalls[0]
	assert.False(t, rec.Success)
	assert.Equal(t, "Approval timeout", rec.Error)
	require.NotNil(t, rec.Approval)
	assert.True(t, rec.Approval.Required)
	assert.False(t, rec.Approval.Granted)
}
