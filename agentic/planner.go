package agentic

import (
	"context"

	"github.com/runforge/execengine/function"
)

// Message is one turn in the conversation the Agentic tier maintains across
// iterations.
type Message struct {
	Role    string // "system", "user", "assistant", "tool"
	Content string
}

// ToolCallRequest is one tool invocation the planner asked for in a single
// iteration.
type ToolCallRequest struct {
	Tool  string
	Input map[string]any
}

// PlanRequest carries everything the planner needs to produce the next
// think-act-observe turn.
type PlanRequest struct {
	Model    string
	System   string
	Messages []Message
	Tools    []function.ToolDefinition
}

// PlanResponse is the planner's output for one iteration: either one or more
// tool calls to execute, or a final answer ending the run.
type PlanResponse struct {
	Reasoning   string
	ToolCalls   []ToolCallRequest
	FinalAnswer string
	StopReason  string
	Tokens      function.TokenUsage
}

// Planner is the think step of the think-act-observe loop. Implementations
// typically wrap a generative.ModelClient with a tool-calling contract.
type Planner interface {
	Plan(ctx context.Context, req PlanRequest) (PlanResponse, error)
}
