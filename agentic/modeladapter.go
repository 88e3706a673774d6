package agentic

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/runforge/execengine/function"
	"github.com/runforge/execengine/generative"
)

// ModelAdapter implements Planner on top of a generative.ModelClient by
// instructing the model to respond with a fixed JSON envelope describing
// either tool calls or a final answer. This lets the Agentic tier reuse the
// same Claude/GPT provider adapters the Generative tier uses, rather than
// requiring a second, tool-calling-specific client per provider.
type ModelAdapter struct {
	Client generative.ModelClient
}

// NewModelAdapter wraps client as a Planner.
func NewModelAdapter(client generative.ModelClient) *ModelAdapter {
	return &ModelAdapter{Client: client}
}

type planEnvelope struct {
	Reasoning   string         `json:"reasoning"`
	ToolCalls   []planToolCall `json:"toolCalls"`
	FinalAnswer *string        `json:"finalAnswer"`
}

type planToolCall struct {
	Tool  string         `json:"tool"`
	Input map[string]any `json:"input"`
}

var fencePattern = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

// Plan implements Planner.
func (a *ModelAdapter) Plan(ctx context.Context, req PlanRequest) (PlanResponse, error) {
	system := req.System + "\n\n" + envelopeInstructions(req.Tools)
	user := renderTranscript(req.Messages)

	resp, err := a.Client.Complete(ctx, generative.Request{
		Model:  req.Model,
		System: system,
		User:   user,
	})
	if err != nil {
		return PlanResponse{}, err
	}

	env, err := parseEnvelope(resp.Text)
	if err != nil {
		return PlanResponse{}, function.New(function.ErrGeneric, "planner response malformed: %v", err)
	}

	out := PlanResponse{
		Reasoning:  env.Reasoning,
		StopReason: resp.StopReason,
		Tokens: function.TokenUsage{
			InputTokens:  resp.InputTokens,
			OutputTokens: resp.OutputTokens,
			TotalTokens:  resp.InputTokens + resp.OutputTokens,
		},
	}
	if env.FinalAnswer != nil {
		out.FinalAnswer = *env.FinalAnswer
	}
	for _, tc := range env.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCallRequest{Tool: tc.Tool, Input: tc.Input})
	}
	return out, nil
}

func envelopeInstructions(tools []function.ToolDefinition) string {
	var b strings.Builder
	b.WriteString("You may call the following tools. Respond with ONLY a JSON object of the shape ")
	b.WriteString(`{"reasoning": string, "toolCalls": [{"tool": string, "input": object}], "finalAnswer": string|null}. `)
	b.WriteString("Set finalAnswer and leave toolCalls empty when you are done. Available tools:\n")
	for _, t := range tools {
		fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
	}
	return b.String()
}

func renderTranscript(messages []Message) string {
	var b strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&b, "[%s] %s\n", m.Role, m.Content)
	}
	return b.String()
}

func parseEnvelope(text string) (planEnvelope, error) {
	trimmed := strings.TrimSpace(text)
	if m := fencePattern.FindStringSubmatch(trimmed); m != nil {
		trimmed = strings.TrimSpace(m[1])
	}
	var env planEnvelope
	if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
		return planEnvelope{}, err
	}
	return env, nil
}
