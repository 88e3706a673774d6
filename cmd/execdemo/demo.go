package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/runforge/execengine/compile"
	"github.com/runforge/execengine/function"
	"github.com/runforge/execengine/generative"
)

// codeDemoDef describes a trivial, deterministic JS function run through
// the Code tier.
func codeDemoDef() *function.FunctionDefinition {
	return &function.FunctionDefinition{
		ID:      "demo.code.greet",
		Name:    "greet",
		Version: "v1",
		Type:    function.TypeCode,
		Timeout: "5s",
		Code: &function.CodeSpec{
			Language: compile.LangJavaScript,
			Source: function.InlineSource{
				Code: `export default function handler(event) { return "Hello, " + event.name + "!"; }`,
			},
			Sandbox: function.SandboxConfig{Deterministic: true},
		},
	}
}

// generativeDemoDef describes a single-shot prompt run through the
// Generative tier.
func generativeDemoDef(model string) *function.FunctionDefinition {
	return &function.FunctionDefinition{
		ID:      "demo.generative.greeter",
		Name:    "greeter",
		Version: "v1",
		Type:    function.TypeGenerative,
		Timeout: "10s",
		Generative: &function.GenerativeSpec{
			Model:        model,
			SystemPrompt: "You are a terse, friendly greeter.",
			UserPrompt:   "Say hello to {{name}} in one short sentence.",
		},
	}
}

// agenticDemoDef describes a two-tool research loop run through the
// Agentic tier: a weather lookup and a recommendation tool, the second
// gated behind human approval.
func agenticDemoDef(model string) *function.FunctionDefinition {
	return &function.FunctionDefinition{
		ID:      "demo.agentic.travel-planner",
		Name:    "travel-planner",
		Version: "v1",
		Type:    function.TypeAgentic,
		Timeout: "2m",
		Agentic: &function.AgenticSpec{
			Model:        model,
			SystemPrompt: "You are a travel planning assistant. Use the available tools before answering.",
			Goal:         "Recommend one activity for the given city, based on its current weather.",
			Tools: []function.ToolDefinition{
				weatherTool(),
				recommendTool(),
			},
			RequireApproval: &function.ApprovalConfig{Tools: []string{"book_recommendation"}},
		},
	}
}

func weatherTool() function.ToolDefinition {
	return function.ToolDefinition{
		Name:        "get_weather",
		Description: "Returns the current weather conditions for a city.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []any{"city"},
			"properties": map[string]any{
				"city": map[string]any{"type": "string"},
			},
		},
		Handler: func(_ context.Context, _ function.ToolContext, input json.RawMessage) (any, error) {
			return map[string]any{"conditions": "sunny", "temperatureC": 22}, nil
		},
	}
}

func recommendTool() function.ToolDefinition {
	return function.ToolDefinition{
		Name:        "book_recommendation",
		Description: "Records the final activity recommendation. Requires human approval.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []any{"activity"},
			"properties": map[string]any{
				"activity": map[string]any{"type": "string"},
			},
		},
		Handler: func(_ context.Context, _ function.ToolContext, input json.RawMessage) (any, error) {
			return map[string]any{"booked": true}, nil
		},
	}
}

// demoPythonHandlers backs the fake Python runtime wired into the demo's
// Code tier, keyed by entry point name (see sandbox.NewPythonBackend).
func demoPythonHandlers() map[string]func(args any) (any, error) {
	return map[string]func(args any) (any, error){
		"handler": func(args any) (any, error) {
			m, _ := args.(map[string]any)
			return fmt.Sprintf("hello from python, %v", m["name"]), nil
		},
	}
}

// echoModelClient is a zero-configuration generative.ModelClient used when
// no provider API key is configured, so the demo runs end to end without
// external credentials.
type echoModelClient struct{}

func (echoModelClient) Complete(_ context.Context, req generative.Request) (generative.Response, error) {
	text := fmt.Sprintf("Hello! (echo client, no API key configured) You said: %s", req.User)
	if strings.Contains(req.System, "toolCalls") {
		// Invoked through agentic.ModelAdapter: honor its JSON tool-calling
		// envelope contract instead of returning free text.
		text = `{"reasoning":"no further tools needed","toolCalls":[],"finalAnswer":"Based on the sunny weather, I recommend a walking tour."}`
	}
	return generative.Response{
		Text:         text,
		StopReason:   "end_turn",
		InputTokens:  len(req.System) + len(req.User),
		OutputTokens: 16,
	}, nil
}
