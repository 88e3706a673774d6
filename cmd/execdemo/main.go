// Command execdemo wires the Code, Generative, and Agentic tiers against
// in-memory backends and runs one demo FunctionDefinition per tier, printing
// the resulting function.Result.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/runforge/execengine/agentic"
	"github.com/runforge/execengine/cache"
	"github.com/runforge/execengine/cache/artifactcache"
	"github.com/runforge/execengine/cache/resultcache"
	"github.com/runforge/execengine/codetier"
	"github.com/runforge/execengine/function"
	"github.com/runforge/execengine/generative"
	"github.com/runforge/execengine/generative/provider/claude"
	"github.com/runforge/execengine/generative/provider/gpt"
	"github.com/runforge/execengine/sandbox"
	"github.com/runforge/execengine/sandbox/pyexec"
	"github.com/runforge/execengine/sandbox/v8eval"
	"github.com/runforge/execengine/sandbox/wasmexec"
	"github.com/runforge/execengine/sourceload"
	"github.com/runforge/execengine/telemetry"
)

var v = viper.New()

func main() {
	root := &cobra.Command{
		Use:   "execdemo",
		Short: "Run a scripted demo execution against one execution tier",
	}
	root.PersistentFlags().String("model", "claude-3-sonnet", "model to use for the generative/agentic demos")
	_ = v.BindPFlag("model", root.PersistentFlags().Lookup("model"))
	v.SetEnvPrefix("execdemo")
	v.AutomaticEnv()

	root.AddCommand(codeCmd(), generativeCmd(), agenticCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func codeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "code",
		Short: "Run a deterministic JS function through the Code tier",
		RunE: func(cmd *cobra.Command, args []string) error {
			tier := newCodeTier()
			def := codeDemoDef()
			result := tier.Execute(cmd.Context(), def, map[string]any{"name": "world"})
			printResult(result)
			return nil
		},
	}
}

func generativeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generative",
		Short: "Run a single-shot prompt through the Generative tier",
		RunE: func(cmd *cobra.Command, args []string) error {
			tier := newGenerativeTier()
			def := generativeDemoDef(v.GetString("model"))
			result := tier.Execute(cmd.Context(), def, map[string]any{"name": "Ada"})
			printResult(result)
			return nil
		},
	}
}

func agenticCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agentic",
		Short: "Run a bounded think-act-observe loop through the Agentic tier",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newModelClient(v.GetString("model"))
			exec := agentic.New(agentic.NewModelAdapter(client), nil, nil)
			def := agenticDemoDef(v.GetString("model"))
			result := exec.Execute(cmd.Context(), def, map[string]any{"city": "Lisbon"})
			printResult(result)
			return nil
		},
	}
}

func printResult(result *function.Result) {
	fmt.Println("Status:", result.Status)
	if result.Error != nil {
		fmt.Println("Error:", result.Error.Name, "-", result.Error.Message)
		return
	}
	out, _ := json.MarshalIndent(result.Output, "", "  ")
	fmt.Println("Output:", string(out))
	fmt.Println("Duration (ms):", result.Metrics.DurationMs)
}

// newCodeTier wires the Code tier against in-process backends only: inline
// source, no external KV/registry/HTTP collaborators, all three sandbox
// backends, and a process-local artifact cache.
func newCodeTier() *codetier.Tier {
	bindings := sourceload.Bindings{}
	artifacts := artifactcache.New(cache.NewMemoryStore())
	router := sandbox.NewRouter(map[string]sandbox.Sandbox{
		sandbox.BackendV8:     v8eval.New(nil),
		sandbox.BackendWasm:   wasmexec.New(nil),
		sandbox.BackendPython: sandbox.NewPythonBackend(pyexec.NewFake(demoPythonHandlers())),
	})
	logger := telemetry.NewZerologLogger(os.Stderr)
	return codetier.New(bindings, artifacts, router, logger, telemetry.NewNoopMetrics())
}

func newGenerativeTier() *generative.Tier {
	providers := map[string]generative.ModelClient{
		"claude": newModelClient("claude-3-sonnet"),
		"gpt":    newModelClient("gpt-4"),
	}
	rc := resultcache.New(cache.NewMemoryStore())
	logger := telemetry.NewZerologLogger(os.Stderr)
	return generative.New(providers, rc, logger, telemetry.NewNoopMetrics())
}

// newModelClient picks the real provider adapter when an API key is
// configured in the environment, and otherwise falls back to a canned echo
// client so the demo runs with no external credentials.
func newModelClient(model string) generative.ModelClient {
	switch {
	case len(model) >= 6 && model[:6] == "claude":
		if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
			return claude.New(key, nil)
		}
	case len(model) >= 3 && model[:3] == "gpt":
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			return gpt.New(key, nil)
		}
	}
	return echoModelClient{}
}
