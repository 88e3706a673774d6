// Package sandbox defines the pluggable Code-tier execution backend
// interface and the router that picks one for a given compiled artifact.
package sandbox

import (
	"context"
	"time"

	"github.com/runforge/execengine/compile"
	"github.com/runforge/execengine/function"
)

// Sandbox runs one compiled artifact to completion or failure. Implementations
// must honor deadline themselves; Run should return promptly once it passes,
// with a function.ErrTimeout outcome rather than relying solely on ctx
// cancellation.
type Sandbox interface {
	Run(ctx context.Context, artifact compile.Artifact, input any, cfg function.SandboxConfig, deadline time.Time) (Outcome, error)
}

// Outcome is a successful (possibly partial, see function.Error.PartialResult)
// sandbox run.
type Outcome struct {
	Output          any
	IsolateType     string
	MemoryUsedBytes int64
	CPUTimeMs       int64
	Deterministic   bool
}

// Backends names the built-in isolate kinds a Router can dispatch to.
const (
	BackendV8     = "v8"
	BackendWasm   = "wasm"
	BackendPython = "python"
)

// Router selects a Sandbox backend for a compiled artifact, honoring an
// explicit SandboxConfig.Isolate override when present.
type Router struct {
	backends map[string]Sandbox
}

// NewRouter builds a Router from a name->backend map. Missing entries are
// simply never selectable; callers typically register v8, wasm, and python.
func NewRouter(backends map[string]Sandbox) *Router {
	return &Router{backends: backends}
}

// Select returns the backend that should run artifact, given any explicit
// override in cfg.
func (r *Router) Select(artifact compile.Artifact, cfg function.SandboxConfig) (Sandbox, string, error) {
	name := cfg.Isolate
	if name == "" {
		switch artifact.Kind {
		case compile.KindWasmSentinel:
			name = BackendWasm
		case compile.KindPythonSentinel:
			name = BackendPython
		default:
			name = BackendV8
		}
	}
	backend, ok := r.backends[name]
	if !ok {
		return nil, name, function.New(function.ErrConfiguration, "no sandbox backend registered for isolate %q", name)
	}
	return backend, name, nil
}

// Run resolves the backend for artifact and runs it.
func (r *Router) Run(ctx context.Context, artifact compile.Artifact, input any, cfg function.SandboxConfig, deadline time.Time) (Outcome, string, error) {
	backend, name, err := r.Select(artifact, cfg)
	if err != nil {
		return Outcome{}, name, err
	}
	outcome, err := backend.Run(ctx, artifact, input, cfg, deadline)
	return outcome, name, err
}
