package sandbox

import (
	"context"
	"time"

	"github.com/runforge/execengine/compile"
	"github.com/runforge/execengine/function"
	"github.com/runforge/execengine/sandbox/pyexec"
)

// pythonEntryPoint is the function name every Python artifact is invoked
// through, matching the `handler` convention the v8eval backend resolves
// for JS.
const pythonEntryPoint = "handler"

// PythonBackend adapts a pyexec.Runtime (the embedded-interpreter contract)
// to the Sandbox interface so the Router can dispatch KindPythonSentinel
// artifacts to it like any other backend.
type PythonBackend struct {
	Runtime pyexec.Runtime
}

// NewPythonBackend wraps runtime for use as a Router-selectable Sandbox.
func NewPythonBackend(runtime pyexec.Runtime) *PythonBackend {
	return &PythonBackend{Runtime: runtime}
}

// Run implements Sandbox.
func (b *PythonBackend) Run(ctx context.Context, artifact compile.Artifact, input any, _ function.SandboxConfig, deadline time.Time) (Outcome, error) {
	source, ok := compile.DecodePythonSentinel(artifact.Code)
	if !ok {
		return Outcome{}, function.New(function.ErrCompilation, "artifact is not a valid python sentinel")
	}

	result, err := b.Runtime.Execute(ctx, source, pythonEntryPoint, input, deadline)
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{
		Output:      result.Output,
		IsolateType: BackendPython,
	}, nil
}
