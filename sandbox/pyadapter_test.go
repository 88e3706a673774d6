package sandbox

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runforge/execengine/compile"
	"github.com/runforge/execengine/function"
	"github.com/runforge/execengine/sandbox/pyexec"
)

func TestPythonBackendRunDecodesAndDispatches(t *testing.T) {
	runtime := pyexec.NewFake(map[string]func(args any) (any, error){
		"handler": func(args any) (any, error) {
			return map[string]any{"echo": args}, nil
		},
	})
	backend := NewPythonBackend(runtime)

	code := "__PYTHON_CODE__:" + base64.StdEncoding.EncodeToString([]byte("def handler(event): return event"))
	artifact := compile.Artifact{Kind: compile.KindPythonSentinel, Code: code}

	outcome, err := backend.Run(context.Background(), artifact, map[string]any{"x": 1}, function.SandboxConfig{}, time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, BackendPython, outcome.IsolateType)
	assert.Equal(t, map[string]any{"echo": map[string]any{"x": 1}}, outcome.Output)
}

func TestPythonBackendRunRejectsNonSentinel(t *testing.T) {
	backend := NewPythonBackend(pyexec.NewFake(nil))
	artifact := compile.Artifact{Kind: compile.KindPythonSentinel, Code: "not a sentinel"}

	_, err := backend.Run(context.Background(), artifact, nil, function.SandboxConfig{}, time.Now().Add(time.Second))
	require.Error(t, err)
	fe := function.FromError(err)
	assert.Equal(t, function.ErrCompilation, fe.Name)
}
