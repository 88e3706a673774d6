package v8eval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runforge/execengine/compile"
	"github.com/runforge/execengine/function"
)

func TestRunExportDefaultHandler(t *testing.T) {
	b := New(nil)
	artifact := compile.Artifact{Kind: compile.KindJS, Code: `
export default function handler(input) {
  return { doubled: input.n * 2 };
}`}
	out, err := b.Run(context.Background(), artifact, map[string]any{"n": 21}, function.SandboxConfig{}, time.Time{})
	require.NoError(t, err)
	m := out.Output.(map[string]any)
	assert.Equal(t, 42.0, m["doubled"])
}

func TestRunPlainHandlerFunction(t *testing.T) {
	b := New(nil)
	artifact := compile.Artifact{Kind: compile.KindJS, Code: `function handler(input) { return input + 1; }`}
	out, err := b.Run(context.Background(), artifact, 1.0, function.SandboxConfig{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 2.0, out.Output)
}

func TestRunMissingHandlerIsReferenceError(t *testing.T) {
	b := New(nil)
	artifact := compile.Artifact{Kind: compile.KindJS, Code: `const x = 1;`}
	_, err := b.Run(context.Background(), artifact, nil, function.SandboxConfig{}, time.Time{})
	require.Error(t, err)
	var fe *function.Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, function.ErrReference, fe.Name)
}

func TestRunDeterministicMathRandom(t *testing.T) {
	b := New(nil)
	artifact := compile.Artifact{Kind: compile.KindJS, Code: `function handler() { return Math.random(); }`}
	out, err := b.Run(context.Background(), artifact, nil, function.SandboxConfig{Deterministic: true}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 0.5, out.Output)
}

func TestRunSyntaxError(t *testing.T) {
	b := New(nil)
	artifact := compile.Artifact{Kind: compile.KindJS, Code: `function handler( { return 1; }`}
	_, err := b.Run(context.Background(), artifact, nil, function.SandboxConfig{}, time.Time{})
	require.Error(t, err)
	var fe *function.Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, function.ErrSyntax, fe.Name)
}

func TestRunTimeout(t *testing.T) {
	b := New(nil)
	artifact := compile.Artifact{Kind: compile.KindJS, Code: `function handler() { while (true) {} }`}
	deadline := time.Now().Add(100 * time.Millisecond)
	_, err := b.Run(context.Background(), artifact, nil, function.SandboxConfig{}, deadline)
	require.Error(t, err)
	var fe *function.Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, function.ErrTimeout, fe.Name)
}

func TestRunCPULimitConfiguredRejectsInfiniteLoopUpfront(t *testing.T) {
	b := New(nil)
	artifact := compile.Artifact{Kind: compile.KindJS, Code: `function handler() { while (true) {} }`}
	cfg := function.SandboxConfig{Runtime: function.RuntimePolicy{CPULimitMs: 100}}
	_, err := b.Run(context.Background(), artifact, nil, cfg, time.Time{})
	require.Error(t, err)
	var fe *function.Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, function.ErrCPULimit, fe.Name)
}

func TestRunRejectsDisallowedGlobal(t *testing.T) {
	b := New(nil)
	artifact := compile.Artifact{Kind: compile.KindJS, Code: `function handler() { setTimeout(function(){}, 10); return 1; }`}
	_, err := b.Run(context.Background(), artifact, nil, function.SandboxConfig{}, time.Time{})
	require.Error(t, err)
	var fe *function.Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, function.ErrReference, fe.Name)
}
