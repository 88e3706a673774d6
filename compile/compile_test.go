package compile

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runforge/execengine/function"
)

func TestCompileJavaScript(t *testing.T) {
	a, err := Compile(LangJavaScript, "export default function handler() { return 1; }")
	require.NoError(t, err)
	assert.Equal(t, KindJS, a.Kind)
}

func TestCompileTypeScript(t *testing.T) {
	a, err := Compile(LangTypeScript, "function handler(x: number): number { return x; }")
	require.NoError(t, err)
	assert.Equal(t, KindJS, a.Kind)
	assert.NotContains(t, a.Code, ": number")
}

func TestCompilePython(t *testing.T) {
	a, err := Compile(LangPython, "def handler(event):\n    return event")
	require.NoError(t, err)
	assert.Equal(t, KindPythonSentinel, a.Kind)
	decoded, ok := DecodePythonSentinel(a.Code)
	require.True(t, ok)
	assert.Contains(t, decoded, "def handler")
}

func TestCompileWasmPassthrough(t *testing.T) {
	a, err := Compile(LangRust, "__WASM_ASSETS__:fn-1:v1")
	require.NoError(t, err)
	assert.Equal(t, KindWasmSentinel, a.Kind)
}

func TestCompileWasmLanguageWithoutSentinelFails(t *testing.T) {
	_, err := Compile(LangRust, "fn main() {}")
	require.Error(t, err)
	var fe *function.Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, function.ErrCompilation, fe.Name)
}

func TestCompileUnsupportedLanguage(t *testing.T) {
	_, err := Compile("cobol", "IDENTIFICATION DIVISION.")
	require.Error(t, err)
	var fe *function.Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, function.ErrUnsupportedLang, fe.Name)
}
