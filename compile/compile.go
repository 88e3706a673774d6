// Package compile turns source text plus a declared language into a
// sandbox-ready Artifact. It is the per-language compiler component.
package compile

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/runforge/execengine/compile/tsstrip"
	"github.com/runforge/execengine/function"
)

// Artifact is the compiled, sandbox-ready form of a function's source. Kind
// tells the Sandbox Router which backend must run it.
type Artifact struct {
	Kind   Kind
	Code   string
	Meta   map[string]string
	Millis int64
}

// Kind discriminates what a compiled Artifact actually is.
type Kind string

const (
	// KindJS is plain JavaScript text, runnable directly by the v8eval
	// backend.
	KindJS Kind = "js"
	// KindPythonSentinel wraps Python source for the pyexec backend.
	KindPythonSentinel Kind = "python"
	// KindWasmSentinel is an opaque pointer to a WASM binary, resolved by
	// the wasm sandbox backend via sourceload.ParseSentinel.
	KindWasmSentinel Kind = "wasm"
)

const pythonSentinelPrefix = "__PYTHON_CODE__:"

// Languages accepted by Compile. Anything else is UnsupportedLanguage.
const (
	LangJavaScript    = "javascript"
	LangTypeScript    = "typescript"
	LangPython        = "python"
	LangRust          = "rust"
	LangGo            = "go"
	LangZig           = "zig"
	LangAssemblyScript = "assemblyscript"
	LangCSharp        = "csharp"
)

// wasmLanguages compile to a WASM binary rather than text the v8 evaluator
// can run; the Compiler only ever passes an already-resolved sentinel
// through for these.
var wasmLanguages = map[string]bool{
	LangRust:           true,
	LangGo:             true,
	LangZig:            true,
	LangAssemblyScript: true,
	LangCSharp:         true,
}

// Compile dispatches on language and produces the sandbox-ready Artifact.
// source is either literal text (javascript/typescript/python) or a WASM
// sentinel produced by sourceload.Load (the WASM-family languages).
func Compile(language, source string) (Artifact, error) {
	start := nowMillis()
	switch strings.ToLower(language) {
	case LangJavaScript:
		return finish(Artifact{Kind: KindJS, Code: source}, start), nil

	case LangTypeScript:
		stripped, err := tsstrip.Strip(source)
		if err != nil {
			return Artifact{}, function.New(function.ErrCompilation, "typescript strip failed: %v", err)
		}
		return finish(Artifact{Kind: KindJS, Code: stripped, Meta: map[string]string{"sourceLanguage": LangTypeScript}}, start), nil

	case LangPython:
		encoded := pythonSentinelPrefix + base64.StdEncoding.EncodeToString([]byte(source))
		return finish(Artifact{Kind: KindPythonSentinel, Code: encoded}, start), nil

	default:
		lang := strings.ToLower(language)
		if wasmLanguages[lang] {
			if !strings.HasPrefix(source, "__WASM_") {
				return Artifact{}, function.New(function.ErrCompilation, "no compiler plugin configured for language %q", language)
			}
			return finish(Artifact{Kind: KindWasmSentinel, Code: source, Meta: map[string]string{"sourceLanguage": lang}}, start), nil
		}
		return Artifact{}, function.New(function.ErrUnsupportedLang, "unsupported language %q", language)
	}
}

// DecodePythonSentinel extracts the base64-decoded Python source a
// KindPythonSentinel artifact carries.
func DecodePythonSentinel(code string) (string, bool) {
	if !strings.HasPrefix(code, pythonSentinelPrefix) {
		return "", false
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(code, pythonSentinelPrefix))
	if err != nil {
		return "", false
	}
	return string(raw), true
}

func finish(a Artifact, start time.Time) Artifact {
	a.Millis = time.Since(start).Milliseconds()
	return a
}

// nowMillis exists only to give compilation timing a single seam; compile is
// fast enough in every backend here that this is always effectively zero,
// but the field is part of the wire contract.
func nowMillis() time.Time {
	return time.Now()
}
