// Package v8eval implements the sandbox.Sandbox backend for JavaScript
// (and TypeScript-already-stripped-to-JavaScript) artifacts, using
// github.com/dop251/goja as a pure-Go ECMAScript VM standing in for a real
// V8 isolate.
package v8eval

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/runforge/execengine/compile"
	"github.com/runforge/execengine/function"
	"github.com/runforge/execengine/sandbox"
)

// Fetcher performs the outbound HTTP call backing the injected `fetch`
// global, when network access is enabled for a run.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (status int, body string, err error)
}

// Backend is the v8eval sandbox.Sandbox implementation.
type Backend struct {
	Fetcher Fetcher
}

// New returns a Backend. fetcher may be nil; a run that enables network
// access without a configured fetcher fails with a ConfigurationError.
func New(fetcher Fetcher) *Backend {
	return &Backend{Fetcher: fetcher}
}

// exportDefaultPattern strips ES module export syntax, which goja does not
// understand when the source is run as a plain script rather than a module.
// "export default function handler(...)" becomes a normal function
// declaration named handler; a bare "export default <expr>" is captured into
// __defaultExport__ so it can still be found afterward.
var (
	exportDefaultFnPattern  = regexp.MustCompile(`export\s+default\s+function\b`)
	exportDefaultExprPattern = regexp.MustCompile(`export\s+default\s+`)
	exportNamedPattern      = regexp.MustCompile(`export\s+(function|const|let|var)\s+`)
)

const handlerLookupSuffix = `
;var __handler__ = (typeof handler === "function") ? handler
  : (typeof __defaultExport__ === "function") ? __defaultExport__
  : (typeof module !== "undefined" && typeof module.exports === "function") ? module.exports
  : undefined;
`

func prepareSource(code string) string {
	src := exportDefaultFnPattern.ReplaceAllString(code, "function handler")
	src = exportDefaultExprPattern.ReplaceAllString(src, "var __defaultExport__ = ")
	src = exportNamedPattern.ReplaceAllString(src, "$1 ")
	return "var module = {exports: {}};\n" + src + handlerLookupSuffix
}

// Run evaluates artifact.Code as JavaScript, invoking its exported handler
// with input and returning its result. Globals installed for determinism and
// network policy are always removed before Run returns, on every exit path.
func (b *Backend) Run(ctx context.Context, artifact compile.Artifact, input any, cfg function.SandboxConfig, deadline time.Time) (sandbox.Outcome, error) {
	policy := sandbox.Policy{
		AllowedGlobals: cfg.AllowedGlobals,
		MemoryLimitMb:  cfg.Runtime.MemoryLimitMb,
		CPULimitMs:     cfg.Runtime.CPULimitMs,
	}
	if err := sandbox.CheckPolicy(artifact.Code, policy); err != nil {
		return sandbox.Outcome{}, err
	}

	vm := goja.New()
	restore := b.installGlobals(vm, ctx, cfg)
	defer restore()

	program := prepareSource(artifact.Code)
	if _, err := vm.RunString(program); err != nil {
		return sandbox.Outcome{}, translateRuntimeError(err)
	}

	handlerVal := vm.Get("__handler__")
	if handlerVal == nil || goja.IsUndefined(handlerVal) {
		return sandbox.Outcome{}, function.New(function.ErrReference, "no exported handler function found")
	}
	handler, ok := goja.AssertFunction(handlerVal)
	if !ok {
		return sandbox.Outcome{}, function.New(function.ErrReference, "exported handler is not callable")
	}

	done := make(chan runResult, 1)
	go func() {
		inputVal := vm.ToValue(input)
		result, err := handler(goja.Undefined(), inputVal)
		done <- runResult{result: result, err: err}
	}()

	var timer *time.Timer
	var timeoutCh <-chan time.Time
	if !deadline.IsZero() {
		timer = time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case r := <-done:
		if r.err != nil {
			return sandbox.Outcome{}, translateRuntimeError(r.err)
		}
		out, err := exportValue(r.result)
		if err != nil {
			return sandbox.Outcome{}, function.New(function.ErrGeneric, "handler result could not be serialized: %v", err)
		}
		return sandbox.Outcome{Output: out, IsolateType: "v8", Deterministic: cfg.Deterministic}, nil

	case <-timeoutCh:
		vm.Interrupt("execution timed out")
		return sandbox.Outcome{}, function.New(function.ErrTimeout, "execution timed out")

	case <-ctx.Done():
		vm.Interrupt("execution cancelled")
		return sandbox.Outcome{}, ctx.Err()
	}
}

type runResult struct {
	result goja.Value
	err    error
}

// installGlobals applies determinism overrides and the network-policy fetch
// binding, returning a restore func that undoes every change.
func (b *Backend) installGlobals(vm *goja.Runtime, ctx context.Context, cfg function.SandboxConfig) func() {
	var restores []func()

	if cfg.Deterministic {
		mathObj := vm.GlobalObject().Get("Math")
		if mathObj != nil && !goja.IsUndefined(mathObj) {
			if mathObject := mathObj.ToObject(vm); mathObject != nil {
				prevRandom := mathObject.Get("random")
				mathObject.Set("random", func() float64 { return 0.5 })
				restores = append(restores, func() {
					if prevRandom != nil {
						mathObject.Set("random", prevRandom)
					}
				})
			}
		}

		prevDateNow := vm.Get("Date")
		vm.Set("__fixedNowMs__", int64(1704067200000))
		dateCtor, _ := vm.RunString(`(function(fixed) {
			var RealDate = Date;
			function FixedDate() {
				if (arguments.length === 0) { return new RealDate(fixed); }
				return new (Function.prototype.bind.apply(RealDate, [null].concat(Array.prototype.slice.call(arguments))));
			}
			FixedDate.now = function() { return fixed; };
			FixedDate.prototype = RealDate.prototype;
			return FixedDate;
		})`)
		if dateCtor != nil {
			if fn, ok := goja.AssertFunction(dateCtor); ok {
				if patched, err := fn(goja.Undefined(), vm.ToValue(int64(1704067200000))); err == nil {
					vm.Set("Date", patched)
				}
			}
		}
		restores = append(restores, func() {
			if prevDateNow != nil {
				vm.Set("Date", prevDateNow)
			}
		})
	}

	prevFetch := vm.Get("fetch")
	vm.Set("fetch", b.fetchBinding(ctx, cfg))
	restores = append(restores, func() {
		if prevFetch != nil && !goja.IsUndefined(prevFetch) {
			vm.Set("fetch", prevFetch)
		} else {
			vm.GlobalObject().Delete("fetch")
		}
	})

	return func() {
		for i := len(restores) - 1; i >= 0; i-- {
			restores[i]()
		}
	}
}

func (b *Backend) fetchBinding(ctx context.Context, cfg function.SandboxConfig) func(string) (map[string]any, error) {
	return func(url string) (map[string]any, error) {
		if !cfg.Runtime.NetworkEnabled {
			return nil, function.New(function.ErrReference, "fetch is disabled for this execution")
		}
		if !hostAllowed(url, cfg.Runtime.NetworkAllowlist) {
			return nil, function.New(function.ErrReference, "fetch target is not in the network allowlist: %s", url)
		}
		if b.Fetcher == nil {
			return nil, function.New(function.ErrConfiguration, "network access enabled but no fetcher configured")
		}
		status, body, err := b.Fetcher.Fetch(ctx, url)
		if err != nil {
			return nil, function.New(function.ErrGeneric, "fetch failed: %v", err)
		}
		return map[string]any{"status": status, "body": body}, nil
	}
}

// hostAllowed checks url's host against allowlist entries, which may be
// exact hosts or "*.example.com" wildcard subdomain patterns.
func hostAllowed(url string, allowlist []string) bool {
	if len(allowlist) == 0 {
		return true
	}
	host := hostOf(url)
	for _, pattern := range allowlist {
		if pattern == host {
			return true
		}
		if strings.HasPrefix(pattern, "*.") && strings.HasSuffix(host, pattern[1:]) {
			return true
		}
	}
	return false
}

func hostOf(url string) string {
	rest := strings.TrimPrefix(strings.TrimPrefix(url, "https://"), "http://")
	if idx := strings.IndexAny(rest, "/?#"); idx >= 0 {
		rest = rest[:idx]
	}
	return rest
}

func exportValue(v goja.Value) (any, error) {
	if v == nil || goja.IsUndefined(v) {
		return nil, nil
	}
	exported := v.Export()
	// Round-trip through JSON to normalize goja's native map/slice types into
	// plain map[string]any / []any, matching every other backend's output shape.
	raw, err := json.Marshal(exported)
	if err != nil {
		return exported, nil
	}
	var normalized any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return exported, nil
	}
	return normalized, nil
}

func translateRuntimeError(err error) *function.Error {
	if exc, ok := err.(*goja.Exception); ok {
		msg := exc.Error()
		switch {
		case strings.Contains(msg, "SyntaxError"):
			return function.New(function.ErrSyntax, "%s", msg)
		case strings.Contains(msg, "ReferenceError"):
			return function.New(function.ErrReference, "%s", msg)
		default:
			return function.New(function.ErrGeneric, "%s", msg)
		}
	}
	if ie, ok := err.(*goja.InterruptedError); ok {
		return function.New(function.ErrTimeout, "%s", ie.Error())
	}
	return function.New(function.ErrGeneric, "%s", err.Error())
}
