// Package wasmexec implements the sandbox.Sandbox backend for WASM
// artifacts, modeling the worker-loader binding contract (put/get/fetch)
// over github.com/tetratelabs/wazero.
package wasmexec

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/runforge/execengine/compile"
	"github.com/runforge/execengine/function"
	"github.com/runforge/execengine/sandbox"
	"github.com/runforge/execengine/sourceload"
)

// ModuleSource resolves a sourceload.Sentinel to the compiled WASM binary it
// names. This is the worker-loader binding's "get" half.
type ModuleSource interface {
	Get(ctx context.Context, sentinel sourceload.Sentinel) ([]byte, error)
}

// Loader is the worker-loader binding contract: `put` registers a module
// under a name, `get` returns it, and `fetch` invokes it with a
// JSON-encoded request, returning a JSON-encoded response. No type in this
// package implements Loader: Backend resolves modules through ModuleSource
// and calls the instantiated module's exported fetch directly (see callFetch).
type Loader interface {
	Put(ctx context.Context, name string, binary []byte) error
	Fetch(ctx context.Context, name string, request []byte) (response []byte, err error)
}

// Backend is the wazero-backed sandbox.Sandbox implementation.
type Backend struct {
	Modules ModuleSource
	runtime wazero.Runtime
}

// New returns a Backend that resolves module bytes via modules and executes
// them with a shared wazero runtime.
func New(modules ModuleSource) *Backend {
	// CloseOnContextDone lets the run deadline stop guest code mid-call.
	cfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	return &Backend{Modules: modules, runtime: wazero.NewRuntimeWithConfig(context.Background(), cfg)}
}

// wasmRequest/wasmResponse are the JSON shapes exchanged with the instantiated
// module's exported "fetch" entry point, mirroring the worker-loader
// binding's put/get/fetch contract.
type wasmRequest struct {
	Input json.RawMessage `json:"input"`
}

type wasmResponse struct {
	Output json.RawMessage `json:"output"`
	Error  string          `json:"error,omitempty"`
}

// Run instantiates artifact's WASM module (resolved from its sentinel) and
// invokes its exported handler via the worker-loader fetch contract.
func (b *Backend) Run(ctx context.Context, artifact compile.Artifact, input any, cfg function.SandboxConfig, deadline time.Time) (sandbox.Outcome, error) {
	sentinel, ok := sourceload.ParseSentinel(artifact.Code)
	if !ok {
		return sandbox.Outcome{}, function.New(function.ErrWasmDecode, "artifact is not a recognized wasm sentinel")
	}
	if b.Modules == nil {
		return sandbox.Outcome{}, function.New(function.ErrWasmExecution, "wasm backend has no module source configured")
	}

	binary, err := b.Modules.Get(ctx, sentinel)
	if err != nil {
		return sandbox.Outcome{}, function.New(function.ErrWasmNotFound, "wasm module not found: %v", err)
	}

	runCtx := ctx
	if !deadline.IsZero() {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	wasi_snapshot_preview1.MustInstantiate(runCtx, b.runtime)
	compiled, err := b.runtime.CompileModule(runCtx, binary)
	if err != nil {
		return sandbox.Outcome{}, function.New(function.ErrWasmDecode, "failed to compile wasm module: %v", err)
	}
	defer compiled.Close(runCtx)

	instance, err := b.runtime.InstantiateModule(runCtx, compiled, wazero.NewModuleConfig())
	if err != nil {
		return sandbox.Outcome{}, function.New(function.ErrWasmExecution, "failed to instantiate wasm module: %v", err)
	}
	defer instance.Close(runCtx)

	fetchFn := instance.ExportedFunction("fetch")
	if fetchFn == nil {
		return sandbox.Outcome{}, function.New(function.ErrWasmExecution, "wasm module does not export fetch")
	}

	inputJSON, err := json.Marshal(input)
	if err != nil {
		return sandbox.Outcome{}, function.New(function.ErrGeneric, "input could not be serialized: %v", err)
	}
	reqJSON, err := json.Marshal(wasmRequest{Input: inputJSON})
	if err != nil {
		return sandbox.Outcome{}, function.New(function.ErrGeneric, "request could not be serialized: %v", err)
	}

	respJSON, err := callFetch(runCtx, instance, fetchFn, reqJSON)
	if err != nil {
		if runCtx.Err() != nil {
			return sandbox.Outcome{}, function.New(function.ErrTimeout, "wasm execution timed out")
		}
		return sandbox.Outcome{}, function.New(function.ErrWasmExecution, "wasm fetch call failed: %v", err)
	}

	var resp wasmResponse
	if err := json.Unmarshal(respJSON, &resp); err != nil {
		return sandbox.Outcome{}, function.New(function.ErrWasmExecution, "wasm response malformed: %v", err)
	}
	if resp.Error != "" {
		return sandbox.Outcome{}, function.New(function.ErrWasmExecution, "%s", resp.Error)
	}

	var output any
	if len(resp.Output) > 0 {
		if err := json.Unmarshal(resp.Output, &output); err != nil {
			return sandbox.Outcome{}, function.New(function.ErrWasmExecution, "wasm output malformed: %v", err)
		}
	}

	return sandbox.Outcome{Output: output, IsolateType: "wasm"}, nil
}

// callFetch marshals req into the module's linear memory and invokes its
// `fetch(ptr, len) -> (respPtr<<32 | respLen)` export, the worker-loader
// binding's calling convention for this backend. A module satisfying this
// contract must also export `alloc(size) -> ptr`; `dealloc(ptr, size)` is
// called afterward when present, but its absence is not an error (some
// guests never free).
func callFetch(ctx context.Context, mod api.Module, fetchFn api.Function, req []byte) ([]byte, error) {
	alloc := mod.ExportedFunction("alloc")
	if alloc == nil {
		return nil, fmt.Errorf("module does not export alloc(size) required by the fetch calling convention")
	}

	allocated, err := alloc.Call(ctx, uint64(len(req)))
	if err != nil {
		return nil, fmt.Errorf("alloc call failed: %w", err)
	}
	reqPtr := uint32(allocated[0])

	if !mod.Memory().Write(reqPtr, req) {
		return nil, fmt.Errorf("failed to write request into wasm memory")
	}

	results, err := fetchFn.Call(ctx, uint64(reqPtr), uint64(len(req)))
	if err != nil {
		return nil, err
	}
	if len(results) != 1 {
		return nil, fmt.Errorf("fetch returned %d results, expected 1 packed (ptr<<32|len) value", len(results))
	}

	packed := results[0]
	respPtr := uint32(packed >> 32)
	respLen := uint32(packed)

	resp, ok := mod.Memory().Read(respPtr, respLen)
	if !ok {
		return nil, fmt.Errorf("failed to read response from wasm memory")
	}
	// Copy out: the returned slice aliases the module's linear memory, which
	// becomes invalid once the instance is closed by the caller's defer.
	out := make([]byte, len(resp))
	copy(out, resp)

	if dealloc := mod.ExportedFunction("dealloc"); dealloc != nil {
		_, _ = dealloc.Call(ctx, uint64(reqPtr), uint64(len(req)))
		_, _ = dealloc.Call(ctx, uint64(respPtr), uint64(respLen))
	}

	return out, nil
}
