// Package pyexec models the Python tier's execution contract. The embedded
// Python runtime itself (e.g. Pyodide) is an external
// collaborator out of scope for this module; this package defines the
// narrow interface a host application plugs a real interpreter into, plus a
// deterministic in-memory fake used by this package's and the sandbox
// package's tests and by the demo CLI.
package pyexec

import (
	"context"
	"time"

	"github.com/runforge/execengine/function"
)

// Result is what a Python execution returns across the host/guest boundary.
// Output uses the host-language type conventions documented on Runtime.
type Result struct {
	Output        any
	StdoutCapture string
}

// Runtime executes Python source against an entry point function name.
//
// Type mapping across the boundary follows Python's own JSON-adjacent
// conventions: dict -> map[string]any, list -> []any, None -> nil, bool ->
// bool, int/float -> float64 (no int/float distinction survives the
// boundary, matching every other tier's JSON-shaped output), str -> string.
type Runtime interface {
	Execute(ctx context.Context, source, entry string, args any, deadline time.Time) (Result, error)
}

// NewFake returns a deterministic in-memory Runtime driven entirely by
// handlers registered ahead of time, for use in tests that exercise the
// Code tier's Python path without a real interpreter.
func NewFake(handlers map[string]func(args any) (any, error)) Runtime {
	return &fakeRuntime{handlers: handlers}
}

type fakeRuntime struct {
	handlers map[string]func(args any) (any, error)
}

// The Exc* constants mirror the exact exception-name vocabulary that
// must appear verbatim in a failed execution's error message.
const (
	ExcValueError        = "ValueError"
	ExcTypeError         = "TypeError"
	ExcKeyError          = "KeyError"
	ExcZeroDivisionError = "ZeroDivisionError"
	ExcSyntaxError       = "SyntaxError"
	ExcNameError         = "NameError"
	ExcIndexError        = "IndexError"
	ExcAttributeError    = "AttributeError"
)

func (f *fakeRuntime) Execute(_ context.Context, _, entry string, args any, _ time.Time) (Result, error) {
	handler, ok := f.handlers[entry]
	if !ok {
		return Result{}, function.New(function.ErrPython, "handler not defined: %s", entry)
	}
	out, err := handler(args)
	if err != nil {
		return Result{}, function.New(function.ErrPythonExecution, "%s", err.Error())
	}
	return Result{Output: out}, nil
}

// NewExceptionError builds the *function.Error a Runtime should return when
// guest Python code raises, with excType from the constants above embedded
// verbatim in the message.
func NewExceptionError(excType, message string) *function.Error {
	return function.New(function.ErrPythonExecution, "%s: %s", excType, message)
}
