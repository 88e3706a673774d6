package function

import (
	"errors"
	"fmt"
)

// ErrKind is the stable string vocabulary surfaced as Error.Name.
type ErrKind string

const (
	ErrInvalidInput       ErrKind = "InvalidInput"
	ErrConfiguration      ErrKind = "ConfigurationError"
	ErrSourceNotFound     ErrKind = "SourceNotFound"
	ErrSourceUnavailable  ErrKind = "SourceUnavailable"
	ErrCompilation        ErrKind = "CompilationError"
	ErrSyntax             ErrKind = "SyntaxError"
	ErrReference          ErrKind = "ReferenceError"
	ErrMemoryLimit        ErrKind = "MemoryLimit"
	ErrCPULimit           ErrKind = "CpuLimit"
	ErrTimeout            ErrKind = "TimeoutError"
	ErrWasmExecution      ErrKind = "WasmExecutionError"
	ErrWasmDecode         ErrKind = "WasmDecodeError"
	ErrWasmNotFound       ErrKind = "WasmNotFoundError"
	ErrPython             ErrKind = "PythonError"
	ErrPythonExecution    ErrKind = "PythonExecutionError"
	ErrValidation         ErrKind = "ValidationError"
	ErrBudgetExceeded     ErrKind = "BudgetExceeded"
	ErrUnsupportedModel   ErrKind = "UnsupportedModel"
	ErrUnsupportedLang    ErrKind = "UnsupportedLanguage"
	ErrGeneric            ErrKind = "Error"
)

// Error is the wire-serializable error shape attached to a FunctionResult
// whenever Status != StatusCompleted. It must cross isolate/worker
// boundaries intact, so it carries no unexported state and no wrapped
// error value beyond Cause.
type Error struct {
	Name         ErrKind
	Message      string
	Code         string
	Stack        string
	Retryable    bool
	PartialResult any

	// Cause chains to an underlying *Error, mirroring toolerrors.ToolError
	// so callers can use errors.Is/As across conversions from arbitrary
	// Go errors.
	Cause *Error
}

// New constructs an Error of the given kind with a formatted message.
func New(kind ErrKind, format string, args ...any) *Error {
	return &Error{Name: kind, Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Unwrap supports errors.Is/As across Error chains.
func (e *Error) Unwrap() error {
	if e == nil || e.Cause == nil {
		return nil
	}
	return e.Cause
}

// FromError converts an arbitrary error into an *Error chain, preserving
// any existing *Error via errors.As and otherwise wrapping it as a generic
// kind with retryable=false.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	return &Error{Name: ErrGeneric, Message: err.Error()}
}

// WithRetryable returns a copy of e with Retryable set, for call sites that
// learn retryability only after construction (e.g. from a carried field on
// the originating panic/throw value).
func (e *Error) WithRetryable(retryable bool) *Error {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Retryable = retryable
	return &cp
}
