// Package errors provides structured error handling for xdrflow
package errors

import (
	"errors"
	"runtime"

	stringpool "github.com/ajitpratap0/xdrflow/pkg/strings"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeConfig represents malformed layout, header or pipeline configuration
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeCompile represents expression text that fails to compile
	ErrorTypeCompile ErrorType = "compile"
	// ErrorTypeDecode represents buffer underrun/overrun while decoding a record
	ErrorTypeDecode ErrorType = "decode"
	// ErrorTypeExecute represents a runtime failure inside a compiled expression
	ErrorTypeExecute ErrorType = "execute"
	// ErrorTypeEncode represents a failure rendering or compressing a frame
	ErrorTypeEncode ErrorType = "encode"
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeTimeout represents timeout errors
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeConnection represents broker/transport errors
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeFile represents file operation errors
	ErrorTypeFile ErrorType = "file"
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}

	// program counters, resolved on demand by Stack
	pcs []uintptr
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return stringpool.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return stringpool.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same type. This lets
// callers match categories with errors.Is(err, &Error{Type: ErrorTypeDecode}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Type == e.Type
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		pcs:     callers(2),
	}
}

// Newf creates a new error with a formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: stringpool.Sprintf(format, args...),
		pcs:     callers(2),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			pcs:     existingErr.pcs,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		pcs:     callers(2),
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, errType ErrorType, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, errType, stringpool.Sprintf(format, args...))
	return wrapped
}

// IsType checks if the error is of the given type
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// GetType returns the type of the outermost *Error in the chain, or
// ErrorTypeInternal for foreign errors.
func GetType(err error) ErrorType {
	var e *Error
	if !errors.As(err, &e) {
		return ErrorTypeInternal
	}
	return e.Type
}

// IsConfig reports whether err is a configuration error.
func IsConfig(err error) bool { return IsType(err, ErrorTypeConfig) }

// IsCompile reports whether err is a compile error.
func IsCompile(err error) bool { return IsType(err, ErrorTypeCompile) }

// IsDecode reports whether err is a decode error.
func IsDecode(err error) bool { return IsType(err, ErrorTypeDecode) }

// IsExecute reports whether err is an execute error.
func IsExecute(err error) bool { return IsType(err, ErrorTypeExecute) }

// Stack resolves the call stack captured where the error was created.
func (e *Error) Stack() []StackFrame {
	if len(e.pcs) == 0 {
		return nil
	}
	frames := runtime.CallersFrames(e.pcs)
	out := make([]StackFrame, 0, len(e.pcs))
	for {
		f, more := frames.Next()
		out = append(out, StackFrame{Function: f.Function, File: f.File, Line: f.Line})
		if !more {
			return out
		}
	}
}

const maxFrames = 32

// callers records the program counters above the caller's caller.
func callers(skip int) []uintptr {
	var pcs [maxFrames]uintptr
	n := runtime.Callers(skip+1, pcs[:])
	return append([]uintptr(nil), pcs[:n]...)
}
