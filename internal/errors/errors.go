// Package errors provides error wrapping with stack traces for the NEB path
// optimization service. The optimizer's own error taxonomy lives in the neb
// package; this package carries operational context for the service layer.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Error is an error with operational context and a captured stack trace.
type Error struct {
	// Err is the underlying error, if any.
	Err error
	// Message describes what went wrong.
	Message string
	// Op is the operation being performed when the error occurred.
	Op string
	// Stack is the captured stack trace.
	Stack []string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
	}
	if e.Message != "" {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

// WithOp attaches the operation name to the error.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// StackTrace returns the captured stack trace.
func (e *Error) StackTrace() []string { return e.Stack }

// New creates an error with a message and stack trace.
func New(msg string) *Error {
	return &Error{Message: msg, Stack: callers()}
}

// Errorf creates an error with a formatted message and stack trace.
func Errorf(format string, args ...interface{}) *Error {
	return &Error{Message: fmt.Sprintf(format, args...), Stack: callers()}
}

// Wrap annotates err with a message, capturing a stack trace if err does not
// already carry one. Returns nil when err is nil.
func Wrap(err error, msg string) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return &Error{Err: err, Message: msg, Stack: e.Stack}
	}
	return &Error{Err: err, Message: msg, Stack: callers()}
}

// Wrapf annotates err with a formatted message.
func Wrapf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

func callers() []string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	if n == 0 {
		return nil
	}

	frames := runtime.CallersFrames(pcs[:n])
	stack := make([]string, 0, n)
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			stack = append(stack, fmt.Sprintf("%s\n\t%s:%d", frame.Function, frame.File, frame.Line))
		}
		if !more {
			break
		}
	}
	return stack
}
