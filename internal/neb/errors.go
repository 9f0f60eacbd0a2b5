package neb

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an Error.
type Kind int

const (
	// KindInvalidInput marks malformed chain setup: too few images,
	// mismatched states/images lengths, inconsistent dimensions. Never
	// retried.
	KindInvalidInput Kind = iota
	// KindEvaluation marks an evaluator failure for one or more images of
	// the current step. Fatal to the running FindPath call; no partial
	// chain state is committed for the failed step.
	KindEvaluation
	// KindDomain marks an interpolation query outside [0,1]. It does not
	// affect optimizer state.
	KindDomain
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid input"
	case KindEvaluation:
		return "evaluation"
	case KindDomain:
		return "domain"
	default:
		return "unknown"
	}
}

// Error is an optimization error with context that can be wrapped with
// additional information.
type Error struct {
	// Kind classifies the error.
	Kind Kind
	// Op is the operation that caused the error.
	Op string
	// Images lists the chain indices involved, for evaluation errors.
	Images []int
	// Message describes the error that occurred.
	Message string
	// Err is the underlying error that triggered this one, if any.
	Err error
}

// Error returns the string representation of the error.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	if len(e.Images) > 0 {
		fmt.Fprintf(&b, ": images %v", e.Images)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// InvalidInputError creates a KindInvalidInput error.
func InvalidInputError(op, format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidInput, Op: op, Message: fmt.Sprintf(format, args...)}
}

// EvaluationError wraps an evaluator failure for the given image indices.
func EvaluationError(op string, images []int, err error) *Error {
	return &Error{Kind: KindEvaluation, Op: op, Images: images, Err: err}
}

// DomainError creates a KindDomain error.
func DomainError(op, format string, args ...interface{}) *Error {
	return &Error{Kind: KindDomain, Op: op, Message: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// IsInvalidInput reports whether err is a chain-setup error.
func IsInvalidInput(err error) bool { return IsKind(err, KindInvalidInput) }

// IsEvaluation reports whether err is an evaluator failure.
func IsEvaluation(err error) bool { return IsKind(err, KindEvaluation) }

// IsDomain reports whether err is an interpolation domain error.
func IsDomain(err error) bool { return IsKind(err, KindDomain) }
