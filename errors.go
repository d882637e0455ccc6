package symgo

import (
	"errors"
	"fmt"
)

// ArgumentError reports a misuse of the public API: a bad argument index in
// a derivative rule, a malformed differentiation symbol spec, an ambiguous
// differentiation variable, or over-application of a Lambda. These are
// programmer errors; they are delivered by panic and are never retried.
type ArgumentError struct {
	Op      string // operation that was misused, e.g. "fdiff", "Diff", "Lambda.Apply"
	Message string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("symgo: %s: %s", e.Op, e.Message)
}

func argPanic(op, format string, args ...any) {
	panic(&ArgumentError{Op: op, Message: fmt.Sprintf(format, args...)})
}

// PoleError signals that a series expansion required an unbounded or
// indeterminate value at the expansion point. It is recoverable: callers
// (including the engine's own asymptotic fallback) may catch it and retry
// with a different strategy.
type PoleError struct {
	Expr  string // printed form of the expression being expanded
	Point string // expansion point, "0" for this engine
}

func (e *PoleError) Error() string {
	return fmt.Sprintf("symgo: cannot expand %s around %s", e.Expr, e.Point)
}

func newPoleError(expr Expr) *PoleError {
	return &PoleError{Expr: expr.String(), Point: "0"}
}

// IsPoleError reports whether err is (or wraps) a PoleError.
func IsPoleError(err error) bool {
	var pe *PoleError
	return errors.As(err, &pe)
}

// NotImplementedError signals a structurally unsupported shape: series of an
// opaque function with unrestricted arity, or more than one argument varying
// through a logarithmic placeholder at once. It always surfaces.
type NotImplementedError struct {
	Message string
}

func (e *NotImplementedError) Error() string {
	return "symgo: not implemented: " + e.Message
}

func notImplemented(format string, args ...any) *NotImplementedError {
	return &NotImplementedError{Message: fmt.Sprintf(format, args...)}
}

// IsNotImplementedError reports whether err is (or wraps) a NotImplementedError.
func IsNotImplementedError(err error) bool {
	var ne *NotImplementedError
	return errors.As(err, &ne)
}
