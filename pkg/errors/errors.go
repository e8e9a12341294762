// Package errors wraps github.com/pkg/errors so call sites get stack
// traces and printf-style annotation through one import.
package errors

import (
	stderrors "errors"

	"github.com/pkg/errors"
)

// StackTrace is a stack of Frames from innermost (newest) to outermost (oldest).
type StackTrace = errors.StackTrace

// stackTracer is implemented by errors carrying a stack trace.
type stackTracer interface {
	StackTrace() errors.StackTrace
}

// New returns an error with the supplied message and a recorded stack
// trace. The message is treated as a format string when args are given.
func New(message string, args ...interface{}) error {
	if len(args) > 0 {
		return errors.Errorf(message, args...)
	}
	return errors.New(message)
}

// Wrap returns an error annotating err with a stack trace and message.
// The message is treated as a format string when args are given.
// Returns nil if err is nil.
func Wrap(err error, message string, args ...interface{}) error {
	if len(args) > 0 {
		return errors.Wrapf(err, message, args...)
	}
	return errors.Wrap(err, message)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}

// Cause returns the underlying cause of the error, if possible.
func Cause(err error) error {
	return errors.Cause(err)
}

// Unwrap returns the result of calling the Unwrap method on err.
func Unwrap(err error) error {
	return stderrors.Unwrap(err)
}

// Sentinel is a simple comparable error for package-level error values.
type Sentinel string

func (s Sentinel) Error() string {
	return string(s)
}
