// Package schederrors contains the error types shared by the scheduler packages.
//
// Two classes of failure are distinguished. Configuration and loading problems are returned as errors of the types
// below, wrapped with github.com/pkg/errors; when several records fail at once they are aggregated with
// github.com/hashicorp/go-multierror. Violated invariants indicate a bug in the caller or a scheduler and are raised
// by panicking with an *ErrInvariantViolation (see Invariantf). Scheduling infeasibility is never an error.
package schederrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNotFound is a generic error to be returned whenever some resource isn't found.
// Type and Message are optional and are omitted from the error message if not provided.
type ErrNotFound struct {
	Type    string
	Value   string
	Message string
}

func (err *ErrNotFound) Error() (s string) {
	if err.Type != "" {
		s = fmt.Sprintf("resource %q of type %q does not exist", err.Value, err.Type)
	} else {
		s = fmt.Sprintf("resource %q does not exist", err.Value)
	}
	if err.Message != "" {
		return s + fmt.Sprintf("; %s", err.Message)
	} else {
		return s
	}
}

// ErrInvalidArgument is a generic error to be returned on invalid argument.
// Message is optional and is omitted from the error message if not provided.
type ErrInvalidArgument struct {
	Name    string      // Name of the field referred to, e.g., "fullTime"
	Value   interface{} // The invalid value that was provided
	Message string      // An optional message to include with the error message, e.g., explaining why the value is invalid
}

func (err *ErrInvalidArgument) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("value %v is invalid for field %q", err.Value, err.Name)
	} else {
		return fmt.Sprintf("value %v is invalid for field %q; %s", err.Value, err.Name, err.Message)
	}
}

// ErrInvariantViolation indicates that a data-model invariant was broken, e.g. a segment exceeding platform capacity
// or an illegal request status transition.
type ErrInvariantViolation struct {
	// Short name of the invariant, e.g. "capacity".
	Invariant string
	Message   string
}

func (err *ErrInvariantViolation) Error() string {
	if err.Invariant == "" {
		return fmt.Sprintf("invariant violated: %s", err.Message)
	}
	return fmt.Sprintf("invariant %s violated: %s", err.Invariant, err.Message)
}

// Invariantf panics with an *ErrInvariantViolation carrying a stack trace.
func Invariantf(invariant string, format string, args ...interface{}) {
	panic(errors.WithStack(&ErrInvariantViolation{
		Invariant: invariant,
		Message:   fmt.Sprintf(format, args...),
	}))
}

// PanicOnError panics with err if it is non-nil. err is expected to wrap an *ErrInvariantViolation.
func PanicOnError(err error) {
	if err != nil {
		panic(err)
	}
}

// IsInvariantViolation reports whether the value recovered from a panic (or any error) is an invariant violation.
func IsInvariantViolation(v interface{}) bool {
	err, ok := v.(error)
	if !ok {
		return false
	}
	var e *ErrInvariantViolation
	return errors.As(err, &e)
}
