// Package shared provides constants and types used across CLI subpackages.
// This package has no dependencies on other CLI packages to avoid circular imports.
package shared

import (
	"errors"
	"fmt"

	"github.com/ariel-frischer/alerter/internal/notify"
	"github.com/ariel-frischer/alerter/internal/schedule"
)

// Exit codes for the alerter CLI. A relaunched child's own exit code is
// propagated verbatim and may fall outside this table.
const (
	ExitSuccess             = 0
	ExitFailure             = 1
	ExitInvalidArguments    = 2
	ExitServiceRejected     = 3
	ExitAuthorizationDenied = 4
)

// exitError is a custom error type that carries an exit code.
// It is never printed: whoever returns it has already reported the cause.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}

// NewExitError creates a new exit error with the given code.
func NewExitError(code int) error {
	return &exitError{code: code}
}

// IsSilent reports whether err only carries an exit code.
func IsSilent(err error) bool {
	var e *exitError
	return errors.As(err, &e)
}

// ExitCode returns the exit code from an error.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var e *exitError
	if errors.As(err, &e) {
		return e.code
	}
	switch {
	case errors.Is(err, notify.ErrValidation), errors.Is(err, schedule.ErrInvalidSchedule):
		return ExitInvalidArguments
	case errors.Is(err, notify.ErrServiceRejected):
		return ExitServiceRejected
	case errors.Is(err, notify.ErrAuthorizationDenied):
		return ExitAuthorizationDenied
	default:
		return ExitFailure
	}
}
