package domain

import (
	"errors"
	"strings"
)

var (
	// Common domain errors
	ErrNotFound             = errors.New("entity not found")
	ErrAlreadyExists        = errors.New("entity already exists")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrInvalidExecContext   = errors.New("invalid execution context")
	ErrUnauthenticated      = errors.New("authentication required")
	ErrForbidden            = errors.New("operation not permitted")
	ErrSubscriptionInactive = errors.New("subscription is not active")
	ErrRateLimited          = errors.New("too many requests")
	ErrUpstream             = errors.New("upstream service failure")
	ErrInvalidSignature     = errors.New("invalid webhook signature")
	ErrNoChanges            = errors.New("no changes to apply")
	ErrEventProcessing      = errors.New("event processing failed")
)

// ValidationError reports a rejected input field. It matches ErrInvalidArgument
// under errors.Is.
type ValidationError struct {
	Field string
	Msg   string
}

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Msg: msg}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

func (e *ValidationError) Unwrap() error { return ErrInvalidArgument }

// GateError carries the reason a chat request was refused by the subscription gate.
type GateError struct {
	Reason string
}

func (e *GateError) Error() string { return "access denied: " + e.Reason }

func (e *GateError) Unwrap() error { return ErrSubscriptionInactive }

const maxErrorSummary = 500

// SanitizeError flattens err to a single line capped at 500 bytes, suitable for
// audit columns that may be shown back to operators.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	s := strings.Join(strings.Fields(err.Error()), " ")
	if len(s) > maxErrorSummary {
		cut := maxErrorSummary
		for cut > 0 && !isRuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "..."
	}
	return s
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
