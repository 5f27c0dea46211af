package services

import "fmt"

// Domain error kinds. Every rejected operation surfaces exactly one of
// these, with a human-readable reason; handlers map each kind to a distinct
// HTTP status. SettlementError is the only kind a caller may retry.

// ValidationError: malformed or missing input. Caller's fault, never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// AuthorizationError: caller lacks the required role or relationship.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string { return e.Reason }

func NewAuthorizationError(format string, args ...interface{}) *AuthorizationError {
	return &AuthorizationError{Reason: fmt.Sprintf(format, args...)}
}

// InvalidStateError: a status precondition on an entity was violated,
// including lost races under concurrent updates.
type InvalidStateError struct {
	Reason string
}

func (e *InvalidStateError) Error() string { return e.Reason }

func NewInvalidStateError(format string, args ...interface{}) *InvalidStateError {
	return &InvalidStateError{Reason: fmt.Sprintf(format, args...)}
}

// SettlementError: the external ledger call failed. Plausibly transient;
// the caller owns any retry/backoff policy.
type SettlementError struct {
	Op     string // ledger operation that failed
	Reason string
	Err    error
}

func (e *SettlementError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ledger %s failed: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("ledger %s failed: %s", e.Op, e.Reason)
}

func (e *SettlementError) Unwrap() error { return e.Err }

func NewSettlementError(op, reason string, err error) *SettlementError {
	return &SettlementError{Op: op, Reason: reason, Err: err}
}
