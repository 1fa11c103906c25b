// Package shared contains common domain types, errors, events, and contracts
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")

	// Concurrency errors
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrLockTimeout         = errors.New("lock acquisition timeout")

	// Infrastructure errors
	ErrTransientStore = errors.New("transient store failure")
	ErrTimeout        = errors.New("operation timeout")
	ErrUnavailable    = errors.New("service unavailable")
)

// Pipeline failure taxonomy. These classify every way a grading event can fail
// to produce analytics while the underlying grade stays durable.
var (
	// ErrMalformedSubmission marks a graded submission the engine refuses to
	// process (non-positive max score, missing topic/subject/class). The
	// submission is logged and skipped, never silently defaulted.
	ErrMalformedSubmission = errors.New("malformed submission")

	// ErrAnalyticsDelayed is reported when per-student or per-class lock
	// retries are exhausted. Informational: the raw grade remains correct.
	ErrAnalyticsDelayed = errors.New("analytics delayed")

	// ErrNotificationDelivery marks a failed dashboard broadcast. Logged and
	// dropped; never rolls back aggregate writes.
	ErrNotificationDelivery = errors.New("notification delivery failed")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "performance", "mastery", "points"
	Op      string // Operation that failed, e.g., "Upsert", "Recompute"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsMalformed checks if the error classifies a malformed submission.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedSubmission)
}

// IsLockTimeout checks if the error is an exhausted lock acquisition.
func IsLockTimeout(err error) bool {
	return errors.Is(err, ErrLockTimeout)
}

// IsRetryable reports whether the failed operation can safely be retried.
// Every pipeline step is a full recompute, so transient store failures and
// lock contention are always retryable.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransientStore) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrConcurrencyConflict) ||
		errors.Is(err, ErrLockTimeout)
}
