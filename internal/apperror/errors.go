// Package apperror holds the error taxonomy shared by the ledger, the access gate and the
// record store. Every concrete error matches one sentinel through errors.Is.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated   = errors.New("authentication required")
	ErrForbidden         = errors.New("insufficient permission")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrPartialFailure    = errors.New("partial failure")
	ErrStore             = errors.New("store failure")
	ErrTimeout           = errors.New("timeout")
	ErrValidation        = errors.New("validation failed")
)

// AuthenticationError means there is no usable session.
type AuthenticationError struct {
	Reason string
	Err    error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Reason, e.Err)
	}
	return "authentication failed: " + e.Reason
}

func (e *AuthenticationError) Unwrap() error        { return e.Err }
func (e *AuthenticationError) Is(target error) bool { return target == ErrUnauthenticated }

// AuthorizationError means the session is valid but the role lacks the permission.
type AuthorizationError struct {
	Role     string
	Resource string
	Action   string
}

func (e *AuthorizationError) Error() string {
	role := e.Role
	if role == "" {
		role = "anonymous"
	}
	return fmt.Sprintf("role %s may not %s %s", role, e.Action, e.Resource)
}

func (e *AuthorizationError) Is(target error) bool { return target == ErrForbidden }

type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.Key)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

type InsufficientStockError struct {
	ProductID string
	Available int64
	Change    int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: have %d, change %d", e.ProductID, e.Available, e.Change)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// PartialFailureError reports a multi-step write that failed after an earlier step had
// committed. CompensationErr is nil when the earlier steps were rolled back cleanly.
type PartialFailureError struct {
	Phase           string
	Err             error
	CompensationErr error
}

func (e *PartialFailureError) Error() string {
	if e.CompensationErr != nil {
		return fmt.Sprintf("%s failed: %v; compensation failed: %v", e.Phase, e.Err, e.CompensationErr)
	}
	return fmt.Sprintf("%s failed: %v; earlier steps rolled back", e.Phase, e.Err)
}

func (e *PartialFailureError) Unwrap() []error {
	if e.CompensationErr != nil {
		return []error{e.Err, e.CompensationErr}
	}
	return []error{e.Err}
}

func (e *PartialFailureError) Is(target error) bool { return target == ErrPartialFailure }

// Compensated reports whether every committed step was undone.
func (e *PartialFailureError) Compensated() bool { return e.CompensationErr == nil }

type StoreError struct {
	Op    string
	Table string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *StoreError) Unwrap() error        { return e.Err }
func (e *StoreError) Is(target error) bool { return target == ErrStore }

type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out: %v", e.Op, e.Err)
}

func (e *TimeoutError) Unwrap() error        { return e.Err }
func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Retryable reports whether the caller may retry the failed operation as is.
// A partial failure whose compensation did not complete is never retryable: some of
// its writes have landed and a retry would apply them twice.
func Retryable(err error) bool {
	var partial *PartialFailureError
	if errors.As(err, &partial) && !partial.Compensated() {
		return false
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrStore)
}
