package domain

import (
	"errors"
	"fmt"
)

// ValidationError rejects bad input before any row is written.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NotFoundError signals a missing plan/payment/clinic/owner/payout.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// StateError signals an illegal transition, e.g. cancelling an active plan
// or paying out a payment that has not succeeded.
type StateError struct {
	Entity  string
	ID      string
	Message string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Entity, e.ID, e.Message)
}

// ConflictError prevents duplicate money movement (one payout per payment).
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// RangeError rejects non-positive or non-finite amounts in money math and
// ledger entries.
type RangeError struct {
	Message string
}

func (e *RangeError) Error() string { return e.Message }

// ExternalServiceError wraps a failed processor call. In batch sweeps it is
// recorded per item; synchronous callers see it after rollback.
type ExternalServiceError struct {
	Op  string
	Err error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

func IsState(err error) bool {
	var e *StateError
	return errors.As(err, &e)
}

func IsConflict(err error) bool {
	var e *ConflictError
	return errors.As(err, &e)
}

func IsRange(err error) bool {
	var e *RangeError
	return errors.As(err, &e)
}
