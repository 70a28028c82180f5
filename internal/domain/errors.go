package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ValidationError reports malformed input naming the offending field.
// The caller must correct the input and resubmit; it is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// NotFoundError reports a missing referenced entity.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// InsufficientRemainingError rejects a cleared-type record whose amount
// exceeds the giro's remaining balance. The giro and its records are
// left unchanged.
type InsufficientRemainingError struct {
	GiroID    string
	Requested decimal.Decimal
	Remaining decimal.Decimal
}

func (e *InsufficientRemainingError) Error() string {
	return fmt.Sprintf("giro %s: requested clearing amount %s exceeds remaining %s",
		e.GiroID, e.Requested.String(), e.Remaining.String())
}

// ConflictError rejects an operation that would break referential
// integrity, such as deleting a giro that still has clearing records.
type ConflictError struct {
	Entity string
	ID     string
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Entity, e.ID, e.Reason)
}
