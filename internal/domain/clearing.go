package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ClearingOutcome is the result of one presentation attempt, not the
// giro's aggregate status.
type ClearingOutcome string

const (
	ClearingOutcomeCleared ClearingOutcome = "cleared"
	ClearingOutcomeBounced ClearingOutcome = "bounced"
)

// GiroClearingRecord is one attempt to realize part or all of a giro's
// face value. Records are owned exclusively by their giro and are never
// reassigned.
type GiroClearingRecord struct {
	ID             string
	GiroID         string
	ClearingDate   time.Time
	ClearingStatus ClearingOutcome
	ClearingAmount decimal.Decimal
	ReferenceDoc   *string
	Remarks        *string
	CreatedBy      string

	CreatedAt *time.Time
}
