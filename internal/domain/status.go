package domain

import "github.com/shopspring/decimal"

// TotalCleared sums the amounts of successful clearing attempts.
// Bounced records do not consume face value.
func TotalCleared(records []GiroClearingRecord) decimal.Decimal {
	total := decimal.Zero
	for _, rec := range records {
		if rec.ClearingStatus == ClearingOutcomeCleared {
			total = total.Add(rec.ClearingAmount)
		}
	}
	return total
}

// Remaining is the face value not yet successfully cleared, floored at
// zero. The floor only matters for pre-existing inconsistent data; the
// engine never lets the sum overshoot on its own writes.
func Remaining(amount decimal.Decimal, records []GiroClearingRecord) decimal.Decimal {
	remaining := amount.Sub(TotalCleared(records))
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// DeriveStatus computes the aggregate status from the full record set.
// It is the single source of truth for Giro.Status: every mutation path
// recomputes from scratch rather than incrementally.
//
// A single bounce marks the whole instrument bounced regardless of other
// successful partial clearings; a bounced giro signals the instrument
// itself is compromised.
func DeriveStatus(amount decimal.Decimal, records []GiroClearingRecord) GiroStatus {
	for _, rec := range records {
		if rec.ClearingStatus == ClearingOutcomeBounced {
			return GiroStatusBounced
		}
	}

	total := TotalCleared(records)
	switch {
	case total.GreaterThanOrEqual(amount):
		return GiroStatusCleared
	case total.IsPositive():
		return GiroStatusPartial
	default:
		return GiroStatusPending
	}
}
