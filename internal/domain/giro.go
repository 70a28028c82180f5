package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// GiroStatus is the derived aggregate state of a giro. It is persisted for
// cheap listing/filtering but only ever written from DeriveStatus.
type GiroStatus string

const (
	GiroStatusPending GiroStatus = "pending"
	GiroStatusPartial GiroStatus = "partial"
	GiroStatusCleared GiroStatus = "cleared"
	GiroStatusBounced GiroStatus = "bounced"
)

// Giro is a post-dated payment instrument received from a customer.
// Amount is the face value of the physical document and must not change
// once clearing records exist.
type Giro struct {
	ID            string
	CustomerID    string
	GiroNumber    string
	BankName      string
	BankAccount   *string
	Amount        decimal.Decimal
	DueDate       time.Time
	ReceivedDate  time.Time
	Status        GiroStatus
	InvoiceNumber *string
	Remarks       *string

	CreatedAt *time.Time
	UpdatedAt *time.Time

	// joined from customers on reads
	CustomerName *string
}

// GiroUpdate carries partial field edits; nil means "leave unchanged".
type GiroUpdate struct {
	GiroNumber    *string
	BankName      *string
	BankAccount   *string
	Amount        *decimal.Decimal
	DueDate       *time.Time
	ReceivedDate  *time.Time
	InvoiceNumber *string
	Remarks       *string
}
