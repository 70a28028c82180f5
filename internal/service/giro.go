package service

import (
	"context"
	"strconv"
	"time"

	"girodesk/internal/clients"
	"girodesk/internal/domain"
	"girodesk/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type GiroRepository interface {
	Create(ctx context.Context, g *domain.Giro) error
	GetByID(ctx context.Context, id string) (*domain.Giro, error)
	Update(ctx context.Context, id string, u domain.GiroUpdate) (*domain.Giro, error)
	UpdateStatus(ctx context.Context, q repository.DBTX, id string, status domain.GiroStatus) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f repository.GirosFilter) ([]domain.Giro, error)
	WithLock(ctx context.Context, id string, fn func(ctx context.Context, q repository.DBTX, g *domain.Giro) error) error
}

type ClearingRecordRepository interface {
	Create(ctx context.Context, q repository.DBTX, rec *domain.GiroClearingRecord) error
	GetByID(ctx context.Context, id string) (*domain.GiroClearingRecord, error)
	ListByGiro(ctx context.Context, giroID string) ([]domain.GiroClearingRecord, error)
	ListByGiroTx(ctx context.Context, q repository.DBTX, giroID string) ([]domain.GiroClearingRecord, error)
	Delete(ctx context.Context, q repository.DBTX, id string) error
	HasAnyForGiro(ctx context.Context, giroID string) (bool, error)
}

type CustomerGetter interface {
	GetByID(ctx context.Context, id string) (*domain.Customer, error)
}

type GiroInput struct {
	CustomerID    string
	GiroNumber    string
	BankName      string
	BankAccount   *string
	Amount        decimal.Decimal
	DueDate       time.Time
	ReceivedDate  time.Time
	InvoiceNumber *string
	Remarks       *string
}

type ClearingInput struct {
	ClearingDate   time.Time
	ClearingStatus domain.ClearingOutcome
	ClearingAmount decimal.Decimal
	ReferenceDoc   *string
	Remarks        *string
	CreatedBy      string
}

type GiroDetail struct {
	Giro      domain.Giro
	Records   []domain.GiroClearingRecord
	Remaining decimal.Decimal
}

// GiroService is the clearing engine: it owns validation of clearing
// events and is the only writer of the derived giro status.
type GiroService struct {
	giros     GiroRepository
	clearings ClearingRecordRepository
	customers CustomerGetter
	ws        *clients.WebSocketClient
}

func NewGiroService(giros GiroRepository, clearings ClearingRecordRepository, customers CustomerGetter, ws *clients.WebSocketClient) *GiroService {
	return &GiroService{
		giros:     giros,
		clearings: clearings,
		customers: customers,
		ws:        ws,
	}
}

func (s *GiroService) CreateGiro(ctx context.Context, in GiroInput) (*domain.Giro, error) {
	if in.CustomerID == "" {
		return nil, &domain.ValidationError{Field: "customer_id", Reason: "is required"}
	}
	if in.GiroNumber == "" {
		return nil, &domain.ValidationError{Field: "giro_number", Reason: "is required"}
	}
	if in.BankName == "" {
		return nil, &domain.ValidationError{Field: "bank_name", Reason: "is required"}
	}
	if !in.Amount.IsPositive() {
		return nil, &domain.ValidationError{Field: "amount", Reason: "must be a positive amount"}
	}
	if in.DueDate.IsZero() {
		return nil, &domain.ValidationError{Field: "due_date", Reason: "is required"}
	}
	if in.ReceivedDate.IsZero() {
		return nil, &domain.ValidationError{Field: "received_date", Reason: "is required"}
	}

	if _, err := s.customers.GetByID(ctx, in.CustomerID); err != nil {
		return nil, err
	}

	g := &domain.Giro{
		ID:            uuid.NewString(),
		CustomerID:    in.CustomerID,
		GiroNumber:    in.GiroNumber,
		BankName:      in.BankName,
		BankAccount:   in.BankAccount,
		Amount:        in.Amount,
		DueDate:       in.DueDate,
		ReceivedDate:  in.ReceivedDate,
		Status:        domain.GiroStatusPending,
		InvoiceNumber: in.InvoiceNumber,
		Remarks:       in.Remarks,
	}
	if err := s.giros.Create(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *GiroService) GetGiro(ctx context.Context, id string) (*domain.Giro, error) {
	return s.giros.GetByID(ctx, id)
}

func (s *GiroService) ListGiros(ctx context.Context, f repository.GirosFilter) ([]domain.Giro, error) {
	return s.giros.List(ctx, f)
}

// UpdateGiro applies field edits. The face value is fixed by the physical
// document once clearing attempts exist, so amount edits are only
// accepted while the record set is empty.
func (s *GiroService) UpdateGiro(ctx context.Context, id string, u domain.GiroUpdate) (*domain.Giro, error) {
	if u.Amount != nil {
		if !u.Amount.IsPositive() {
			return nil, &domain.ValidationError{Field: "amount", Reason: "must be a positive amount"}
		}
		hasRecords, err := s.clearings.HasAnyForGiro(ctx, id)
		if err != nil {
			return nil, err
		}
		if hasRecords {
			return nil, &domain.ValidationError{Field: "amount", Reason: "cannot be changed once clearing records exist"}
		}
	}
	if u.GiroNumber != nil && *u.GiroNumber == "" {
		return nil, &domain.ValidationError{Field: "giro_number", Reason: "cannot be empty"}
	}

	return s.giros.Update(ctx, id, u)
}

func (s *GiroService) DeleteGiro(ctx context.Context, id string) error {
	if _, err := s.giros.GetByID(ctx, id); err != nil {
		return err
	}
	hasRecords, err := s.clearings.HasAnyForGiro(ctx, id)
	if err != nil {
		return err
	}
	if hasRecords {
		return &domain.ConflictError{Entity: "giro", ID: id, Reason: "has clearing records"}
	}
	return s.giros.Delete(ctx, id)
}

// RecordClearing validates and persists one clearing attempt, then
// recomputes and persists the giro status from the full updated history.
// The whole sequence runs under the giro row lock so two concurrent
// submissions can never both validate against the same stale remaining
// balance.
func (s *GiroService) RecordClearing(ctx context.Context, giroID string, in ClearingInput) (*domain.GiroClearingRecord, error) {
	if !in.ClearingAmount.IsPositive() {
		return nil, &domain.ValidationError{Field: "clearing_amount", Reason: "must be a positive amount"}
	}
	if in.ClearingStatus != domain.ClearingOutcomeCleared && in.ClearingStatus != domain.ClearingOutcomeBounced {
		return nil, &domain.ValidationError{Field: "clearing_status", Reason: "must be cleared or bounced"}
	}
	if in.ClearingDate.IsZero() {
		return nil, &domain.ValidationError{Field: "clearing_date", Reason: "is required"}
	}
	if in.CreatedBy == "" {
		return nil, &domain.ValidationError{Field: "created_by", Reason: "is required"}
	}

	var (
		created   *domain.GiroClearingRecord
		newStatus domain.GiroStatus
		remaining decimal.Decimal
	)

	err := s.giros.WithLock(ctx, giroID, func(ctx context.Context, q repository.DBTX, g *domain.Giro) error {
		existing, err := s.clearings.ListByGiroTx(ctx, q, giroID)
		if err != nil {
			return err
		}

		// bounced records are not amount-checked: a bounce does not
		// consume face value
		if in.ClearingStatus == domain.ClearingOutcomeCleared {
			rem := domain.Remaining(g.Amount, existing)
			if in.ClearingAmount.GreaterThan(rem) {
				return &domain.InsufficientRemainingError{
					GiroID:    giroID,
					Requested: in.ClearingAmount,
					Remaining: rem,
				}
			}
		}

		rec := &domain.GiroClearingRecord{
			ID:             uuid.NewString(),
			GiroID:         giroID,
			ClearingDate:   in.ClearingDate,
			ClearingStatus: in.ClearingStatus,
			ClearingAmount: in.ClearingAmount,
			ReferenceDoc:   in.ReferenceDoc,
			Remarks:        in.Remarks,
			CreatedBy:      in.CreatedBy,
		}
		if err := s.clearings.Create(ctx, q, rec); err != nil {
			return err
		}

		updated := append(existing, *rec)
		status := domain.DeriveStatus(g.Amount, updated)
		if err := s.giros.UpdateStatus(ctx, q, giroID, status); err != nil {
			return err
		}

		created = rec
		newStatus = status
		remaining = domain.Remaining(g.Amount, updated)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyClearingRecorded(ctx, created, newStatus, remaining)
	return created, nil
}

// DeleteClearingRecord removes one attempt and re-derives the parent
// giro's status, since dropping history can change both status and
// remaining balance.
func (s *GiroService) DeleteClearingRecord(ctx context.Context, id string) error {
	rec, err := s.clearings.GetByID(ctx, id)
	if err != nil {
		return err
	}

	var newStatus domain.GiroStatus
	var remaining decimal.Decimal

	err = s.giros.WithLock(ctx, rec.GiroID, func(ctx context.Context, q repository.DBTX, g *domain.Giro) error {
		if err := s.clearings.Delete(ctx, q, id); err != nil {
			return err
		}
		rest, err := s.clearings.ListByGiroTx(ctx, q, rec.GiroID)
		if err != nil {
			return err
		}
		status := domain.DeriveStatus(g.Amount, rest)
		if err := s.giros.UpdateStatus(ctx, q, rec.GiroID, status); err != nil {
			return err
		}
		newStatus = status
		remaining = domain.Remaining(g.Amount, rest)
		return nil
	})
	if err != nil {
		return err
	}

	s.notifyStatusChanged(ctx, rec.GiroID, rec.CreatedBy, newStatus, remaining)
	return nil
}

// RecalculateStatus recomputes the persisted status from the full record
// set. It is idempotent and side-effect-free apart from the status write,
// so it doubles as a repair step after partial failures.
func (s *GiroService) RecalculateStatus(ctx context.Context, giroID string) (*domain.Giro, error) {
	var out *domain.Giro

	err := s.giros.WithLock(ctx, giroID, func(ctx context.Context, q repository.DBTX, g *domain.Giro) error {
		records, err := s.clearings.ListByGiroTx(ctx, q, giroID)
		if err != nil {
			return err
		}
		status := domain.DeriveStatus(g.Amount, records)
		if status != g.Status {
			if err := s.giros.UpdateStatus(ctx, q, giroID, status); err != nil {
				return err
			}
		}
		g.Status = status
		out = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GiroService) GetRemainingAmount(ctx context.Context, giroID string) (decimal.Decimal, error) {
	g, err := s.giros.GetByID(ctx, giroID)
	if err != nil {
		return decimal.Zero, err
	}
	records, err := s.clearings.ListByGiro(ctx, giroID)
	if err != nil {
		return decimal.Zero, err
	}
	return domain.Remaining(g.Amount, records), nil
}

func (s *GiroService) GetGiroDetail(ctx context.Context, giroID string) (*GiroDetail, error) {
	g, err := s.giros.GetByID(ctx, giroID)
	if err != nil {
		return nil, err
	}
	records, err := s.clearings.ListByGiro(ctx, giroID)
	if err != nil {
		return nil, err
	}
	return &GiroDetail{
		Giro:      *g,
		Records:   records,
		Remaining: domain.Remaining(g.Amount, records),
	}, nil
}

func (s *GiroService) ListClearingRecords(ctx context.Context, giroID string) ([]domain.GiroClearingRecord, error) {
	if _, err := s.giros.GetByID(ctx, giroID); err != nil {
		return nil, err
	}
	return s.clearings.ListByGiro(ctx, giroID)
}

// websocket channels are keyed by numeric user id; non-numeric actors
// (batch jobs etc.) simply get no push
func (s *GiroService) notifyClearingRecorded(ctx context.Context, rec *domain.GiroClearingRecord, status domain.GiroStatus, remaining decimal.Decimal) {
	if s.ws == nil {
		return
	}
	userID, err := strconv.ParseInt(rec.CreatedBy, 10, 64)
	if err != nil {
		return
	}
	_ = s.ws.NotifyClearingRecorded(ctx, userID, rec.GiroID, rec.ID, string(status), remaining.String())
}

func (s *GiroService) notifyStatusChanged(ctx context.Context, giroID, actor string, status domain.GiroStatus, remaining decimal.Decimal) {
	if s.ws == nil {
		return
	}
	userID, err := strconv.ParseInt(actor, 10, 64)
	if err != nil {
		return
	}
	_ = s.ws.NotifyGiroStatusChanged(ctx, userID, giroID, string(status), remaining.String())
}
