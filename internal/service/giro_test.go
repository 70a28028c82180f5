package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"girodesk/internal/domain"
	"girodesk/internal/repository"

	"github.com/shopspring/decimal"
)

// fakeStore backs the engine with in-memory maps. WithLock takes the
// store mutex for the whole callback, mirroring the row-lock
// serialization the Postgres repository provides; tx-scoped methods run
// inside that callback and therefore do not lock again.
type fakeStore struct {
	mu      sync.Mutex
	giros   map[string]*domain.Giro
	records map[string]*domain.GiroClearingRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		giros:   make(map[string]*domain.Giro),
		records: make(map[string]*domain.GiroClearingRecord),
	}
}

type fakeGiroRepo struct{ s *fakeStore }

func (r *fakeGiroRepo) Create(ctx context.Context, g *domain.Giro) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *g
	r.s.giros[g.ID] = &cp
	return nil
}

func (r *fakeGiroRepo) GetByID(ctx context.Context, id string) (*domain.Giro, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g, ok := r.s.giros[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "giro", ID: id}
	}
	cp := *g
	return &cp, nil
}

func (r *fakeGiroRepo) Update(ctx context.Context, id string, u domain.GiroUpdate) (*domain.Giro, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g, ok := r.s.giros[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "giro", ID: id}
	}
	if u.GiroNumber != nil {
		g.GiroNumber = *u.GiroNumber
	}
	if u.BankName != nil {
		g.BankName = *u.BankName
	}
	if u.Amount != nil {
		g.Amount = *u.Amount
	}
	if u.DueDate != nil {
		g.DueDate = *u.DueDate
	}
	if u.Remarks != nil {
		g.Remarks = u.Remarks
	}
	cp := *g
	return &cp, nil
}

func (r *fakeGiroRepo) UpdateStatus(ctx context.Context, q repository.DBTX, id string, status domain.GiroStatus) error {
	g, ok := r.s.giros[id]
	if !ok {
		return &domain.NotFoundError{Entity: "giro", ID: id}
	}
	g.Status = status
	return nil
}

func (r *fakeGiroRepo) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.giros[id]; !ok {
		return &domain.NotFoundError{Entity: "giro", ID: id}
	}
	delete(r.s.giros, id)
	return nil
}

func (r *fakeGiroRepo) List(ctx context.Context, f repository.GirosFilter) ([]domain.Giro, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Giro
	for _, g := range r.s.giros {
		out = append(out, *g)
	}
	return out, nil
}

func (r *fakeGiroRepo) WithLock(ctx context.Context, id string, fn func(ctx context.Context, q repository.DBTX, g *domain.Giro) error) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g, ok := r.s.giros[id]
	if !ok {
		return &domain.NotFoundError{Entity: "giro", ID: id}
	}
	cp := *g
	return fn(ctx, nil, &cp)
}

type fakeClearingRepo struct{ s *fakeStore }

func (r *fakeClearingRepo) Create(ctx context.Context, q repository.DBTX, rec *domain.GiroClearingRecord) error {
	cp := *rec
	r.s.records[rec.ID] = &cp
	return nil
}

func (r *fakeClearingRepo) GetByID(ctx context.Context, id string) (*domain.GiroClearingRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.records[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "clearing record", ID: id}
	}
	cp := *rec
	return &cp, nil
}

func (r *fakeClearingRepo) listLocked(giroID string) []domain.GiroClearingRecord {
	var out []domain.GiroClearingRecord
	for _, rec := range r.s.records {
		if rec.GiroID == giroID {
			out = append(out, *rec)
		}
	}
	return out
}

func (r *fakeClearingRepo) ListByGiro(ctx context.Context, giroID string) ([]domain.GiroClearingRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.listLocked(giroID), nil
}

func (r *fakeClearingRepo) ListByGiroTx(ctx context.Context, q repository.DBTX, giroID string) ([]domain.GiroClearingRecord, error) {
	return r.listLocked(giroID), nil
}

func (r *fakeClearingRepo) Delete(ctx context.Context, q repository.DBTX, id string) error {
	if _, ok := r.s.records[id]; !ok {
		return &domain.NotFoundError{Entity: "clearing record", ID: id}
	}
	delete(r.s.records, id)
	return nil
}

func (r *fakeClearingRepo) HasAnyForGiro(ctx context.Context, giroID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.listLocked(giroID)) > 0, nil
}

type fakeCustomerRepo struct{}

func (fakeCustomerRepo) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	if id == "missing" {
		return nil, &domain.NotFoundError{Entity: "customer", ID: id}
	}
	return &domain.Customer{ID: id, Name: "Toko Sinar Jaya"}, nil
}

func newTestService() (*GiroService, *fakeStore) {
	store := newFakeStore()
	svc := NewGiroService(&fakeGiroRepo{s: store}, &fakeClearingRepo{s: store}, fakeCustomerRepo{}, nil)
	return svc, store
}

func mustCreateGiro(t *testing.T, svc *GiroService, amount int64) *domain.Giro {
	t.Helper()
	g, err := svc.CreateGiro(context.Background(), GiroInput{
		CustomerID:   "cust-1",
		GiroNumber:   "BG-0001",
		BankName:     "BCA",
		Amount:       decimal.NewFromInt(amount),
		DueDate:      time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		ReceivedDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create giro: %v", err)
	}
	return g
}

func clearingInput(status domain.ClearingOutcome, amount int64) ClearingInput {
	return ClearingInput{
		ClearingDate:   time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC),
		ClearingStatus: status,
		ClearingAmount: decimal.NewFromInt(amount),
		CreatedBy:      "7",
	}
}

func TestCreateGiro_RoundTrip(t *testing.T) {
	svc, _ := newTestService()
	g := mustCreateGiro(t, svc, 1000)

	detail, err := svc.GetGiroDetail(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}

	if detail.Giro.Status != domain.GiroStatusPending {
		t.Fatalf("expected pending, got %s", detail.Giro.Status)
	}
	if len(detail.Records) != 0 {
		t.Fatalf("expected no records, got %d", len(detail.Records))
	}
	if !detail.Remaining.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("expected remaining 1000, got %s", detail.Remaining)
	}
}

func TestCreateGiro_Validation(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.CreateGiro(context.Background(), GiroInput{
		CustomerID:   "cust-1",
		GiroNumber:   "BG-0002",
		BankName:     "BCA",
		Amount:       decimal.NewFromInt(-5),
		DueDate:      time.Now(),
		ReceivedDate: time.Now(),
	})

	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "amount" {
		t.Fatalf("expected validation error on amount, got %v", err)
	}
}

func TestRecordClearing_Partial(t *testing.T) {
	svc, _ := newTestService()
	g := mustCreateGiro(t, svc, 1000)

	rec, err := svc.RecordClearing(context.Background(), g.ID, clearingInput(domain.ClearingOutcomeCleared, 400))
	if err != nil {
		t.Fatalf("record clearing: %v", err)
	}
	if rec.GiroID != g.ID {
		t.Fatalf("record not attached to giro")
	}

	got, err := svc.GetGiro(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("get giro: %v", err)
	}
	if got.Status != domain.GiroStatusPartial {
		t.Fatalf("expected partial, got %s", got.Status)
	}

	remaining, err := svc.GetRemainingAmount(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("remaining: %v", err)
	}
	if !remaining.Equal(decimal.NewFromInt(600)) {
		t.Fatalf("expected remaining 600, got %s", remaining)
	}
}

func TestRecordClearing_FullClearing(t *testing.T) {
	svc, _ := newTestService()
	g := mustCreateGiro(t, svc, 1000)

	if _, err := svc.RecordClearing(context.Background(), g.ID, clearingInput(domain.ClearingOutcomeCleared, 1000)); err != nil {
		t.Fatalf("record clearing: %v", err)
	}

	got, _ := svc.GetGiro(context.Background(), g.ID)
	if got.Status != domain.GiroStatusCleared {
		t.Fatalf("expected cleared, got %s", got.Status)
	}

	remaining, _ := svc.GetRemainingAmount(context.Background(), g.ID)
	if !remaining.IsZero() {
		t.Fatalf("expected remaining 0, got %s", remaining)
	}
}

func TestRecordClearing_RejectsOvershoot(t *testing.T) {
	svc, store := newTestService()
	g := mustCreateGiro(t, svc, 1000)

	if _, err := svc.RecordClearing(context.Background(), g.ID, clearingInput(domain.ClearingOutcomeCleared, 800)); err != nil {
		t.Fatalf("first clearing: %v", err)
	}

	_, err := svc.RecordClearing(context.Background(), g.ID, clearingInput(domain.ClearingOutcomeCleared, 300))
	var insErr *domain.InsufficientRemainingError
	if !errors.As(err, &insErr) {
		t.Fatalf("expected InsufficientRemainingError, got %v", err)
	}
	if !insErr.Remaining.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("expected remaining 200 in error, got %s", insErr.Remaining)
	}

	// rejection must leave persisted state untouched
	if len(store.records) != 1 {
		t.Fatalf("expected 1 record after rejection, got %d", len(store.records))
	}
	got, _ := svc.GetGiro(context.Background(), g.ID)
	if got.Status != domain.GiroStatusPartial {
		t.Fatalf("expected status partial after rejection, got %s", got.Status)
	}
}

func TestRecordClearing_BounceDominates(t *testing.T) {
	svc, _ := newTestService()
	g := mustCreateGiro(t, svc, 1000)

	if _, err := svc.RecordClearing(context.Background(), g.ID, clearingInput(domain.ClearingOutcomeCleared, 500)); err != nil {
		t.Fatalf("cleared record: %v", err)
	}
	// a bounce is not amount-checked against remaining
	if _, err := svc.RecordClearing(context.Background(), g.ID, clearingInput(domain.ClearingOutcomeBounced, 700)); err != nil {
		t.Fatalf("bounced record: %v", err)
	}

	got, _ := svc.GetGiro(context.Background(), g.ID)
	if got.Status != domain.GiroStatusBounced {
		t.Fatalf("expected bounced, got %s", got.Status)
	}
}

func TestRecordClearing_Validation(t *testing.T) {
	svc, _ := newTestService()
	g := mustCreateGiro(t, svc, 1000)

	cases := []struct {
		name  string
		in    ClearingInput
		field string
	}{
		{"zero amount", clearingInput(domain.ClearingOutcomeCleared, 0), "clearing_amount"},
		{"negative amount", clearingInput(domain.ClearingOutcomeCleared, -10), "clearing_amount"},
		{"unknown status", ClearingInput{ClearingDate: time.Now(), ClearingStatus: "settled", ClearingAmount: decimal.NewFromInt(10), CreatedBy: "7"}, "clearing_status"},
		{"missing actor", ClearingInput{ClearingDate: time.Now(), ClearingStatus: domain.ClearingOutcomeCleared, ClearingAmount: decimal.NewFromInt(10)}, "created_by"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.RecordClearing(context.Background(), g.ID, tc.in)
			var vErr *domain.ValidationError
			if !errors.As(err, &vErr) || vErr.Field != tc.field {
				t.Fatalf("expected validation error on %s, got %v", tc.field, err)
			}
		})
	}
}

func TestRecordClearing_UnknownGiro(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.RecordClearing(context.Background(), "nope", clearingInput(domain.ClearingOutcomeCleared, 100))
	var nfErr *domain.NotFoundError
	if !errors.As(err, &nfErr) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestDeleteClearingRecord_Recomputes(t *testing.T) {
	svc, _ := newTestService()
	g := mustCreateGiro(t, svc, 1000)

	rec, err := svc.RecordClearing(context.Background(), g.ID, clearingInput(domain.ClearingOutcomeCleared, 1000))
	if err != nil {
		t.Fatalf("record clearing: %v", err)
	}

	got, _ := svc.GetGiro(context.Background(), g.ID)
	if got.Status != domain.GiroStatusCleared {
		t.Fatalf("expected cleared before delete, got %s", got.Status)
	}

	if err := svc.DeleteClearingRecord(context.Background(), rec.ID); err != nil {
		t.Fatalf("delete record: %v", err)
	}

	got, _ = svc.GetGiro(context.Background(), g.ID)
	if got.Status != domain.GiroStatusPending {
		t.Fatalf("expected pending after delete, got %s", got.Status)
	}

	remaining, _ := svc.GetRemainingAmount(context.Background(), g.ID)
	if !remaining.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("expected remaining 1000 after delete, got %s", remaining)
	}
}

func TestRecalculateStatus_Idempotent(t *testing.T) {
	svc, store := newTestService()
	g := mustCreateGiro(t, svc, 1000)

	if _, err := svc.RecordClearing(context.Background(), g.ID, clearingInput(domain.ClearingOutcomeCleared, 400)); err != nil {
		t.Fatalf("record clearing: %v", err)
	}

	// simulate drift from a failed partial write
	store.mu.Lock()
	store.giros[g.ID].Status = domain.GiroStatusCleared
	store.mu.Unlock()

	for i := 0; i < 3; i++ {
		got, err := svc.RecalculateStatus(context.Background(), g.ID)
		if err != nil {
			t.Fatalf("recalculate: %v", err)
		}
		if got.Status != domain.GiroStatusPartial {
			t.Fatalf("expected partial, got %s", got.Status)
		}
	}
}

func TestConcurrentClearings_OnlyOneWins(t *testing.T) {
	svc, store := newTestService()
	g := mustCreateGiro(t, svc, 1000)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.RecordClearing(context.Background(), g.ID, clearingInput(domain.ClearingOutcomeCleared, 1000))
		}(i)
	}
	wg.Wait()

	var successes, rejections int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		default:
			var insErr *domain.InsufficientRemainingError
			if !errors.As(err, &insErr) {
				t.Fatalf("unexpected error: %v", err)
			}
			rejections++
		}
	}

	if successes != 1 || rejections != 1 {
		t.Fatalf("expected exactly one success and one rejection, got %d/%d", successes, rejections)
	}
	if len(store.records) != 1 {
		t.Fatalf("expected a single persisted record, got %d", len(store.records))
	}

	got, _ := svc.GetGiro(context.Background(), g.ID)
	if got.Status != domain.GiroStatusCleared {
		t.Fatalf("expected cleared, got %s", got.Status)
	}
}

func TestUpdateGiro_AmountLockedAfterClearing(t *testing.T) {
	svc, _ := newTestService()
	g := mustCreateGiro(t, svc, 1000)

	// amount is editable while there is no history
	newAmount := decimal.NewFromInt(1500)
	if _, err := svc.UpdateGiro(context.Background(), g.ID, domain.GiroUpdate{Amount: &newAmount}); err != nil {
		t.Fatalf("update before clearing: %v", err)
	}

	if _, err := svc.RecordClearing(context.Background(), g.ID, clearingInput(domain.ClearingOutcomeCleared, 100)); err != nil {
		t.Fatalf("record clearing: %v", err)
	}

	_, err := svc.UpdateGiro(context.Background(), g.ID, domain.GiroUpdate{Amount: &newAmount})
	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "amount" {
		t.Fatalf("expected validation error on amount, got %v", err)
	}
}

func TestDeleteGiro_BlockedByRecords(t *testing.T) {
	svc, _ := newTestService()
	g := mustCreateGiro(t, svc, 1000)

	if _, err := svc.RecordClearing(context.Background(), g.ID, clearingInput(domain.ClearingOutcomeCleared, 100)); err != nil {
		t.Fatalf("record clearing: %v", err)
	}

	err := svc.DeleteGiro(context.Background(), g.ID)
	var cfErr *domain.ConflictError
	if !errors.As(err, &cfErr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}

	// still deletable once history is gone
	records, _ := svc.ListClearingRecords(context.Background(), g.ID)
	for _, rec := range records {
		if err := svc.DeleteClearingRecord(context.Background(), rec.ID); err != nil {
			t.Fatalf("delete record: %v", err)
		}
	}
	if err := svc.DeleteGiro(context.Background(), g.ID); err != nil {
		t.Fatalf("delete giro: %v", err)
	}
}
