package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"girodesk/internal/domain"
)

type ClearingsFilter struct {
	GiroID     *string
	CustomerID *string
	Outcome    *string
	DateFrom   *time.Time
	DateTo     *time.Time
}

type ClearingRecordRepository struct {
	db *sql.DB
}

func NewClearingRecordRepository(db *sql.DB) *ClearingRecordRepository {
	return &ClearingRecordRepository{db: db}
}

const clearingColumns = `r.id, r.giro_id, r.clearing_date, r.clearing_status, r.clearing_amount, r.reference_doc, r.remarks, r.created_by, r.created_at`

func scanClearing(row interface{ Scan(dest ...any) error }) (*domain.GiroClearingRecord, error) {
	var rec domain.GiroClearingRecord
	var status string

	if err := row.Scan(
		&rec.ID,
		&rec.GiroID,
		&rec.ClearingDate,
		&status,
		&rec.ClearingAmount,
		&rec.ReferenceDoc,
		&rec.Remarks,
		&rec.CreatedBy,
		&rec.CreatedAt,
	); err != nil {
		return nil, err
	}
	rec.ClearingStatus = domain.ClearingOutcome(status)
	return &rec, nil
}

func (r *ClearingRecordRepository) Create(ctx context.Context, q DBTX, rec *domain.GiroClearingRecord) error {
	if q == nil {
		q = r.db
	}
	query := `
		INSERT INTO giro_clearing_records (id, giro_id, clearing_date, clearing_status, clearing_amount, reference_doc, remarks, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
	`
	_, err := q.ExecContext(ctx, query,
		rec.ID,
		rec.GiroID,
		rec.ClearingDate,
		string(rec.ClearingStatus),
		rec.ClearingAmount,
		rec.ReferenceDoc,
		rec.Remarks,
		rec.CreatedBy,
	)
	return err
}

func (r *ClearingRecordRepository) GetByID(ctx context.Context, id string) (*domain.GiroClearingRecord, error) {
	query := `SELECT ` + clearingColumns + ` FROM giro_clearing_records r WHERE r.id = $1`
	rec, err := scanClearing(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Entity: "clearing record", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *ClearingRecordRepository) ListByGiro(ctx context.Context, giroID string) ([]domain.GiroClearingRecord, error) {
	return r.ListByGiroTx(ctx, r.db, giroID)
}

// ListByGiroTx reads the record set through the caller's transaction so
// validation inside a giro row lock sees a consistent history.
func (r *ClearingRecordRepository) ListByGiroTx(ctx context.Context, q DBTX, giroID string) ([]domain.GiroClearingRecord, error) {
	if q == nil {
		q = r.db
	}
	query := `SELECT ` + clearingColumns + ` FROM giro_clearing_records r WHERE r.giro_id = $1 ORDER BY r.clearing_date DESC, r.created_at DESC`

	rows, err := q.QueryContext(ctx, query, giroID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.GiroClearingRecord
	for rows.Next() {
		rec, err := scanClearing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ClearingRecordRepository) Delete(ctx context.Context, q DBTX, id string) error {
	if q == nil {
		q = r.db
	}
	res, err := q.ExecContext(ctx, `DELETE FROM giro_clearing_records WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &domain.NotFoundError{Entity: "clearing record", ID: id}
	}
	return nil
}

func (r *ClearingRecordRepository) HasAnyForGiro(ctx context.Context, giroID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM giro_clearing_records WHERE giro_id = $1)`, giroID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *ClearingRecordRepository) ListFiltered(ctx context.Context, f ClearingsFilter) ([]domain.GiroClearingRecord, error) {
	base := `SELECT ` + clearingColumns + ` FROM giro_clearing_records r LEFT JOIN giros g ON g.id = r.giro_id`

	where, args := buildClearingsWhere(f, 1)
	query := base + " WHERE " + where + " ORDER BY r.clearing_date DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.GiroClearingRecord
	for rows.Next() {
		rec, err := scanClearing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ClearingRecordRepository) HasMoreThan(ctx context.Context, limit int64, f ClearingsFilter) (bool, error) {
	where, args := buildClearingsWhere(f, 2)
	query := `SELECT COUNT(*) > $1 FROM giro_clearing_records r LEFT JOIN giros g ON g.id = r.giro_id WHERE ` + where
	args = append([]any{limit}, args...)

	var tooMany bool
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&tooMany); err != nil {
		return false, err
	}
	return tooMany, nil
}

func buildClearingsWhere(f ClearingsFilter, start int) (string, []any) {
	where := []string{"1=1"}
	args := []any{}
	i := start

	if f.GiroID != nil && *f.GiroID != "" {
		where = append(where, fmt.Sprintf("r.giro_id = $%d", i))
		args = append(args, *f.GiroID)
		i++
	}
	if f.CustomerID != nil && *f.CustomerID != "" {
		// records don't store customer_id directly; filter through the parent giro
		where = append(where, fmt.Sprintf("g.customer_id = $%d", i))
		args = append(args, *f.CustomerID)
		i++
	}
	if f.Outcome != nil && *f.Outcome != "" {
		where = append(where, fmt.Sprintf("r.clearing_status = $%d", i))
		args = append(args, *f.Outcome)
		i++
	}
	if f.DateFrom != nil {
		where = append(where, fmt.Sprintf("r.clearing_date >= $%d", i))
		args = append(args, *f.DateFrom)
		i++
	}
	if f.DateTo != nil {
		where = append(where, fmt.Sprintf("r.clearing_date <= $%d", i))
		args = append(args, *f.DateTo)
		i++
	}

	return strings.Join(where, " AND "), args
}
