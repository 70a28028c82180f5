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

type GirosFilter struct {
	CustomerID *string
	Status     *string
	DueFrom    *time.Time
	DueTo      *time.Time
}

type GiroRepository struct {
	db *sql.DB
}

func NewGiroRepository(db *sql.DB) *GiroRepository {
	return &GiroRepository{db: db}
}

const giroColumns = `g.id, g.customer_id, g.giro_number, g.bank_name, g.bank_account, g.amount, g.due_date, g.received_date, g.status, g.invoice_number, g.remarks, g.created_at, g.updated_at`

func scanGiro(row interface{ Scan(dest ...any) error }, withCustomer bool) (*domain.Giro, error) {
	var g domain.Giro
	var status string

	dest := []any{
		&g.ID,
		&g.CustomerID,
		&g.GiroNumber,
		&g.BankName,
		&g.BankAccount,
		&g.Amount,
		&g.DueDate,
		&g.ReceivedDate,
		&status,
		&g.InvoiceNumber,
		&g.Remarks,
		&g.CreatedAt,
		&g.UpdatedAt,
	}
	if withCustomer {
		dest = append(dest, &g.CustomerName)
	}

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	g.Status = domain.GiroStatus(status)
	return &g, nil
}

func (r *GiroRepository) Create(ctx context.Context, g *domain.Giro) error {
	query := `
		INSERT INTO giros (id, customer_id, giro_number, bank_name, bank_account, amount, due_date, received_date, status, invoice_number, remarks, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
	`
	_, err := r.db.ExecContext(ctx, query,
		g.ID,
		g.CustomerID,
		g.GiroNumber,
		g.BankName,
		g.BankAccount,
		g.Amount,
		g.DueDate,
		g.ReceivedDate,
		string(g.Status),
		g.InvoiceNumber,
		g.Remarks,
	)
	return err
}

func (r *GiroRepository) GetByID(ctx context.Context, id string) (*domain.Giro, error) {
	query := `
		SELECT ` + giroColumns + `, c.name AS customer_name
		FROM giros g
		LEFT JOIN customers c ON c.id = g.customer_id
		WHERE g.id = $1
	`
	g, err := scanGiro(r.db.QueryRowContext(ctx, query, id), true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Entity: "giro", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (r *GiroRepository) Update(ctx context.Context, id string, u domain.GiroUpdate) (*domain.Giro, error) {
	set := []string{"updated_at = now()"}
	args := []any{}
	i := 1

	if u.GiroNumber != nil {
		set = append(set, fmt.Sprintf("giro_number = $%d", i))
		args = append(args, *u.GiroNumber)
		i++
	}
	if u.BankName != nil {
		set = append(set, fmt.Sprintf("bank_name = $%d", i))
		args = append(args, *u.BankName)
		i++
	}
	if u.BankAccount != nil {
		set = append(set, fmt.Sprintf("bank_account = $%d", i))
		args = append(args, *u.BankAccount)
		i++
	}
	if u.Amount != nil {
		set = append(set, fmt.Sprintf("amount = $%d", i))
		args = append(args, *u.Amount)
		i++
	}
	if u.DueDate != nil {
		set = append(set, fmt.Sprintf("due_date = $%d", i))
		args = append(args, *u.DueDate)
		i++
	}
	if u.ReceivedDate != nil {
		set = append(set, fmt.Sprintf("received_date = $%d", i))
		args = append(args, *u.ReceivedDate)
		i++
	}
	if u.InvoiceNumber != nil {
		set = append(set, fmt.Sprintf("invoice_number = $%d", i))
		args = append(args, *u.InvoiceNumber)
		i++
	}
	if u.Remarks != nil {
		set = append(set, fmt.Sprintf("remarks = $%d", i))
		args = append(args, *u.Remarks)
		i++
	}

	query := fmt.Sprintf("UPDATE giros SET %s WHERE id = $%d", strings.Join(set, ", "), i)
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, &domain.NotFoundError{Entity: "giro", ID: id}
	}

	return r.GetByID(ctx, id)
}

// UpdateStatus writes the derived status. It is tx-scoped so status
// changes commit together with the clearing-record mutation that caused
// them.
func (r *GiroRepository) UpdateStatus(ctx context.Context, q DBTX, id string, status domain.GiroStatus) error {
	if q == nil {
		q = r.db
	}
	_, err := q.ExecContext(ctx, `UPDATE giros SET status = $1, updated_at = now() WHERE id = $2`, string(status), id)
	return err
}

func (r *GiroRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM giros WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &domain.NotFoundError{Entity: "giro", ID: id}
	}
	return nil
}

func (r *GiroRepository) List(ctx context.Context, f GirosFilter) ([]domain.Giro, error) {
	base := `
		SELECT ` + giroColumns + `, c.name AS customer_name
		FROM giros g
		LEFT JOIN customers c ON c.id = g.customer_id
	`

	where, args := buildGirosWhere(f, 1)
	query := base + " WHERE " + where + " ORDER BY g.due_date DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Giro
	for rows.Next() {
		g, err := scanGiro(rows, true)
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GiroRepository) HasMoreThan(ctx context.Context, limit int64, f GirosFilter) (bool, error) {
	where, args := buildGirosWhere(f, 2)
	query := `SELECT COUNT(*) > $1 FROM giros g WHERE ` + where
	args = append([]any{limit}, args...)

	var tooMany bool
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&tooMany); err != nil {
		return false, err
	}
	return tooMany, nil
}

func buildGirosWhere(f GirosFilter, start int) (string, []any) {
	where := []string{"1=1"}
	args := []any{}
	i := start

	if f.CustomerID != nil && *f.CustomerID != "" {
		where = append(where, fmt.Sprintf("g.customer_id = $%d", i))
		args = append(args, *f.CustomerID)
		i++
	}
	if f.Status != nil && *f.Status != "" {
		where = append(where, fmt.Sprintf("g.status = $%d", i))
		args = append(args, *f.Status)
		i++
	}
	if f.DueFrom != nil {
		where = append(where, fmt.Sprintf("g.due_date >= $%d", i))
		args = append(args, *f.DueFrom)
		i++
	}
	if f.DueTo != nil {
		where = append(where, fmt.Sprintf("g.due_date <= $%d", i))
		args = append(args, *f.DueTo)
		i++
	}

	return strings.Join(where, " AND "), args
}

// WithLock runs fn inside a transaction holding a row lock on the giro,
// serializing concurrent clearing submissions against the same
// instrument so each one validates against fresh history.
func (r *GiroRepository) WithLock(ctx context.Context, id string, fn func(ctx context.Context, q DBTX, g *domain.Giro) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	query := `SELECT ` + giroColumns + ` FROM giros g WHERE g.id = $1 FOR UPDATE`
	g, err := scanGiro(tx.QueryRowContext(ctx, query, id), false)
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.NotFoundError{Entity: "giro", ID: id}
	}
	if err != nil {
		return err
	}

	if err := fn(ctx, tx, g); err != nil {
		return err
	}

	return tx.Commit()
}
