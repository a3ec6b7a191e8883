package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

const expenseColumns = `id::text, staff_id::text, amount::text, reason, status, is_deleted, coalesce(decided_by, ''), created_at, updated_at`

const advanceColumns = `id::text, staff_id::text, amount::text, coalesce(note, ''), given_on, coalesce(given_by, ''), type, is_deleted, created_at`

func (s *Store) ListExpenses(ctx context.Context, staffID string) ([]ExpenseRecord, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses`
	var args []any
	if staffID != "" {
		query += ` WHERE staff_id = $1`
		args = append(args, staffID)
	}
	query += ` ORDER BY created_at`

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExpenseRecord
	for rows.Next() {
		rec, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) GetExpense(ctx context.Context, id string) (ExpenseRecord, error) {
	rec, err := scanExpense(s.DB.QueryRow(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return ExpenseRecord{}, ErrExpenseNotFound
	}
	return rec, err
}

func (s *Store) SaveExpense(ctx context.Context, rec ExpenseRecord) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO expenses (id, staff_id, amount, reason, status, is_deleted, decided_by, created_at, updated_at)
    VALUES ($1,$2,$3::numeric,$4,$5,$6,$7,$8,$9)
    ON CONFLICT (id) DO UPDATE
    SET amount = EXCLUDED.amount, reason = EXCLUDED.reason, status = EXCLUDED.status,
        is_deleted = EXCLUDED.is_deleted, decided_by = EXCLUDED.decided_by, updated_at = EXCLUDED.updated_at
  `, rec.ID, rec.StaffID, rec.Amount.String(), rec.Reason, rec.Status, rec.IsDeleted, nullIfEmpty(rec.DecidedBy), rec.CreatedAt, rec.UpdatedAt)
	return err
}

func (s *Store) ListAdvances(ctx context.Context, staffID string) ([]AdvanceLogEntry, error) {
	query := `SELECT ` + advanceColumns + ` FROM advances`
	var args []any
	if staffID != "" {
		query += ` WHERE staff_id = $1`
		args = append(args, staffID)
	}
	query += ` ORDER BY given_on, created_at`

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AdvanceLogEntry
	for rows.Next() {
		entry, err := scanAdvance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (s *Store) GetAdvance(ctx context.Context, id string) (AdvanceLogEntry, error) {
	entry, err := scanAdvance(s.DB.QueryRow(ctx, `SELECT `+advanceColumns+` FROM advances WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return AdvanceLogEntry{}, ErrAdvanceNotFound
	}
	return entry, err
}

func (s *Store) SaveAdvance(ctx context.Context, entry AdvanceLogEntry) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO advances (id, staff_id, amount, note, given_on, given_by, type, is_deleted, created_at)
    VALUES ($1,$2,$3::numeric,$4,$5,$6,$7,$8,$9)
    ON CONFLICT (id) DO UPDATE
    SET note = EXCLUDED.note, is_deleted = EXCLUDED.is_deleted
  `, entry.ID, entry.StaffID, entry.Amount.String(), entry.Note, entry.Date, nullIfEmpty(entry.GivenBy), entry.Type, entry.IsDeleted, entry.CreatedAt)
	return err
}

func scanExpense(row pgx.Row) (ExpenseRecord, error) {
	var rec ExpenseRecord
	var amount string
	if err := row.Scan(&rec.ID, &rec.StaffID, &amount, &rec.Reason, &rec.Status, &rec.IsDeleted, &rec.DecidedBy, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return ExpenseRecord{}, err
	}
	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return ExpenseRecord{}, fmt.Errorf("expense %s amount: %w", rec.ID, err)
	}
	rec.Amount = parsed
	return rec, nil
}

func scanAdvance(row pgx.Row) (AdvanceLogEntry, error) {
	var entry AdvanceLogEntry
	var amount string
	if err := row.Scan(&entry.ID, &entry.StaffID, &amount, &entry.Note, &entry.Date, &entry.GivenBy, &entry.Type, &entry.IsDeleted, &entry.CreatedAt); err != nil {
		return AdvanceLogEntry{}, err
	}
	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return AdvanceLogEntry{}, fmt.Errorf("advance %s amount: %w", entry.ID, err)
	}
	entry.Amount = parsed
	return entry, nil
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
