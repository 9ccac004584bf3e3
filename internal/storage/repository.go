package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"tuition/internal/core"
	"tuition/internal/ledger"
	applog "tuition/internal/log"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db    *sql.DB
	newID func() string
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// single writer; toggles serialize on the connection
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, newID: ledger.NewID}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// LoadCollection implements Store.
func (r *SQLiteRepository) LoadCollection(ctx context.Context, name Collection, dst any) (bool, error) {
	var body string
	err := r.db.QueryRowContext(ctx, `SELECT body FROM collections WHERE name = ?`, string(name)).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("select collection %s: %w", name, err)
	}
	if err := json.Unmarshal([]byte(body), dst); err != nil {
		return false, fmt.Errorf("decode collection %s: %w", name, err)
	}
	return true, nil
}

// SaveCollection implements Store. The whole collection is replaced.
func (r *SQLiteRepository) SaveCollection(ctx context.Context, name Collection, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode collection %s: %w", name, err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO collections (name, body, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		string(name), string(body), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save collection %s: %w", name, err)
	}

	slog.DebugContext(ctx, "Collection saved",
		applog.FieldComponent, applog.ComponentStorage,
		applog.FieldCollection, name, "bytes", len(body))
	return nil
}

// ListPayments implements Store. Records come back in insertion order.
func (r *SQLiteRepository) ListPayments(ctx context.Context) ([]core.PaymentRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, student_id, batch_id, amount, month, year, payment_date, type, status
		FROM payments ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	payments := make([]core.PaymentRecord, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payments: %w", err)
	}
	return payments, nil
}

// TogglePayment implements Store. The lookup and the upsert share one
// transaction and the unique index on (student_id, month, year) rejects a
// second record for the same month.
func (r *SQLiteRepository) TogglePayment(ctx context.Context, req ledger.ToggleRequest) (core.PaymentRecord, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.PaymentRecord{}, fmt.Errorf("begin toggle: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT id, student_id, batch_id, amount, month, year, payment_date, type, status
		FROM payments WHERE student_id = ? AND month = ? AND year = ?`,
		req.StudentID, req.Period.MonthName(), req.Period.YearString())

	var existing *core.PaymentRecord
	p, err := scanPayment(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return core.PaymentRecord{}, err
	default:
		existing = &p
	}

	rec := ledger.ApplyToggle(existing, req, r.newID)
	if existing != nil {
		_, err = tx.ExecContext(ctx, `
			UPDATE payments SET status = ?, payment_date = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`,
			string(rec.Status), rec.PaymentDate, rec.ID)
	} else {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO payments (id, student_id, batch_id, amount, month, year, payment_date, type, status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.StudentID, rec.BatchID, rec.Amount, rec.Month, rec.Year, rec.PaymentDate, string(rec.Type), string(rec.Status))
	}
	if err != nil {
		return core.PaymentRecord{}, fmt.Errorf("upsert payment: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return core.PaymentRecord{}, fmt.Errorf("commit toggle: %w", err)
	}

	slog.InfoContext(ctx, "Payment toggled",
		applog.FieldComponent, applog.ComponentStorage,
		applog.FieldPaymentID, rec.ID,
		applog.FieldStudentID, rec.StudentID,
		applog.FieldMonth, rec.Month,
		applog.FieldYear, rec.Year,
		applog.FieldStatus, rec.Status,
		"created", existing == nil)
	return rec, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPayment(s scanner) (core.PaymentRecord, error) {
	var (
		p           core.PaymentRecord
		typ, status string
	)
	err := s.Scan(&p.ID, &p.StudentID, &p.BatchID, &p.Amount, &p.Month, &p.Year, &p.PaymentDate, &typ, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return p, err
	}
	if err != nil {
		return p, fmt.Errorf("scan payment: %w", err)
	}
	p.Type = core.PaymentType(typ)
	p.Status = core.PaymentStatus(status)
	return p, nil
}
