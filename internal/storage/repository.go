// Package storage persists participants and expenses in SQLite.
//
// Expenses are append-only: an expense and its shares are written in one
// transaction, so readers either see the whole record or none of it.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"splitledger/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateParticipant registers a new participant. Email uniqueness is checked
// inside the same transaction as the insert, so concurrent registrations of
// the same address cannot both succeed.
func (r *SQLiteRepository) CreateParticipant(ctx context.Context, p core.Participant) (core.Participant, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Participant{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		"SELECT 1 FROM participants WHERE email = ?", p.Email).Scan(&exists)
	switch {
	case err == nil:
		return core.Participant{}, fmt.Errorf("%w: email %s", core.ErrDuplicateParticipant, p.Email)
	case !errors.Is(err, sql.ErrNoRows):
		return core.Participant{}, fmt.Errorf("check email uniqueness: %w", err)
	}

	p.CreatedAt = time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		"INSERT INTO participants (name, email, phone, created_at) VALUES (?, ?, ?, ?)",
		p.Name, p.Email, p.Phone, p.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return core.Participant{}, fmt.Errorf("%w: email %s", core.ErrDuplicateParticipant, p.Email)
		}
		return core.Participant{}, fmt.Errorf("insert participant: %w", err)
	}

	p.ID, err = res.LastInsertId()
	if err != nil {
		return core.Participant{}, fmt.Errorf("participant id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return core.Participant{}, fmt.Errorf("commit participant: %w", err)
	}

	slog.InfoContext(ctx, "Participant registered",
		"id", p.ID,
		"email", p.Email)

	return p, nil
}

func (r *SQLiteRepository) GetParticipant(ctx context.Context, id int64) (core.Participant, error) {
	var p core.Participant
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, email, phone, created_at FROM participants WHERE id = ?", id,
	).Scan(&p.ID, &p.Name, &p.Email, &p.Phone, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Participant{}, fmt.Errorf("%w: participant %d", core.ErrNotFound, id)
	}
	if err != nil {
		return core.Participant{}, fmt.Errorf("get participant: %w", err)
	}
	return p, nil
}

func (r *SQLiteRepository) ListParticipants(ctx context.Context) ([]core.Participant, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, email, phone, created_at FROM participants ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var participants []core.Participant
	for rows.Next() {
		var p core.Participant
		if err := rows.Scan(&p.ID, &p.Name, &p.Email, &p.Phone, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participants: %w", err)
	}
	return participants, nil
}

// CreateExpense appends an expense and its normalized shares atomically.
// The payer existence check runs in the same transaction as the insert.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Expense{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		"SELECT 1 FROM participants WHERE id = ?", e.PayerID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("%w: payer %d", core.ErrParticipantNotFound, e.PayerID)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("check payer: %w", err)
	}

	e.CreatedAt = time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO expenses (payer_id, description, amount_cents, split_method, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		e.PayerID, e.Description, e.Amount.Cents, string(e.Method), e.CreatedAt)
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}

	e.ID, err = res.LastInsertId()
	if err != nil {
		return core.Expense{}, fmt.Errorf("expense id: %w", err)
	}

	for _, sh := range e.Split {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO expense_shares (expense_id, participant_id, amount_cents, percent_bp)
			 VALUES (?, ?, ?, ?)`,
			e.ID, sh.ParticipantID, sh.Amount.Cents, sh.PercentBP)
		if err != nil {
			return core.Expense{}, fmt.Errorf("insert share: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return core.Expense{}, fmt.Errorf("commit expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense recorded",
		"id", e.ID,
		"payer_id", e.PayerID,
		"amount_cents", e.Amount.Cents,
		"split_method", string(e.Method),
		"shares", len(e.Split))

	return e, nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	expenses, err := r.queryExpenses(ctx,
		"WHERE e.id = ?", id)
	if err != nil {
		return core.Expense{}, err
	}
	if len(expenses) == 0 {
		return core.Expense{}, fmt.Errorf("%w: expense %d", core.ErrNotFound, id)
	}
	return expenses[0], nil
}

// ListExpenses returns every expense in insertion order.
func (r *SQLiteRepository) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	return r.queryExpenses(ctx, "")
}

// ListExpensesForParticipant returns expenses where the participant is the
// payer or carries a share, in insertion order.
func (r *SQLiteRepository) ListExpensesForParticipant(ctx context.Context, participantID int64) ([]core.Expense, error) {
	return r.queryExpenses(ctx,
		`WHERE e.payer_id = ?
		    OR e.id IN (SELECT expense_id FROM expense_shares WHERE participant_id = ?)`,
		participantID, participantID)
}

func (r *SQLiteRepository) queryExpenses(ctx context.Context, where string, args ...any) ([]core.Expense, error) {
	query := `SELECT e.id, e.payer_id, e.description, e.amount_cents, e.split_method, e.created_at
	          FROM expenses e ` + where + " ORDER BY e.id"
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	var expenses []core.Expense
	index := make(map[int64]int)
	for rows.Next() {
		var e core.Expense
		var method string
		if err := rows.Scan(&e.ID, &e.PayerID, &e.Description, &e.Amount.Cents, &method, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.Method = core.SplitMethod(method)
		index[e.ID] = len(expenses)
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	if len(expenses) == 0 {
		return nil, nil
	}

	shareQuery := `SELECT s.expense_id, s.participant_id, s.amount_cents, s.percent_bp
	               FROM expense_shares s
	               JOIN expenses e ON e.id = s.expense_id ` + where +
		" ORDER BY s.expense_id, s.participant_id"
	shareRows, err := r.db.QueryContext(ctx, shareQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("query shares: %w", err)
	}
	defer shareRows.Close()

	for shareRows.Next() {
		var expenseID int64
		var sh core.Share
		if err := shareRows.Scan(&expenseID, &sh.ParticipantID, &sh.Amount.Cents, &sh.PercentBP); err != nil {
			return nil, fmt.Errorf("scan share: %w", err)
		}
		if i, ok := index[expenseID]; ok {
			expenses[i].Split = append(expenses[i].Split, sh)
		}
	}
	if err := shareRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shares: %w", err)
	}

	return expenses, nil
}

// PendingSyncExpenses returns ids of expenses not yet mirrored to the
// external sheet, oldest first.
func (r *SQLiteRepository) PendingSyncExpenses(ctx context.Context, limit int) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id FROM expenses WHERE sync_status = 'pending' ORDER BY id LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("query pending expenses: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pending id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending ids: %w", err)
	}
	return ids, nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		"UPDATE expenses SET sync_status = 'synced' WHERE id = ?", id); err != nil {
		return fmt.Errorf("mark expense synced: %w", err)
	}
	slog.InfoContext(ctx, "Expense marked as synced", "id", id)
	return nil
}

func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		"UPDATE expenses SET sync_status = 'error' WHERE id = ?", id); err != nil {
		return fmt.Errorf("mark expense sync error: %w", err)
	}
	slog.WarnContext(ctx, "Expense marked with sync error", "id", id)
	return nil
}
