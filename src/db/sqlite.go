package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"expenses-server/src/models"

	"github.com/shopspring/decimal"
)

const sqliteColumns = `id, user_id, title, amount, date, created_at`

// SQLiteStore keeps amounts and dates as text and sums them with decimal arithmetic.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// single writer
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &SQLiteStore{db: conn}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteExpense(row rowScanner) (*models.Expense, error) {
	var (
		e                       models.Expense
		amount, date, createdAt string
	)
	if err := row.Scan(&e.ID, &e.UserID, &e.Title, &amount, &date, &createdAt); err != nil {
		return nil, err
	}

	var err error
	if e.Amount, err = models.ParseAmount(amount); err != nil {
		return nil, err
	}
	if e.Date, err = models.ParseDate(date); err != nil {
		return nil, err
	}
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	return &e, nil
}

func (s *SQLiteStore) InsertExpense(ctx context.Context, userID string, ne models.NewExpense) (*models.Expense, bool, error) {
	query := `
		INSERT INTO expenses (user_id, title, amount, date, idempotency_key)
		VALUES (?, ?, ?, ?, NULLIF(?, ''))
		ON CONFLICT (user_id, idempotency_key) WHERE idempotency_key IS NOT NULL DO NOTHING
		RETURNING ` + sqliteColumns
	e, err := scanSQLiteExpense(s.db.QueryRowContext(ctx, query, userID, ne.Title, ne.Amount.String(), ne.Date.String(), ne.IdempotencyKey))
	if err == nil {
		return e, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) || ne.IdempotencyKey == "" {
		return nil, false, fmt.Errorf("insert expense: %w", err)
	}

	query = `SELECT ` + sqliteColumns + ` FROM expenses WHERE user_id = ? AND idempotency_key = ?`
	e, err = scanSQLiteExpense(s.db.QueryRowContext(ctx, query, userID, ne.IdempotencyKey))
	if err != nil {
		return nil, false, fmt.Errorf("load replayed expense: %w", err)
	}
	return e, true, nil
}

func (s *SQLiteStore) ListExpenses(ctx context.Context, userID string) ([]models.Expense, error) {
	query := `
		SELECT ` + sqliteColumns + `
		FROM expenses WHERE (? = '' OR user_id = ?)
		ORDER BY created_at DESC, id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	expenses := []models.Expense{}
	for rows.Next() {
		e, err := scanSQLiteExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("list expenses: %w", err)
		}
		expenses = append(expenses, *e)
	}
	return expenses, rows.Err()
}

func (s *SQLiteStore) GetExpense(ctx context.Context, userID string, id int64) (*models.Expense, error) {
	query := `SELECT ` + sqliteColumns + ` FROM expenses WHERE id = ? AND user_id = ?`
	e, err := scanSQLiteExpense(s.db.QueryRowContext(ctx, query, id, userID))
	return e, sqliteNotFound(err, "get expense")
}

func (s *SQLiteStore) DeleteExpense(ctx context.Context, userID string, id int64) (*models.Expense, error) {
	query := `DELETE FROM expenses WHERE id = ? AND user_id = ? RETURNING ` + sqliteColumns
	e, err := scanSQLiteExpense(s.db.QueryRowContext(ctx, query, id, userID))
	return e, sqliteNotFound(err, "delete expense")
}

func (s *SQLiteStore) TotalSpent(ctx context.Context, userID string) (models.Amount, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT amount FROM expenses WHERE user_id = ?`, userID)
	if err != nil {
		return models.Amount{}, fmt.Errorf("total spent: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return models.Amount{}, fmt.Errorf("total spent: %w", err)
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return models.Amount{}, fmt.Errorf("total spent: parse %q: %w", amount, err)
		}
		total = total.Add(d)
	}
	if err := rows.Err(); err != nil {
		return models.Amount{}, fmt.Errorf("total spent: %w", err)
	}
	return models.NewAmount(total), nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() {
	s.db.Close()
}

func sqliteNotFound(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
