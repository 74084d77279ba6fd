package db

import (
	"context"

	"expenses-server/src/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const expenseColumns = `id, user_id, title, amount::text, date, created_at`

func scanExpense(row pgx.Row) (*models.Expense, error) {
	var (
		e      models.Expense
		amount string
	)
	if err := row.Scan(&e.ID, &e.UserID, &e.Title, &amount, &e.Date.Time, &e.CreatedAt); err != nil {
		return nil, err
	}
	a, err := models.ParseAmount(amount)
	if err != nil {
		return nil, err
	}
	e.Amount = a
	return &e, nil
}

// CreateExpense returns pgx.ErrNoRows when the idempotency key was already used.
func CreateExpense(ctx context.Context, pool *pgxpool.Pool, userID string, ne models.NewExpense) (*models.Expense, error) {
	query := `
		INSERT INTO expenses (user_id, title, amount, date, idempotency_key)
		VALUES ($1, $2, $3::numeric, $4, NULLIF($5, ''))
		ON CONFLICT (user_id, idempotency_key) WHERE idempotency_key IS NOT NULL DO NOTHING
		RETURNING ` + expenseColumns
	return scanExpense(pool.QueryRow(ctx, query, userID, ne.Title, ne.Amount.String(), ne.Date.Time, ne.IdempotencyKey))
}

func GetExpenseByIdempotencyKey(ctx context.Context, pool *pgxpool.Pool, userID, key string) (*models.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE user_id = $1 AND idempotency_key = $2`
	return scanExpense(pool.QueryRow(ctx, query, userID, key))
}

func GetExpenseByID(ctx context.Context, pool *pgxpool.Pool, userID string, id int64) (*models.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE id = $1 AND user_id = $2`
	return scanExpense(pool.QueryRow(ctx, query, id, userID))
}

// GetAllExpenses lists every row when userID is empty.
func GetAllExpenses(ctx context.Context, pool *pgxpool.Pool, userID string) ([]models.Expense, error) {
	query := `
		SELECT ` + expenseColumns + `
		FROM expenses WHERE ($1::text = '' OR user_id = $1)
		ORDER BY created_at DESC, id DESC
	`
	rows, err := pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := []models.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, *e)
	}
	return expenses, rows.Err()
}

func DeleteExpense(ctx context.Context, pool *pgxpool.Pool, userID string, id int64) (*models.Expense, error) {
	query := `DELETE FROM expenses WHERE id = $1 AND user_id = $2 RETURNING ` + expenseColumns
	return scanExpense(pool.QueryRow(ctx, query, id, userID))
}

func GetTotalSpentForUser(ctx context.Context, pool *pgxpool.Pool, userID string) (models.Amount, error) {
	query := `SELECT COALESCE(SUM(amount), 0)::text FROM expenses WHERE user_id = $1`
	var total string
	if err := pool.QueryRow(ctx, query, userID).Scan(&total); err != nil {
		return models.Amount{}, err
	}
	return models.ParseAmount(total)
}
