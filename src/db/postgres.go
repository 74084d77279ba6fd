package db

import (
	"context"
	"errors"
	"fmt"

	pgsql "expenses-server/src/db/sql"
	"expenses-server/src/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) InsertExpense(ctx context.Context, userID string, ne models.NewExpense) (*models.Expense, bool, error) {
	e, err := pgsql.CreateExpense(ctx, s.pool, userID, ne)
	if err == nil {
		return e, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) || ne.IdempotencyKey == "" {
		return nil, false, fmt.Errorf("insert expense: %w", err)
	}

	e, err = pgsql.GetExpenseByIdempotencyKey(ctx, s.pool, userID, ne.IdempotencyKey)
	if err != nil {
		return nil, false, fmt.Errorf("load replayed expense: %w", err)
	}
	return e, true, nil
}

func (s *PostgresStore) ListExpenses(ctx context.Context, userID string) ([]models.Expense, error) {
	expenses, err := pgsql.GetAllExpenses(ctx, s.pool, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return expenses, nil
}

func (s *PostgresStore) GetExpense(ctx context.Context, userID string, id int64) (*models.Expense, error) {
	e, err := pgsql.GetExpenseByID(ctx, s.pool, userID, id)
	return e, notFound(err, "get expense")
}

func (s *PostgresStore) DeleteExpense(ctx context.Context, userID string, id int64) (*models.Expense, error) {
	e, err := pgsql.DeleteExpense(ctx, s.pool, userID, id)
	return e, notFound(err, "delete expense")
}

func (s *PostgresStore) TotalSpent(ctx context.Context, userID string) (models.Amount, error) {
	total, err := pgsql.GetTotalSpentForUser(ctx, s.pool, userID)
	if err != nil {
		return models.Amount{}, fmt.Errorf("total spent: %w", err)
	}
	return total, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func notFound(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return ErrNotFound
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
