package db

import (
	"context"
	"errors"
	"fmt"

	"expenses-server/src/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("expense not found")

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Store is the persistence contract used by the handlers. An empty userID on
// ListExpenses lists every owner's rows; all other calls are scoped to userID.
type Store interface {
	// InsertExpense stores ne for userID. When ne carries an idempotency key that was
	// already used by userID, the original row is returned with replayed set.
	InsertExpense(ctx context.Context, userID string, ne models.NewExpense) (e *models.Expense, replayed bool, err error)
	ListExpenses(ctx context.Context, userID string) ([]models.Expense, error)
	GetExpense(ctx context.Context, userID string, id int64) (*models.Expense, error)
	DeleteExpense(ctx context.Context, userID string, id int64) (*models.Expense, error)
	TotalSpent(ctx context.Context, userID string) (models.Amount, error)
	Ping(ctx context.Context) error
	Close()
}

func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// Open migrates and opens the store for driver. dsn is a Postgres URL or a SQLite path.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case DriverPostgres:
		if err := MigratePostgres(dsn); err != nil {
			return nil, err
		}
		pool, err := Connect(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		return NewPostgresStore(pool), nil
	case DriverSQLite:
		if err := MigrateSQLite(dsn); err != nil {
			return nil, err
		}
		return OpenSQLite(dsn)
	default:
		return nil, fmt.Errorf("unknown db driver %q", driver)
	}
}
