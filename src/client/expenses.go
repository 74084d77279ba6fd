package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"expenses-server/src/client/querycache"
	"expenses-server/src/models"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const ListRoute = "/expenses"

// ExpenseAPI is the part of *API the service needs.
type ExpenseAPI interface {
	ListExpenses(ctx context.Context) ([]models.Expense, error)
	TotalSpent(ctx context.Context) (models.Amount, error)
	CreateExpense(ctx context.Context, in models.ExpenseInput, idempotencyKey string) (*models.Expense, error)
	DeleteExpense(ctx context.Context, id int64) (*models.Expense, error)
}

// Navigator moves the user to another view.
type Navigator interface {
	Navigate(to string)
}

// Notifier shows transient messages.
type Notifier interface {
	Success(title, description string)
	Error(title, description string)
}

// PendingExpense is the placeholder stored under querycache.PendingCreate while a
// create request is in flight.
type PendingExpense struct {
	Input          models.ExpenseInput
	IdempotencyKey string
	StartedAt      time.Time
}

type Expenses struct {
	api    ExpenseAPI
	cache  *querycache.Cache
	nav    Navigator
	notify Notifier

	newKey func() string
}

func NewExpenses(api ExpenseAPI, cache *querycache.Cache, nav Navigator, notify Notifier) *Expenses {
	return &Expenses{api: api, cache: cache, nav: nav, notify: notify, newKey: uuid.NewString}
}

func (s *Expenses) All(ctx context.Context) ([]models.Expense, error) {
	return querycache.Ensure(ctx, s.cache, querycache.AllExpenses, s.api.ListExpenses)
}

func (s *Expenses) TotalSpent(ctx context.Context) (models.Amount, error) {
	return querycache.Ensure(ctx, s.cache, querycache.TotalSpent, s.api.TotalSpent)
}

// Load warms the list and the total concurrently.
func (s *Expenses) Load(ctx context.Context) ([]models.Expense, models.Amount, error) {
	var (
		expenses []models.Expense
		total    models.Amount
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		expenses, err = s.All(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.TotalSpent(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, models.Amount{}, err
	}
	return expenses, total, nil
}

// Pending returns the in-flight create placeholder, if any.
func (s *Expenses) Pending() (PendingExpense, bool) {
	return querycache.Get[PendingExpense](s.cache, querycache.PendingCreate)
}

// Create navigates to the list before the request completes and shows a placeholder
// until it does. On failure the cached list is left as it was.
func (s *Expenses) Create(ctx context.Context, in models.ExpenseInput) (*models.Expense, error) {
	existing, err := s.All(ctx)
	if err != nil {
		s.notify.Error("Error", "Failed to create new expense")
		return nil, fmt.Errorf("load expenses: %w", err)
	}

	s.nav.Navigate(ListRoute)

	key := s.newKey()
	s.cache.SetQueryData(querycache.PendingCreate, PendingExpense{Input: in, IdempotencyKey: key, StartedAt: time.Now()})
	defer s.cache.RemoveQueries(querycache.PendingCreate)

	created, err := s.api.CreateExpense(ctx, in, key)
	if err != nil {
		s.notify.Error("Error", "Failed to create new expense")
		return nil, err
	}

	// the list may have been refreshed while the request was in flight
	if current, ok := querycache.Get[[]models.Expense](s.cache, querycache.AllExpenses); ok {
		existing = current
	}
	updated := make([]models.Expense, 0, len(existing)+1)
	updated = append(updated, *created)
	updated = append(updated, existing...)
	s.cache.SetQueryData(querycache.AllExpenses, updated)
	s.cache.RemoveQueries(querycache.TotalSpent)

	s.notify.Success("Expense Created", fmt.Sprintf("Successfully created new expense: %d", created.ID))
	return created, nil
}

// Delete removes the expense on the server and from the cached list. A 404 also
// drops the row locally since it is already gone.
func (s *Expenses) Delete(ctx context.Context, id int64) error {
	_, err := s.api.DeleteExpense(ctx, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		s.notify.Error("Error", fmt.Sprintf("Failed to delete expense: %d", id))
		return err
	}

	if current, ok := querycache.Get[[]models.Expense](s.cache, querycache.AllExpenses); ok {
		kept := make([]models.Expense, 0, len(current))
		for _, e := range current {
			if e.ID != id {
				kept = append(kept, e)
			}
		}
		s.cache.SetQueryData(querycache.AllExpenses, kept)
	}
	s.cache.RemoveQueries(querycache.TotalSpent)

	if err != nil {
		s.notify.Error("Error", fmt.Sprintf("Expense not found: %d", id))
		return err
	}
	s.notify.Success("Expense Deleted", fmt.Sprintf("Successfully deleted expense: %d", id))
	return nil
}
