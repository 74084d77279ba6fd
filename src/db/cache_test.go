package db

import (
	"context"
	"testing"
	"time"

	"expenses-server/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore records how often reads reach the wrapped store.
type countingStore struct {
	Store
	lists, totals int
}

func (c *countingStore) ListExpenses(ctx context.Context, userID string) ([]models.Expense, error) {
	c.lists++
	return c.Store.ListExpenses(ctx, userID)
}

func (c *countingStore) TotalSpent(ctx context.Context, userID string) (models.Amount, error) {
	c.totals++
	return c.Store.TotalSpent(ctx, userID)
}

func newCachedTestStore(t *testing.T) (*CachedStore, *countingStore) {
	t.Helper()
	inner := &countingStore{Store: OpenTestSQLite(t)}
	cached, err := NewCachedStore(inner, time.Minute)
	require.NoError(t, err)
	t.Cleanup(cached.Close)
	return cached, inner
}

func TestCachedStoreServesRepeatReads(t *testing.T) {
	ctx := context.Background()
	cached, inner := newCachedTestStore(t)

	_, _, err := cached.InsertExpense(ctx, "user-1", newExpense(t, "Groceries", "42.50", "2024-05-01"))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		expenses, err := cached.ListExpenses(ctx, "user-1")
		require.NoError(t, err)
		assert.Len(t, expenses, 1)

		total, err := cached.TotalSpent(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, "42.50", total.String())
	}
	assert.Equal(t, 1, inner.lists)
	assert.Equal(t, 1, inner.totals)
}

func TestCachedStoreInvalidatesOnWrite(t *testing.T) {
	ctx := context.Background()
	cached, inner := newCachedTestStore(t)

	_, err := cached.ListExpenses(ctx, "user-1")
	require.NoError(t, err)

	e, _, err := cached.InsertExpense(ctx, "user-1", newExpense(t, "Groceries", "42.50", "2024-05-01"))
	require.NoError(t, err)

	expenses, err := cached.ListExpenses(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, expenses, 1)
	assert.Equal(t, 2, inner.lists)

	_, err = cached.DeleteExpense(ctx, "user-1", e.ID)
	require.NoError(t, err)

	expenses, err = cached.ListExpenses(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, expenses)
	assert.Equal(t, 3, inner.lists)
}

func TestCachedStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	cached, _ := newCachedTestStore(t)

	_, _, err := cached.InsertExpense(ctx, "user-1", newExpense(t, "Groceries", "42.50", "2024-05-01"))
	require.NoError(t, err)

	first, err := cached.ListExpenses(ctx, "user-1")
	require.NoError(t, err)
	first[0].Title = "changed"

	second, err := cached.ListExpenses(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Groceries", second[0].Title)
}

func TestCachedStoreClear(t *testing.T) {
	ctx := context.Background()
	cached, inner := newCachedTestStore(t)

	_, err := cached.TotalSpent(ctx, "user-1")
	require.NoError(t, err)
	cached.Clear()
	_, err = cached.TotalSpent(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.totals)
}

func TestCachedStoreSkipsUnscopedList(t *testing.T) {
	ctx := context.Background()
	cached, inner := newCachedTestStore(t)

	for i := 0; i < 2; i++ {
		_, err := cached.ListExpenses(ctx, "")
		require.NoError(t, err)
	}
	assert.Equal(t, 2, inner.lists)
}

// blockingStore parks ListExpenses and TotalSpent after they have read from the
// wrapped store until release is closed. Each read is announced on read.
type blockingStore struct {
	Store
	read    chan struct{}
	release chan struct{}
}

func (b *blockingStore) ListExpenses(ctx context.Context, userID string) ([]models.Expense, error) {
	expenses, err := b.Store.ListExpenses(ctx, userID)
	b.read <- struct{}{}
	<-b.release
	return expenses, err
}

func (b *blockingStore) TotalSpent(ctx context.Context, userID string) (models.Amount, error) {
	total, err := b.Store.TotalSpent(ctx, userID)
	b.read <- struct{}{}
	<-b.release
	return total, err
}

func TestCachedStoreDropsFillsOverlappingWrites(t *testing.T) {
	ctx := context.Background()
	inner := &blockingStore{Store: OpenTestSQLite(t), read: make(chan struct{}, 4), release: make(chan struct{})}
	cached, err := NewCachedStore(inner, time.Minute)
	require.NoError(t, err)
	t.Cleanup(cached.Close)

	done := make(chan error, 2)
	go func() {
		_, err := cached.ListExpenses(ctx, "user-1")
		done <- err
	}()
	go func() {
		_, err := cached.TotalSpent(ctx, "user-1")
		done <- err
	}()
	<-inner.read
	<-inner.read

	_, _, err = cached.InsertExpense(ctx, "user-1", newExpense(t, "Groceries", "42.50", "2024-05-01"))
	require.NoError(t, err)

	close(inner.release)
	require.NoError(t, <-done)
	require.NoError(t, <-done)

	expenses, err := cached.ListExpenses(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, expenses, 1)

	total, err := cached.TotalSpent(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "42.50", total.String())
}

func TestCachedStoreClearDropsInFlightFill(t *testing.T) {
	ctx := context.Background()
	inner := &blockingStore{Store: OpenTestSQLite(t), read: make(chan struct{}, 4), release: make(chan struct{})}
	cached, err := NewCachedStore(inner, time.Minute)
	require.NoError(t, err)
	t.Cleanup(cached.Close)

	done := make(chan error, 1)
	go func() {
		_, err := cached.ListExpenses(ctx, "user-1")
		done <- err
	}()
	<-inner.read

	cached.Clear()
	close(inner.release)
	require.NoError(t, <-done)

	_, ok := cached.cache.Get(listKey("user-1"))
	assert.False(t, ok)
}

func TestWithCache(t *testing.T) {
	store := OpenTestSQLite(t)
	t.Cleanup(store.Close)

	s, err := WithCache(store, 0)
	require.NoError(t, err)
	assert.Same(t, store, s)

	s, err = WithCache(store, time.Minute)
	require.NoError(t, err)
	assert.IsType(t, &CachedStore{}, s)
	s.(*CachedStore).cache.Close()

	_, err = NewCachedStore(store, 0)
	assert.ErrorContains(t, err, "must be positive")
}
