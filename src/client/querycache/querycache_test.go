package querycache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetRemove(t *testing.T) {
	c := New()

	_, ok := c.GetQueryData(AllExpenses)
	assert.False(t, ok)

	c.SetQueryData(AllExpenses, []string{"a"})
	v, ok := Get[[]string](c, AllExpenses)
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, v)

	_, ok = Get[int](c, AllExpenses)
	assert.False(t, ok, "wrong type is a miss")

	c.RemoveQueries(AllExpenses)
	_, ok = c.GetQueryData(AllExpenses)
	assert.False(t, ok)
}

func TestEnsureFetchesOnce(t *testing.T) {
	c := New()
	calls := 0
	fetch := func(context.Context) (int, error) {
		calls++
		return 42, nil
	}

	for i := 0; i < 3; i++ {
		v, err := Ensure(context.Background(), c, TotalSpent, fetch)
		require.NoError(t, err)
		assert.Equal(t, 42, v)
	}
	assert.Equal(t, 1, calls)
}

func TestEnsureDoesNotCacheErrors(t *testing.T) {
	c := New()
	_, err := Ensure(context.Background(), c, TotalSpent, func(context.Context) (int, error) {
		return 0, errors.New("offline")
	})
	assert.EqualError(t, err, "offline")

	_, ok := c.GetQueryData(TotalSpent)
	assert.False(t, ok)
}

func TestEnsureSharesConcurrentFetch(t *testing.T) {
	c := New()
	var calls atomic.Int32
	release := make(chan struct{})

	fetch := func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 7, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := Ensure(context.Background(), c, AllExpenses, fetch)
			assert.NoError(t, err)
			assert.Equal(t, 7, v)
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.LessOrEqual(t, calls.Load(), int32(5))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestEnsureSurvivesFirstCallerCancel(t *testing.T) {
	c := New()
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	fetch := func(ctx context.Context) (int, error) {
		once.Do(func() { close(started) })
		<-release
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		return 7, nil
	}

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := Ensure(first, c, AllExpenses, fetch)
		firstErr <- err
	}()
	<-started

	second := make(chan int, 1)
	go func() {
		v, err := Ensure(context.Background(), c, AllExpenses, fetch)
		assert.NoError(t, err)
		second <- v
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	assert.Equal(t, 7, <-second)

	v, ok := Get[int](c, AllExpenses)
	require.True(t, ok)
	assert.Equal(t, 7, v)
}

func TestSubscribe(t *testing.T) {
	c := New()
	var seen []Key
	unsubscribe := c.Subscribe(func(k Key) { seen = append(seen, k) })

	c.SetQueryData(PendingCreate, "pending")
	c.RemoveQueries(PendingCreate)
	c.RemoveQueries(PendingCreate) // nothing to remove, no notification
	assert.Equal(t, []Key{PendingCreate, PendingCreate}, seen)

	unsubscribe()
	c.SetQueryData(AllExpenses, 1)
	assert.Len(t, seen, 2)
}
