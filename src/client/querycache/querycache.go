// Package querycache is a keyed store of client query results with change
// notifications, the shape UI code re-renders from.
package querycache

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

type Key string

const (
	AllExpenses   Key = "all-expenses"
	TotalSpent    Key = "total-spent"
	PendingCreate Key = "pending-create"
)

type Cache struct {
	mu      sync.RWMutex
	entries map[Key]any
	subs    map[int]func(Key)
	nextSub int

	fetches singleflight.Group
}

func New() *Cache {
	return &Cache{entries: map[Key]any{}, subs: map[int]func(Key){}}
}

func (c *Cache) GetQueryData(key Key) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *Cache) SetQueryData(key Key, value any) {
	c.mu.Lock()
	c.entries[key] = value
	c.mu.Unlock()
	c.notify(key)
}

// RemoveQueries drops key. Subscribers are told only if something was removed.
func (c *Cache) RemoveQueries(key Key) {
	c.mu.Lock()
	_, ok := c.entries[key]
	delete(c.entries, key)
	c.mu.Unlock()
	if ok {
		c.notify(key)
	}
}

// EnsureQueryData returns the cached value for key, fetching and storing it on a
// miss. Concurrent misses on the same key share one fetch. The shared fetch keeps
// the first caller's values but not its cancellation; each caller still stops
// waiting when its own ctx is done.
func (c *Cache) EnsureQueryData(ctx context.Context, key Key, fetch func(context.Context) (any, error)) (any, error) {
	if v, ok := c.GetQueryData(key); ok {
		return v, nil
	}

	fetchCtx := context.WithoutCancel(ctx)
	ch := c.fetches.DoChan(string(key), func() (any, error) {
		v, err := fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		c.SetQueryData(key, v)
		return v, nil
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Subscribe registers fn to be called after every change. fn runs on the goroutine
// that made the change and must not block.
func (c *Cache) Subscribe(fn func(Key)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *Cache) notify(key Key) {
	c.mu.RLock()
	subs := make([]func(Key), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.RUnlock()

	for _, fn := range subs {
		fn(key)
	}
}

// Get is GetQueryData with the value asserted to T.
func Get[T any](c *Cache, key Key) (T, bool) {
	v, ok := c.GetQueryData(key)
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// Ensure is EnsureQueryData for a typed fetch.
func Ensure[T any](ctx context.Context, c *Cache, key Key, fetch func(context.Context) (T, error)) (T, error) {
	v, err := c.EnsureQueryData(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	t, _ := v.(T)
	return t, nil
}
