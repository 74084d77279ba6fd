package db

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"expenses-server/src/metrics"
	"expenses-server/src/models"

	"github.com/dgraph-io/ristretto/v2"
)

// CachedStore serves per-user lists and totals from a ristretto cache. Writes handled
// by this replica invalidate the caller's entries; writes on other replicas are only
// seen once the TTL expires.
type CachedStore struct {
	Store
	cache *ristretto.Cache[string, any]
	ttl   time.Duration

	// mu orders miss-fills against invalidation. A fill is stored only if the
	// owner's generation is unchanged since the store was queried.
	mu    sync.Mutex
	epoch uint64
	gens  map[string]uint64
}

// WithCache wraps store in a CachedStore. A zero ttl disables caching and returns
// store unchanged.
func WithCache(store Store, ttl time.Duration) (Store, error) {
	if ttl == 0 {
		return store, nil
	}
	cached, err := NewCachedStore(store, ttl)
	if err != nil {
		return nil, err
	}
	return cached, nil
}

func NewCachedStore(store Store, ttl time.Duration) (*CachedStore, error) {
	// ristretto keeps entries with a zero ttl forever
	if ttl <= 0 {
		return nil, fmt.Errorf("invalid cache ttl %v: must be positive", ttl)
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, any]{
		NumCounters:        10000, // number of keys to track frequency of
		MaxCost:            10000,
		BufferItems:        64, // number of keys per Get buffer
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	return &CachedStore{Store: store, cache: cache, ttl: ttl, gens: map[string]uint64{}}, nil
}

type generation struct{ epoch, gen uint64 }

func (s *CachedStore) currentGeneration(userID string) generation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return generation{s.epoch, s.gens[userID]}
}

func listKey(userID string) string  { return "expenses:" + userID }
func totalKey(userID string) string { return "total:" + userID }

// fill stores value unless userID's entries were invalidated after g was read.
func (s *CachedStore) fill(userID string, g generation, key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if (generation{s.epoch, s.gens[userID]}) != g {
		return
	}
	s.cache.SetWithTTL(key, value, 1, s.ttl)
	s.cache.Wait()
}

func (s *CachedStore) ListExpenses(ctx context.Context, userID string) ([]models.Expense, error) {
	// the unscoped admin listing is never cached
	if userID == "" {
		return s.Store.ListExpenses(ctx, userID)
	}

	if v, ok := s.cache.Get(listKey(userID)); ok {
		if cached, ok := v.([]models.Expense); ok {
			metrics.CacheLookups.WithLabelValues("list", "hit").Inc()
			out := make([]models.Expense, len(cached))
			copy(out, cached)
			return out, nil
		}
	}
	metrics.CacheLookups.WithLabelValues("list", "miss").Inc()

	g := s.currentGeneration(userID)
	expenses, err := s.Store.ListExpenses(ctx, userID)
	if err != nil {
		return nil, err
	}
	cached := make([]models.Expense, len(expenses))
	copy(cached, expenses)
	s.fill(userID, g, listKey(userID), cached)
	return expenses, nil
}

func (s *CachedStore) TotalSpent(ctx context.Context, userID string) (models.Amount, error) {
	if v, ok := s.cache.Get(totalKey(userID)); ok {
		if total, ok := v.(models.Amount); ok {
			metrics.CacheLookups.WithLabelValues("total", "hit").Inc()
			return total, nil
		}
	}
	metrics.CacheLookups.WithLabelValues("total", "miss").Inc()

	g := s.currentGeneration(userID)
	total, err := s.Store.TotalSpent(ctx, userID)
	if err != nil {
		return models.Amount{}, err
	}
	s.fill(userID, g, totalKey(userID), total)
	return total, nil
}

func (s *CachedStore) InsertExpense(ctx context.Context, userID string, ne models.NewExpense) (*models.Expense, bool, error) {
	e, replayed, err := s.Store.InsertExpense(ctx, userID, ne)
	if err == nil && !replayed {
		s.Invalidate(userID)
	}
	return e, replayed, err
}

func (s *CachedStore) DeleteExpense(ctx context.Context, userID string, id int64) (*models.Expense, error) {
	e, err := s.Store.DeleteExpense(ctx, userID, id)
	if err == nil {
		s.Invalidate(userID)
	}
	return e, err
}

// Invalidate drops the cached list and total for userID.
func (s *CachedStore) Invalidate(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gens[userID]++
	s.cache.Del(listKey(userID))
	s.cache.Del(totalKey(userID))
}

// Clear drops every cached entry.
func (s *CachedStore) Clear() {
	s.mu.Lock()
	s.epoch++
	s.gens = map[string]uint64{}
	s.cache.Clear()
	s.mu.Unlock()
	slog.Info("Cleared expense cache")
}

func (s *CachedStore) Close() {
	s.cache.Close()
	s.Store.Close()
}
