package memory

import (
	"context"
	"sync"
)

// CounterStore is an in-memory implementation of storage.CounterStore.
// Useful for testing and development.
type CounterStore struct {
	mu     sync.RWMutex
	counts map[string]int64
}

// NewCounterStore creates an empty in-memory counter store.
func NewCounterStore() *CounterStore {
	return &CounterStore{
		counts: make(map[string]int64),
	}
}

func (s *CounterStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counts = make(map[string]int64)
	return nil
}

func (s *CounterStore) Increment(ctx context.Context, keyword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counts[keyword]++
	return nil
}

func (s *CounterStore) Get(ctx context.Context, keyword string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.counts[keyword], nil
}

func (s *CounterStore) GetAll(ctx context.Context) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Return a copy to prevent external modification
	counts := make(map[string]int64, len(s.counts))
	for keyword, count := range s.counts {
		counts[keyword] = count
	}
	return counts, nil
}
