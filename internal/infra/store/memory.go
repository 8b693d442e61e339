// Package store provides the in-process session and profile stores and
// the per-key lock that serializes events of one phone number.
package store

import (
	"context"
	"sync"
)

// Memory is a map-backed Store guarded by a RWMutex.
// Entries have no TTL and no bound; they live until deleted.
type Memory[T any] struct {
	mu    sync.RWMutex
	items map[string]T
	clone func(T) T
}

// NewMemory creates an empty store. clone, when non-nil, copies values on
// the way in and out so callers never share slices with the store.
func NewMemory[T any](clone func(T) T) *Memory[T] {
	if clone == nil {
		clone = func(v T) T { return v }
	}
	return &Memory[T]{
		items: make(map[string]T),
		clone: clone,
	}
}

// Get returns the value for key. ok is false when absent.
func (s *Memory[T]) Get(_ context.Context, key string) (T, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.items[key]
	if !ok {
		var zero T
		return zero, false, nil
	}
	return s.clone(v), true, nil
}

// Put stores value under key, replacing any previous value.
func (s *Memory[T]) Put(_ context.Context, key string, value T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[key] = s.clone(value)
	return nil
}

// Delete removes key. Deleting an absent key is a no-op.
func (s *Memory[T]) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, key)
	return nil
}

// Len reports the number of stored entries.
func (s *Memory[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
