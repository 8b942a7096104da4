// Package memory implements the store contract in process memory.
// Useful for tests and embedding; nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/creditkit/creditkit/store"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store keeps objects in a map, deep-copying on every load and store so
// callers never alias internal state.
type Store struct {
	mu      sync.RWMutex
	objects map[string]store.Object
	closed  bool
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{objects: make(map[string]store.Object)}
}

// Init opens the store, clearing any earlier Close. Contents written
// before the close are still there, so a cache can reattach to the same
// store across restarts.
func (s *Store) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = false
	return nil
}

// LoadObject fetches a deep copy of the stored object.
func (s *Store) LoadObject(_ context.Context, id string, allowMissing bool) (store.Object, error) {
	if err := store.CheckID(id); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, store.ErrStoreClosed
	}
	obj, ok := s.objects[id]
	if !ok {
		if allowMissing {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	return store.Clone(obj), nil
}

// StoreObject saves a deep copy of the object.
func (s *Store) StoreObject(_ context.Context, id string, obj store.Object) error {
	if err := store.CheckID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrStoreClosed
	}
	s.objects[id] = store.Clone(obj)
	return nil
}

// Ping reports whether the store is still open.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.ErrStoreClosed
	}
	return nil
}

// Close marks the store closed. Contents are retained so a final flush
// stays readable and Init can reopen the store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Len returns the number of stored objects. Test helper.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Has reports whether an object is stored under id. Test helper.
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[id]
	return ok
}
