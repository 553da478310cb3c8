// Package transient provides the per-event scratch store that analysis
// steps use for intermediate objects.
package transient

import (
	"fmt"
	"sort"
)

// Store maps object keys to objects produced while processing one event.
// The replay loop owns the store and clears it after every event.
// A Store is not safe for concurrent use.
type Store struct {
	objects map[string]any
	clears  int64
}

// New creates an empty store.
func New() *Store {
	return &Store{objects: make(map[string]any, 32)}
}

// Record adds an object under key. Recording over an existing key fails:
// within one event every key is written once.
func (s *Store) Record(key string, obj any) error {
	if _, ok := s.objects[key]; ok {
		return fmt.Errorf("transient: key %q already recorded", key)
	}
	s.objects[key] = obj
	return nil
}

// Put adds or replaces an object under key.
func (s *Store) Put(key string, obj any) {
	s.objects[key] = obj
}

// Get returns the object under key.
func (s *Store) Get(key string) (any, bool) {
	obj, ok := s.objects[key]
	return obj, ok
}

// Contains reports whether key is recorded.
func (s *Store) Contains(key string) bool {
	_, ok := s.objects[key]
	return ok
}

// Len returns the number of recorded objects.
func (s *Store) Len() int {
	return len(s.objects)
}

// Keys returns the recorded keys in sorted order.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clear removes every object. It is idempotent and cannot fail.
func (s *Store) Clear() {
	clear(s.objects)
	s.clears++
}

// Clears returns how many times Clear has been called.
func (s *Store) Clears() int64 {
	return s.clears
}

// Retrieve returns the object under key as T.
func Retrieve[T any](s *Store, key string) (T, error) {
	var zero T
	obj, ok := s.objects[key]
	if !ok {
		return zero, fmt.Errorf("transient: key %q not recorded", key)
	}
	typed, ok := obj.(T)
	if !ok {
		return zero, fmt.Errorf("transient: key %q holds %T, not %T", key, obj, zero)
	}
	return typed, nil
}
