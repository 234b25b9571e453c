// Copyright 2025 The agenthub-go Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// package storage provides a generic, type-safe key-value store used by the
// registry for agent entries and by the policy layer for principals. The
// in-memory implementation is safe for concurrent use; the map as a whole
// supports concurrent reads and writes across many keys.
package storage

import (
	"errors"
	"sync"
)

var (
	// ErrNotFound is returned when a key is not found in the store.
	ErrNotFound = errors.New("not found")
	// ErrExists is returned by SetIfAbsent when the key is already taken.
	ErrExists = errors.New("already exists")
)

// Store defines the interface for a generic key-value store over values of
// type V. It is implementation-agnostic so a different backend can be swapped
// in without touching callers.
type Store[V any] interface {
	// Get retrieves the value for key, or ErrNotFound.
	Get(key string) (V, error)
	// Set adds or replaces the value for key.
	Set(key string, value V) error
	// SetIfAbsent stores the value only when the key is free; it returns
	// ErrExists otherwise. The check and the insert are one atomic step.
	SetIfAbsent(key string, value V) error
	// Delete removes the value for key, or returns ErrNotFound.
	Delete(key string) error
	// Range calls fn for every entry until fn returns false. The order is
	// unspecified.
	Range(fn func(key string, value V) bool)
	// Len returns the number of stored entries.
	Len() int
}

// MemStore is an in-memory implementation of Store backed by a mutex-guarded
// map.
type MemStore[V any] struct {
	data map[string]V
	mu   sync.RWMutex
}

var _ Store[int] = (*MemStore[int])(nil)

// NewMemStore creates an empty in-memory store.
func NewMemStore[V any]() *MemStore[V] {
	return &MemStore[V]{
		data: make(map[string]V),
	}
}

// Get retrieves a value under a read lock so reads proceed concurrently.
func (s *MemStore[V]) Get(key string) (V, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.data[key]
	if !ok {
		var zero V
		return zero, ErrNotFound
	}
	return value, nil
}

// Set adds or replaces a value.
func (s *MemStore[V]) Set(key string, value V) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

// SetIfAbsent stores the value only when the key is not yet present.
func (s *MemStore[V]) SetIfAbsent(key string, value V) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; ok {
		return ErrExists
	}
	s.data[key] = value
	return nil
}

// Delete removes a value, reporting ErrNotFound for unknown keys so callers
// can distinguish a no-op from a removal.
func (s *MemStore[V]) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return ErrNotFound
	}
	delete(s.data, key)
	return nil
}

// Range iterates over a snapshot of the entries so fn may call back into the
// store without deadlocking.
func (s *MemStore[V]) Range(fn func(key string, value V) bool) {
	s.mu.RLock()
	snapshot := make(map[string]V, len(s.data))
	for k, v := range s.data {
		snapshot[k] = v
	}
	s.mu.RUnlock()

	for k, v := range snapshot {
		if !fn(k, v) {
			return
		}
	}
}

// Len returns the number of stored entries.
func (s *MemStore[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
