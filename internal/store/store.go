// Package store realizes the store slot of the registry: one state store per
// domain that declares a store descriptor, plus the root store shared by all
// domains.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/vk/xfiber/internal/registry"
	"github.com/vk/xfiber/internal/storage"
)

type snapshot struct {
	Version int            `json:"version"`
	State   map[string]any `json:"state"`
}

// Store is the state container of one domain. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	name    string
	desc    registry.StoreDescriptor
	state   map[string]any
	backend storage.Backend // nil when the store vanishes
	logger  *slog.Logger
}

func newStore(name string, desc registry.StoreDescriptor, backend storage.Backend, logger *slog.Logger) *Store {
	s := &Store{name: name, desc: desc, backend: backend, logger: logger}
	s.state = s.initial()
	return s
}

func (s *Store) initial() map[string]any {
	if s.desc.Initial == nil {
		return make(map[string]any)
	}
	state := s.desc.Initial()
	if state == nil {
		state = make(map[string]any)
	}
	return state
}

// Name returns the persistence key of the store.
func (s *Store) Name() string {
	return s.name
}

// Get returns the value stored at key.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.state[key]
	return v, ok
}

// Set stores value at key and persists the store when it is durable.
func (s *Store) Set(key string, value any) error {
	return s.Update(func(state map[string]any) { state[key] = value })
}

// Update applies fn to a copy of the state under the write lock. The copy
// replaces the state only once it has been persisted.
func (s *Store) Update(fn func(state map[string]any)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := maps.Clone(s.state)
	fn(next)
	return s.commitLocked(context.Background(), next)
}

// State returns a shallow copy of the current state.
func (s *Store) State() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.state)
}

// Reset restores the initial state.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitLocked(context.Background(), s.initial())
}

// Rehydrate replaces the state with the persisted snapshot, if one exists
// and was written by the same store version.
func (s *Store) Rehydrate(ctx context.Context) error {
	if s.backend == nil {
		return nil
	}
	raw, ok, err := s.backend.Load(ctx, s.name)
	if err != nil {
		return fmt.Errorf("rehydrate store %s: %w", s.name, err)
	}
	if !ok {
		return nil
	}
	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return fmt.Errorf("decode store %s: %w", s.name, err)
	}
	if snap.Version != s.desc.Version {
		s.logger.Warn("Persisted store version differs, keeping initial state.", "store", s.name, "persisted", snap.Version, "current", s.desc.Version)
		return nil
	}
	if snap.State == nil {
		snap.State = make(map[string]any)
	}

	s.mu.Lock()
	s.state = snap.State
	s.mu.Unlock()
	s.logger.Debug("Store rehydrated.", "store", s.name)
	return nil
}

// commitLocked persists next and then installs it as the state. A failed
// save leaves the state untouched.
func (s *Store) commitLocked(ctx context.Context, next map[string]any) error {
	if s.backend != nil {
		raw, err := json.Marshal(snapshot{Version: s.desc.Version, State: next})
		if err != nil {
			return fmt.Errorf("encode store %s: %w", s.name, err)
		}
		if err := s.backend.Save(ctx, s.name, raw); err != nil {
			return fmt.Errorf("persist store %s: %w", s.name, err)
		}
	}
	s.state = next
	return nil
}
