package memory

import (
	"context"
	"sync"

	audit "mywill/pkg/platform/audit"
)

// InMemoryStore keeps audit events per owner. Used in development and tests.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[string][]audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[string][]audit.Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.OwnerEmail] = append(s.events[event.OwnerEmail], event)
	return nil
}

func (s *InMemoryStore) ListByOwner(_ context.Context, ownerEmail string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events[ownerEmail]...), nil
}

// ListAll returns all audit events across all owners.
func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []audit.Event
	for _, ownerEvents := range s.events {
		all = append(all, ownerEvents...)
	}
	return all, nil
}
