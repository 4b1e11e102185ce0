package owner

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"mywill/internal/trust/models"
	"mywill/pkg/platform/sentinel"
)

// InMemory keeps owners in a map. Records are copied in and out so callers
// cannot mutate stored state without Update.
type InMemory struct {
	mu     sync.RWMutex
	owners map[string]*models.Owner
}

func NewInMemory() *InMemory {
	return &InMemory{owners: make(map[string]*models.Owner)}
}

func (s *InMemory) Create(_ context.Context, owner *models.Owner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.owners[owner.Email]; ok {
		return fmt.Errorf("owner %s: %w", owner.Email, sentinel.ErrConflict)
	}
	s.owners[owner.Email] = clone(owner)
	return nil
}

func (s *InMemory) FindByEmail(_ context.Context, email string) (*models.Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.owners[email]
	if !ok {
		return nil, fmt.Errorf("owner %s: %w", email, sentinel.ErrNotFound)
	}
	return clone(o), nil
}

func (s *InMemory) Exists(_ context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.owners[email]
	return ok, nil
}

func (s *InMemory) Update(_ context.Context, owner *models.Owner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.owners[owner.Email]; !ok {
		return fmt.Errorf("owner %s: %w", owner.Email, sentinel.ErrNotFound)
	}
	s.owners[owner.Email] = clone(owner)
	return nil
}

// Delete removes the owner record. Deleting a missing owner reports NotFound.
func (s *InMemory) Delete(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.owners[email]; !ok {
		return fmt.Errorf("owner %s: %w", email, sentinel.ErrNotFound)
	}
	delete(s.owners, email)
	return nil
}

// ListPendingDeath returns owners with a consensus timestamp who are not yet
// dead, oldest confirmation first.
func (s *InMemory) ListPendingDeath(_ context.Context) ([]*models.Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var pending []*models.Owner
	for _, o := range s.owners {
		if o.IsPending() {
			pending = append(pending, clone(o))
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].DeathConfirmedAt.Before(*pending[j].DeathConfirmedAt)
	})
	return pending, nil
}

func clone(o *models.Owner) *models.Owner {
	c := *o
	if o.DeathConfirmedAt != nil {
		t := *o.DeathConfirmedAt
		c.DeathConfirmedAt = &t
	}
	return &c
}
