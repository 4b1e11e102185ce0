package trustedperson

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"mywill/internal/trust/models"
	"mywill/pkg/platform/sentinel"
)

type ownerEmailKey struct {
	owner string
	email string
}

// InMemory stores trusted-person edges indexed by id and by (owner, email).
type InMemory struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*models.TrustedPerson
	byOwner map[ownerEmailKey]uuid.UUID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:    make(map[uuid.UUID]*models.TrustedPerson),
		byOwner: make(map[ownerEmailKey]uuid.UUID),
	}
}

func (s *InMemory) Create(_ context.Context, person *models.TrustedPerson) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ownerEmailKey{owner: person.OwnerEmail, email: person.Email}
	if _, ok := s.byOwner[key]; ok {
		return fmt.Errorf("trusted person %s for %s: %w", person.Email, person.OwnerEmail, sentinel.ErrConflict)
	}
	c := *person
	s.byID[person.ID] = &c
	s.byOwner[key] = person.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id uuid.UUID) (*models.TrustedPerson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("trusted person %s: %w", id, sentinel.ErrNotFound)
	}
	c := *p
	return &c, nil
}

func (s *InMemory) FindByOwnerAndEmail(_ context.Context, ownerEmail, email string) (*models.TrustedPerson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byOwner[ownerEmailKey{owner: ownerEmail, email: email}]
	if !ok {
		return nil, fmt.Errorf("trusted person %s for %s: %w", email, ownerEmail, sentinel.ErrNotFound)
	}
	c := *s.byID[id]
	return &c, nil
}

// ListByOwner returns the owner's edges in insertion order.
func (s *InMemory) ListByOwner(_ context.Context, ownerEmail string) ([]*models.TrustedPerson, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var people []*models.TrustedPerson
	for _, p := range s.byID {
		if p.OwnerEmail == ownerEmail {
			c := *p
			people = append(people, &c)
		}
	}
	sortByCreated(people)
	return people, nil
}

func (s *InMemory) ListOwnersTrusting(_ context.Context, email string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	owners := []string{}
	for key := range s.byOwner {
		if key.email == email {
			owners = append(owners, key.owner)
		}
	}
	sort.Strings(owners)
	return owners, nil
}

func (s *InMemory) Update(_ context.Context, person *models.TrustedPerson) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.byID[person.ID]
	if !ok {
		return fmt.Errorf("trusted person %s: %w", person.ID, sentinel.ErrNotFound)
	}
	existing.ConfirmedDeath = person.ConfirmedDeath
	return nil
}

func (s *InMemory) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("trusted person %s: %w", id, sentinel.ErrNotFound)
	}
	delete(s.byOwner, ownerEmailKey{owner: p.OwnerEmail, email: p.Email})
	delete(s.byID, id)
	return nil
}

// DeleteByOwner drops every edge the owner created.
func (s *InMemory) DeleteByOwner(_ context.Context, ownerEmail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.byID {
		if p.OwnerEmail == ownerEmail {
			delete(s.byOwner, ownerEmailKey{owner: p.OwnerEmail, email: p.Email})
			delete(s.byID, id)
		}
	}
	return nil
}

// ResetConfirmations clears confirmedDeath on every edge of the owner.
func (s *InMemory) ResetConfirmations(_ context.Context, ownerEmail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.byID {
		if p.OwnerEmail == ownerEmail {
			p.ConfirmedDeath = false
		}
	}
	return nil
}

func sortByCreated(people []*models.TrustedPerson) {
	sort.SliceStable(people, func(i, j int) bool {
		if people[i].CreatedAt.Equal(people[j].CreatedAt) {
			return people[i].Email < people[j].Email
		}
		return people[i].CreatedAt.Before(people[j].CreatedAt)
	})
}
