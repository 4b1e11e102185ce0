package store

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"

	"mywill/internal/will/models"
	"mywill/pkg/platform/sentinel"
)

// InMemory keeps wills in a map keyed by id.
type InMemory struct {
	mu    sync.RWMutex
	wills map[uuid.UUID]*models.Will
}

func NewInMemory() *InMemory {
	return &InMemory{wills: make(map[uuid.UUID]*models.Will)}
}

func (s *InMemory) Create(_ context.Context, will *models.Will) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.wills[will.ID]; ok {
		return fmt.Errorf("will %s: %w", will.ID, sentinel.ErrConflict)
	}
	c := will.Clone()
	c.AllowedEmails = dedupeSorted(c.AllowedEmails)
	s.wills[will.ID] = c
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id uuid.UUID) (*models.Will, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wills[id]
	if !ok {
		return nil, fmt.Errorf("will %s: %w", id, sentinel.ErrNotFound)
	}
	return w.Clone(), nil
}

// Update writes title, content and updated_at. The allow-list is managed by
// AddAllowedEmail.
func (s *InMemory) Update(_ context.Context, will *models.Will) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wills[will.ID]
	if !ok {
		return fmt.Errorf("will %s: %w", will.ID, sentinel.ErrNotFound)
	}
	w.Title = will.Title
	w.Content = will.Content
	w.UpdatedAt = will.UpdatedAt
	return nil
}

func (s *InMemory) AddAllowedEmail(_ context.Context, id uuid.UUID, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wills[id]
	if !ok {
		return fmt.Errorf("will %s: %w", id, sentinel.ErrNotFound)
	}
	w.AllowedEmails = dedupeSorted(append(w.AllowedEmails, email))
	return nil
}

// DeleteByOwner drops every will the owner wrote along with its allow-list.
func (s *InMemory) DeleteByOwner(_ context.Context, ownerEmail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, w := range s.wills {
		if w.OwnerEmail == ownerEmail {
			delete(s.wills, id)
		}
	}
	return nil
}

func (s *InMemory) ListByOwner(_ context.Context, ownerEmail string) ([]*models.Will, error) {
	return s.list(func(w *models.Will) bool { return w.OwnerEmail == ownerEmail }), nil
}

func (s *InMemory) ListSharedWith(_ context.Context, email string) ([]*models.Will, error) {
	return s.list(func(w *models.Will) bool { return w.Allows(email) }), nil
}

func (s *InMemory) list(match func(*models.Will) bool) []*models.Will {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.Will{}
	for _, w := range s.wills {
		if match(w) {
			out = append(out, w.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func dedupeSorted(emails []string) []string {
	if len(emails) == 0 {
		return []string{}
	}
	out := slices.Clone(emails)
	slices.Sort(out)
	return slices.Compact(out)
}
