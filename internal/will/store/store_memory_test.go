package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"mywill/internal/will/models"
	"mywill/pkg/platform/sentinel"
)

type WillStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	now   time.Time
}

func TestWillStoreSuite(t *testing.T) {
	suite.Run(t, new(WillStoreSuite))
}

func (s *WillStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
}

func (s *WillStoreSuite) TestLifecycle() {
	w := models.NewWill("o@example.com", "t", "c", []string{"b@example.com", "a@example.com"}, s.now)
	s.Require().NoError(s.store.Create(s.ctx, w))
	s.ErrorIs(s.store.Create(s.ctx, w), sentinel.ErrConflict)

	found, err := s.store.FindByID(s.ctx, w.ID)
	s.Require().NoError(err)
	s.Equal([]string{"a@example.com", "b@example.com"}, found.AllowedEmails)

	found.AllowedEmails[0] = "mutated@example.com"
	again, err := s.store.FindByID(s.ctx, w.ID)
	s.Require().NoError(err)
	s.Equal("a@example.com", again.AllowedEmails[0], "returned records are copies")

	s.Require().NoError(s.store.AddAllowedEmail(s.ctx, w.ID, "a@example.com"))
	s.Require().NoError(s.store.AddAllowedEmail(s.ctx, w.ID, "c@example.com"))
	found, err = s.store.FindByID(s.ctx, w.ID)
	s.Require().NoError(err)
	s.Equal([]string{"a@example.com", "b@example.com", "c@example.com"}, found.AllowedEmails)

	found.Title = "new"
	found.AllowedEmails = nil
	s.Require().NoError(s.store.Update(s.ctx, found))
	found, err = s.store.FindByID(s.ctx, w.ID)
	s.Require().NoError(err)
	s.Equal("new", found.Title)
	s.Len(found.AllowedEmails, 3, "update leaves allow-list alone")

	_, err = s.store.FindByID(s.ctx, uuid.New())
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.ErrorIs(s.store.AddAllowedEmail(s.ctx, uuid.New(), "a@example.com"), sentinel.ErrNotFound)
}

func (s *WillStoreSuite) TestListing() {
	first := models.NewWill("o@example.com", "first", "c", []string{"f@example.com"}, s.now)
	second := models.NewWill("o@example.com", "second", "c", nil, s.now.Add(time.Minute))
	other := models.NewWill("x@example.com", "other", "c", []string{"f@example.com"}, s.now)
	for _, w := range []*models.Will{second, first, other} {
		s.Require().NoError(s.store.Create(s.ctx, w))
	}

	mine, err := s.store.ListByOwner(s.ctx, "o@example.com")
	s.Require().NoError(err)
	s.Require().Len(mine, 2)
	s.Equal("first", mine[0].Title)
	s.Equal([]string{}, mine[1].AllowedEmails)

	shared, err := s.store.ListSharedWith(s.ctx, "f@example.com")
	s.Require().NoError(err)
	s.Len(shared, 2)

	none, err := s.store.ListSharedWith(s.ctx, "nobody@example.com")
	s.Require().NoError(err)
	s.NotNil(none)
	s.Empty(none)
}

func (s *WillStoreSuite) TestDeleteByOwner() {
	mine := models.NewWill("o@example.com", "t", "c", []string{"r@example.com"}, s.now)
	theirs := models.NewWill("x@example.com", "t", "c", nil, s.now)
	s.Require().NoError(s.store.Create(s.ctx, mine))
	s.Require().NoError(s.store.Create(s.ctx, theirs))

	s.Require().NoError(s.store.DeleteByOwner(s.ctx, "o@example.com"))
	s.Require().NoError(s.store.DeleteByOwner(s.ctx, "o@example.com"))

	_, err := s.store.FindByID(s.ctx, mine.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
	shared, err := s.store.ListSharedWith(s.ctx, "r@example.com")
	s.Require().NoError(err)
	s.Empty(shared)
	_, err = s.store.FindByID(s.ctx, theirs.ID)
	s.NoError(err)
}
