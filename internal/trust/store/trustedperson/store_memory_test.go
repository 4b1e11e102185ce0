package trustedperson

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"mywill/internal/trust/models"
	"mywill/pkg/platform/sentinel"
)

type TrustedPersonStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	now   time.Time
}

func TestTrustedPersonStoreSuite(t *testing.T) {
	suite.Run(t, new(TrustedPersonStoreSuite))
}

func (s *TrustedPersonStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)
}

func (s *TrustedPersonStoreSuite) add(owner, email string, offset time.Duration) *models.TrustedPerson {
	p := models.NewTrustedPerson(owner, email, s.now.Add(offset))
	s.Require().NoError(s.store.Create(s.ctx, p))
	return p
}

func (s *TrustedPersonStoreSuite) TestCreateAndLookups() {
	p := s.add("o@example.com", "t1@example.com", 0)

	s.Run("by id", func() {
		found, err := s.store.FindByID(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Equal("t1@example.com", found.Email)
	})

	s.Run("by owner and email", func() {
		found, err := s.store.FindByOwnerAndEmail(s.ctx, "o@example.com", "t1@example.com")
		s.Require().NoError(err)
		s.Equal(p.ID, found.ID)
	})

	s.Run("duplicate pair conflicts", func() {
		err := s.store.Create(s.ctx, models.NewTrustedPerson("o@example.com", "t1@example.com", s.now))
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("unknown id", func() {
		_, err := s.store.FindByID(s.ctx, uuid.New())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *TrustedPersonStoreSuite) TestListing() {
	s.add("o@example.com", "t2@example.com", time.Second)
	s.add("o@example.com", "t1@example.com", 0)
	s.add("other@example.com", "t1@example.com", 0)

	people, err := s.store.ListByOwner(s.ctx, "o@example.com")
	s.Require().NoError(err)
	s.Require().Len(people, 2)
	s.Equal("t1@example.com", people[0].Email)
	s.Equal("t2@example.com", people[1].Email)

	owners, err := s.store.ListOwnersTrusting(s.ctx, "t1@example.com")
	s.Require().NoError(err)
	s.Equal([]string{"o@example.com", "other@example.com"}, owners)

	owners, err = s.store.ListOwnersTrusting(s.ctx, "nobody@example.com")
	s.Require().NoError(err)
	s.Empty(owners)
}

func (s *TrustedPersonStoreSuite) TestConfirmAndReset() {
	a := s.add("o@example.com", "a@example.com", 0)
	b := s.add("o@example.com", "b@example.com", 0)
	other := s.add("other@example.com", "a@example.com", 0)

	for _, p := range []*models.TrustedPerson{a, b, other} {
		p.ConfirmedDeath = true
		s.Require().NoError(s.store.Update(s.ctx, p))
	}

	s.Require().NoError(s.store.ResetConfirmations(s.ctx, "o@example.com"))

	people, err := s.store.ListByOwner(s.ctx, "o@example.com")
	s.Require().NoError(err)
	for _, p := range people {
		s.False(p.ConfirmedDeath)
	}
	found, err := s.store.FindByID(s.ctx, other.ID)
	s.Require().NoError(err)
	s.True(found.ConfirmedDeath, "other owners are untouched")
}

func (s *TrustedPersonStoreSuite) TestDelete() {
	p := s.add("o@example.com", "a@example.com", 0)
	s.Require().NoError(s.store.Delete(s.ctx, p.ID))
	s.ErrorIs(s.store.Delete(s.ctx, p.ID), sentinel.ErrNotFound)

	_, err := s.store.FindByOwnerAndEmail(s.ctx, "o@example.com", "a@example.com")
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.add("o@example.com", "a@example.com", 0)
}

func (s *TrustedPersonStoreSuite) TestDeleteByOwner() {
	s.add("o@example.com", "a@example.com", 0)
	s.add("o@example.com", "b@example.com", time.Second)
	other := s.add("x@example.com", "o@example.com", 0)

	s.Require().NoError(s.store.DeleteByOwner(s.ctx, "o@example.com"))

	people, err := s.store.ListByOwner(s.ctx, "o@example.com")
	s.Require().NoError(err)
	s.Empty(people)
	_, err = s.store.FindByOwnerAndEmail(s.ctx, "o@example.com", "a@example.com")
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.FindByID(s.ctx, other.ID)
	s.NoError(err, "edges naming the owner as trusted person stay")
}
