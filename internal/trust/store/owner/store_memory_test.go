package owner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"mywill/internal/trust/models"
	"mywill/pkg/platform/sentinel"
)

type OwnerStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	now   time.Time
}

func TestOwnerStoreSuite(t *testing.T) {
	suite.Run(t, new(OwnerStoreSuite))
}

func (s *OwnerStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)
}

func (s *OwnerStoreSuite) TestCreateAndFind() {
	s.Run("creates and finds owner", func() {
		s.Require().NoError(s.store.Create(s.ctx, models.NewOwner("a@example.com", time.Hour, s.now)))

		found, err := s.store.FindByEmail(s.ctx, "a@example.com")
		s.Require().NoError(err)
		s.Equal(int64(3600), found.DeathTimeoutSeconds)

		exists, err := s.store.Exists(s.ctx, "a@example.com")
		s.Require().NoError(err)
		s.True(exists)
	})

	s.Run("rejects duplicate", func() {
		err := s.store.Create(s.ctx, models.NewOwner("a@example.com", time.Hour, s.now))
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("unknown owner", func() {
		_, err := s.store.FindByEmail(s.ctx, "nobody@example.com")
		s.ErrorIs(err, sentinel.ErrNotFound)

		err = s.store.Update(s.ctx, models.NewOwner("nobody@example.com", time.Hour, s.now))
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *OwnerStoreSuite) TestReturnedRecordsAreCopies() {
	s.Require().NoError(s.store.Create(s.ctx, models.NewOwner("a@example.com", time.Hour, s.now)))

	found, err := s.store.FindByEmail(s.ctx, "a@example.com")
	s.Require().NoError(err)
	found.StampConsensus(s.now)

	again, err := s.store.FindByEmail(s.ctx, "a@example.com")
	s.Require().NoError(err)
	s.Nil(again.DeathConfirmedAt)
}

func (s *OwnerStoreSuite) TestListPendingDeath() {
	alive := models.NewOwner("alive@example.com", time.Hour, s.now)
	later := models.NewOwner("later@example.com", time.Hour, s.now)
	later.StampConsensus(s.now.Add(time.Minute))
	earlier := models.NewOwner("earlier@example.com", time.Hour, s.now)
	earlier.StampConsensus(s.now)
	dead := models.NewOwner("dead@example.com", time.Hour, s.now)
	dead.StampConsensus(s.now)
	dead.Finalize()

	for _, o := range []*models.Owner{alive, later, earlier, dead} {
		s.Require().NoError(s.store.Create(s.ctx, o))
	}

	pending, err := s.store.ListPendingDeath(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(pending, 2)
	s.Equal("earlier@example.com", pending[0].Email)
	s.Equal("later@example.com", pending[1].Email)
}

func (s *OwnerStoreSuite) TestDelete() {
	s.Require().NoError(s.store.Create(s.ctx, models.NewOwner("a@example.com", time.Hour, s.now)))
	s.Require().NoError(s.store.Delete(s.ctx, "a@example.com"))
	s.ErrorIs(s.store.Delete(s.ctx, "a@example.com"), sentinel.ErrNotFound)

	exists, err := s.store.Exists(s.ctx, "a@example.com")
	s.Require().NoError(err)
	s.False(exists)
	s.NoError(s.store.Create(s.ctx, models.NewOwner("a@example.com", time.Hour, s.now)), "email is free again")
}
