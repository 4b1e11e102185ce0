//go:build integration

package trustedperson_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"mywill/internal/trust/models"
	"mywill/internal/trust/store/owner"
	"mywill/internal/trust/store/trustedperson"
	"mywill/pkg/platform/sentinel"
	"mywill/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	owners   *owner.PostgresStore
	store    *trustedperson.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.owners = owner.NewPostgres(s.postgres.DB)
	s.store = trustedperson.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "trusted_people", "owners"))
	now := time.Now().UTC()
	for _, email := range []string{"o@example.com", "other@example.com"} {
		s.Require().NoError(s.owners.Create(ctx, models.NewOwner(email, time.Hour, now)))
	}
}

func (s *PostgresStoreSuite) TestLifecycle() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	a := models.NewTrustedPerson("o@example.com", "a@example.com", now)
	b := models.NewTrustedPerson("o@example.com", "b@example.com", now.Add(time.Second))
	s.Require().NoError(s.store.Create(ctx, a))
	s.Require().NoError(s.store.Create(ctx, b))
	s.Require().NoError(s.store.Create(ctx, models.NewTrustedPerson("other@example.com", "a@example.com", now)))

	s.ErrorIs(s.store.Create(ctx, models.NewTrustedPerson("o@example.com", "a@example.com", now)), sentinel.ErrConflict)

	people, err := s.store.ListByOwner(ctx, "o@example.com")
	s.Require().NoError(err)
	s.Require().Len(people, 2)
	s.Equal(a.ID, people[0].ID)

	owners, err := s.store.ListOwnersTrusting(ctx, "a@example.com")
	s.Require().NoError(err)
	s.Equal([]string{"o@example.com", "other@example.com"}, owners)

	a.ConfirmedDeath = true
	s.Require().NoError(s.store.Update(ctx, a))
	found, err := s.store.FindByOwnerAndEmail(ctx, "o@example.com", "a@example.com")
	s.Require().NoError(err)
	s.True(found.ConfirmedDeath)

	s.Require().NoError(s.store.ResetConfirmations(ctx, "o@example.com"))
	found, err = s.store.FindByID(ctx, a.ID)
	s.Require().NoError(err)
	s.False(found.ConfirmedDeath)

	s.Require().NoError(s.store.Delete(ctx, b.ID))
	s.ErrorIs(s.store.Delete(ctx, b.ID), sentinel.ErrNotFound)
	_, err = s.store.FindByID(ctx, uuid.New())
	s.ErrorIs(err, sentinel.ErrNotFound)
}
