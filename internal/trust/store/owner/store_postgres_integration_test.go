//go:build integration

package owner_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"mywill/internal/trust/models"
	"mywill/internal/trust/store/owner"
	"mywill/pkg/platform/sentinel"
	txcontext "mywill/pkg/platform/tx"
	"mywill/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *owner.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = owner.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "trusted_people", "owners"))
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	o := models.NewOwner("owner@example.com", 24*time.Hour, now)
	s.Require().NoError(s.store.Create(ctx, o))
	s.ErrorIs(s.store.Create(ctx, o), sentinel.ErrConflict)

	o.StampConsensus(now)
	s.Require().NoError(s.store.Update(ctx, o))

	found, err := s.store.FindByEmail(ctx, "owner@example.com")
	s.Require().NoError(err)
	s.Require().NotNil(found.DeathConfirmedAt)
	s.True(now.Equal(*found.DeathConfirmedAt))
	s.Equal(int64(86400), found.DeathTimeoutSeconds)

	pending, err := s.store.ListPendingDeath(ctx)
	s.Require().NoError(err)
	s.Len(pending, 1)

	found.Finalize()
	s.Require().NoError(s.store.Update(ctx, found))
	pending, err = s.store.ListPendingDeath(ctx)
	s.Require().NoError(err)
	s.Empty(pending)

	_, err = s.store.FindByEmail(ctx, "missing@example.com")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestLockForUpdateRequiresTransaction() {
	ctx := context.Background()
	s.Require().Error(s.store.LockForUpdate(ctx, "owner@example.com"))

	err := txcontext.Run(ctx, s.postgres.DB, nil, func(ctx context.Context) error {
		return s.store.LockForUpdate(ctx, "owner@example.com")
	})
	s.Require().NoError(err)
}
