package adapters

import (
	"context"

	trustmodels "mywill/internal/trust/models"
	dErrors "mywill/pkg/domain-errors"
)

// OwnerProfiles is the slice of the trust service the will module reads.
type OwnerProfiles interface {
	Profile(ctx context.Context, ownerEmail string) (*trustmodels.Owner, error)
}

// OwnerStatusAdapter answers owner lifecycle questions for the will service
// without exposing the trust module's state machine.
type OwnerStatusAdapter struct {
	profiles OwnerProfiles
}

func NewOwnerStatusAdapter(profiles OwnerProfiles) *OwnerStatusAdapter {
	return &OwnerStatusAdapter{profiles: profiles}
}

// Exists reports whether ownerEmail has a registered account.
func (a *OwnerStatusAdapter) Exists(ctx context.Context, ownerEmail string) (bool, error) {
	_, err := a.profiles.Profile(ctx, ownerEmail)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// IsDead reports whether the owner has been finalized dead. An unknown owner
// is treated as alive.
func (a *OwnerStatusAdapter) IsDead(ctx context.Context, ownerEmail string) (bool, error) {
	owner, err := a.profiles.Profile(ctx, ownerEmail)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return false, nil
		}
		return false, err
	}
	return owner.IsDead, nil
}
