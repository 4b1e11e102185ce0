package models

import (
	"time"

	"github.com/google/uuid"
)

// Owner is a will owner and the state machine driven by trusted people.
//
// States:
//   - alive: DeathConfirmedAt == nil, IsDead == false
//   - pending: DeathConfirmedAt != nil, IsDead == false
//   - dead: IsDead == true
//
// Only the death-check sweep moves pending to dead. Revive returns any state
// to alive.
type Owner struct {
	Email               string     `json:"email"`
	IsDead              bool       `json:"is_dead"`
	DeathConfirmedAt    *time.Time `json:"death_confirmed_at,omitempty"`
	DeathTimeoutSeconds int64      `json:"death_timeout_seconds"`
	CreatedAt           time.Time  `json:"created_at"`
}

func NewOwner(email string, timeout time.Duration, now time.Time) *Owner {
	return &Owner{
		Email:               email,
		DeathTimeoutSeconds: int64(timeout / time.Second),
		CreatedAt:           now,
	}
}

// IsPending reports whether consensus was reached but death is not yet final.
func (o *Owner) IsPending() bool {
	return o.DeathConfirmedAt != nil && !o.IsDead
}

// DeathDueAt returns the instant after which a pending owner is finalized.
func (o *Owner) DeathDueAt() (time.Time, bool) {
	if o.DeathConfirmedAt == nil {
		return time.Time{}, false
	}
	return o.DeathConfirmedAt.Add(time.Duration(o.DeathTimeoutSeconds) * time.Second), true
}

// IsDeathDue reports whether the owner is pending and now is strictly past the
// timeout.
func (o *Owner) IsDeathDue(now time.Time) bool {
	if !o.IsPending() {
		return false
	}
	due, _ := o.DeathDueAt()
	return now.After(due)
}

// StampConsensus records the consensus time. The timestamp is set once; a
// later call while it is already set leaves it unchanged and returns false.
func (o *Owner) StampConsensus(now time.Time) bool {
	if o.DeathConfirmedAt != nil {
		return false
	}
	t := now
	o.DeathConfirmedAt = &t
	return true
}

// Finalize marks the owner dead.
func (o *Owner) Finalize() {
	o.IsDead = true
}

// Revive resets the owner to the alive state.
func (o *Owner) Revive() {
	o.IsDead = false
	o.DeathConfirmedAt = nil
}

// TrustedPerson is a directed edge from an owner to someone allowed to
// confirm the owner's death.
type TrustedPerson struct {
	ID             uuid.UUID `json:"id"`
	OwnerEmail     string    `json:"owner_email"`
	Email          string    `json:"email"`
	ConfirmedDeath bool      `json:"confirmed_death"`
	CreatedAt      time.Time `json:"created_at"`
}

func NewTrustedPerson(ownerEmail, email string, now time.Time) *TrustedPerson {
	return &TrustedPerson{
		ID:         uuid.New(),
		OwnerEmail: ownerEmail,
		Email:      email,
		CreatedAt:  now,
	}
}

// AllConfirmed reports unanimous confirmation. An empty set never reaches
// consensus.
func AllConfirmed(people []*TrustedPerson) bool {
	if len(people) == 0 {
		return false
	}
	for _, p := range people {
		if !p.ConfirmedDeath {
			return false
		}
	}
	return true
}
