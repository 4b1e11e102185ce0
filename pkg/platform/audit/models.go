package audit

//go:generate mockgen -source=models.go -destination=mocks/mocks.go -package=mocks Store,Publisher

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose so sinks can
// apply different retention.
type EventCategory string

const (
	// CategoryCompliance covers the death-confirmation state machine: every
	// transition an heir or court may later need to reconstruct.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers rejected access attempts.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	// OwnerEmail is the will owner whose state the event concerns.
	OwnerEmail string
	// ActorEmail is who performed the action when different from the owner
	// (a confirming trusted person, a will reader, the scheduler).
	ActorEmail string
	Action     string
	Subject    string
	Reason     string
	RequestID  string
}

type AuditEvent string

const (
	EventOwnerRegistered        AuditEvent = "owner_registered"
	EventDeathTimeoutUpdated    AuditEvent = "death_timeout_updated"
	EventTrustedPersonAdded     AuditEvent = "trusted_person_added"
	EventTrustedPersonRemoved   AuditEvent = "trusted_person_removed"
	EventInvitationFailed       AuditEvent = "invitation_failed"
	EventDeathConfirmed         AuditEvent = "death_confirmed"
	EventDeathConsensusReached  AuditEvent = "death_consensus_reached"
	EventDeathFinalized         AuditEvent = "death_finalized"
	EventDeathConfirmationReset AuditEvent = "death_confirmation_cancelled"
	EventOwnerDeleted           AuditEvent = "owner_deleted"
	EventWillDisclosed          AuditEvent = "will_disclosed"
	EventWillAccessDenied       AuditEvent = "will_access_denied"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventTrustedPersonAdded:     CategoryCompliance,
	EventTrustedPersonRemoved:   CategoryCompliance,
	EventDeathConfirmed:         CategoryCompliance,
	EventDeathConsensusReached:  CategoryCompliance,
	EventDeathFinalized:         CategoryCompliance,
	EventDeathConfirmationReset: CategoryCompliance,
	EventWillDisclosed:          CategoryCompliance,
	EventOwnerDeleted:           CategoryCompliance,

	EventWillAccessDenied: CategorySecurity,

	EventOwnerRegistered:     CategoryOperations,
	EventDeathTimeoutUpdated: CategoryOperations,
	EventInvitationFailed:    CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Publisher is what domain services depend on.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}
