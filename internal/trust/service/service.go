package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mywill/internal/trust/metrics"
	"mywill/internal/trust/models"
	dErrors "mywill/pkg/domain-errors"
	"mywill/pkg/email"
	audit "mywill/pkg/platform/audit"
	"mywill/pkg/platform/sentinel"
	"mywill/pkg/requestcontext"
)

var tracer = otel.Tracer("mywill/trust")

// SchedulerActor is recorded as the actor of scheduler-driven transitions.
const SchedulerActor = "deathcheck"

// DefaultDeathTimeout applies to owners registered without an explicit timeout.
const DefaultDeathTimeout = 24 * time.Hour

type OwnerStore interface {
	Create(ctx context.Context, owner *models.Owner) error
	FindByEmail(ctx context.Context, email string) (*models.Owner, error)
	Exists(ctx context.Context, email string) (bool, error)
	Update(ctx context.Context, owner *models.Owner) error
	Delete(ctx context.Context, email string) error
	ListPendingDeath(ctx context.Context) ([]*models.Owner, error)
}

type TrustedPersonStore interface {
	Create(ctx context.Context, person *models.TrustedPerson) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.TrustedPerson, error)
	FindByOwnerAndEmail(ctx context.Context, ownerEmail, email string) (*models.TrustedPerson, error)
	ListByOwner(ctx context.Context, ownerEmail string) ([]*models.TrustedPerson, error)
	ListOwnersTrusting(ctx context.Context, email string) ([]string, error)
	Update(ctx context.Context, person *models.TrustedPerson) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByOwner(ctx context.Context, ownerEmail string) error
	ResetConfirmations(ctx context.Context, ownerEmail string) error
}

// OwnedData is data held outside the trust context that must go when its
// owner's account is deleted, such as wills.
type OwnedData interface {
	DeleteByOwner(ctx context.Context, ownerEmail string) error
}

// Service runs the death-confirmation protocol: trusted-person management,
// unanimous confirmation, timed finalization and owner revocation. Every
// owner-scoped mutation goes through one TrustStoreTx so a confirmation, a
// finalization and a revocation for the same owner never interleave.
type Service struct {
	owners         OwnerStore
	people         TrustedPersonStore
	tx             TrustStoreTx
	mailer         email.Mailer
	auditor        audit.Publisher
	owned          []OwnedData
	metrics        *metrics.Metrics
	logger         *slog.Logger
	defaultTimeout time.Duration
}

type Option func(*Service)

func WithTx(tx TrustStoreTx) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

func WithMailer(m email.Mailer) Option {
	return func(s *Service) {
		s.mailer = m
	}
}

func WithAuditPublisher(p audit.Publisher) Option {
	return func(s *Service) {
		s.auditor = p
	}
}

// WithOwnedData registers stores purged by DeleteOwner. They run inside the
// owner transaction and must use the ctx they are given.
func WithOwnedData(data ...OwnedData) Option {
	return func(s *Service) {
		s.owned = append(s.owned, data...)
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

func WithDefaultDeathTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d >= time.Second {
			s.defaultTimeout = d
		}
	}
}

func New(owners OwnerStore, people TrustedPersonStore, opts ...Option) *Service {
	s := &Service{
		owners:         owners,
		people:         people,
		logger:         slog.Default(),
		defaultTimeout: DefaultDeathTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = NewShardedTx(Stores{Owners: owners, TrustedPeople: people})
	}
	return s
}

// Register provisions an owner account with the default death timeout.
// Registering an existing owner returns it unchanged.
func (s *Service) Register(ctx context.Context, ownerEmail string) (*models.Owner, error) {
	ctx, span := tracer.Start(ctx, "Trust.Service.Register")
	defer span.End()

	ownerEmail, err := normalizeEmail(ownerEmail)
	if err != nil {
		return nil, fail(span, err)
	}

	var (
		owner   *models.Owner
		created bool
	)
	err = s.tx.RunInTx(ctx, ownerEmail, func(ctx context.Context, stores Stores) error {
		existing, err := stores.Owners.FindByEmail(ctx, ownerEmail)
		if err == nil {
			owner = existing
			return nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return err
		}
		owner = models.NewOwner(ownerEmail, s.defaultTimeout, requestcontext.Now(ctx))
		if err := stores.Owners.Create(ctx, owner); err != nil {
			return err
		}
		created = true
		return nil
	})
	if errors.Is(err, sentinel.ErrConflict) {
		// A concurrent first registration committed between our read and insert.
		owner, err = s.owners.FindByEmail(ctx, ownerEmail)
		created = false
	}
	if err != nil {
		return nil, fail(span, translate(err, "failed to register owner"))
	}

	if created {
		s.logger.InfoContext(ctx, "owner registered", "owner_email", ownerEmail)
		s.emitAudit(ctx, audit.Event{
			OwnerEmail: ownerEmail,
			Action:     string(audit.EventOwnerRegistered),
		})
	}
	return owner, nil
}

// Profile returns the owner record.
func (s *Service) Profile(ctx context.Context, ownerEmail string) (*models.Owner, error) {
	ctx, span := tracer.Start(ctx, "Trust.Service.Profile")
	defer span.End()

	owner, err := s.owners.FindByEmail(ctx, email.Normalize(ownerEmail))
	if err != nil {
		return nil, fail(span, translate(err, "failed to load profile"))
	}
	return owner, nil
}

// DeleteOwner removes the owner's account together with the trusted people
// they designated and every registered kind of owned data. Edges where the
// owner is someone else's trusted person are left alone.
func (s *Service) DeleteOwner(ctx context.Context, ownerEmail string) error {
	ctx, span := tracer.Start(ctx, "Trust.Service.DeleteOwner")
	defer span.End()

	ownerEmail = email.Normalize(ownerEmail)

	err := s.tx.RunInTx(ctx, ownerEmail, func(ctx context.Context, stores Stores) error {
		if _, err := stores.Owners.FindByEmail(ctx, ownerEmail); err != nil {
			return err
		}
		for _, data := range s.owned {
			if err := data.DeleteByOwner(ctx, ownerEmail); err != nil {
				return err
			}
		}
		if err := stores.TrustedPeople.DeleteByOwner(ctx, ownerEmail); err != nil {
			return err
		}
		return stores.Owners.Delete(ctx, ownerEmail)
	})
	if err != nil {
		return fail(span, translate(err, "failed to delete account"))
	}

	s.logger.InfoContext(ctx, "owner deleted", "owner_email", ownerEmail)
	if s.metrics != nil {
		s.metrics.OwnersDeleted.Inc()
	}
	s.emitAudit(ctx, audit.Event{
		OwnerEmail: ownerEmail,
		Action:     string(audit.EventOwnerDeleted),
	})
	return nil
}

// UpdateDeathTimeout changes how long a pending owner waits before being
// finalized. A pending owner's due time moves with it.
func (s *Service) UpdateDeathTimeout(ctx context.Context, ownerEmail string, seconds int64) (*models.Owner, error) {
	ctx, span := tracer.Start(ctx, "Trust.Service.UpdateDeathTimeout")
	defer span.End()

	if seconds <= 0 {
		return nil, fail(span, dErrors.New(dErrors.CodeBadRequest, "death timeout must be positive"))
	}
	ownerEmail = email.Normalize(ownerEmail)

	var owner *models.Owner
	err := s.tx.RunInTx(ctx, ownerEmail, func(ctx context.Context, stores Stores) error {
		var err error
		owner, err = stores.Owners.FindByEmail(ctx, ownerEmail)
		if err != nil {
			return err
		}
		owner.DeathTimeoutSeconds = seconds
		return stores.Owners.Update(ctx, owner)
	})
	if err != nil {
		return nil, fail(span, translate(err, "failed to update death timeout"))
	}

	s.emitAudit(ctx, audit.Event{
		OwnerEmail: ownerEmail,
		Action:     string(audit.EventDeathTimeoutUpdated),
	})
	return owner, nil
}

// AddTrustedPerson designates email as someone allowed to confirm the owner's
// death. Adding an existing pair returns the stored record. When email has no
// account an invitation is mailed after the record is committed; a mailer
// failure never undoes the add.
func (s *Service) AddTrustedPerson(ctx context.Context, ownerEmail, personEmail string) (*models.TrustedPerson, error) {
	ctx, span := tracer.Start(ctx, "Trust.Service.AddTrustedPerson")
	defer span.End()

	ownerEmail = email.Normalize(ownerEmail)
	personEmail, err := normalizeEmail(personEmail)
	if err != nil {
		return nil, fail(span, err)
	}
	if personEmail == ownerEmail {
		return nil, fail(span, dErrors.New(dErrors.CodeBadRequest, "cannot add yourself"))
	}
	span.SetAttributes(attribute.String("owner_email", ownerEmail))

	var (
		person      *models.TrustedPerson
		created     bool
		needsInvite bool
	)
	err = s.tx.RunInTx(ctx, ownerEmail, func(ctx context.Context, stores Stores) error {
		if _, err := stores.Owners.FindByEmail(ctx, ownerEmail); err != nil {
			return err
		}
		existing, err := stores.TrustedPeople.FindByOwnerAndEmail(ctx, ownerEmail, personEmail)
		if err == nil {
			person = existing
			return nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return err
		}

		person = models.NewTrustedPerson(ownerEmail, personEmail, requestcontext.Now(ctx))
		if err := stores.TrustedPeople.Create(ctx, person); err != nil {
			return err
		}
		created = true

		registered, err := stores.Owners.Exists(ctx, personEmail)
		if err != nil {
			return err
		}
		needsInvite = !registered
		return nil
	})
	if err != nil {
		return nil, fail(span, translate(err, "failed to add trusted person"))
	}

	if created {
		if s.metrics != nil {
			s.metrics.TrustedPeopleAdded.Inc()
		}
		s.emitAudit(ctx, audit.Event{
			OwnerEmail: ownerEmail,
			Action:     string(audit.EventTrustedPersonAdded),
			Subject:    personEmail,
		})
	}
	if needsInvite {
		s.sendInvitation(ctx, ownerEmail, personEmail)
	}
	return person, nil
}

func (s *Service) sendInvitation(ctx context.Context, ownerEmail, inviteeEmail string) {
	if s.mailer == nil {
		return
	}
	subject, body := email.Invitation(ownerEmail, inviteeEmail)
	if err := s.mailer.Send(ctx, inviteeEmail, subject, body); err != nil {
		s.logger.WarnContext(ctx, "failed to send invitation",
			"error", err,
			"owner_email", ownerEmail,
			"invitee_email", inviteeEmail,
			"request_id", requestcontext.RequestID(ctx),
		)
		if s.metrics != nil {
			s.metrics.InvitationFailures.Inc()
		}
		s.emitAudit(ctx, audit.Event{
			OwnerEmail: ownerEmail,
			Action:     string(audit.EventInvitationFailed),
			Subject:    inviteeEmail,
			Reason:     err.Error(),
		})
	}
}

// RemoveTrustedPerson deletes one of the owner's edges. Consensus is not
// recomputed.
func (s *Service) RemoveTrustedPerson(ctx context.Context, ownerEmail string, id uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "Trust.Service.RemoveTrustedPerson")
	defer span.End()

	ownerEmail = email.Normalize(ownerEmail)

	var removed *models.TrustedPerson
	err := s.tx.RunInTx(ctx, ownerEmail, func(ctx context.Context, stores Stores) error {
		person, err := stores.TrustedPeople.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.Wrap(err, dErrors.CodeNotFound, "trusted person not found")
			}
			return err
		}
		if person.OwnerEmail != ownerEmail {
			return dErrors.New(dErrors.CodeForbidden, "trusted person belongs to another user")
		}
		removed = person
		return stores.TrustedPeople.Delete(ctx, id)
	})
	if err != nil {
		return fail(span, translate(err, "failed to remove trusted person"))
	}

	if s.metrics != nil {
		s.metrics.TrustedPeopleRemoved.Inc()
	}
	s.emitAudit(ctx, audit.Event{
		OwnerEmail: ownerEmail,
		Action:     string(audit.EventTrustedPersonRemoved),
		Subject:    removed.Email,
	})
	return nil
}

// ConfirmDeath records that confirmerEmail witnessed ownerEmail's death.
// When every trusted person of the owner has confirmed, the consensus time is
// stamped. The stamp is set once: redundant confirmations after consensus do
// not move it, so they cannot extend the disclosure delay.
func (s *Service) ConfirmDeath(ctx context.Context, confirmerEmail, ownerEmail string) error {
	ctx, span := tracer.Start(ctx, "Trust.Service.ConfirmDeath")
	defer span.End()
	if s.metrics != nil {
		defer s.metrics.ObserveConfirmDeath(time.Now())
	}

	confirmerEmail = email.Normalize(confirmerEmail)
	ownerEmail = email.Normalize(ownerEmail)
	span.SetAttributes(attribute.String("owner_email", ownerEmail))

	var (
		newlyConfirmed bool
		consensusAt    *time.Time
	)
	err := s.tx.RunInTx(ctx, ownerEmail, func(ctx context.Context, stores Stores) error {
		owner, err := stores.Owners.FindByEmail(ctx, ownerEmail)
		if err != nil {
			return err
		}
		person, err := stores.TrustedPeople.FindByOwnerAndEmail(ctx, ownerEmail, confirmerEmail)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeForbidden, "not a trusted person for this user")
			}
			return err
		}

		if !person.ConfirmedDeath {
			person.ConfirmedDeath = true
			if err := stores.TrustedPeople.Update(ctx, person); err != nil {
				return err
			}
			newlyConfirmed = true
		}

		people, err := stores.TrustedPeople.ListByOwner(ctx, ownerEmail)
		if err != nil {
			return err
		}
		if !models.AllConfirmed(people) {
			return nil
		}
		if !owner.StampConsensus(requestcontext.Now(ctx)) {
			return nil
		}
		if err := stores.Owners.Update(ctx, owner); err != nil {
			return err
		}
		consensusAt = owner.DeathConfirmedAt
		return nil
	})
	if err != nil {
		return fail(span, translate(err, "failed to confirm death"))
	}

	if newlyConfirmed {
		if s.metrics != nil {
			s.metrics.DeathConfirmations.Inc()
		}
		s.emitAudit(ctx, audit.Event{
			OwnerEmail: ownerEmail,
			ActorEmail: confirmerEmail,
			Action:     string(audit.EventDeathConfirmed),
		})
	}
	if consensusAt != nil {
		s.logger.InfoContext(ctx, "death consensus reached",
			"owner_email", ownerEmail,
			"death_confirmed_at", *consensusAt,
		)
		if s.metrics != nil {
			s.metrics.ConsensusReached.Inc()
		}
		s.emitAudit(ctx, audit.Event{
			OwnerEmail: ownerEmail,
			ActorEmail: confirmerEmail,
			Action:     string(audit.EventDeathConsensusReached),
		})
	}
	return nil
}

// ListTrustedPeople returns the owner's trusted people.
func (s *Service) ListTrustedPeople(ctx context.Context, ownerEmail string) ([]*models.TrustedPerson, error) {
	ctx, span := tracer.Start(ctx, "Trust.Service.ListTrustedPeople")
	defer span.End()

	ownerEmail = email.Normalize(ownerEmail)
	if _, err := s.owners.FindByEmail(ctx, ownerEmail); err != nil {
		return nil, fail(span, translate(err, "failed to list trusted people"))
	}
	people, err := s.people.ListByOwner(ctx, ownerEmail)
	if err != nil {
		return nil, fail(span, translate(err, "failed to list trusted people"))
	}
	return people, nil
}

// OwnersTrusting returns the owners who designated personEmail.
func (s *Service) OwnersTrusting(ctx context.Context, personEmail string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "Trust.Service.OwnersTrusting")
	defer span.End()

	owners, err := s.people.ListOwnersTrusting(ctx, email.Normalize(personEmail))
	if err != nil {
		return nil, fail(span, translate(err, "failed to list owners"))
	}
	return owners, nil
}

// CancelDeathConfirmation is the owner's "I'm alive": it clears the dead flag
// and the consensus time and withdraws every confirmation, so consensus must
// be rebuilt from scratch.
func (s *Service) CancelDeathConfirmation(ctx context.Context, ownerEmail string) error {
	ctx, span := tracer.Start(ctx, "Trust.Service.CancelDeathConfirmation")
	defer span.End()

	ownerEmail = email.Normalize(ownerEmail)

	var wasArmed bool
	err := s.tx.RunInTx(ctx, ownerEmail, func(ctx context.Context, stores Stores) error {
		owner, err := stores.Owners.FindByEmail(ctx, ownerEmail)
		if err != nil {
			return err
		}
		wasArmed = owner.IsDead || owner.DeathConfirmedAt != nil
		owner.Revive()
		if err := stores.Owners.Update(ctx, owner); err != nil {
			return err
		}
		return stores.TrustedPeople.ResetConfirmations(ctx, ownerEmail)
	})
	if err != nil {
		return fail(span, translate(err, "failed to cancel death confirmation"))
	}

	if wasArmed {
		s.logger.InfoContext(ctx, "death confirmation cancelled", "owner_email", ownerEmail)
	}
	if s.metrics != nil {
		s.metrics.Revocations.Inc()
	}
	s.emitAudit(ctx, audit.Event{
		OwnerEmail: ownerEmail,
		Action:     string(audit.EventDeathConfirmationReset),
	})
	return nil
}

// ListPendingDeath returns owners with consensus who are not yet dead.
func (s *Service) ListPendingDeath(ctx context.Context) ([]*models.Owner, error) {
	ctx, span := tracer.Start(ctx, "Trust.Service.ListPendingDeath")
	defer span.End()

	owners, err := s.owners.ListPendingDeath(ctx)
	if err != nil {
		return nil, fail(span, translate(err, "failed to list pending owners"))
	}
	return owners, nil
}

// FinalizeDeath marks the owner dead if, at the context time, they are still
// pending and strictly past their timeout. The state is re-read under the
// owner transaction, so a revocation that committed first wins. It reports
// whether the owner was finalized by this call.
func (s *Service) FinalizeDeath(ctx context.Context, ownerEmail string) (bool, error) {
	ctx, span := tracer.Start(ctx, "Trust.Service.FinalizeDeath")
	defer span.End()
	if s.metrics != nil {
		defer s.metrics.ObserveFinalizeDeath(time.Now())
	}

	now := requestcontext.Now(ctx)
	span.SetAttributes(attribute.String("owner_email", ownerEmail))

	var finalized bool
	err := s.tx.RunInTx(ctx, ownerEmail, func(ctx context.Context, stores Stores) error {
		owner, err := stores.Owners.FindByEmail(ctx, ownerEmail)
		if err != nil {
			return err
		}
		if !owner.IsDeathDue(now) {
			return nil
		}
		owner.Finalize()
		if err := stores.Owners.Update(ctx, owner); err != nil {
			return err
		}
		finalized = true
		return nil
	})
	if err != nil {
		return false, fail(span, translate(err, "failed to finalize death"))
	}

	if finalized {
		s.logger.InfoContext(ctx, "owner finalized as dead", "owner_email", ownerEmail)
		if s.metrics != nil {
			s.metrics.DeathsFinalized.Inc()
		}
		s.emitAudit(ctx, audit.Event{
			OwnerEmail: ownerEmail,
			ActorEmail: SchedulerActor,
			Action:     string(audit.EventDeathFinalized),
		})
	}
	return finalized, nil
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"error", err,
			"action", event.Action,
			"owner_email", event.OwnerEmail,
		)
	}
}

func normalizeEmail(raw string) (string, error) {
	normalized := email.Normalize(raw)
	if normalized == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "email is required")
	}
	if !email.Valid(normalized) {
		return "", dErrors.New(dErrors.CodeBadRequest, "invalid email")
	}
	return normalized, nil
}

// translate maps store facts to domain errors. Domain errors pass through.
func translate(err error, internalMsg string) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "user not found")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "operation timed out")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, internalMsg)
	}
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, dErrors.MessageOf(err))
	return err
}
