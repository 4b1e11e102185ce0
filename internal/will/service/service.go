package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mywill/internal/will/metrics"
	"mywill/internal/will/models"
	dErrors "mywill/pkg/domain-errors"
	"mywill/pkg/email"
	audit "mywill/pkg/platform/audit"
	"mywill/pkg/platform/sentinel"
	"mywill/pkg/requestcontext"
)

var tracer = otel.Tracer("mywill/will")

// Gate rejection messages. Both are Forbidden; they stay distinct so a reader
// on the allow-list can tell "not yet" from "never".
const (
	MsgAccessDenied = "access denied"
	MsgNotYetOpened = "will is not yet opened"
)

const maxTitleLength = 200

type Store interface {
	Create(ctx context.Context, will *models.Will) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Will, error)
	Update(ctx context.Context, will *models.Will) error
	AddAllowedEmail(ctx context.Context, id uuid.UUID, email string) error
	ListByOwner(ctx context.Context, ownerEmail string) ([]*models.Will, error)
	ListSharedWith(ctx context.Context, email string) ([]*models.Will, error)
	DeleteByOwner(ctx context.Context, ownerEmail string) error
}

// OwnerStatus reports owner lifecycle facts owned by the trust module.
type OwnerStatus interface {
	Exists(ctx context.Context, ownerEmail string) (bool, error)
	IsDead(ctx context.Context, ownerEmail string) (bool, error)
}

// Service stores wills and applies the disclosure gate on every read.
type Service struct {
	store   Store
	owners  OwnerStatus
	auditor audit.Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Option func(*Service)

func WithAuditPublisher(p audit.Publisher) Option {
	return func(s *Service) {
		s.auditor = p
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

func New(store Store, owners OwnerStatus, opts ...Option) *Service {
	s := &Service{store: store, owners: owners, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateWill stores a new will for a registered owner.
func (s *Service) CreateWill(ctx context.Context, ownerEmail, title, content string, allowed []string) (*models.Will, error) {
	ctx, span := tracer.Start(ctx, "Will.Service.CreateWill")
	defer span.End()

	ownerEmail = email.Normalize(ownerEmail)
	title = strings.TrimSpace(title)
	if err := validateTitle(title); err != nil {
		return nil, fail(span, err)
	}
	allowedEmails, err := normalizeAllowed(allowed)
	if err != nil {
		return nil, fail(span, err)
	}

	exists, err := s.owners.Exists(ctx, ownerEmail)
	if err != nil {
		return nil, fail(span, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create will"))
	}
	if !exists {
		return nil, fail(span, dErrors.New(dErrors.CodeNotFound, "user not found"))
	}

	will := models.NewWill(ownerEmail, title, content, allowedEmails, requestcontext.Now(ctx))
	if err := s.store.Create(ctx, will); err != nil {
		return nil, fail(span, translate(err, "failed to create will"))
	}
	if s.metrics != nil {
		s.metrics.WillsCreated.Inc()
	}
	return will, nil
}

// UpdateWill replaces title and content. Only the owner may update.
func (s *Service) UpdateWill(ctx context.Context, id uuid.UUID, ownerEmail, title, content string) (*models.Will, error) {
	ctx, span := tracer.Start(ctx, "Will.Service.UpdateWill")
	defer span.End()

	title = strings.TrimSpace(title)
	if err := validateTitle(title); err != nil {
		return nil, fail(span, err)
	}

	will, err := s.ownedWill(ctx, id, email.Normalize(ownerEmail), "only owner can update will")
	if err != nil {
		return nil, fail(span, err)
	}
	will.Title = title
	will.Content = content
	will.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Update(ctx, will); err != nil {
		return nil, fail(span, translate(err, "failed to update will"))
	}
	return will, nil
}

// AddAllowedEmail grants a reader. Adding an email twice is a no-op.
func (s *Service) AddAllowedEmail(ctx context.Context, id uuid.UUID, ownerEmail, readerEmail string) (*models.Will, error) {
	ctx, span := tracer.Start(ctx, "Will.Service.AddAllowedEmail")
	defer span.End()

	readerEmail = email.Normalize(readerEmail)
	if !email.Valid(readerEmail) {
		return nil, fail(span, dErrors.New(dErrors.CodeBadRequest, "invalid email"))
	}

	if _, err := s.ownedWill(ctx, id, email.Normalize(ownerEmail), "only owner can share will"); err != nil {
		return nil, fail(span, err)
	}
	if err := s.store.AddAllowedEmail(ctx, id, readerEmail); err != nil {
		return nil, fail(span, translate(err, "failed to share will"))
	}
	will, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, fail(span, translate(err, "failed to share will"))
	}
	return will, nil
}

// GetWill applies the disclosure gate. The owner always reads their own will.
// Anyone else must be on the allow-list and the owner must be finalized dead.
// The decision is made on every call from current state.
func (s *Service) GetWill(ctx context.Context, id uuid.UUID, requesterEmail string) (*models.Will, error) {
	ctx, span := tracer.Start(ctx, "Will.Service.GetWill")
	defer span.End()

	requesterEmail = email.Normalize(requesterEmail)

	will, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, fail(span, translate(err, "failed to load will"))
	}
	if will.IsOwner(requesterEmail) {
		s.observe(metrics.OutcomeOwner)
		return will, nil
	}

	if !will.Allows(requesterEmail) {
		s.observe(metrics.OutcomeDenied)
		s.emitAudit(ctx, audit.Event{
			OwnerEmail: will.OwnerEmail,
			ActorEmail: requesterEmail,
			Action:     string(audit.EventWillAccessDenied),
			Subject:    will.ID.String(),
			Reason:     MsgAccessDenied,
		})
		return nil, fail(span, dErrors.New(dErrors.CodeForbidden, MsgAccessDenied))
	}

	dead, err := s.owners.IsDead(ctx, will.OwnerEmail)
	if err != nil {
		return nil, fail(span, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load will"))
	}
	if !dead {
		s.observe(metrics.OutcomeNotOpened)
		s.emitAudit(ctx, audit.Event{
			OwnerEmail: will.OwnerEmail,
			ActorEmail: requesterEmail,
			Action:     string(audit.EventWillAccessDenied),
			Subject:    will.ID.String(),
			Reason:     MsgNotYetOpened,
		})
		return nil, fail(span, dErrors.New(dErrors.CodeForbidden, MsgNotYetOpened))
	}

	s.observe(metrics.OutcomeDisclosed)
	s.emitAudit(ctx, audit.Event{
		OwnerEmail: will.OwnerEmail,
		ActorEmail: requesterEmail,
		Action:     string(audit.EventWillDisclosed),
		Subject:    will.ID.String(),
	})
	return will, nil
}

// ListMyWills returns the caller's own wills.
func (s *Service) ListMyWills(ctx context.Context, ownerEmail string) ([]*models.Will, error) {
	ctx, span := tracer.Start(ctx, "Will.Service.ListMyWills")
	defer span.End()

	wills, err := s.store.ListByOwner(ctx, email.Normalize(ownerEmail))
	if err != nil {
		return nil, fail(span, translate(err, "failed to list wills"))
	}
	return wills, nil
}

// ListSharedWills returns wills that name readerEmail and whose owner has been
// finalized dead.
func (s *Service) ListSharedWills(ctx context.Context, readerEmail string) ([]*models.Will, error) {
	ctx, span := tracer.Start(ctx, "Will.Service.ListSharedWills")
	defer span.End()

	wills, err := s.store.ListSharedWith(ctx, email.Normalize(readerEmail))
	if err != nil {
		return nil, fail(span, translate(err, "failed to list shared wills"))
	}

	dead := make(map[string]bool)
	opened := []*models.Will{}
	for _, w := range wills {
		isDead, seen := dead[w.OwnerEmail]
		if !seen {
			isDead, err = s.owners.IsDead(ctx, w.OwnerEmail)
			if err != nil {
				return nil, fail(span, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list shared wills"))
			}
			dead[w.OwnerEmail] = isDead
		}
		if isDead {
			opened = append(opened, w)
		}
	}
	return opened, nil
}

func (s *Service) ownedWill(ctx context.Context, id uuid.UUID, ownerEmail, forbiddenMsg string) (*models.Will, error) {
	will, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, translate(err, "failed to load will")
	}
	if !will.IsOwner(ownerEmail) {
		return nil, dErrors.New(dErrors.CodeForbidden, forbiddenMsg)
	}
	return will, nil
}

func (s *Service) observe(outcome string) {
	if s.metrics != nil {
		s.metrics.IncrementRead(outcome)
	}
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
		)
	}
}

func validateTitle(title string) error {
	if title == "" {
		return dErrors.New(dErrors.CodeBadRequest, "title is required")
	}
	if len(title) > maxTitleLength {
		return dErrors.New(dErrors.CodeBadRequest, "title is too long")
	}
	return nil
}

func normalizeAllowed(raw []string) ([]string, error) {
	allowed := email.NormalizeAll(raw)
	for _, e := range allowed {
		if !email.Valid(e) {
			return nil, dErrors.New(dErrors.CodeBadRequest, "invalid email in allowed list: "+e)
		}
	}
	return allowed, nil
}

func translate(err error, internalMsg string) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeNotFound, "will not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, internalMsg)
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, dErrors.MessageOf(err))
	return err
}
