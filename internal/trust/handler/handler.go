package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"mywill/internal/trust/models"
	dErrors "mywill/pkg/domain-errors"
	"mywill/pkg/platform/httputil"
	"mywill/pkg/requestcontext"
)

// Service defines the trust operations exposed over HTTP.
type Service interface {
	Register(ctx context.Context, ownerEmail string) (*models.Owner, error)
	Profile(ctx context.Context, ownerEmail string) (*models.Owner, error)
	UpdateDeathTimeout(ctx context.Context, ownerEmail string, seconds int64) (*models.Owner, error)
	AddTrustedPerson(ctx context.Context, ownerEmail, personEmail string) (*models.TrustedPerson, error)
	RemoveTrustedPerson(ctx context.Context, ownerEmail string, id uuid.UUID) error
	ConfirmDeath(ctx context.Context, confirmerEmail, ownerEmail string) error
	ListTrustedPeople(ctx context.Context, ownerEmail string) ([]*models.TrustedPerson, error)
	OwnersTrusting(ctx context.Context, personEmail string) ([]string, error)
	CancelDeathConfirmation(ctx context.Context, ownerEmail string) error
	DeleteOwner(ctx context.Context, ownerEmail string) error
}

// Handler serves trusted-people and profile endpoints. Routes expect the
// caller email to be set by the auth middleware.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register registers the trust routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/trusted-people", func(r chi.Router) {
		r.Get("/", h.handleListTrustedPeople)
		r.Post("/", h.handleAddTrustedPerson)
		r.Get("/whose", h.handleOwnersTrusting)
		r.Post("/confirm/{ownerEmail}", h.handleConfirmDeath)
		r.Delete("/{id}", h.handleRemoveTrustedPerson)
	})
	r.Route("/profile", func(r chi.Router) {
		r.Get("/", h.handleGetProfile)
		r.Post("/", h.handleRegister)
		r.Patch("/", h.handleUpdateProfile)
		r.Delete("/", h.handleDeleteProfile)
		r.Post("/alive", h.handleAlive)
	})
}

type addTrustedPersonRequest struct {
	Email string `json:"email"`
}

type updateProfileRequest struct {
	DeathTimeoutSeconds *int64 `json:"death_timeout_seconds"`
}

type trustedPersonResponse struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	ConfirmedDeath bool      `json:"confirmed_death"`
	CreatedAt      time.Time `json:"created_at"`
}

type ownersTrustingResponse struct {
	Owners []string `json:"owners"`
}

type profileResponse struct {
	Email               string     `json:"email"`
	IsDead              bool       `json:"is_dead"`
	DeathConfirmedAt    *time.Time `json:"death_confirmed_at"`
	DeathTimeoutSeconds int64      `json:"death_timeout_seconds"`
}

func toTrustedPersonResponse(p *models.TrustedPerson) trustedPersonResponse {
	return trustedPersonResponse{
		ID:             p.ID,
		Email:          p.Email,
		ConfirmedDeath: p.ConfirmedDeath,
		CreatedAt:      p.CreatedAt,
	}
}

func toProfileResponse(o *models.Owner) profileResponse {
	return profileResponse{
		Email:               o.Email,
		IsDead:              o.IsDead,
		DeathConfirmedAt:    o.DeathConfirmedAt,
		DeathTimeoutSeconds: o.DeathTimeoutSeconds,
	}
}

func (h *Handler) handleAddTrustedPerson(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}

	req, err := httputil.DecodeJSON[addTrustedPersonRequest](r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid add trusted person request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	person, err := h.service.AddTrustedPerson(ctx, caller, req.Email)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to add trusted person", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toTrustedPersonResponse(person))
}

func (h *Handler) handleRemoveTrustedPerson(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid trusted person id"))
		return
	}

	if err := h.service.RemoveTrustedPerson(ctx, caller, id); err != nil {
		h.writeServiceError(ctx, w, "failed to remove trusted person", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListTrustedPeople(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}

	people, err := h.service.ListTrustedPeople(ctx, caller)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to list trusted people", err)
		return
	}
	resp := make([]trustedPersonResponse, 0, len(people))
	for _, p := range people {
		resp = append(resp, toTrustedPersonResponse(p))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleConfirmDeath(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}

	ownerEmail := chi.URLParam(r, "ownerEmail")
	if err := h.service.ConfirmDeath(ctx, caller, ownerEmail); err != nil {
		h.writeServiceError(ctx, w, "failed to confirm death", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleOwnersTrusting(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}

	owners, err := h.service.OwnersTrusting(ctx, caller)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to list owners", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ownersTrustingResponse{Owners: owners})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}

	owner, err := h.service.Register(ctx, caller)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to register owner", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toProfileResponse(owner))
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}

	owner, err := h.service.Profile(ctx, caller)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to load profile", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toProfileResponse(owner))
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}

	req, err := httputil.DecodeJSON[updateProfileRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.DeathTimeoutSeconds == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "death_timeout_seconds is required"))
		return
	}

	owner, err := h.service.UpdateDeathTimeout(ctx, caller, *req.DeathTimeoutSeconds)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to update profile", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toProfileResponse(owner))
}

func (h *Handler) handleAlive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}

	if err := h.service.CancelDeathConfirmation(ctx, caller); err != nil {
		h.writeServiceError(ctx, w, "failed to cancel death confirmation", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteOwner(ctx, caller); err != nil {
		h.writeServiceError(ctx, w, "failed to delete account", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) requireCaller(w http.ResponseWriter, r *http.Request) (string, bool) {
	caller := requestcontext.CallerEmail(r.Context())
	if caller == "" {
		// This should never happen if RequireAuth middleware is configured correctly
		h.logger.ErrorContext(r.Context(), "caller email missing from context despite auth middleware",
			"request_id", requestcontext.RequestID(r.Context()),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return "", false
	}
	return caller, true
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	} else {
		h.logger.WarnContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}
