package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"mywill/internal/will/models"
	dErrors "mywill/pkg/domain-errors"
	"mywill/pkg/platform/httputil"
	"mywill/pkg/requestcontext"
)

// Service defines the will operations exposed over HTTP.
type Service interface {
	CreateWill(ctx context.Context, ownerEmail, title, content string, allowed []string) (*models.Will, error)
	UpdateWill(ctx context.Context, id uuid.UUID, ownerEmail, title, content string) (*models.Will, error)
	AddAllowedEmail(ctx context.Context, id uuid.UUID, ownerEmail, readerEmail string) (*models.Will, error)
	GetWill(ctx context.Context, id uuid.UUID, requesterEmail string) (*models.Will, error)
	ListMyWills(ctx context.Context, ownerEmail string) ([]*models.Will, error)
	ListSharedWills(ctx context.Context, readerEmail string) ([]*models.Will, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register registers the will routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/wills", func(r chi.Router) {
		r.Get("/", h.handleListMine)
		r.Post("/", h.handleCreate)
		r.Get("/shared", h.handleListShared)
		r.Get("/{id}", h.handleGet)
		r.Put("/{id}", h.handleUpdate)
		r.Post("/{id}/access", h.handleAddAccess)
	})
}

type createWillRequest struct {
	Title         string   `json:"title"`
	Content       string   `json:"content"`
	AllowedEmails []string `json:"allowed_emails"`
}

type updateWillRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type addAccessRequest struct {
	Email string `json:"email"`
}

type willResponse struct {
	ID            uuid.UUID `json:"id"`
	OwnerEmail    string    `json:"owner_email"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	AllowedEmails []string  `json:"allowed_emails"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toWillResponse(w *models.Will) willResponse {
	allowed := w.AllowedEmails
	if allowed == nil {
		allowed = []string{}
	}
	return willResponse{
		ID:            w.ID,
		OwnerEmail:    w.OwnerEmail,
		Title:         w.Title,
		Content:       w.Content,
		AllowedEmails: allowed,
		CreatedAt:     w.CreatedAt,
		UpdatedAt:     w.UpdatedAt,
	}
}

func toWillResponses(wills []*models.Will) []willResponse {
	resp := make([]willResponse, 0, len(wills))
	for _, w := range wills {
		resp = append(resp, toWillResponse(w))
	}
	return resp
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}
	req, err := httputil.DecodeJSON[createWillRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	will, err := h.service.CreateWill(ctx, caller, req.Title, req.Content, req.AllowedEmails)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to create will", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toWillResponse(will))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}
	id, ok := parseWillID(w, r)
	if !ok {
		return
	}
	req, err := httputil.DecodeJSON[updateWillRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	will, err := h.service.UpdateWill(ctx, id, caller, req.Title, req.Content)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to update will", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toWillResponse(will))
}

func (h *Handler) handleAddAccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}
	id, ok := parseWillID(w, r)
	if !ok {
		return
	}
	req, err := httputil.DecodeJSON[addAccessRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	will, err := h.service.AddAllowedEmail(ctx, id, caller, req.Email)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to share will", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toWillResponse(will))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}
	id, ok := parseWillID(w, r)
	if !ok {
		return
	}
	will, err := h.service.GetWill(ctx, id, caller)
	if err != nil {
		h.writeServiceError(ctx, w, "will read rejected", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toWillResponse(will))
}

func (h *Handler) handleListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}
	wills, err := h.service.ListMyWills(ctx, caller)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to list wills", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toWillResponses(wills))
}

func (h *Handler) handleListShared(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.requireCaller(w, r)
	if !ok {
		return
	}
	wills, err := h.service.ListSharedWills(ctx, caller)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to list shared wills", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toWillResponses(wills))
}

func parseWillID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid will id"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) requireCaller(w http.ResponseWriter, r *http.Request) (string, bool) {
	caller := requestcontext.CallerEmail(r.Context())
	if caller == "" {
		h.logger.ErrorContext(r.Context(), "caller email missing from context despite auth middleware",
			"request_id", requestcontext.RequestID(r.Context()),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return "", false
	}
	return caller, true
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	level := slog.LevelWarn
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}
