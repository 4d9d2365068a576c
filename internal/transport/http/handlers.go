package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"relaydesk/internal/platform/middleware"
	"relaydesk/internal/routing"
	"relaydesk/internal/tenant"
	"relaydesk/pkg/domain"
	dErrors "relaydesk/pkg/domain-errors"
	httperrors "relaydesk/pkg/http-errors"
	"relaydesk/pkg/httputil"
)

// Handler serves the operator API on top of the tenant registry.
type Handler struct {
	registry *tenant.Registry
	logger   *slog.Logger
}

func NewHandler(registry *tenant.Registry, logger *slog.Logger) *Handler {
	return &Handler{registry: registry, logger: logger}
}

type createTenantRequest struct {
	WorkspaceID         string            `json:"workspaceId"`
	TicketCategoryID    string            `json:"ticketCategoryId"`
	TranscriptChannelID string            `json:"transcriptChannelId"`
	FeedbackChannelID   string            `json:"feedbackChannelId"`
	Settings            map[string]string `json:"settings"`
}

func (h *Handler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeJSON[createTenantRequest](w, r, h.logger)
	if !ok {
		return
	}
	workspaceID, err := domain.ParseWorkspaceID(req.WorkspaceID)
	if err != nil {
		httperrors.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid workspace ID"))
		return
	}

	t, err := h.registry.CreateTenant(r.Context(), tenant.CreateOptions{
		WorkspaceID:         workspaceID,
		TicketCategoryID:    req.TicketCategoryID,
		TranscriptChannelID: domain.ChannelID(req.TranscriptChannelID),
		FeedbackChannelID:   domain.ChannelID(req.FeedbackChannelID),
		Settings:            tenant.Settings(req.Settings),
	})
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, t)
}

func (h *Handler) ListTenants(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.registry.List())
}

func (h *Handler) GetTenant(w http.ResponseWriter, r *http.Request) {
	id, err := tenantIDFrom(r)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	t, err := h.registry.Get(id)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) RemoveTenant(w http.ResponseWriter, r *http.Request) {
	id, err := tenantIDFrom(r)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	if err := h.registry.RemoveTenant(r.Context(), id); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	id, err := tenantIDFrom(r)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeJSON[map[string]string](w, r, h.logger)
	if !ok {
		return
	}
	updated, err := h.registry.UpdateSettings(r.Context(), id, tenant.Settings(*req))
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

type connectRequest struct {
	ForceBootstrap bool `json:"forceBootstrap"`
}

type connectResponse struct {
	State string `json:"state"`
}

func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	id, err := tenantIDFrom(r)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeJSON[connectRequest](w, r, h.logger)
	if !ok {
		return
	}
	mgr, err := h.registry.Session(r.Context(), id)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	state, err := mgr.Connect(r.Context(), req.ForceBootstrap)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, connectResponse{State: state.String()})
}

type disconnectRequest struct {
	LogOut bool `json:"logOut"`
}

func (h *Handler) Disconnect(w http.ResponseWriter, r *http.Request) {
	id, err := tenantIDFrom(r)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeJSON[disconnectRequest](w, r, h.logger)
	if !ok {
		return
	}
	mgr, err := h.registry.Session(r.Context(), id)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	if err := mgr.Disconnect(r.Context(), req.LogOut); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, connectResponse{State: mgr.State().String()})
}

func (h *Handler) SessionStatus(w http.ResponseWriter, r *http.Request) {
	id, err := tenantIDFrom(r)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	mgr, err := h.registry.Session(r.Context(), id)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, mgr.Status())
}

type qrResponse struct {
	Code      string    `json:"code"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *Handler) CurrentQR(w http.ResponseWriter, r *http.Request) {
	id, err := tenantIDFrom(r)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	mgr, err := h.registry.Session(r.Context(), id)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	challenge, ok := mgr.CurrentQR()
	if !ok {
		httperrors.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no live QR challenge"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, qrResponse{
		Code:      challenge.Code,
		IssuedAt:  challenge.IssuedAt,
		ExpiresAt: challenge.ExpiresAt,
	})
}

func (h *Handler) ListRoutes(w http.ResponseWriter, r *http.Request) {
	id, err := tenantIDFrom(r)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	mgr, err := h.registry.Session(r.Context(), id)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, mgr.Routes().Entries())
}

type closeTicketRequest struct {
	ClosedBy         string `json:"closedBy"`
	SendNotification bool   `json:"sendNotification"`
}

func (h *Handler) CloseTicket(w http.ResponseWriter, r *http.Request) {
	id, err := tenantIDFrom(r)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	conversationID, err := routing.Normalize(chi.URLParam(r, "conversationID"))
	if err != nil {
		httperrors.WriteError(w, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid conversation ID"))
		return
	}
	req, ok := httputil.DecodeJSON[closeTicketRequest](w, r, h.logger)
	if !ok {
		return
	}
	closedBy := req.ClosedBy
	if closedBy == "" {
		closedBy = middleware.GetOperator(r.Context())
	}

	tickets, err := h.registry.Tickets(r.Context(), id)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	if err := tickets.Close(r.Context(), conversationID, closedBy, req.SendNotification); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func tenantIDFrom(r *http.Request) (domain.TenantID, error) {
	id, err := domain.ParseTenantID(chi.URLParam(r, "tenantID"))
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid tenant ID")
	}
	return id, nil
}
