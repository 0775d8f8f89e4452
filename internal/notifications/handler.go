package notifications

import (
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/storefront-api/internal/auth"
	"github.com/joao-fontenele/storefront-api/internal/domain"
	"github.com/joao-fontenele/storefront-api/internal/httpx"
)

type Handler struct {
	svc    *Service
	logger *slog.Logger
}

func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req domain.NotificationRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	id, err := h.svc.Notify(r.Context(), req)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	h.logger.Info("notification created", "notification_id", id, "type", req.Type)
	httpx.WriteJSON(w, h.logger, http.StatusCreated, map[string]any{"success": true, "notification_id": id})
}

func (h *Handler) HandleListForTenant(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())
	kind := domain.NotificationType(r.URL.Query().Get("type"))

	notifications, err := h.svc.ListForTenant(r.Context(), identity.ID, kind)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]any{"success": true, "notifications": notifications})
}

func (h *Handler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())

	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	if err := h.svc.MarkRead(r.Context(), id, identity.ID); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) HandleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())
	kind := domain.NotificationType(r.URL.Query().Get("type"))

	if err := h.svc.MarkAllRead(r.Context(), identity.ID, kind); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]any{"success": true})
}
