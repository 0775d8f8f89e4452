package likes

import (
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/storefront-api/internal/auth"
	"github.com/joao-fontenele/storefront-api/internal/httpx"
)

type Handler struct {
	svc    *Service
	logger *slog.Logger
}

func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())

	productID, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	liked, err := h.svc.Toggle(r.Context(), identity, productID)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]bool{"liked": liked})
}

func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())

	productID, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	status, err := h.svc.Status(r.Context(), identity, productID)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, status)
}
