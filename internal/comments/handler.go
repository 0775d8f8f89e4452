package comments

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

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())

	productID, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	var in Input
	if err := httpx.Decode(r, &in); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	c, err := h.svc.Create(r.Context(), identity, productID, in)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusCreated, map[string]any{"success": true, "comment": c})
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	productID, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	comments, err := h.svc.List(r.Context(), productID)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]any{"success": true, "comments": comments})
}
