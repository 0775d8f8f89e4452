package products

import (
	"log/slog"
	"net/http"
	"strconv"

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

	var in Input
	if err := httpx.Decode(r, &in); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	p, err := h.svc.Create(r.Context(), identity, in)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusCreated, map[string]any{"success": true, "product": p})
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	tenantID, err := httpx.QueryInt64(r, "tenant")
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	products, err := h.svc.List(r.Context(), Filter{
		Category: q.Get("category"),
		Query:    q.Get("q"),
		TenantID: tenantID,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	h.logger.Debug("products listed", "count", len(products))
	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]any{"success": true, "products": products})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	p, err := h.svc.Get(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]any{"success": true, "product": p})
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())

	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	var in Input
	if err := httpx.Decode(r, &in); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	p, err := h.svc.Update(r.Context(), identity, id, in)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]any{"success": true, "product": p})
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())

	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	if err := h.svc.Delete(r.Context(), identity, id); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]any{"success": true})
}
