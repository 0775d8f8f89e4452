package orders

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joao-fontenele/storefront-api/internal/apperr"
	"github.com/joao-fontenele/storefront-api/internal/auth"
	"github.com/joao-fontenele/storefront-api/internal/domain"
	"github.com/joao-fontenele/storefront-api/internal/httpx"
)

type Handler struct {
	svc    *Service
	logger *slog.Logger
	now    func() time.Time
}

func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger, now: time.Now}
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())

	var in CreateInput
	if err := httpx.Decode(r, &in); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	orderID, err := h.svc.CreateOrder(r.Context(), identity, in)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusCreated, map[string]any{"success": true, "order_id": orderID})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())

	orderID, err := pathOrderID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	order, err := h.svc.Get(r.Context(), identity, orderID)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]any{"success": true, "order": order})
}

func (h *Handler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())

	orders, err := h.svc.ListMine(r.Context(), identity)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	h.logger.Debug("orders listed", "user_id", identity.ID, "count", len(orders))
	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]any{"success": true, "orders": orders})
}

// HandleListForTenant responds with a bare array of joined order lines.
func (h *Handler) HandleListForTenant(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())

	lines, err := h.svc.ListForTenant(r.Context(), identity)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	h.logger.Debug("tenant orders listed", "tenant_id", identity.ID, "count", len(lines))
	httpx.WriteJSON(w, h.logger, http.StatusOK, lines)
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())

	orderID, err := pathOrderID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	var req updateStatusRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	if err := h.svc.UpdateStatus(r.Context(), identity, orderID, req.Status); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]any{"success": true})
}

type receivedRequest struct {
	Received *bool `json:"received"`
}

func (h *Handler) HandleReceived(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())

	orderID, err := pathOrderID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	var req receivedRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	if req.Received == nil {
		httpx.WriteError(w, h.logger, apperr.Validation("received is required"))
		return
	}

	status, err := h.svc.ConfirmReceipt(r.Context(), identity, orderID, *req.Received)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]any{"success": true, "status": status})
}

func (h *Handler) HandleAutoComplete(w http.ResponseWriter, r *http.Request) {
	count, err := h.svc.AutoComplete(r.Context(), h.now())
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]any{"success": true, "count": count})
}

func pathOrderID(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.PathValue("order_id"))
	if id == "" {
		return "", apperr.Validation("missing order id")
	}
	return id, nil
}
