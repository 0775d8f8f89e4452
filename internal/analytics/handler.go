package analytics

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/storefront-api/internal/apperr"
	"github.com/joao-fontenele/storefront-api/internal/auth"
	"github.com/joao-fontenele/storefront-api/internal/domain"
	"github.com/joao-fontenele/storefront-api/internal/httpx"
)

type Store interface {
	Summary(ctx context.Context, tenantID int64) (*domain.TenantSummary, error)
}

type Handler struct {
	store  Store
	logger *slog.Logger
}

func NewHandler(store Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// HandleTenant reports on the caller's products. Admins may pass ?tenant=.
func (h *Handler) HandleTenant(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.FromContext(r.Context())

	tenantID := identity.ID
	requested, err := httpx.QueryInt64(r, "tenant")
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	if requested != 0 && requested != identity.ID {
		if !identity.IsAdmin() {
			httpx.WriteError(w, h.logger, apperr.Forbidden("cannot read another tenant's analytics"))
			return
		}
		tenantID = requested
	}

	summary, err := h.store.Summary(r.Context(), tenantID)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	h.logger.Debug("tenant analytics served", "tenant_id", tenantID, "orders", summary.TotalOrders)
	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]any{"success": true, "summary": summary})
}
