package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joao-fontenele/storefront-api/internal/apperr"
	"github.com/joao-fontenele/storefront-api/internal/domain"
)

// ErrMissingTenant is returned when neither a tenant nor an existing product
// identifies the recipient.
var ErrMissingTenant = apperr.Validation("tenant could not be resolved for notification")

type Store interface {
	Insert(ctx context.Context, n *domain.Notification) error
	ProductOwner(ctx context.Context, productID int64) (int64, error)
	ListForTenant(ctx context.Context, tenantID int64, kind domain.NotificationType) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id, tenantID int64) error
	MarkAllRead(ctx context.Context, tenantID int64, kind domain.NotificationType) (int64, error)
}

type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Notify resolves the recipient tenant and persists the notification.
func (s *Service) Notify(ctx context.Context, req domain.NotificationRequest) (int64, error) {
	if err := validateType(req.Type, false); err != nil {
		return 0, err
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		return 0, apperr.Validation("message is required")
	}

	tenantID, err := s.resolveTenant(ctx, req)
	if err != nil {
		return 0, err
	}

	var data json.RawMessage
	if req.Data != nil {
		data, err = json.Marshal(req.Data)
		if err != nil {
			return 0, apperr.Wrap(apperr.KindValidation, err, "data is not valid JSON")
		}
	}

	n := &domain.Notification{
		Type:      req.Type,
		TenantID:  tenantID,
		ProductID: req.ProductID,
		OrderID:   req.OrderID,
		Message:   req.Message,
		Data:      data,
	}
	if err := s.store.Insert(ctx, n); err != nil {
		return 0, fmt.Errorf("insert notification: %w", err)
	}

	s.logger.Debug("notification stored", "notification_id", n.ID, "type", n.Type, "tenant_id", tenantID)
	return n.ID, nil
}

func (s *Service) resolveTenant(ctx context.Context, req domain.NotificationRequest) (int64, error) {
	if req.TenantID > 0 {
		return req.TenantID, nil
	}
	if req.ProductID == nil {
		return 0, ErrMissingTenant
	}

	tenantID, err := s.store.ProductOwner(ctx, *req.ProductID)
	if apperr.Is(err, apperr.KindNotFound) {
		return 0, ErrMissingTenant
	}
	if err != nil {
		return 0, fmt.Errorf("resolve tenant for product %d: %w", *req.ProductID, err)
	}
	return tenantID, nil
}

func (s *Service) ListForTenant(ctx context.Context, tenantID int64, kind domain.NotificationType) ([]domain.Notification, error) {
	if err := validateType(kind, true); err != nil {
		return nil, err
	}
	return s.store.ListForTenant(ctx, tenantID, kind)
}

func (s *Service) MarkRead(ctx context.Context, id, tenantID int64) error {
	return s.store.MarkRead(ctx, id, tenantID)
}

func (s *Service) MarkAllRead(ctx context.Context, tenantID int64, kind domain.NotificationType) error {
	if err := validateType(kind, true); err != nil {
		return err
	}

	n, err := s.store.MarkAllRead(ctx, tenantID, kind)
	if err != nil {
		return err
	}

	s.logger.Debug("notifications marked read", "tenant_id", tenantID, "type", kind, "count", n)
	return nil
}

func validateType(kind domain.NotificationType, allowEmpty bool) error {
	if kind == "" && allowEmpty {
		return nil
	}
	if !kind.Valid() {
		return apperr.Validation("unknown notification type %q", kind)
	}
	return nil
}
