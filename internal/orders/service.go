package orders

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/storefront-api/internal/apperr"
	"github.com/joao-fontenele/storefront-api/internal/auth"
	"github.com/joao-fontenele/storefront-api/internal/domain"
)

// DefaultAutoCompleteAfter is how long a completed order waits for the buyer
// before the sweep confirms it.
const DefaultAutoCompleteAfter = 24 * time.Hour

const sweeperActor = "sweeper"

type Store interface {
	Insert(ctx context.Context, order *domain.Order) error
	AddItem(ctx context.Context, orderID string, item domain.OrderItem) (*domain.StockChange, error)
	Get(ctx context.Context, orderID string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Order, error)
	ListForTenant(ctx context.Context, tenantID int64) ([]domain.TenantOrderLine, error)
	Owners(ctx context.Context, orderID string) ([]int64, error)
	StaleCompleted(ctx context.Context, cutoff time.Time) ([]string, error)
	Transition(ctx context.Context, orderID string, from, to domain.OrderStatus, actor string) error
}

// ProductCache drops cached product reads after stock changes.
type ProductCache interface {
	Invalidate(ctx context.Context, productID int64)
}

// Notifier hands notification requests to the fan-out queue.
type Notifier interface {
	Publish(ctx context.Context, req domain.NotificationRequest) error
}

// CreationError reports a line item whose product does not exist. Items
// processed before it stay persisted.
type CreationError struct {
	OrderID   string
	ProductID int64
	Processed int
	Err       error
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("order %s: line item %d references product %d: %v", e.OrderID, e.Processed+1, e.ProductID, e.Err)
}

func (e *CreationError) Unwrap() error { return e.Err }

type LineItem struct {
	ProductID int64            `json:"product_id"`
	Quantity  int              `json:"quantity"`
	Price     decimal.Decimal  `json:"price"`
	Discount  *decimal.Decimal `json:"discount"`
}

type CreateInput struct {
	CustomerName string          `json:"customer_name"`
	Items        []LineItem      `json:"items"`
	Total        decimal.Decimal `json:"total"`
}

func (in *CreateInput) Validate() error {
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	if len(in.Items) == 0 {
		return apperr.Validation("order must contain at least one item")
	}
	if in.Total.IsNegative() {
		return apperr.Validation("total must not be negative")
	}
	for i, item := range in.Items {
		switch {
		case item.ProductID <= 0:
			return apperr.Validation("item %d: product_id is required", i)
		case item.Quantity <= 0:
			return apperr.Validation("item %d: quantity must be positive", i)
		case item.Price.IsNegative():
			return apperr.Validation("item %d: price must not be negative", i)
		case item.Discount != nil && (item.Discount.IsNegative() || item.Discount.GreaterThan(decimal.NewFromInt(100))):
			return apperr.Validation("item %d: discount must be between 0 and 100", i)
		}
	}
	return nil
}

type Service struct {
	store             Store
	products          ProductCache
	notifier          Notifier
	logger            *slog.Logger
	autoCompleteAfter time.Duration
	newID             func() string

	created       metric.Int64Counter
	lineItems     metric.Int64Counter
	autoConfirmed metric.Int64Counter
}

func NewService(store Store, products ProductCache, notifier Notifier, autoCompleteAfter time.Duration, logger *slog.Logger) (*Service, error) {
	if autoCompleteAfter <= 0 {
		autoCompleteAfter = DefaultAutoCompleteAfter
	}

	meter := otel.Meter("storefront/orders")
	created, err := meter.Int64Counter("orders.created", metric.WithDescription("Orders placed"))
	if err != nil {
		return nil, err
	}
	lineItems, err := meter.Int64Counter("orders.line_items", metric.WithDescription("Line items persisted"))
	if err != nil {
		return nil, err
	}
	autoConfirmed, err := meter.Int64Counter("orders.auto_confirmed", metric.WithDescription("Orders confirmed by the sweep"))
	if err != nil {
		return nil, err
	}

	return &Service{
		store:             store,
		products:          products,
		notifier:          notifier,
		logger:            logger,
		autoCompleteAfter: autoCompleteAfter,
		newID:             newOrderID,
		created:           created,
		lineItems:         lineItems,
		autoConfirmed:     autoConfirmed,
	}, nil
}

// newOrderID returns ORD- followed by 16 upper-case hex characters.
func newOrderID() string {
	id := uuid.New()
	return "ORD-" + strings.ToUpper(hex.EncodeToString(id[8:]))
}

// CreateOrder writes the order header and then each line item in its own
// transaction. A missing product stops processing with a CreationError.
func (s *Service) CreateOrder(ctx context.Context, actor auth.Identity, in CreateInput) (string, error) {
	if err := in.Validate(); err != nil {
		return "", err
	}
	if in.CustomerName == "" {
		in.CustomerName = actor.Username
	}

	order := &domain.Order{
		OrderID:      s.newID(),
		UserID:       actor.ID,
		CustomerName: in.CustomerName,
		Total:        in.Total,
		Status:       domain.OrderStatusPending,
	}
	if err := s.store.Insert(ctx, order); err != nil {
		return "", err
	}

	for i, line := range in.Items {
		item := domain.OrderItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Price:     domain.FinalUnitPrice(line.Price, line.Discount),
		}

		change, err := s.store.AddItem(ctx, order.OrderID, item)
		if apperr.Is(err, apperr.KindNotFound) {
			s.logger.Warn("order creation stopped on missing product",
				"order_id", order.OrderID, "product_id", line.ProductID, "items_persisted", i)
			cause := &CreationError{OrderID: order.OrderID, ProductID: line.ProductID, Processed: i, Err: err}
			return "", apperr.Wrap(apperr.KindValidation, cause, fmt.Sprintf("product %d does not exist", line.ProductID))
		}
		if err != nil {
			return "", fmt.Errorf("add item %d to order %s: %w", line.ProductID, order.OrderID, err)
		}

		s.lineItems.Add(ctx, 1)
		s.products.Invalidate(ctx, line.ProductID)
		s.notifyCheckout(ctx, order, item, change)
	}

	s.created.Add(ctx, 1)
	s.logger.Info("order created", "order_id", order.OrderID, "user_id", order.UserID, "items", len(in.Items))
	return order.OrderID, nil
}

func (s *Service) notifyCheckout(ctx context.Context, order *domain.Order, item domain.OrderItem, change *domain.StockChange) {
	lineTotal := item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
	productID := change.Product.ID

	s.notify(ctx, domain.NotificationRequest{
		Type:      domain.NotificationCheckout,
		TenantID:  change.Product.TenantID,
		ProductID: &productID,
		OrderID:   &order.OrderID,
		Message:   fmt.Sprintf("%s ordered %d x %s", order.CustomerName, item.Quantity, change.Product.Name),
		Data: map[string]any{
			"customer_name": order.CustomerName,
			"product_name":  change.Product.Name,
			"quantity":      item.Quantity,
			"unit_price":    item.Price.StringFixed(2),
			"line_total":    lineTotal.StringFixed(2),
			"stock":         change.Stock,
			"stock_status":  change.StockStatus,
		},
	})
}

func (s *Service) notify(ctx context.Context, req domain.NotificationRequest) {
	if err := s.notifier.Publish(ctx, req); err != nil {
		s.logger.Warn("failed to enqueue notification", "error", err, "type", req.Type, "tenant_id", req.TenantID)
	}
}

var tenantSettable = []domain.OrderStatus{
	domain.OrderStatusAccepted,
	domain.OrderStatusRejected,
	domain.OrderStatusCompleted,
}

// UpdateStatus applies a tenant-driven transition. The actor must own a
// product in the order unless they are an admin.
func (s *Service) UpdateStatus(ctx context.Context, actor auth.Identity, orderID string, status domain.OrderStatus) error {
	if !slices.Contains(tenantSettable, status) {
		return apperr.Validation("status %q cannot be set on an order", status)
	}

	order, err := s.store.Get(ctx, orderID)
	if err != nil {
		return err
	}

	if !actor.IsAdmin() {
		owners, err := s.store.Owners(ctx, orderID)
		if err != nil {
			return fmt.Errorf("load order owners: %w", err)
		}
		if !slices.Contains(owners, actor.ID) {
			return apperr.Forbidden("order does not contain your products")
		}
	}

	if !order.Status.CanTransitionTo(status) {
		return apperr.Validation("cannot move order from %s to %s", order.Status, status)
	}

	if err := s.store.Transition(ctx, orderID, order.Status, status, actorLabel(actor)); err != nil {
		return err
	}

	s.logger.Info("order status updated", "order_id", orderID, "from", order.Status, "to", status, "actor_id", actor.ID)
	return nil
}

// ConfirmReceipt lets the buyer confirm or dispute a completed order.
func (s *Service) ConfirmReceipt(ctx context.Context, actor auth.Identity, orderID string, received bool) (domain.OrderStatus, error) {
	order, err := s.store.Get(ctx, orderID)
	if err != nil {
		return "", err
	}
	if order.UserID != actor.ID {
		return "", apperr.Forbidden("only the buyer can confirm receipt")
	}

	target, kind := domain.OrderStatusDisputed, domain.NotificationOrderDispute
	if received {
		target, kind = domain.OrderStatusConfirmed, domain.NotificationOrderConfirmation
	}

	if !order.Status.CanTransitionTo(target) {
		return "", apperr.Validation("cannot move order from %s to %s", order.Status, target)
	}

	if err := s.store.Transition(ctx, orderID, order.Status, target, actorLabel(actor)); err != nil {
		return "", err
	}

	message := fmt.Sprintf("%s confirmed receipt of order %s", order.CustomerName, orderID)
	if !received {
		message = fmt.Sprintf("%s disputed order %s", order.CustomerName, orderID)
	}
	s.notifyOwners(ctx, order, kind, message)

	s.logger.Info("order receipt recorded", "order_id", orderID, "status", target)
	return target, nil
}

// AutoComplete confirms every completed order created before now minus the
// grace period. Orders that moved in the meantime are skipped; only applied
// transitions are counted and notified.
func (s *Service) AutoComplete(ctx context.Context, now time.Time) (int, error) {
	ids, err := s.store.StaleCompleted(ctx, now.Add(-s.autoCompleteAfter))
	if err != nil {
		return 0, fmt.Errorf("select stale orders: %w", err)
	}

	var (
		count int
		errs  []error
	)
	for _, id := range ids {
		err := s.store.Transition(ctx, id, domain.OrderStatusCompleted, domain.OrderStatusConfirmed, sweeperActor)
		if apperr.Is(err, apperr.KindConflict) {
			s.logger.Debug("order already moved, skipping", "order_id", id)
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("confirm %s: %w", id, err))
			continue
		}

		count++
		s.autoConfirmed.Add(ctx, 1)

		order, err := s.store.Get(ctx, id)
		if err != nil {
			s.logger.Warn("confirmed order could not be reloaded for notification", "error", err, "order_id", id)
			continue
		}
		s.notifyOwners(ctx, order, domain.NotificationOrderConfirmation,
			fmt.Sprintf("Order %s was confirmed automatically", id))
	}

	if len(errs) > 0 {
		s.logger.Error("auto-complete sweep had failures", "error", errors.Join(errs...), "failed", len(errs))
	}
	s.logger.Info("auto-complete sweep finished", "candidates", len(ids), "confirmed", count)
	return count, errors.Join(errs...)
}

func (s *Service) notifyOwners(ctx context.Context, order *domain.Order, kind domain.NotificationType, message string) {
	owners, err := s.store.Owners(ctx, order.OrderID)
	if err != nil {
		s.logger.Warn("failed to resolve order owners", "error", err, "order_id", order.OrderID)
		return
	}

	for _, tenantID := range owners {
		s.notify(ctx, domain.NotificationRequest{
			Type:     kind,
			TenantID: tenantID,
			OrderID:  &order.OrderID,
			Message:  message,
			Data: map[string]any{
				"order_id":      order.OrderID,
				"customer_name": order.CustomerName,
				"total":         order.Total.StringFixed(2),
			},
		})
	}
}

// Get returns an order to its buyer, an owning tenant or an admin.
func (s *Service) Get(ctx context.Context, actor auth.Identity, orderID string) (*domain.Order, error) {
	order, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID == actor.ID || actor.IsAdmin() {
		return order, nil
	}

	owners, err := s.store.Owners(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order owners: %w", err)
	}
	if !slices.Contains(owners, actor.ID) {
		return nil, apperr.NotFound("order not found")
	}
	return order, nil
}

func (s *Service) ListMine(ctx context.Context, actor auth.Identity) ([]domain.Order, error) {
	return s.store.ListByUser(ctx, actor.ID)
}

func (s *Service) ListForTenant(ctx context.Context, actor auth.Identity) ([]domain.TenantOrderLine, error) {
	return s.store.ListForTenant(ctx, actor.ID)
}

func actorLabel(actor auth.Identity) string {
	return string(actor.Role) + ":" + strconv.FormatInt(actor.ID, 10)
}
