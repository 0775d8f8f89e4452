package domain

import (
	"encoding/json"
	"time"
)

type NotificationType string

const (
	NotificationLike              NotificationType = "like"
	NotificationComment           NotificationType = "comment"
	NotificationReview            NotificationType = "review"
	NotificationCheckout          NotificationType = "checkout"
	NotificationOrderConfirmation NotificationType = "order_confirmation"
	NotificationOrderDispute      NotificationType = "order_dispute"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationLike, NotificationComment, NotificationReview, NotificationCheckout,
		NotificationOrderConfirmation, NotificationOrderDispute:
		return true
	}
	return false
}

type Notification struct {
	ID          int64            `json:"id"`
	Type        NotificationType `json:"type"`
	TenantID    int64            `json:"tenant_id"`
	ProductID   *int64           `json:"product_id,omitempty"`
	ProductName *string          `json:"product_name,omitempty"`
	OrderID     *string          `json:"order_id,omitempty"`
	Message     string           `json:"message"`
	Data        json.RawMessage  `json:"data"`
	IsRead      bool             `json:"is_read"`
	CreatedAt   time.Time        `json:"created_at"`
}

// NotificationRequest addresses a tenant directly or through a product it owns.
type NotificationRequest struct {
	Type      NotificationType `json:"type"`
	TenantID  int64            `json:"tenant_id,omitempty"`
	ProductID *int64           `json:"product_id,omitempty"`
	OrderID   *string          `json:"order_id,omitempty"`
	Message   string           `json:"message"`
	Data      map[string]any   `json:"data,omitempty"`
}
