package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusAccepted  OrderStatus = "accepted"
	OrderStatusRejected  OrderStatus = "rejected"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusDisputed  OrderStatus = "disputed"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusAccepted, OrderStatusRejected},
	OrderStatusAccepted:  {OrderStatusCompleted},
	OrderStatusCompleted: {OrderStatusConfirmed, OrderStatusDisputed},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusAccepted, OrderStatusRejected,
		OrderStatusCompleted, OrderStatusConfirmed, OrderStatusDisputed:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is a forward edge of the order workflow.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, candidate := range orderTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

type OrderItem struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name,omitempty"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

type Order struct {
	OrderID      string          `json:"order_id"`
	UserID       int64           `json:"user_id"`
	CustomerName string          `json:"customer_name"`
	Total        decimal.Decimal `json:"total"`
	Status       OrderStatus     `json:"status"`
	Items        []OrderItem     `json:"items"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// TenantOrderLine is one order line joined with the product it bought.
type TenantOrderLine struct {
	OrderID      string          `json:"order_id"`
	UserID       int64           `json:"user_id"`
	CustomerName string          `json:"customer_name"`
	Total        decimal.Decimal `json:"total"`
	Status       OrderStatus     `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	ProductID    int64           `json:"product_id"`
	ProductName  string          `json:"product_name"`
	ImageURL     string          `json:"image_url"`
	Quantity     int             `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
}

// StockChange is what a persisted line item did to its product.
type StockChange struct {
	Product     ProductRef
	Stock       int
	StockStatus StockStatus
}
