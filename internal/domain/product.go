package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type StockStatus string

const (
	StockStatusAvailable StockStatus = "available"
	StockStatusSoldOut   StockStatus = "sold-out"
)

var hundred = decimal.NewFromInt(100)

type Product struct {
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Category    string           `json:"category"`
	ImageURL    string           `json:"image_url"`
	Price       decimal.Decimal  `json:"price"`
	Discount    *decimal.Decimal `json:"discount,omitempty"`
	Stock       int              `json:"stock"`
	StockStatus StockStatus      `json:"stock_status"`
	LikesCount  int              `json:"likes_count"`
	CreatedBy   int64            `json:"created_by"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// ProductRef is the slice of a product other areas need to address a tenant.
type ProductRef struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	TenantID int64  `json:"tenant_id"`
}

// StockStatusFor derives the status column from a stock count.
func StockStatusFor(stock int) StockStatus {
	if stock <= 0 {
		return StockStatusSoldOut
	}
	return StockStatusAvailable
}

// DecrementStock floors the result at zero.
func DecrementStock(current, quantity int) (int, StockStatus) {
	next := current - quantity
	if next < 0 {
		next = 0
	}
	return next, StockStatusFor(next)
}

// FinalUnitPrice applies a percentage discount, rounded to cents.
func FinalUnitPrice(price decimal.Decimal, discount *decimal.Decimal) decimal.Decimal {
	if discount == nil {
		return price
	}
	factor := decimal.NewFromInt(1).Sub(discount.Div(hundred))
	return price.Mul(factor).Round(2)
}
