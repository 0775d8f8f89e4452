package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDecrementStock(t *testing.T) {
	tests := []struct {
		name       string
		current    int
		quantity   int
		wantStock  int
		wantStatus StockStatus
	}{
		{"leaves stock", 5, 1, 4, StockStatusAvailable},
		{"exactly sells out", 2, 2, 0, StockStatusSoldOut},
		{"oversell floors at zero", 1, 2, 0, StockStatusSoldOut},
		{"already empty", 0, 3, 0, StockStatusSoldOut},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stock, status := DecrementStock(tt.current, tt.quantity)
			assert.Equal(t, tt.wantStock, stock)
			assert.Equal(t, tt.wantStatus, status)
		})
	}
}

func TestStockStatusFor(t *testing.T) {
	assert.Equal(t, StockStatusSoldOut, StockStatusFor(-1))
	assert.Equal(t, StockStatusSoldOut, StockStatusFor(0))
	assert.Equal(t, StockStatusAvailable, StockStatusFor(1))
}

func TestFinalUnitPrice(t *testing.T) {
	price := decimal.RequireFromString("19.99")

	assert.True(t, FinalUnitPrice(price, nil).Equal(price))

	ten := decimal.NewFromInt(10)
	assert.Equal(t, "17.99", FinalUnitPrice(price, &ten).StringFixed(2))

	zero := decimal.Zero
	assert.True(t, FinalUnitPrice(price, &zero).Equal(price))

	full := decimal.NewFromInt(100)
	assert.True(t, FinalUnitPrice(price, &full).IsZero())
}

func TestOrderStatusTransitions(t *testing.T) {
	allowed := map[OrderStatus][]OrderStatus{
		OrderStatusPending:   {OrderStatusAccepted, OrderStatusRejected},
		OrderStatusAccepted:  {OrderStatusCompleted},
		OrderStatusCompleted: {OrderStatusConfirmed, OrderStatusDisputed},
	}
	all := []OrderStatus{
		OrderStatusPending, OrderStatusAccepted, OrderStatusRejected,
		OrderStatusCompleted, OrderStatusConfirmed, OrderStatusDisputed,
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, next := range allowed[from] {
				if next == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}

	assert.False(t, OrderStatus("shipped").Valid())
	assert.True(t, OrderStatusDisputed.Valid())
}

func TestNotificationTypeValid(t *testing.T) {
	assert.True(t, NotificationOrderDispute.Valid())
	assert.False(t, NotificationType("email").Valid())
}
