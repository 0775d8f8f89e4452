package domain

import "github.com/shopspring/decimal"

type ProductSales struct {
	ProductID  int64           `json:"product_id"`
	Name       string          `json:"name"`
	UnitsSold  int             `json:"units_sold"`
	Revenue    decimal.Decimal `json:"revenue"`
	LikesCount int             `json:"likes_count"`
}

type TenantSummary struct {
	TenantID       int64               `json:"tenant_id"`
	TotalOrders    int                 `json:"total_orders"`
	TotalRevenue   decimal.Decimal     `json:"total_revenue"`
	UnitsSold      int                 `json:"units_sold"`
	TotalProducts  int                 `json:"total_products"`
	SoldOut        int                 `json:"sold_out"`
	TotalLikes     int                 `json:"total_likes"`
	OrdersByStatus map[OrderStatus]int `json:"orders_by_status"`
	TopProducts    []ProductSales      `json:"top_products"`
}
