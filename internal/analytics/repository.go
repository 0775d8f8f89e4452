package analytics

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/joao-fontenele/storefront-api/internal/domain"
)

const topProductsLimit = 5

type AnalyticsRepository struct {
	db *sql.DB
}

func NewAnalyticsRepository(db *sql.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// Summary aggregates everything scoped to products the tenant created.
// Rejected orders count toward orders by status but not toward sales.
func (r *AnalyticsRepository) Summary(ctx context.Context, tenantID int64) (*domain.TenantSummary, error) {
	s := &domain.TenantSummary{
		TenantID:       tenantID,
		OrdersByStatus: map[domain.OrderStatus]int{},
		TopProducts:    []domain.ProductSales{},
	}

	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE stock_status = 'sold-out')
		FROM products
		WHERE created_by = $1
	`, tenantID).Scan(&s.TotalProducts, &s.SoldOut)
	if err != nil {
		return nil, fmt.Errorf("product counts: %w", err)
	}

	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM likes l
		JOIN products p ON p.id = l.product_id
		WHERE p.created_by = $1
	`, tenantID).Scan(&s.TotalLikes)
	if err != nil {
		return nil, fmt.Errorf("like count: %w", err)
	}

	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT oi.order_id),
		       COALESCE(SUM(oi.quantity), 0),
		       COALESCE(SUM(oi.quantity * oi.price), 0)
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		JOIN orders o ON o.order_id = oi.order_id
		WHERE p.created_by = $1 AND o.status <> 'rejected'
	`, tenantID).Scan(&s.TotalOrders, &s.UnitsSold, &s.TotalRevenue)
	if err != nil {
		return nil, fmt.Errorf("sales totals: %w", err)
	}

	if err := r.ordersByStatus(ctx, tenantID, s); err != nil {
		return nil, err
	}
	if err := r.topProducts(ctx, tenantID, s); err != nil {
		return nil, err
	}

	return s, nil
}

func (r *AnalyticsRepository) ordersByStatus(ctx context.Context, tenantID int64, s *domain.TenantSummary) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT o.status, COUNT(DISTINCT o.order_id)
		FROM orders o
		JOIN order_items oi ON oi.order_id = o.order_id
		JOIN products p ON p.id = oi.product_id
		WHERE p.created_by = $1
		GROUP BY o.status
	`, tenantID)
	if err != nil {
		return fmt.Errorf("orders by status: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			status domain.OrderStatus
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return err
		}
		s.OrdersByStatus[status] = count
	}

	return rows.Err()
}

func (r *AnalyticsRepository) topProducts(ctx context.Context, tenantID int64, s *domain.TenantSummary) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.id, p.name,
		       COALESCE(SUM(oi.quantity), 0) AS units,
		       COALESCE(SUM(oi.quantity * oi.price), 0),
		       (SELECT COUNT(*) FROM likes l WHERE l.product_id = p.id)
		FROM products p
		LEFT JOIN order_items oi ON oi.product_id = p.id
			AND oi.order_id IN (SELECT order_id FROM orders WHERE status <> 'rejected')
		WHERE p.created_by = $1
		GROUP BY p.id, p.name
		ORDER BY units DESC, p.id
		LIMIT $2
	`, tenantID, topProductsLimit)
	if err != nil {
		return fmt.Errorf("top products: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var ps domain.ProductSales
		if err := rows.Scan(&ps.ProductID, &ps.Name, &ps.UnitsSold, &ps.Revenue, &ps.LikesCount); err != nil {
			return err
		}
		s.TopProducts = append(s.TopProducts, ps)
	}

	return rows.Err()
}
