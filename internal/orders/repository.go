package orders

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/joao-fontenele/storefront-api/internal/apperr"
	"github.com/joao-fontenele/storefront-api/internal/database"
	"github.com/joao-fontenele/storefront-api/internal/domain"
)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Insert writes the order header. A reused order id is a Conflict.
func (r *OrderRepository) Insert(ctx context.Context, order *domain.Order) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO orders (order_id, user_id, customer_name, total, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, order.OrderID, order.UserID, order.CustomerName, order.Total, order.Status,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return database.Translate(err, "order")
	}
	return nil
}

// AddItem persists one line item and its stock decrement in a single
// transaction. The product row is locked so concurrent orders serialize.
func (r *OrderRepository) AddItem(ctx context.Context, orderID string, item domain.OrderItem) (*domain.StockChange, error) {
	var change domain.StockChange

	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var stock int
		err := tx.QueryRowContext(ctx, `
			SELECT id, name, created_by, stock FROM products WHERE id = $1 FOR UPDATE
		`, item.ProductID).Scan(&change.Product.ID, &change.Product.Name, &change.Product.TenantID, &stock)
		if err != nil {
			return database.Translate(err, "product")
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity, price)
			VALUES ($1, $2, $3, $4)
		`, orderID, item.ProductID, item.Quantity, item.Price)
		if err != nil {
			return database.Translate(err, "order item")
		}

		change.Stock, change.StockStatus = domain.DecrementStock(stock, item.Quantity)
		_, err = tx.ExecContext(ctx, `
			UPDATE products SET stock = $1, stock_status = $2, updated_at = NOW()
			WHERE id = $3
		`, change.Stock, change.StockStatus, item.ProductID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &change, nil
}

func (r *OrderRepository) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	order := &domain.Order{}

	err := r.db.QueryRowContext(ctx, `
		SELECT order_id, user_id, customer_name, total, status, created_at, updated_at
		FROM orders
		WHERE order_id = $1
	`, orderID).Scan(&order.OrderID, &order.UserID, &order.CustomerName, &order.Total,
		&order.Status, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, database.Translate(err, "order")
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT oi.product_id, p.name, oi.quantity, oi.price
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
		ORDER BY oi.id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	order.Items = []domain.OrderItem{}
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ProductID, &item.ProductName, &item.Quantity, &item.Price); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return order, nil
}

// ListByUser loads a buyer's orders newest first, fetching all items in one query.
func (r *OrderRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT order_id, user_id, customer_name, total, status, created_at, updated_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		var order domain.Order
		if err := rows.Scan(&order.OrderID, &order.UserID, &order.CustomerName, &order.Total,
			&order.Status, &order.CreatedAt, &order.UpdatedAt); err != nil {
			return nil, err
		}
		order.Items = []domain.OrderItem{}
		orderMap[order.OrderID] = &order
		orderIDs = append(orderIDs, order.OrderID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	itemRows, err := r.db.QueryContext(ctx, `
		SELECT oi.order_id, oi.product_id, p.name, oi.quantity, oi.price
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.id
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = itemRows.Close() }()

	for itemRows.Next() {
		var orderID string
		var item domain.OrderItem
		if err := itemRows.Scan(&orderID, &item.ProductID, &item.ProductName, &item.Quantity, &item.Price); err != nil {
			return nil, err
		}
		order := orderMap[orderID]
		order.Items = append(order.Items, item)
	}

	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}

// ListForTenant returns one row per line item that bought one of the tenant's products.
func (r *OrderRepository) ListForTenant(ctx context.Context, tenantID int64) ([]domain.TenantOrderLine, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT o.order_id, o.user_id, o.customer_name, o.total, o.status, o.created_at,
		       p.id, p.name, p.image_url, oi.quantity, oi.price
		FROM order_items oi
		JOIN orders o ON o.order_id = oi.order_id
		JOIN products p ON p.id = oi.product_id
		WHERE p.created_by = $1
		ORDER BY o.created_at DESC, oi.id
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	lines := []domain.TenantOrderLine{}
	for rows.Next() {
		var l domain.TenantOrderLine
		if err := rows.Scan(&l.OrderID, &l.UserID, &l.CustomerName, &l.Total, &l.Status, &l.CreatedAt,
			&l.ProductID, &l.ProductName, &l.ImageURL, &l.Quantity, &l.Price); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return lines, nil
}

// Owners lists the distinct tenants whose products appear in the order.
func (r *OrderRepository) Owners(ctx context.Context, orderID string) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT p.created_by
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
		ORDER BY p.created_by
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var owners []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		owners = append(owners, id)
	}

	return owners, rows.Err()
}

// StaleCompleted selects completed orders created before cutoff.
func (r *OrderRepository) StaleCompleted(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT order_id FROM orders
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at
	`, domain.OrderStatusCompleted, cutoff)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// Transition moves an order from one status to another only if it is still in
// from, and records (order_id, to) so the same transition can apply at most once.
func (r *OrderRepository) Transition(ctx context.Context, orderID string, from, to domain.OrderStatus, actor string) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE orders SET status = $1, updated_at = NOW()
			WHERE order_id = $2 AND status = $3
		`, to, orderID, from)
		if err != nil {
			return err
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rowsAffected == 0 {
			return apperr.Conflict("order %s is no longer %s", orderID, from)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_transitions (order_id, to_status, actor)
			VALUES ($1, $2, $3)
		`, orderID, to, actor)
		if database.IsUniqueViolation(err) {
			return apperr.Conflict("order %s already moved to %s", orderID, to)
		}
		return err
	})
}
