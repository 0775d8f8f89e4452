package notifications

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/joao-fontenele/storefront-api/internal/apperr"
	"github.com/joao-fontenele/storefront-api/internal/database"
	"github.com/joao-fontenele/storefront-api/internal/domain"
)

// ListLimit caps how many notifications a tenant sees per listing.
const ListLimit = 50

type NotificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Insert(ctx context.Context, n *domain.Notification) error {
	data := n.Data
	if len(data) == 0 {
		data = json.RawMessage(`{}`)
	}

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO notifications (type, tenant_id, product_id, order_id, message, data)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, is_read, created_at
	`, n.Type, n.TenantID, n.ProductID, n.OrderID, n.Message, []byte(data),
	).Scan(&n.ID, &n.IsRead, &n.CreatedAt)
	if err != nil {
		return database.Translate(err, "notification")
	}
	return nil
}

// ProductOwner returns the tenant that created the product.
func (r *NotificationRepository) ProductOwner(ctx context.Context, productID int64) (int64, error) {
	var tenantID int64
	err := r.db.QueryRowContext(ctx, `SELECT created_by FROM products WHERE id = $1`, productID).Scan(&tenantID)
	if err != nil {
		return 0, database.Translate(err, "product")
	}
	return tenantID, nil
}

// ListForTenant returns the newest notifications first. An empty kind lists every type.
func (r *NotificationRepository) ListForTenant(ctx context.Context, tenantID int64, kind domain.NotificationType) ([]domain.Notification, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT n.id, n.type, n.tenant_id, n.product_id, p.name, n.order_id, n.message, n.data, n.is_read, n.created_at
		FROM notifications n
		LEFT JOIN products p ON p.id = n.product_id
		WHERE n.tenant_id = $1 AND ($2 = '' OR n.type = $2)
		ORDER BY n.created_at DESC, n.id DESC
		LIMIT $3
	`, tenantID, string(kind), ListLimit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	notifications := []domain.Notification{}
	for rows.Next() {
		var (
			n           domain.Notification
			productID   sql.NullInt64
			productName sql.NullString
			orderID     sql.NullString
			data        []byte
		)
		if err := rows.Scan(&n.ID, &n.Type, &n.TenantID, &productID, &productName, &orderID,
			&n.Message, &data, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		if productID.Valid {
			n.ProductID = &productID.Int64
		}
		if productName.Valid {
			n.ProductName = &productName.String
		}
		if orderID.Valid {
			n.OrderID = &orderID.String
		}
		n.Data = json.RawMessage(data)
		notifications = append(notifications, n)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return notifications, nil
}

// MarkRead flags one notification. Marking an already read row still matches it.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, tenantID int64) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = TRUE
		WHERE id = $1 AND tenant_id = $2
	`, id, tenantID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return apperr.NotFound("notification not found")
	}
	return nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, tenantID int64, kind domain.NotificationType) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = TRUE
		WHERE tenant_id = $1 AND NOT is_read AND ($2 = '' OR type = $2)
	`, tenantID, string(kind))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
