package likes

import (
	"context"
	"database/sql"

	"github.com/joao-fontenele/storefront-api/internal/apperr"
	"github.com/joao-fontenele/storefront-api/internal/database"
	"github.com/joao-fontenele/storefront-api/internal/domain"
)

type LikeRepository struct {
	db *sql.DB
}

func NewLikeRepository(db *sql.DB) *LikeRepository {
	return &LikeRepository{db: db}
}

// Toggle flips the user's like and adjusts the product counter in the same
// transaction. The product row lock serializes toggles on one product.
func (r *LikeRepository) Toggle(ctx context.Context, productID, userID int64) (bool, domain.ProductRef, error) {
	var (
		liked   bool
		product domain.ProductRef
	)

	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			SELECT id, name, created_by FROM products WHERE id = $1 FOR UPDATE
		`, productID).Scan(&product.ID, &product.Name, &product.TenantID)
		if err != nil {
			return database.Translate(err, "product")
		}

		result, err := tx.ExecContext(ctx, `
			DELETE FROM likes WHERE product_id = $1 AND user_id = $2
		`, productID, userID)
		if err != nil {
			return err
		}
		removed, err := result.RowsAffected()
		if err != nil {
			return err
		}

		if removed > 0 {
			_, err = tx.ExecContext(ctx, `
				UPDATE products SET likes_count = GREATEST(likes_count - 1, 0) WHERE id = $1
			`, productID)
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO likes (product_id, user_id) VALUES ($1, $2)
		`, productID, userID)
		if err != nil {
			return database.Translate(err, "like")
		}
		liked = true

		_, err = tx.ExecContext(ctx, `
			UPDATE products SET likes_count = likes_count + 1 WHERE id = $1
		`, productID)
		return err
	})
	if err != nil {
		return false, domain.ProductRef{}, err
	}

	return liked, product, nil
}

// Status counts the like-set live. A zero userID reports liked as false.
func (r *LikeRepository) Status(ctx context.Context, productID, userID int64) (domain.LikeStatus, error) {
	var (
		status domain.LikeStatus
		exists bool
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT
			EXISTS (SELECT 1 FROM products WHERE id = $1),
			(SELECT COUNT(*) FROM likes WHERE product_id = $1),
			EXISTS (SELECT 1 FROM likes WHERE product_id = $1 AND user_id = $2)
	`, productID, userID).Scan(&exists, &status.LikesCount, &status.Liked)
	if err != nil {
		return domain.LikeStatus{}, err
	}

	if !exists {
		return domain.LikeStatus{}, apperr.NotFound("product not found")
	}
	return status, nil
}
