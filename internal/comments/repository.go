package comments

import (
	"context"
	"database/sql"

	"github.com/joao-fontenele/storefront-api/internal/database"
	"github.com/joao-fontenele/storefront-api/internal/domain"
)

type CommentRepository struct {
	db *sql.DB
}

func NewCommentRepository(db *sql.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

func (r *CommentRepository) Product(ctx context.Context, productID int64) (domain.ProductRef, error) {
	var p domain.ProductRef
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, created_by FROM products WHERE id = $1
	`, productID).Scan(&p.ID, &p.Name, &p.TenantID)
	if err != nil {
		return domain.ProductRef{}, database.Translate(err, "product")
	}
	return p, nil
}

func (r *CommentRepository) Insert(ctx context.Context, c *domain.Comment) error {
	var rating sql.NullInt16
	if c.Rating != nil {
		rating = sql.NullInt16{Int16: int16(*c.Rating), Valid: true}
	}

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO comments (product_id, user_id, author_name, body, rating)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, c.ProductID, c.UserID, c.AuthorName, c.Body, rating).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		// 23503 here means the product was deleted after the lookup.
		return database.Translate(err, "comment")
	}
	return nil
}

func (r *CommentRepository) ListByProduct(ctx context.Context, productID int64) ([]domain.Comment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, user_id, author_name, body, rating, created_at
		FROM comments
		WHERE product_id = $1
		ORDER BY created_at DESC, id DESC
	`, productID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	comments := []domain.Comment{}
	for rows.Next() {
		var (
			c      domain.Comment
			rating sql.NullInt16
		)
		if err := rows.Scan(&c.ID, &c.ProductID, &c.UserID, &c.AuthorName, &c.Body, &rating, &c.CreatedAt); err != nil {
			return nil, err
		}
		if rating.Valid {
			v := int(rating.Int16)
			c.Rating = &v
		}
		comments = append(comments, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return comments, nil
}
