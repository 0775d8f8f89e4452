package products

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront-api/internal/database"
	"github.com/joao-fontenele/storefront-api/internal/domain"
)

const productColumns = `id, name, description, category, image_url, price, discount,
	stock, stock_status, likes_count, created_by, created_at, updated_at`

type Filter struct {
	Category string
	Query    string
	TenantID int64
	Limit    int
	Offset   int
}

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var (
		p        domain.Product
		discount decimal.NullDecimal
	)
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.ImageURL, &p.Price, &discount,
		&p.Stock, &p.StockStatus, &p.LikesCount, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if discount.Valid {
		p.Discount = &discount.Decimal
	}
	return &p, nil
}

func nullDiscount(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) error {
	p.StockStatus = domain.StockStatusFor(p.Stock)

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO products (name, description, category, image_url, price, discount, stock, stock_status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, likes_count, created_at, updated_at
	`, p.Name, p.Description, p.Category, p.ImageURL, p.Price, nullDiscount(p.Discount), p.Stock, p.StockStatus, p.CreatedBy,
	).Scan(&p.ID, &p.LikesCount, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return database.Translate(err, "product")
	}
	return nil
}

func (r *ProductRepository) Get(ctx context.Context, id int64) (*domain.Product, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if err != nil {
		return nil, database.Translate(err, "product")
	}
	return p, nil
}

func (r *ProductRepository) List(ctx context.Context, f Filter) ([]domain.Product, error) {
	var (
		where []string
		args  []any
	)
	if f.Category != "" {
		args = append(args, f.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if f.Query != "" {
		args = append(args, "%"+f.Query+"%")
		where = append(where, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	if f.TenantID != 0 {
		args = append(args, f.TenantID)
		where = append(where, fmt.Sprintf("created_by = $%d", len(args)))
	}

	query := `SELECT ` + productColumns + ` FROM products`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit, f.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	products := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (r *ProductRepository) Update(ctx context.Context, p *domain.Product) error {
	p.StockStatus = domain.StockStatusFor(p.Stock)

	err := r.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = $2, description = $3, category = $4, image_url = $5, price = $6, discount = $7,
		    stock = $8, stock_status = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING likes_count, created_by, created_at, updated_at
	`, p.ID, p.Name, p.Description, p.Category, p.ImageURL, p.Price, nullDiscount(p.Discount), p.Stock, p.StockStatus,
	).Scan(&p.LikesCount, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return database.Translate(err, "product")
	}
	return nil
}

func (r *ProductRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return database.Translate(err, "product")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return database.Translate(sql.ErrNoRows, "product")
	}

	return nil
}
