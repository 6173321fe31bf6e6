package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storebot/internal/models"

	"github.com/jmoiron/sqlx"
)

const productColumns = "code, name, price, description, created_at, updated_at"

// ProductUpdate holds the fields to change; nil fields are left as they are
type ProductUpdate struct {
	Name        *string
	Price       *int64
	Description *string
}

// CreateProduct inserts a new product
func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	query := `
		INSERT INTO products (code, name, price, description)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		product.Code, product.Name, product.Price, product.Description,
	).Scan(&product.CreatedAt, &product.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrDuplicateCode, product.Code)
	}
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// GetProduct retrieves a product by code
func (s *Store) GetProduct(ctx context.Context, code string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product,
		"SELECT "+productColumns+" FROM products WHERE code = $1", code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, code)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &product, nil
}

// UpdateProduct changes the non-nil fields of a product
func (s *Store) UpdateProduct(ctx context.Context, code string, upd ProductUpdate) (*models.Product, error) {
	query := `
		UPDATE products
		SET name = COALESCE($1, name),
		    price = COALESCE($2, price),
		    description = COALESCE($3, description),
		    updated_at = NOW()
		WHERE code = $4
		RETURNING ` + productColumns

	var product models.Product
	err := s.db.GetContext(ctx, &product, query, upd.Name, upd.Price, upd.Description, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, code)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return &product, nil
}

// DeleteProduct removes a product that no stock row references
func (s *Store) DeleteProduct(ctx context.Context, code string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := lockProduct(ctx, tx, code); err != nil {
		return err
	}

	var hasStock bool
	err = tx.GetContext(ctx, &hasStock,
		"SELECT EXISTS(SELECT 1 FROM stock WHERE product_code = $1)", code)
	if err != nil {
		return fmt.Errorf("failed to check stock: %w", err)
	}
	if hasStock {
		return fmt.Errorf("%w: %s", ErrHasStock, code)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM products WHERE code = $1", code); err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	return tx.Commit()
}

// ListProductsWithStock retrieves all products with their available counts
func (s *Store) ListProductsWithStock(ctx context.Context) ([]models.ProductStock, error) {
	query := `
		SELECT p.code, p.name, p.price, p.description, p.created_at, p.updated_at,
		       COUNT(s.id) FILTER (WHERE s.status = $1) AS available
		FROM products p
		LEFT JOIN stock s ON s.product_code = p.code
		GROUP BY p.code
		ORDER BY p.code`

	var products []models.ProductStock
	if err := s.db.SelectContext(ctx, &products, query, models.StockStatusAvailable); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

func lockProduct(ctx context.Context, q sqlx.QueryerContext, code string) (*models.Product, error) {
	var product models.Product
	err := sqlx.GetContext(ctx, q, &product,
		"SELECT "+productColumns+" FROM products WHERE code = $1 FOR UPDATE", code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, code)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock product: %w", err)
	}
	return &product, nil
}
