package store

import (
	"context"
	"fmt"
	"sort"

	"storebot/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const stockColumns = "id, product_code, content, status, buyer_id, seller_id, added_by, added_at, used_at, updated_at"

// AddStock inserts a new AVAILABLE stock item
func (s *Store) AddStock(ctx context.Context, item *models.StockItem) error {
	query := `
		INSERT INTO stock (product_code, content, status, seller_id, added_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, added_at, updated_at`

	item.Status = models.StockStatusAvailable
	err := s.db.QueryRowxContext(ctx, query,
		item.ProductCode, item.Content, item.Status, item.SellerID, item.AddedBy,
	).Scan(&item.ID, &item.AddedAt, &item.UpdatedAt)
	switch {
	case isForeignKeyViolation(err):
		return fmt.Errorf("%w: %s", ErrProductNotFound, item.ProductCode)
	case isUniqueViolation(err):
		return ErrDuplicateContent
	case err != nil:
		return fmt.Errorf("failed to add stock: %w", err)
	}
	return nil
}

// CountAvailable returns the number of AVAILABLE items of a product
func (s *Store) CountAvailable(ctx context.Context, code string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM stock WHERE product_code = $1 AND status = $2",
		code, models.StockStatusAvailable)
	if err != nil {
		return 0, fmt.Errorf("failed to count stock: %w", err)
	}
	return count, nil
}

// ReserveStock atomically sells quantity items of a product to buyerID
func (s *Store) ReserveStock(ctx context.Context, code string, quantity int, buyerID string) ([]models.StockItem, error) {
	var items []models.StockItem
	err := s.WithTx(ctx, func(tx Tx) error {
		var err error
		items, err = tx.ReserveStock(ctx, code, quantity, buyerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// RemoveStock marks the newest quantity AVAILABLE items of a product REMOVED
func (s *Store) RemoveStock(ctx context.Context, code string, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, ErrInvalidQuantity
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := lockProduct(ctx, tx, code); err != nil {
		return 0, err
	}

	var ids []int64
	err = tx.SelectContext(ctx, &ids, `
		SELECT id FROM stock
		WHERE product_code = $1 AND status = $2
		ORDER BY added_at DESC, id DESC
		LIMIT $3`,
		code, models.StockStatusAvailable, quantity)
	if err != nil {
		return 0, fmt.Errorf("failed to select stock: %w", err)
	}
	if len(ids) < quantity {
		return 0, fmt.Errorf("%w: %s has %d, requested %d", ErrInsufficientStock, code, len(ids), quantity)
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE stock SET status = $1, updated_at = NOW() WHERE id = ANY($2) AND status = $3",
		models.StockStatusRemoved, pq.Array(ids), models.StockStatusAvailable)
	if err != nil {
		return 0, fmt.Errorf("failed to remove stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count removed stock: %w", err)
	}
	if int(n) != quantity {
		return 0, fmt.Errorf("%w: removed %d of %d", ErrInsufficientStock, n, quantity)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return quantity, nil
}

// StockHistory retrieves the most recently changed items of a product
func (s *Store) StockHistory(ctx context.Context, code string, limit int) ([]models.StockItem, error) {
	var items []models.StockItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT "+stockColumns+" FROM stock WHERE product_code = $1 ORDER BY updated_at DESC, id DESC LIMIT $2",
		code, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get stock history: %w", err)
	}
	return items, nil
}

// reserveStock holds the product lock for the rest of the transaction so
// that concurrent reservations of one product see each other's writes.
func reserveStock(ctx context.Context, q sqlx.ExtContext, code string, quantity int, buyerID string) ([]models.StockItem, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	if _, err := lockProduct(ctx, q, code); err != nil {
		return nil, err
	}

	var ids []int64
	err := sqlx.SelectContext(ctx, q, &ids, `
		SELECT id FROM stock
		WHERE product_code = $1 AND status = $2
		ORDER BY added_at, id
		LIMIT $3`,
		code, models.StockStatusAvailable, quantity)
	if err != nil {
		return nil, fmt.Errorf("failed to select stock: %w", err)
	}
	if len(ids) < quantity {
		return nil, fmt.Errorf("%w: %s has %d, requested %d", ErrInsufficientStock, code, len(ids), quantity)
	}

	var items []models.StockItem
	err = sqlx.SelectContext(ctx, q, &items, `
		UPDATE stock
		SET status = $1, buyer_id = $2, used_at = NOW(), updated_at = NOW()
		WHERE id = ANY($3) AND status = $4
		RETURNING `+stockColumns,
		models.StockStatusSold, buyerID, pq.Array(ids), models.StockStatusAvailable)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve stock: %w", err)
	}
	if len(items) != quantity {
		return nil, fmt.Errorf("%w: reserved %d of %d", ErrInsufficientStock, len(items), quantity)
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].AddedAt.Equal(items[j].AddedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].AddedAt.Before(items[j].AddedAt)
	})
	return items, nil
}
