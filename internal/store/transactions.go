package store

import (
	"context"
	"fmt"

	"storebot/internal/models"

	"github.com/jmoiron/sqlx"
)

const maxHistoryLimit = 50

// RecordTransaction appends a ledger entry outside of a purchase
func (s *Store) RecordTransaction(ctx context.Context, trx *models.Transaction) error {
	return recordTransaction(ctx, s.db, trx)
}

// TransactionHistory retrieves the newest ledger entries of a GrowID
func (s *Store) TransactionHistory(ctx context.Context, growID string, limit int) ([]models.Transaction, error) {
	if limit <= 0 || limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	var trxs []models.Transaction
	err := s.db.SelectContext(ctx, &trxs, `
		SELECT id, growid, type, details, old_balance, new_balance, items_count, total_price, created_at
		FROM transactions
		WHERE growid = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`,
		growID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction history: %w", err)
	}
	return trxs, nil
}

func recordTransaction(ctx context.Context, q sqlx.QueryerContext, trx *models.Transaction) error {
	query := `
		INSERT INTO transactions (growid, type, details, old_balance, new_balance, items_count, total_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := q.QueryRowxContext(ctx, query,
		trx.GrowID, trx.Type, trx.Details, trx.OldBalance, trx.NewBalance, trx.ItemsCount, trx.TotalPrice,
	).Scan(&trx.ID, &trx.CreatedAt)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("%w: %s", ErrUserNotFound, trx.GrowID)
	}
	if err != nil {
		return fmt.Errorf("failed to record transaction: %w", err)
	}
	return nil
}
