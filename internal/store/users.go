package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storebot/internal/models"

	"github.com/jmoiron/sqlx"
)

// RegisterGrowID links a Discord account to a GrowID, creating the user if
// needed. It returns the GrowID previously linked to the account, if any.
func (s *Store) RegisterGrowID(ctx context.Context, discordID, growID string) (string, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := ensureUser(ctx, tx, growID); err != nil {
		return "", err
	}

	var previous string
	err = tx.GetContext(ctx, &previous,
		"SELECT growid FROM user_growid WHERE discord_id = $1 FOR UPDATE", discordID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("failed to get growid: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_growid (discord_id, growid)
		VALUES ($1, $2)
		ON CONFLICT (discord_id) DO UPDATE SET growid = EXCLUDED.growid, updated_at = NOW()`,
		discordID, growID)
	if err != nil {
		return "", fmt.Errorf("failed to link growid: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return previous, nil
}

// GetGrowID returns the GrowID linked to a Discord account
func (s *Store) GetGrowID(ctx context.Context, discordID string) (string, error) {
	var growID string
	err := s.db.GetContext(ctx, &growID,
		"SELECT growid FROM user_growid WHERE discord_id = $1", discordID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: discord id %s", ErrUserNotFound, discordID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get growid: %w", err)
	}
	return growID, nil
}

// GetUser retrieves a user by GrowID
func (s *Store) GetUser(ctx context.Context, growID string) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user,
		"SELECT growid, balance, created_at, updated_at FROM users WHERE growid = $1", growID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, growID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func ensureUser(ctx context.Context, q sqlx.ExecerContext, growID string) error {
	_, err := q.ExecContext(ctx,
		"INSERT INTO users (growid) VALUES ($1) ON CONFLICT (growid) DO NOTHING", growID)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func lockBalance(ctx context.Context, q sqlx.QueryerContext, growID string) (int64, error) {
	var balance int64
	err := sqlx.GetContext(ctx, q, &balance,
		"SELECT balance FROM users WHERE growid = $1 FOR UPDATE", growID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrUserNotFound, growID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to lock balance: %w", err)
	}
	return balance, nil
}

func adjustBalance(ctx context.Context, q sqlx.ExtContext, growID string, delta int64) (int64, int64, error) {
	oldBalance, err := lockBalance(ctx, q, growID)
	if err != nil {
		return 0, 0, err
	}

	newBalance := oldBalance + delta
	if newBalance < 0 {
		return 0, 0, fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, oldBalance, -delta)
	}

	_, err = q.ExecContext(ctx,
		"UPDATE users SET balance = $1, updated_at = NOW() WHERE growid = $2", newBalance, growID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to update balance: %w", err)
	}
	return oldBalance, newBalance, nil
}

func setBalance(ctx context.Context, q sqlx.ExtContext, growID string, balance int64) (int64, error) {
	if balance < 0 {
		return 0, fmt.Errorf("%w: balance cannot be negative", ErrInsufficientBalance)
	}
	oldBalance, err := lockBalance(ctx, q, growID)
	if err != nil {
		return 0, err
	}
	_, err = q.ExecContext(ctx,
		"UPDATE users SET balance = $1, updated_at = NOW() WHERE growid = $2", balance, growID)
	if err != nil {
		return 0, fmt.Errorf("failed to set balance: %w", err)
	}
	return oldBalance, nil
}
