package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storebot/internal/models"
)

// GetWorldInfo returns the deposit world, or ErrNotFound before one is set
func (s *Store) GetWorldInfo(ctx context.Context) (*models.WorldInfo, error) {
	var info models.WorldInfo
	err := s.db.GetContext(ctx, &info,
		"SELECT world, owner, bot, updated_at FROM world_info WHERE id = 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWorldInfoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get world info: %w", err)
	}
	return &info, nil
}

// SetWorldInfo replaces the deposit world
func (s *Store) SetWorldInfo(ctx context.Context, info *models.WorldInfo) error {
	err := s.db.GetContext(ctx, &info.UpdatedAt, `
		INSERT INTO world_info (id, world, owner, bot)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET world = EXCLUDED.world, owner = EXCLUDED.owner, bot = EXCLUDED.bot, updated_at = NOW()
		RETURNING updated_at`,
		info.World, info.Owner, info.Bot)
	if err != nil {
		return fmt.Errorf("failed to set world info: %w", err)
	}
	return nil
}

// GetSetting reads a bot setting. ok is false when the key was never set.
func (s *Store) GetSetting(ctx context.Context, key string) (value string, ok bool, err error) {
	err = s.db.GetContext(ctx, &value, "SELECT value FROM bot_settings WHERE key = $1", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, true, nil
}

// SetSetting writes a bot setting
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bot_settings (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		key, value)
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

// AddToBlacklist bars a GrowID, replacing any earlier entry
func (s *Store) AddToBlacklist(ctx context.Context, entry *models.BlacklistEntry) error {
	err := s.db.GetContext(ctx, &entry.AddedAt, `
		INSERT INTO blacklist (growid, added_by, reason)
		VALUES ($1, $2, $3)
		ON CONFLICT (growid) DO UPDATE
		SET added_by = EXCLUDED.added_by, reason = EXCLUDED.reason, added_at = NOW()
		RETURNING added_at`,
		entry.GrowID, entry.AddedBy, entry.Reason)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("%w: %s", ErrUserNotFound, entry.GrowID)
	}
	if err != nil {
		return fmt.Errorf("failed to blacklist %s: %w", entry.GrowID, err)
	}
	return nil
}

// RemoveFromBlacklist lifts a ban. It reports whether the GrowID was listed.
func (s *Store) RemoveFromBlacklist(ctx context.Context, growID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM blacklist WHERE growid = $1", growID)
	if err != nil {
		return false, fmt.Errorf("failed to unblacklist %s: %w", growID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to count unblacklisted rows: %w", err)
	}
	return n > 0, nil
}

// IsBlacklisted reports whether a GrowID is barred from buying
func (s *Store) IsBlacklisted(ctx context.Context, growID string) (bool, error) {
	var listed bool
	err := s.db.GetContext(ctx, &listed,
		"SELECT EXISTS (SELECT 1 FROM blacklist WHERE growid = $1)", growID)
	if err != nil {
		return false, fmt.Errorf("failed to check blacklist: %w", err)
	}
	return listed, nil
}
