package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"storebot/internal/models"
	"storebot/internal/util"

	"go.uber.org/zap"
)

// SettingsService manages the deposit world, maintenance mode and the blacklist
type SettingsService struct {
	repo   SettingsRepository
	logger *zap.Logger
}

// NewSettingsService creates a new settings service
func NewSettingsService(repo SettingsRepository) *SettingsService {
	return &SettingsService{
		repo:   repo,
		logger: util.GetLogger(),
	}
}

// WorldInfoRequest is a new deposit world. Owner and bot are GrowIDs.
type WorldInfoRequest struct {
	World string `validate:"required,alphanum,max=24"`
	Owner string `validate:"growid"`
	Bot   string `validate:"growid"`
}

// WorldInfo returns the deposit world
func (s *SettingsService) WorldInfo(ctx context.Context) (*models.WorldInfo, error) {
	return s.repo.GetWorldInfo(ctx)
}

// SetWorldInfo replaces the deposit world. World names are stored upper case.
func (s *SettingsService) SetWorldInfo(ctx context.Context, req WorldInfoRequest, admin string) (*models.WorldInfo, error) {
	ctx, span := util.StartSpan(ctx, "SettingsService.SetWorldInfo")
	defer span.End()

	req.World = strings.ToUpper(strings.TrimSpace(req.World))
	req.Owner = strings.TrimSpace(req.Owner)
	req.Bot = strings.TrimSpace(req.Bot)
	if errs := util.ValidateStruct(&req); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidWorld, util.JoinFieldErrors(errs))
	}

	info := &models.WorldInfo{World: req.World, Owner: req.Owner, Bot: req.Bot}
	if err := s.repo.SetWorldInfo(ctx, info); err != nil {
		return nil, err
	}

	s.logger.Info("World info updated",
		zap.String("world", info.World),
		zap.String("owner", info.Owner),
		zap.String("bot", info.Bot),
		zap.String("admin", admin))
	return info, nil
}

// Maintenance reports whether maintenance mode is on
func (s *SettingsService) Maintenance(ctx context.Context) (bool, error) {
	value, ok, err := s.repo.GetSetting(ctx, models.SettingMaintenance)
	if err != nil || !ok {
		return false, err
	}
	return value == "1", nil
}

// SetMaintenance switches maintenance mode
func (s *SettingsService) SetMaintenance(ctx context.Context, on bool, admin string) error {
	value := "0"
	if on {
		value = "1"
	}
	if err := s.repo.SetSetting(ctx, models.SettingMaintenance, value); err != nil {
		return err
	}
	s.logger.Info("Maintenance mode changed", zap.Bool("on", on), zap.String("admin", admin))
	return nil
}

// Blacklist bars an existing GrowID from buying
func (s *SettingsService) Blacklist(ctx context.Context, growID, admin, reason string) error {
	ctx, span := util.StartSpan(ctx, "SettingsService.Blacklist")
	defer span.End()

	growID = strings.TrimSpace(growID)
	if err := validateGrowID(growID); err != nil {
		return err
	}

	reason = strings.TrimSpace(reason)
	entry := &models.BlacklistEntry{
		GrowID:  growID,
		AddedBy: admin,
		Reason:  sql.NullString{String: reason, Valid: reason != ""},
	}
	if err := s.repo.AddToBlacklist(ctx, entry); err != nil {
		return err
	}

	s.logger.Info("GrowID blacklisted", zap.String("growid", growID), zap.String("admin", admin))
	return nil
}

// Unblacklist lifts a ban. A GrowID that is not listed is ErrNotBlacklisted.
func (s *SettingsService) Unblacklist(ctx context.Context, growID, admin string) error {
	growID = strings.TrimSpace(growID)
	removed, err := s.repo.RemoveFromBlacklist(ctx, growID)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("%w: %s", ErrNotBlacklisted, growID)
	}

	s.logger.Info("GrowID removed from blacklist", zap.String("growid", growID), zap.String("admin", admin))
	return nil
}
