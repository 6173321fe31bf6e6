package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorldInfo(t *testing.T) {
	repo := newFakeRepo()
	svc := NewSettingsService(repo)
	ctx := context.Background()

	_, err := svc.WorldInfo(ctx)
	assert.ErrorIs(t, err, ErrWorldInfoNotFound)

	info, err := svc.SetWorldInfo(ctx, WorldInfoRequest{World: " buyworld ", Owner: "Owner_1", Bot: "ShopBot"}, "admin")
	require.NoError(t, err)
	assert.Equal(t, "BUYWORLD", info.World)

	got, err := svc.WorldInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "BUYWORLD", got.World)
	assert.Equal(t, "Owner_1", got.Owner)
	assert.Equal(t, "ShopBot", got.Bot)
}

func TestSetWorldInfoValidation(t *testing.T) {
	svc := NewSettingsService(newFakeRepo())

	tests := []struct {
		name string
		req  WorldInfoRequest
	}{
		{"empty world", WorldInfoRequest{World: "", Owner: "Owner", Bot: "Bot1"}},
		{"world with spaces", WorldInfoRequest{World: "BUY WORLD", Owner: "Owner", Bot: "Bot1"}},
		{"world too long", WorldInfoRequest{World: "ABCDEFGHIJKLMNOPQRSTUVWXY", Owner: "Owner", Bot: "Bot1"}},
		{"bad owner", WorldInfoRequest{World: "BUY", Owner: "o", Bot: "Bot1"}},
		{"bad bot", WorldInfoRequest{World: "BUY", Owner: "Owner", Bot: "bot!"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SetWorldInfo(context.Background(), tt.req, "admin")
			assert.ErrorIs(t, err, ErrInvalidWorld)
		})
	}
}

func TestMaintenance(t *testing.T) {
	svc := NewSettingsService(newFakeRepo())
	ctx := context.Background()

	on, err := svc.Maintenance(ctx)
	require.NoError(t, err)
	assert.False(t, on)

	require.NoError(t, svc.SetMaintenance(ctx, true, "admin"))
	on, err = svc.Maintenance(ctx)
	require.NoError(t, err)
	assert.True(t, on)

	require.NoError(t, svc.SetMaintenance(ctx, false, "admin"))
	on, err = svc.Maintenance(ctx)
	require.NoError(t, err)
	assert.False(t, on)
}

func TestBlacklist(t *testing.T) {
	repo := newFakeRepo()
	repo.seedUser("Alice", 0)
	svc := NewSettingsService(repo)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Blacklist(ctx, "Ghost", "admin", ""), ErrUserNotFound)
	assert.ErrorIs(t, svc.Blacklist(ctx, "a", "admin", ""), ErrInvalidGrowID)

	require.NoError(t, svc.Blacklist(ctx, "Alice", "admin", " chargeback "))
	assert.Equal(t, "chargeback", repo.blacklist["Alice"].Reason.String)

	require.NoError(t, svc.Unblacklist(ctx, "Alice", "admin"))
	assert.ErrorIs(t, svc.Unblacklist(ctx, "Alice", "admin"), ErrNotBlacklisted)
}

func TestPurchaseRejectsBlacklistedBuyer(t *testing.T) {
	svc, repo, _, _ := newTestPurchaseService()
	repo.seedProduct("DL", 100, 3)
	repo.seedUser("Alice", 1000)
	require.NoError(t, NewSettingsService(repo).Blacklist(context.Background(), "Alice", "admin", ""))

	_, err := svc.Purchase(context.Background(), "Alice", "DL", 1)
	assert.ErrorIs(t, err, ErrBlacklisted)

	var perr *PurchaseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, PurchaseReasonBanned, perr.Reason)

	assert.Equal(t, 3, repo.available("DL"))
	assert.Equal(t, int64(1000), repo.balance("Alice"))
	assert.Empty(t, repo.transactions())
}
