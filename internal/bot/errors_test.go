package bot

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"storebot/internal/service"

	"github.com/stretchr/testify/assert"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"cooldown", &CooldownError{Remaining: 2100 * time.Millisecond}, "⚠️ Please wait 3 seconds before using this command again."},
		{"forbidden", ErrForbidden, msgNoPermission},
		{"argument", fmt.Errorf("%w: quantity must be between 1 and 100", ErrInvalidArgument), "❌ quantity must be between 1 and 100"},
		{"no growid", errNoGrowID, msgNoGrowID},
		{"stock", &service.PurchaseError{Reason: service.PurchaseReasonStock, Err: service.ErrInsufficientStock}, msgInsufficientStock},
		{"balance", &service.PurchaseError{Reason: service.PurchaseReasonBalance, Err: service.ErrInsufficientBalance}, msgInsufficientBalance},
		{"quantity", fmt.Errorf("%w: must be between 1 and 100", service.ErrInvalidQuantity), msgInvalidAmount},
		{"product", fmt.Errorf("%w: DL1", service.ErrProductNotFound), msgNoProduct},
		{"user", fmt.Errorf("%w: bob", service.ErrUserNotFound), msgNoUser},
		{"has stock", service.ErrHasStock, msgHasStock},
		{"invalid product", fmt.Errorf("%w: Price must be gt 0", service.ErrInvalidProduct), "❌ Invalid product details: Price must be gt 0"},
		{"file format", errInvalidFileFormat, msgInvalidFileFormat},
		{"file size", service.ErrFileTooLarge, msgFileTooLarge},
		{"empty file", service.ErrInvalidContent, msgNoItemsFound},
		{"maintenance", errMaintenance, msgMaintenance},
		{"blacklisted", &service.PurchaseError{Reason: service.PurchaseReasonBanned, Err: fmt.Errorf("%w: bob", service.ErrBlacklisted)}, msgBlacklisted},
		{"not blacklisted", fmt.Errorf("%w: bob", service.ErrNotBlacklisted), msgNotBlacklisted},
		{"no world", service.ErrWorldInfoNotFound, msgNoWorldInfo},
		{"invalid world", fmt.Errorf("%w: World must be alphanum", service.ErrInvalidWorld), "❌ Invalid world details: World must be alphanum"},
		{"storage", errors.New("pq: connection refused"), msgGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, userMessage(tt.err))
		})
	}
}
