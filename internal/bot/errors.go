package bot

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"storebot/internal/service"
)

var (
	errNoGrowID           = errors.New("no growid registered")
	errInvalidFileFormat  = errors.New("attachment is not a .txt file")
	errPurchaseInProgress = errors.New("purchase already in progress")
	errMaintenance        = errors.New("shop under maintenance")
)

const (
	msgGeneric             = "❌ An error occurred. Please try again later."
	msgNoPermission        = "❌ You don't have permission to use this command."
	msgCooldown            = "⚠️ Please wait %d seconds before using this command again."
	msgInvalidAmount       = "❌ Please enter a valid amount."
	msgInsufficientBalance = "❌ Insufficient balance."
	msgInsufficientStock   = "❌ Insufficient stock available."
	msgNoProduct           = "❌ Product not found!"
	msgNoUser              = "❌ User not found!"
	msgNoGrowID            = "❌ Please set your GrowID first with the Set GrowID button or /setgrowid."
	msgInvalidGrowID       = "❌ GrowID must be 3-30 letters, digits or underscores."
	msgDuplicateCode       = "❌ A product with this code already exists."
	msgHasStock            = "❌ This product still has stock and cannot be deleted."
	msgInvalidProduct      = "❌ Invalid product details: %s"
	msgFileTooLarge        = "❌ File is too large!"
	msgInvalidFileFormat   = "❌ Invalid file format! Please use .txt files only."
	msgNoItemsFound        = "❌ No items found in file!"
	msgDuplicateContent    = "❌ This stock item already exists."
	msgPurchaseInProgress  = "⏳ Your previous purchase is still being processed."
	msgInvalidArgument     = "❌ %s"
	msgMaintenance         = "🔧 The shop is under maintenance. Please try again later."
	msgBlacklisted         = "⛔ Your account has been blacklisted."
	msgNotBlacklisted      = "❌ This GrowID is not blacklisted."
	msgNoWorldInfo         = "❌ World information not available."
	msgInvalidWorld        = "❌ Invalid world details: %s"
)

// userMessage maps an error to the text shown to the invoking user
func userMessage(err error) string {
	var cdErr *CooldownError
	switch {
	case errors.As(err, &cdErr):
		return fmt.Sprintf(msgCooldown, int(math.Ceil(cdErr.Remaining.Seconds())))
	case errors.Is(err, ErrForbidden):
		return msgNoPermission
	case errors.Is(err, ErrInvalidArgument):
		return fmt.Sprintf(msgInvalidArgument, argumentDetail(err))
	case errors.Is(err, errNoGrowID):
		return msgNoGrowID
	case errors.Is(err, errPurchaseInProgress):
		return msgPurchaseInProgress
	case errors.Is(err, errMaintenance):
		return msgMaintenance
	case errors.Is(err, service.ErrBlacklisted):
		return msgBlacklisted
	case errors.Is(err, service.ErrNotBlacklisted):
		return msgNotBlacklisted
	case errors.Is(err, service.ErrWorldInfoNotFound):
		return msgNoWorldInfo
	case errors.Is(err, service.ErrInvalidWorld):
		return fmt.Sprintf(msgInvalidWorld, strings.TrimPrefix(err.Error(), service.ErrInvalidWorld.Error()+": "))
	case errors.Is(err, errInvalidFileFormat):
		return msgInvalidFileFormat
	case errors.Is(err, service.ErrInsufficientStock):
		return msgInsufficientStock
	case errors.Is(err, service.ErrInsufficientBalance):
		return msgInsufficientBalance
	case errors.Is(err, service.ErrInvalidQuantity), errors.Is(err, service.ErrInvalidAmount):
		return msgInvalidAmount
	case errors.Is(err, service.ErrProductNotFound):
		return msgNoProduct
	case errors.Is(err, service.ErrUserNotFound):
		return msgNoUser
	case errors.Is(err, service.ErrInvalidGrowID):
		return msgInvalidGrowID
	case errors.Is(err, service.ErrDuplicateCode):
		return msgDuplicateCode
	case errors.Is(err, service.ErrHasStock):
		return msgHasStock
	case errors.Is(err, service.ErrInvalidProduct):
		return fmt.Sprintf(msgInvalidProduct, strings.TrimPrefix(err.Error(), service.ErrInvalidProduct.Error()+": "))
	case errors.Is(err, service.ErrFileTooLarge):
		return msgFileTooLarge
	case errors.Is(err, service.ErrInvalidContent):
		return msgNoItemsFound
	case errors.Is(err, service.ErrDuplicateContent):
		return msgDuplicateContent
	default:
		return msgGeneric
	}
}

// argumentDetail strips the sentinel prefix from an argument error
func argumentDetail(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ErrInvalidArgument.Error()+": "); i >= 0 {
		return msg[i+len(ErrInvalidArgument.Error())+2:]
	}
	return msg
}
