package service

import (
	"errors"
	"fmt"

	"storebot/internal/store"
)

var (
	ErrNotFound            = store.ErrNotFound
	ErrProductNotFound     = store.ErrProductNotFound
	ErrUserNotFound        = store.ErrUserNotFound
	ErrWorldInfoNotFound   = store.ErrWorldInfoNotFound
	ErrDuplicateCode       = store.ErrDuplicateCode
	ErrHasStock            = store.ErrHasStock
	ErrDuplicateContent    = store.ErrDuplicateContent
	ErrInvalidQuantity     = store.ErrInvalidQuantity
	ErrInsufficientStock   = store.ErrInsufficientStock
	ErrInsufficientBalance = store.ErrInsufficientBalance

	ErrInvalidProduct = errors.New("invalid product")
	ErrInvalidGrowID  = errors.New("growid must be 3-30 letters, digits or underscores")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrInvalidDeposit = errors.New("invalid deposit")
	ErrInvalidContent = errors.New("stock content is empty")
	ErrFileTooLarge   = errors.New("stock file is too large")
	ErrInvalidWorld   = errors.New("invalid world info")
	ErrBlacklisted    = errors.New("growid is blacklisted")
	ErrNotBlacklisted = errors.New("growid is not blacklisted")
)

// Purchase failure reasons
const (
	PurchaseReasonStock   = "stock"
	PurchaseReasonBalance = "balance"
	PurchaseReasonBanned  = "blacklisted"
)

// PurchaseError is a purchase rejected for a business reason. The cause
// stays reachable through errors.Is.
type PurchaseError struct {
	Reason string
	Err    error
}

func (e *PurchaseError) Error() string {
	return fmt.Sprintf("purchase failed (%s): %v", e.Reason, e.Err)
}

func (e *PurchaseError) Unwrap() error {
	return e.Err
}
