package models

import "time"

// Event types
const (
	EventTypePurchaseCompleted = "PURCHASE_COMPLETED"
	EventTypeStockChanged      = "STOCK_CHANGED"
	EventTypeDonationReceived  = "DONATION_RECEIVED"
	EventTypeBalanceChanged    = "BALANCE_CHANGED"
)

// Stock change reasons
const (
	StockChangeAdded   = "added"
	StockChangeSold    = "sold"
	StockChangeRemoved = "removed"
	StockChangeProduct = "product"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// PurchaseCompletedEvent published after a purchase commits
type PurchaseCompletedEvent struct {
	BaseEvent
	TransactionID int64  `json:"transaction_id"`
	GrowID        string `json:"growid"`
	ProductCode   string `json:"product_code"`
	ProductName   string `json:"product_name"`
	Quantity      int    `json:"quantity"`
	TotalPrice    int64  `json:"total_price"`
	NewBalance    int64  `json:"new_balance"`
}

// StockChangedEvent published when the available count of a product changes
type StockChangedEvent struct {
	BaseEvent
	ProductCode string `json:"product_code"`
	Delta       int    `json:"delta"`
	Reason      string `json:"reason"`
	Actor       string `json:"actor,omitempty"`
}

// DonationReceivedEvent published after a donation is credited
type DonationReceivedEvent struct {
	BaseEvent
	TransactionID int64   `json:"transaction_id"`
	GrowID        string  `json:"growid"`
	Deposit       Balance `json:"deposit"`
	CreditedWL    int64   `json:"credited_wl"`
	NewBalance    int64   `json:"new_balance"`
}

// BalanceChangedEvent published on admin balance adjustments
type BalanceChangedEvent struct {
	BaseEvent
	TransactionID int64  `json:"transaction_id"`
	GrowID        string `json:"growid"`
	Type          string `json:"type"`
	OldBalance    int64  `json:"old_balance"`
	NewBalance    int64  `json:"new_balance"`
	Actor         string `json:"actor"`
}
