package models

import (
	"database/sql"
	"time"
)

// Product is a sellable product definition
type Product struct {
	Code        string         `db:"code" json:"code"`
	Name        string         `db:"name" json:"name"`
	Price       int64          `db:"price" json:"price"`
	Description sql.NullString `db:"description" json:"-"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// DescriptionText returns the description or an empty string
func (p *Product) DescriptionText() string {
	if p.Description.Valid {
		return p.Description.String
	}
	return ""
}

// ProductStock is a product together with its available unit count
type ProductStock struct {
	Product
	Available int `db:"available" json:"available"`
}

// StockItem is a single sellable unit of a product
type StockItem struct {
	ID          int64          `db:"id" json:"id"`
	ProductCode string         `db:"product_code" json:"product_code"`
	Content     string         `db:"content" json:"-"`
	Status      string         `db:"status" json:"status"`
	BuyerID     sql.NullString `db:"buyer_id" json:"-"`
	SellerID    sql.NullString `db:"seller_id" json:"-"`
	AddedBy     string         `db:"added_by" json:"added_by"`
	AddedAt     time.Time      `db:"added_at" json:"added_at"`
	UsedAt      sql.NullTime   `db:"used_at" json:"-"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// Transaction is an immutable ledger entry
type Transaction struct {
	ID         int64     `db:"id" json:"id"`
	GrowID     string    `db:"growid" json:"growid"`
	Type       string    `db:"type" json:"type"`
	Details    string    `db:"details" json:"details"`
	OldBalance int64     `db:"old_balance" json:"old_balance"`
	NewBalance int64     `db:"new_balance" json:"new_balance"`
	ItemsCount int       `db:"items_count" json:"items_count"`
	TotalPrice int64     `db:"total_price" json:"total_price"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// User holds a GrowID balance in World Locks
type User struct {
	GrowID    string    `db:"growid" json:"growid"`
	Balance   int64     `db:"balance" json:"balance"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// WorldInfo describes the Growtopia world where deposits are made
type WorldInfo struct {
	World     string    `db:"world" json:"world"`
	Owner     string    `db:"owner" json:"owner"`
	Bot       string    `db:"bot" json:"bot"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// BlacklistEntry bars a GrowID from buying
type BlacklistEntry struct {
	GrowID  string         `db:"growid" json:"growid"`
	AddedBy string         `db:"added_by" json:"added_by"`
	Reason  sql.NullString `db:"reason" json:"-"`
	AddedAt time.Time      `db:"added_at" json:"added_at"`
}

// Bot setting keys
const (
	SettingMaintenance = "maintenance_mode"
)

// Stock statuses
const (
	StockStatusAvailable = "AVAILABLE"
	StockStatusSold      = "SOLD"
	StockStatusRemoved   = "REMOVED"
)

// Transaction types
const (
	TransactionTypePurchase     = "PURCHASE"
	TransactionTypeDonation     = "DONATION"
	TransactionTypeAdminAdd     = "ADMIN_ADD"
	TransactionTypeAdminRemove  = "ADMIN_REMOVE"
	TransactionTypeAdminReset   = "ADMIN_RESET"
	TransactionTypeGrowIDChange = "GROWID_CHANGE"
)
