package service

import (
	"context"
	"time"

	"storebot/internal/models"
	"storebot/internal/store"
)

// Repository is the persistence the services run on. *store.Store implements it.
type Repository interface {
	WithTx(ctx context.Context, fn func(tx store.Tx) error) error

	CreateProduct(ctx context.Context, product *models.Product) error
	GetProduct(ctx context.Context, code string) (*models.Product, error)
	UpdateProduct(ctx context.Context, code string, upd store.ProductUpdate) (*models.Product, error)
	DeleteProduct(ctx context.Context, code string) error
	ListProductsWithStock(ctx context.Context) ([]models.ProductStock, error)

	AddStock(ctx context.Context, item *models.StockItem) error
	CountAvailable(ctx context.Context, code string) (int, error)
	RemoveStock(ctx context.Context, code string, quantity int) (int, error)
	StockHistory(ctx context.Context, code string, limit int) ([]models.StockItem, error)

	RegisterGrowID(ctx context.Context, discordID, growID string) (string, error)
	GetGrowID(ctx context.Context, discordID string) (string, error)
	GetUser(ctx context.Context, growID string) (*models.User, error)
	RecordTransaction(ctx context.Context, trx *models.Transaction) error
	TransactionHistory(ctx context.Context, growID string, limit int) ([]models.Transaction, error)
	IsBlacklisted(ctx context.Context, growID string) (bool, error)
}

// SettingsRepository holds shop-wide settings. *store.Store implements it.
type SettingsRepository interface {
	GetWorldInfo(ctx context.Context) (*models.WorldInfo, error)
	SetWorldInfo(ctx context.Context, info *models.WorldInfo) error
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
	AddToBlacklist(ctx context.Context, entry *models.BlacklistEntry) error
	RemoveFromBlacklist(ctx context.Context, growID string) (bool, error)
	IsBlacklisted(ctx context.Context, growID string) (bool, error)
}

// StockCache holds available counts. It is never authoritative and every
// write to stock invalidates the product's entry.
type StockCache interface {
	GetStockCount(ctx context.Context, code string) (int, bool, error)
	SetStockCount(ctx context.Context, code string, count int, ttl time.Duration) error
	InvalidateStockCount(ctx context.Context, codes ...string) error
}

// Publisher emits shop events. *broker.EventPublisher implements it.
type Publisher interface {
	PublishPurchaseCompleted(ctx context.Context, event *models.PurchaseCompletedEvent) error
	PublishStockChanged(ctx context.Context, event *models.StockChangedEvent) error
	PublishDonationReceived(ctx context.Context, event *models.DonationReceivedEvent) error
	PublishBalanceChanged(ctx context.Context, event *models.BalanceChangedEvent) error
}

type noopCache struct{}

func (noopCache) GetStockCount(context.Context, string) (int, bool, error) { return 0, false, nil }
func (noopCache) SetStockCount(context.Context, string, int, time.Duration) error { return nil }
func (noopCache) InvalidateStockCount(context.Context, ...string) error { return nil }

type noopPublisher struct{}

func (noopPublisher) PublishPurchaseCompleted(context.Context, *models.PurchaseCompletedEvent) error {
	return nil
}
func (noopPublisher) PublishStockChanged(context.Context, *models.StockChangedEvent) error { return nil }
func (noopPublisher) PublishDonationReceived(context.Context, *models.DonationReceivedEvent) error {
	return nil
}
func (noopPublisher) PublishBalanceChanged(context.Context, *models.BalanceChangedEvent) error {
	return nil
}

func cacheOrNoop(cache StockCache) StockCache {
	if cache == nil {
		return noopCache{}
	}
	return cache
}

func publisherOrNoop(events Publisher) Publisher {
	if events == nil {
		return noopPublisher{}
	}
	return events
}
