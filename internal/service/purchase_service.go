package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"storebot/internal/models"
	"storebot/internal/store"
	"storebot/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// PurchaseService sells stock items against a GrowID balance
type PurchaseService struct {
	repo        Repository
	cache       StockCache
	events      Publisher
	maxQuantity int
	logger      *zap.Logger
}

// NewPurchaseService creates a new purchase service
func NewPurchaseService(repo Repository, cache StockCache, events Publisher, maxQuantity int) *PurchaseService {
	return &PurchaseService{
		repo:        repo,
		cache:       cacheOrNoop(cache),
		events:      publisherOrNoop(events),
		maxQuantity: maxQuantity,
		logger:      util.GetLogger(),
	}
}

// PurchaseResult is what a buyer receives for a completed purchase
type PurchaseResult struct {
	Product     *models.Product
	Items       []models.StockItem
	Contents    []string
	Transaction *models.Transaction
	TotalPrice  int64
	NewBalance  int64
}

// Purchase reserves quantity items of a product for growID, debits the
// balance and records the ledger entry in a single database transaction.
func (s *PurchaseService) Purchase(ctx context.Context, growID, code string, quantity int) (*PurchaseResult, error) {
	ctx, span := util.StartSpan(ctx, "PurchaseService.Purchase",
		attribute.String("product_code", code),
		attribute.Int("quantity", quantity))
	defer span.End()

	if quantity <= 0 || quantity > s.maxQuantity {
		util.PurchasesFailedTotal.WithLabelValues("invalid_quantity").Inc()
		return nil, fmt.Errorf("%w: must be between 1 and %d", ErrInvalidQuantity, s.maxQuantity)
	}

	listed, err := s.repo.GetProduct(ctx, code)
	if err == nil {
		_, err = totalPrice(listed.Price, quantity)
	}
	if err == nil {
		var banned bool
		banned, err = s.repo.IsBlacklisted(ctx, growID)
		if err == nil && banned {
			err = &PurchaseError{Reason: PurchaseReasonBanned, Err: fmt.Errorf("%w: %s", ErrBlacklisted, growID)}
		}
	}
	if err != nil {
		util.PurchasesFailedTotal.WithLabelValues(failureReason(err)).Inc()
		util.MarkSpanError(span, err)
		return nil, err
	}

	var (
		product *models.Product
		items   []models.StockItem
		trx     *models.Transaction
	)

	start := time.Now()
	err = s.repo.WithTx(ctx, func(tx store.Tx) error {
		var err error
		// price is re-read under the product lock
		product, err = tx.LockProduct(ctx, code)
		if err != nil {
			return err
		}
		total, err := totalPrice(product.Price, quantity)
		if err != nil {
			return err
		}

		items, err = tx.ReserveStock(ctx, code, quantity, growID)
		if err != nil {
			if errors.Is(err, ErrInsufficientStock) {
				return &PurchaseError{Reason: PurchaseReasonStock, Err: err}
			}
			return err
		}

		oldBalance, newBalance, err := tx.AdjustBalance(ctx, growID, -total)
		if err != nil {
			if errors.Is(err, ErrInsufficientBalance) {
				return &PurchaseError{Reason: PurchaseReasonBalance, Err: err}
			}
			return err
		}

		trx = &models.Transaction{
			GrowID:     growID,
			Type:       models.TransactionTypePurchase,
			Details:    fmt.Sprintf("Purchased %d %s", quantity, product.Name),
			OldBalance: oldBalance,
			NewBalance: newBalance,
			ItemsCount: quantity,
			TotalPrice: total,
		}
		return tx.RecordTransaction(ctx, trx)
	})
	util.StockReserveLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		util.PurchasesFailedTotal.WithLabelValues(failureReason(err)).Inc()
		util.MarkSpanError(span, err)
		s.logger.Info("Purchase rejected",
			zap.String("growid", growID),
			zap.String("product_code", code),
			zap.Int("quantity", quantity),
			zap.Error(err))
		return nil, err
	}

	if err := s.cache.InvalidateStockCount(ctx, code); err != nil {
		s.logger.Warn("Failed to invalidate stock cache", zap.String("product_code", code), zap.Error(err))
	}

	util.PurchasesTotal.Inc()
	util.ItemsSoldTotal.WithLabelValues(code).Add(float64(quantity))
	util.RevenueWLTotal.Add(float64(trx.TotalPrice))

	s.logger.Info("Purchase completed",
		zap.Int64("transaction_id", trx.ID),
		zap.String("growid", growID),
		zap.String("product_code", code),
		zap.Int("quantity", quantity),
		zap.Int64("total_price", trx.TotalPrice))

	event := &models.PurchaseCompletedEvent{
		TransactionID: trx.ID,
		GrowID:        growID,
		ProductCode:   code,
		ProductName:   product.Name,
		Quantity:      quantity,
		TotalPrice:    trx.TotalPrice,
		NewBalance:    trx.NewBalance,
	}
	if err := s.events.PublishPurchaseCompleted(ctx, event); err != nil {
		s.logger.Error("Failed to publish PurchaseCompleted event", zap.Error(err))
	}

	contents := make([]string, len(items))
	for i, item := range items {
		contents[i] = item.Content
	}

	return &PurchaseResult{
		Product:     product,
		Items:       items,
		Contents:    contents,
		Transaction: trx,
		TotalPrice:  trx.TotalPrice,
		NewBalance:  trx.NewBalance,
	}, nil
}

// totalPrice multiplies price by quantity, refusing results that do not fit in int64
func totalPrice(price int64, quantity int) (int64, error) {
	if price <= 0 || quantity <= 0 || price > math.MaxInt64/int64(quantity) {
		return 0, fmt.Errorf("%w: price %d for %d items is out of range", ErrInvalidProduct, price, quantity)
	}
	return price * int64(quantity), nil
}

func failureReason(err error) string {
	var perr *PurchaseError
	switch {
	case errors.As(err, &perr):
		return perr.Reason
	case errors.Is(err, ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, ErrInvalidProduct):
		return "invalid_price"
	default:
		return "db_error"
	}
}
