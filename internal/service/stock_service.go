package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"storebot/internal/models"
	"storebot/internal/util"

	"go.uber.org/zap"
)

const (
	maxStockContentLength = 1000
	maxStockHistoryLimit  = 50
)

// StockService manages the stock items of products
type StockService struct {
	repo        Repository
	cache       StockCache
	events      Publisher
	cacheTTL    time.Duration
	maxFileSize int
	logger      *zap.Logger
}

// NewStockService creates a new stock service
func NewStockService(repo Repository, cache StockCache, events Publisher, cacheTTL time.Duration, maxFileSize int) *StockService {
	return &StockService{
		repo:        repo,
		cache:       cacheOrNoop(cache),
		events:      publisherOrNoop(events),
		cacheTTL:    cacheTTL,
		maxFileSize: maxFileSize,
		logger:      util.GetLogger(),
	}
}

// BatchResult summarizes a bulk stock upload
type BatchResult struct {
	Added      int `json:"added"`
	Duplicates int `json:"duplicates"`
	Invalid    int `json:"invalid"`
}

// AddStock adds a single item to a product
func (s *StockService) AddStock(ctx context.Context, code, content, addedBy string) (*models.StockItem, error) {
	ctx, span := util.StartSpan(ctx, "StockService.AddStock")
	defer span.End()

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrInvalidContent
	}

	item := newStockItem(code, content, addedBy)
	if err := s.repo.AddStock(ctx, item); err != nil {
		return nil, err
	}

	s.stockChanged(ctx, code, 1, models.StockChangeAdded, addedBy)
	util.StockAddedTotal.WithLabelValues(code).Inc()
	return item, nil
}

// AddStockBatch adds one item per non-blank line of data. Duplicates, both
// within data and against existing stock, are skipped and counted.
func (s *StockService) AddStockBatch(ctx context.Context, code string, data []byte, addedBy string) (*BatchResult, error) {
	ctx, span := util.StartSpan(ctx, "StockService.AddStockBatch")
	defer span.End()

	if s.maxFileSize > 0 && len(data) > s.maxFileSize {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrFileTooLarge, len(data), s.maxFileSize)
	}

	if _, err := s.repo.GetProduct(ctx, code); err != nil {
		return nil, err
	}

	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	result := &BatchResult{}
	seen := make(map[string]struct{}, len(lines))
	var batchErr error

	for _, line := range lines {
		content := strings.TrimSpace(line)
		if content == "" {
			continue
		}
		if len(content) > maxStockContentLength {
			result.Invalid++
			continue
		}
		if _, dup := seen[content]; dup {
			result.Duplicates++
			continue
		}
		seen[content] = struct{}{}

		err := s.repo.AddStock(ctx, newStockItem(code, content, addedBy))
		if errors.Is(err, ErrDuplicateContent) {
			result.Duplicates++
			continue
		}
		if err != nil {
			batchErr = err
			break
		}
		result.Added++
	}

	if result.Added > 0 {
		s.stockChanged(ctx, code, result.Added, models.StockChangeAdded, addedBy)
		util.StockAddedTotal.WithLabelValues(code).Add(float64(result.Added))
	}

	s.logger.Info("Stock batch processed",
		zap.String("product_code", code),
		zap.Int("added", result.Added),
		zap.Int("duplicates", result.Duplicates),
		zap.Int("invalid", result.Invalid),
		zap.Error(batchErr))

	if batchErr != nil {
		return result, batchErr
	}
	if result.Added+result.Duplicates+result.Invalid == 0 {
		return result, fmt.Errorf("%w: no items found in file", ErrInvalidContent)
	}
	return result, nil
}

// CountAvailable returns the available count of a product, served from the
// cache when possible
func (s *StockService) CountAvailable(ctx context.Context, code string) (int, error) {
	ctx, span := util.StartSpan(ctx, "StockService.CountAvailable")
	defer span.End()

	count, ok, err := s.cache.GetStockCount(ctx, code)
	if err != nil {
		s.logger.Warn("Stock cache read failed", zap.String("product_code", code), zap.Error(err))
	}
	if ok {
		util.StockCacheLookups.WithLabelValues("hit").Inc()
		return count, nil
	}
	util.StockCacheLookups.WithLabelValues("miss").Inc()

	count, err = s.repo.CountAvailable(ctx, code)
	if err != nil {
		return 0, err
	}

	if err := s.cache.SetStockCount(ctx, code, count, s.cacheTTL); err != nil {
		s.logger.Warn("Stock cache write failed", zap.String("product_code", code), zap.Error(err))
	}
	return count, nil
}

// Overview returns every product with its available count and refreshes the
// cached counts
func (s *StockService) Overview(ctx context.Context) ([]models.ProductStock, error) {
	ctx, span := util.StartSpan(ctx, "StockService.Overview")
	defer span.End()

	products, err := s.repo.ListProductsWithStock(ctx)
	if err != nil {
		return nil, err
	}

	for _, p := range products {
		if err := s.cache.SetStockCount(ctx, p.Code, p.Available, s.cacheTTL); err != nil {
			s.logger.Warn("Stock cache write failed", zap.String("product_code", p.Code), zap.Error(err))
			break
		}
	}
	return products, nil
}

// ReduceStock removes the newest quantity available items of a product
func (s *StockService) ReduceStock(ctx context.Context, code string, quantity int, adminID, reason string) (int, error) {
	ctx, span := util.StartSpan(ctx, "StockService.ReduceStock")
	defer span.End()

	if quantity <= 0 {
		return 0, ErrInvalidQuantity
	}

	removed, err := s.repo.RemoveStock(ctx, code, quantity)
	if err != nil {
		return 0, err
	}

	s.logger.Info("Stock reduced",
		zap.String("product_code", code),
		zap.Int("removed", removed),
		zap.String("admin_id", adminID),
		zap.String("reason", reason))
	s.stockChanged(ctx, code, -removed, models.StockChangeRemoved, adminID)
	return removed, nil
}

// StockHistory returns the most recently changed items of a product
func (s *StockService) StockHistory(ctx context.Context, code string, limit int) ([]models.StockItem, error) {
	if limit <= 0 || limit > maxStockHistoryLimit {
		limit = maxStockHistoryLimit
	}
	return s.repo.StockHistory(ctx, code, limit)
}

func (s *StockService) stockChanged(ctx context.Context, code string, delta int, reason, actor string) {
	if err := s.cache.InvalidateStockCount(ctx, code); err != nil {
		s.logger.Warn("Failed to invalidate stock cache", zap.String("product_code", code), zap.Error(err))
	}

	event := &models.StockChangedEvent{
		ProductCode: code,
		Delta:       delta,
		Reason:      reason,
		Actor:       actor,
	}
	if err := s.events.PublishStockChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish StockChanged event", zap.Error(err))
	}
}

func newStockItem(code, content, addedBy string) *models.StockItem {
	return &models.StockItem{
		ProductCode: code,
		Content:     content,
		SellerID:    sql.NullString{String: addedBy, Valid: addedBy != ""},
		AddedBy:     addedBy,
	}
}
