package service

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"storebot/internal/models"
	"storebot/internal/store"
	"storebot/internal/util"

	"go.uber.org/zap"
)

// CatalogService manages product definitions
type CatalogService struct {
	repo   Repository
	cache  StockCache
	events Publisher
	logger *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(repo Repository, cache StockCache, events Publisher) *CatalogService {
	return &CatalogService{
		repo:   repo,
		cache:  cacheOrNoop(cache),
		events: publisherOrNoop(events),
		logger: util.GetLogger(),
	}
}

// MaxProductPrice is the highest unit price in WL
const MaxProductPrice int64 = 1_000_000_000

// AddProductRequest represents a request to create a product
type AddProductRequest struct {
	Code        string `validate:"required,alphanum,max=32"`
	Name        string `validate:"required,max=100"`
	Price       int64  `validate:"gt=0,lte=1000000000"`
	Description string `validate:"max=1000"`
}

// Product fields that EditProduct accepts
const (
	ProductFieldName        = "name"
	ProductFieldPrice       = "price"
	ProductFieldDescription = "description"
)

// AddProduct creates a new product
func (s *CatalogService) AddProduct(ctx context.Context, req AddProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.AddProduct")
	defer span.End()

	req.Code = strings.TrimSpace(req.Code)
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)

	if errs := util.ValidateStruct(&req); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidProduct, util.JoinFieldErrors(errs))
	}

	product := &models.Product{
		Code:        req.Code,
		Name:        req.Name,
		Price:       req.Price,
		Description: sql.NullString{String: req.Description, Valid: req.Description != ""},
	}
	if err := s.repo.CreateProduct(ctx, product); err != nil {
		return nil, err
	}

	s.logger.Info("Product added",
		zap.String("product_code", product.Code),
		zap.Int64("price", product.Price))
	s.publishProductChanged(ctx, product.Code)
	return product, nil
}

// GetProduct retrieves a product by code
func (s *CatalogService) GetProduct(ctx context.Context, code string) (*models.Product, error) {
	return s.repo.GetProduct(ctx, strings.TrimSpace(code))
}

// EditProduct changes one field of a product
func (s *CatalogService) EditProduct(ctx context.Context, code, field, value string) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.EditProduct")
	defer span.End()

	code = strings.TrimSpace(code)
	value = strings.TrimSpace(value)

	var upd store.ProductUpdate
	switch strings.ToLower(strings.TrimSpace(field)) {
	case ProductFieldName:
		if value == "" || len(value) > 100 {
			return nil, fmt.Errorf("%w: name must be 1-100 characters", ErrInvalidProduct)
		}
		upd.Name = &value
	case ProductFieldPrice:
		price, err := strconv.ParseInt(value, 10, 64)
		if err != nil || price <= 0 || price > MaxProductPrice {
			return nil, fmt.Errorf("%w: price must be between 1 and %d", ErrInvalidProduct, MaxProductPrice)
		}
		upd.Price = &price
	case ProductFieldDescription:
		if len(value) > 1000 {
			return nil, fmt.Errorf("%w: description too long", ErrInvalidProduct)
		}
		upd.Description = &value
	default:
		return nil, fmt.Errorf("%w: unknown field %q, use name, price or description", ErrInvalidProduct, field)
	}

	product, err := s.repo.UpdateProduct(ctx, code, upd)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Product updated",
		zap.String("product_code", code),
		zap.String("field", field))
	s.publishProductChanged(ctx, code)
	return product, nil
}

// RemoveProduct deletes a product that has never had stock
func (s *CatalogService) RemoveProduct(ctx context.Context, code string) error {
	ctx, span := util.StartSpan(ctx, "CatalogService.RemoveProduct")
	defer span.End()

	code = strings.TrimSpace(code)
	if err := s.repo.DeleteProduct(ctx, code); err != nil {
		return err
	}

	if err := s.cache.InvalidateStockCount(ctx, code); err != nil {
		s.logger.Warn("Failed to invalidate stock cache", zap.String("product_code", code), zap.Error(err))
	}
	s.logger.Info("Product removed", zap.String("product_code", code))
	s.publishProductChanged(ctx, code)
	return nil
}

// ListProducts returns every product with its available count
func (s *CatalogService) ListProducts(ctx context.Context) ([]models.ProductStock, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ListProducts")
	defer span.End()

	return s.repo.ListProductsWithStock(ctx)
}

func (s *CatalogService) publishProductChanged(ctx context.Context, code string) {
	event := &models.StockChangedEvent{
		ProductCode: code,
		Reason:      models.StockChangeProduct,
	}
	if err := s.events.PublishStockChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish StockChanged event", zap.Error(err))
	}
}
