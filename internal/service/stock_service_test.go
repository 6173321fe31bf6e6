package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"storebot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStockService(maxFileSize int) (*StockService, *fakeRepo, *fakeCache, *fakePublisher) {
	repo := newFakeRepo()
	cache := newFakeCache()
	events := &fakePublisher{}
	return NewStockService(repo, cache, events, time.Minute, maxFileSize), repo, cache, events
}

func TestAddStock(t *testing.T) {
	svc, repo, cache, events := newTestStockService(1 << 20)
	repo.seedProduct("DL", 100, 0)
	cache.counts["DL"] = 0
	ctx := context.Background()

	item, err := svc.AddStock(ctx, "DL", "  user:pass  ", "admin")
	require.NoError(t, err)
	assert.Equal(t, "user:pass", item.Content)
	assert.Equal(t, models.StockStatusAvailable, item.Status)
	assert.Equal(t, 1, repo.available("DL"))
	assert.Contains(t, cache.invalidated, "DL")
	require.Len(t, events.stock, 1)
	assert.Equal(t, 1, events.stock[0].Delta)

	_, err = svc.AddStock(ctx, "DL", "user:pass", "admin")
	assert.ErrorIs(t, err, ErrDuplicateContent)

	_, err = svc.AddStock(ctx, "DL", "   ", "admin")
	assert.ErrorIs(t, err, ErrInvalidContent)

	_, err = svc.AddStock(ctx, "NOPE", "other", "admin")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestAddStockBatch(t *testing.T) {
	svc, repo, _, events := newTestStockService(1 << 20)
	repo.seedProduct("DL", 100, 0)
	ctx := context.Background()

	_, err := svc.AddStock(ctx, "DL", "existing", "admin")
	require.NoError(t, err)

	data := "a\r\nb\n\n  c  \nb\nexisting\n" + strings.Repeat("x", maxStockContentLength+1) + "\n"
	result, err := svc.AddStockBatch(ctx, "DL", []byte(data), "admin")
	require.NoError(t, err)
	assert.Equal(t, &BatchResult{Added: 3, Duplicates: 2, Invalid: 1}, result)
	assert.Equal(t, 4, repo.available("DL"))

	last := events.stock[len(events.stock)-1]
	assert.Equal(t, 3, last.Delta)
	assert.Equal(t, models.StockChangeAdded, last.Reason)
}

func TestAddStockBatchLimits(t *testing.T) {
	svc, repo, _, _ := newTestStockService(8)
	repo.seedProduct("DL", 100, 0)
	ctx := context.Background()

	_, err := svc.AddStockBatch(ctx, "DL", []byte("123456789"), "admin")
	assert.ErrorIs(t, err, ErrFileTooLarge)

	_, err = svc.AddStockBatch(ctx, "DL", []byte("\n \n"), "admin")
	assert.ErrorIs(t, err, ErrInvalidContent)

	_, err = svc.AddStockBatch(ctx, "NOPE", []byte("a"), "admin")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestCountAvailableUsesCache(t *testing.T) {
	svc, repo, cache, _ := newTestStockService(1 << 20)
	repo.seedProduct("DL", 100, 4)
	ctx := context.Background()

	count, err := svc.CountAvailable(ctx, "DL")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	assert.Equal(t, 4, cache.counts["DL"])

	calls := repo.callCount()
	count, err = svc.CountAvailable(ctx, "DL")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	assert.Equal(t, calls, repo.callCount())
}

func TestCountAvailableCacheErrorFallsBack(t *testing.T) {
	svc, repo, cache, _ := newTestStockService(1 << 20)
	repo.seedProduct("DL", 100, 2)
	cache.err = errBoom

	count, err := svc.CountAvailable(context.Background(), "DL")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestPurchaseInvalidatesCachedCount(t *testing.T) {
	stock, repo, cache, _ := newTestStockService(1 << 20)
	repo.seedProduct("DL", 10, 3)
	repo.seedUser("Alice", 100)
	ctx := context.Background()
	purchase := NewPurchaseService(repo, cache, nil, 100)

	count, err := stock.CountAvailable(ctx, "DL")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	_, err = purchase.Purchase(ctx, "Alice", "DL", 2)
	require.NoError(t, err)

	count, err = stock.CountAvailable(ctx, "DL")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestReduceStockRemovesNewest(t *testing.T) {
	svc, repo, _, events := newTestStockService(1 << 20)
	repo.seedProduct("DL", 100, 3)
	ctx := context.Background()

	removed, err := svc.ReduceStock(ctx, "DL", 2, "admin", "expired")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, repo.available("DL"))
	assert.Equal(t, models.StockStatusAvailable, repo.stock[0].Status)
	assert.Equal(t, models.StockStatusRemoved, repo.stock[2].Status)
	assert.Equal(t, -2, events.stock[0].Delta)

	_, err = svc.ReduceStock(ctx, "DL", 5, "admin", "")
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 1, repo.available("DL"))

	_, err = svc.ReduceStock(ctx, "DL", 0, "admin", "")
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestOverviewWarmsCache(t *testing.T) {
	svc, repo, cache, _ := newTestStockService(1 << 20)
	repo.seedProduct("A", 10, 1)
	repo.seedProduct("B", 10, 2)

	products, err := svc.Overview(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, map[string]int{"A": 1, "B": 2}, cache.counts)
}
