package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"storebot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPurchaseService() (*PurchaseService, *fakeRepo, *fakeCache, *fakePublisher) {
	repo := newFakeRepo()
	cache := newFakeCache()
	events := &fakePublisher{}
	return NewPurchaseService(repo, cache, events, 100), repo, cache, events
}

func TestPurchaseInvalidQuantity(t *testing.T) {
	svc, repo, _, _ := newTestPurchaseService()
	repo.seedProduct("DL", 100, 3)
	repo.seedUser("Alice", 1000)

	for _, qty := range []int{0, -1, 101} {
		_, err := svc.Purchase(context.Background(), "Alice", "DL", qty)
		assert.ErrorIs(t, err, ErrInvalidQuantity, "quantity %d", qty)
	}

	assert.Zero(t, repo.callCount())
	assert.Equal(t, 3, repo.available("DL"))
	assert.Equal(t, int64(1000), repo.balance("Alice"))
}

func TestPurchaseTotalsAndLedger(t *testing.T) {
	svc, repo, cache, events := newTestPurchaseService()
	repo.seedProduct("DL", 100, 3)
	repo.seedUser("Alice", 500)
	cache.counts["DL"] = 3

	result, err := svc.Purchase(context.Background(), "Alice", "DL", 2)
	require.NoError(t, err)

	assert.Equal(t, int64(200), result.TotalPrice)
	assert.Equal(t, int64(300), result.NewBalance)
	assert.Equal(t, []string{"DL-0", "DL-1"}, result.Contents)
	assert.Len(t, result.Items, 2)
	for _, item := range result.Items {
		assert.Equal(t, models.StockStatusSold, item.Status)
		assert.Equal(t, "Alice", item.BuyerID.String)
		assert.True(t, item.UsedAt.Valid)
	}

	trxs := repo.transactions()
	require.Len(t, trxs, 1)
	assert.Equal(t, models.TransactionTypePurchase, trxs[0].Type)
	assert.Equal(t, 2, trxs[0].ItemsCount)
	assert.Equal(t, int64(200), trxs[0].TotalPrice)
	assert.Equal(t, int64(500), trxs[0].OldBalance)
	assert.Equal(t, int64(300), trxs[0].NewBalance)

	assert.Equal(t, 1, repo.available("DL"))
	assert.Equal(t, int64(300), repo.balance("Alice"))

	assert.Contains(t, cache.invalidated, "DL")
	_, cached := cache.counts["DL"]
	assert.False(t, cached)

	require.Len(t, events.purchases, 1)
	assert.Equal(t, result.Transaction.ID, events.purchases[0].TransactionID)
	assert.Equal(t, 2, events.purchases[0].Quantity)
}

func TestPurchaseInsufficientStock(t *testing.T) {
	svc, repo, _, events := newTestPurchaseService()
	repo.seedProduct("DL", 100, 3)
	repo.seedUser("Alice", 10000)

	_, err := svc.Purchase(context.Background(), "Alice", "DL", 5)
	require.Error(t, err)

	var perr *PurchaseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, PurchaseReasonStock, perr.Reason)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	assert.Equal(t, 3, repo.available("DL"))
	assert.Equal(t, int64(10000), repo.balance("Alice"))
	assert.Empty(t, repo.transactions())
	assert.Empty(t, events.purchases)
}

func TestPurchaseInsufficientBalanceRollsBackStock(t *testing.T) {
	svc, repo, _, _ := newTestPurchaseService()
	repo.seedProduct("DL", 100, 3)
	repo.seedUser("Alice", 150)

	_, err := svc.Purchase(context.Background(), "Alice", "DL", 2)

	var perr *PurchaseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, PurchaseReasonBalance, perr.Reason)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	assert.Equal(t, 3, repo.available("DL"))
	assert.Equal(t, int64(150), repo.balance("Alice"))
	assert.Empty(t, repo.transactions())
}

func TestPurchaseUnknownProduct(t *testing.T) {
	svc, repo, _, _ := newTestPurchaseService()
	repo.seedUser("Alice", 150)

	_, err := svc.Purchase(context.Background(), "Alice", "NOPE", 1)
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPurchaseUnknownUser(t *testing.T) {
	svc, repo, _, _ := newTestPurchaseService()
	repo.seedProduct("DL", 100, 3)

	_, err := svc.Purchase(context.Background(), "Ghost", "DL", 1)
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Equal(t, 3, repo.available("DL"))
}

func TestPurchaseLedgerFailureRollsBack(t *testing.T) {
	svc, repo, _, _ := newTestPurchaseService()
	repo.seedProduct("DL", 100, 3)
	repo.seedUser("Alice", 1000)
	repo.failRecord = errBoom

	_, err := svc.Purchase(context.Background(), "Alice", "DL", 1)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 3, repo.available("DL"))
	assert.Equal(t, int64(1000), repo.balance("Alice"))
}

func TestPurchasePublishFailureIsIgnored(t *testing.T) {
	svc, repo, _, events := newTestPurchaseService()
	repo.seedProduct("DL", 100, 3)
	repo.seedUser("Alice", 1000)
	events.err = errBoom

	result, err := svc.Purchase(context.Background(), "Alice", "DL", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(900), result.NewBalance)
}

func TestPurchaseConcurrentNeverOversells(t *testing.T) {
	svc, repo, _, _ := newTestPurchaseService()
	repo.seedProduct("DL", 10, 5)
	repo.seedUser("Alice", 1000)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		sold = map[int64]bool{}
		wins int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := svc.Purchase(context.Background(), "Alice", "DL", 1)
			if err != nil {
				assert.ErrorIs(t, err, ErrInsufficientStock)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			wins++
			for _, item := range result.Items {
				assert.False(t, sold[item.ID])
				sold[item.ID] = true
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, wins)
	assert.Zero(t, repo.available("DL"))
	assert.Equal(t, int64(950), repo.balance("Alice"))
	assert.Len(t, repo.transactions(), 5)
}

func TestPurchaseUsesCurrentPrice(t *testing.T) {
	svc, repo, _, _ := newTestPurchaseService()
	repo.seedProduct("DL", 100, 3)
	repo.seedUser("Alice", 1000)

	price := int64(250)
	repo.products["DL"] = models.Product{Code: "DL", Name: "Product DL", Price: price}

	result, err := svc.Purchase(context.Background(), "Alice", "DL", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(500), result.TotalPrice)
}

func TestPurchaseRejectsOverflowingTotal(t *testing.T) {
	svc, repo, _, events := newTestPurchaseService()
	repo.seedProduct("DL", 100, 5)
	repo.seedUser("Alice", 0)
	repo.products["DL"] = models.Product{Code: "DL", Name: "Product DL", Price: 1 << 62}

	_, err := svc.Purchase(context.Background(), "Alice", "DL", 3)
	assert.ErrorIs(t, err, ErrInvalidProduct)

	assert.Equal(t, int64(1), repo.callCount(), "only the product lookup runs")
	assert.Equal(t, 5, repo.available("DL"))
	assert.Equal(t, int64(0), repo.balance("Alice"))
	assert.Empty(t, repo.transactions())
	assert.Empty(t, events.purchases)
}

// staleListingRepo serves an outdated price outside the transaction
type staleListingRepo struct {
	*fakeRepo
	listedPrice int64
}

func (r *staleListingRepo) GetProduct(ctx context.Context, code string) (*models.Product, error) {
	p, err := r.fakeRepo.GetProduct(ctx, code)
	if err != nil {
		return nil, err
	}
	p.Price = r.listedPrice
	return p, nil
}

func TestPurchaseRechecksTotalUnderLock(t *testing.T) {
	repo := newFakeRepo()
	repo.seedProduct("DL", 100, 5)
	repo.seedUser("Alice", 0)
	repo.products["DL"] = models.Product{Code: "DL", Name: "Product DL", Price: 1 << 62}
	svc := NewPurchaseService(&staleListingRepo{fakeRepo: repo, listedPrice: 1}, nil, nil, 100)

	_, err := svc.Purchase(context.Background(), "Alice", "DL", 3)
	assert.ErrorIs(t, err, ErrInvalidProduct)
	assert.Equal(t, 5, repo.available("DL"))
	assert.Equal(t, int64(0), repo.balance("Alice"))
	assert.Empty(t, repo.transactions())
}

func TestTotalPrice(t *testing.T) {
	total, err := totalPrice(MaxProductPrice, 100)
	require.NoError(t, err)
	assert.Equal(t, MaxProductPrice*100, total)

	total, err = totalPrice(math.MaxInt64, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), total)

	_, err = totalPrice(math.MaxInt64/2+1, 2)
	assert.ErrorIs(t, err, ErrInvalidProduct)
	_, err = totalPrice(0, 2)
	assert.ErrorIs(t, err, ErrInvalidProduct)
}
