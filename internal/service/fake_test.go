package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"storebot/internal/models"
	"storebot/internal/store"
)

// fakeRepo is an in-memory Repository. WithTx holds the mutex for the whole
// callback and restores a snapshot when it fails.
type fakeRepo struct {
	mu       sync.Mutex
	products map[string]models.Product
	stock    []models.StockItem
	users    map[string]int64
	links    map[string]string
	trxs     []models.Transaction
	nextID   int64
	calls    int64
	clock    time.Time

	world     *models.WorldInfo
	settings  map[string]string
	blacklist map[string]models.BlacklistEntry

	failRecord error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		products: map[string]models.Product{},
		users:    map[string]int64{},
		links:    map[string]string{},
		clock:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),

		settings:  map[string]string{},
		blacklist: map[string]models.BlacklistEntry{},
	}
}

type fakeSnapshot struct {
	products map[string]models.Product
	stock    []models.StockItem
	users    map[string]int64
	links    map[string]string
	trxs     []models.Transaction
}

func (r *fakeRepo) snapshot() fakeSnapshot {
	snap := fakeSnapshot{
		products: make(map[string]models.Product, len(r.products)),
		stock:    append([]models.StockItem(nil), r.stock...),
		users:    make(map[string]int64, len(r.users)),
		links:    make(map[string]string, len(r.links)),
		trxs:     append([]models.Transaction(nil), r.trxs...),
	}
	for k, v := range r.products {
		snap.products[k] = v
	}
	for k, v := range r.users {
		snap.users[k] = v
	}
	for k, v := range r.links {
		snap.links[k] = v
	}
	return snap
}

func (r *fakeRepo) restore(snap fakeSnapshot) {
	r.products = snap.products
	r.stock = snap.stock
	r.users = snap.users
	r.links = snap.links
	r.trxs = snap.trxs
}

func (r *fakeRepo) tick() time.Time {
	r.clock = r.clock.Add(time.Second)
	return r.clock
}

func (r *fakeRepo) id() int64 {
	r.nextID++
	return r.nextID
}

func (r *fakeRepo) touch() {
	atomic.AddInt64(&r.calls, 1)
}

func (r *fakeRepo) callCount() int64 {
	return atomic.LoadInt64(&r.calls)
}

// seed helpers, called before the service under test runs

func (r *fakeRepo) seedProduct(code string, price int64, stock int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[code] = models.Product{Code: code, Name: "Product " + code, Price: price}
	for i := 0; i < stock; i++ {
		now := r.tick()
		r.stock = append(r.stock, models.StockItem{
			ID:          r.id(),
			ProductCode: code,
			Content:     fmt.Sprintf("%s-%d", code, i),
			Status:      models.StockStatusAvailable,
			AddedBy:     "seed",
			AddedAt:     now,
			UpdatedAt:   now,
		})
	}
}

func (r *fakeRepo) seedUser(growID string, balance int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[growID] = balance
}

func (r *fakeRepo) available(code string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.countAvailable(code)
}

func (r *fakeRepo) balance(growID string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[growID]
}

func (r *fakeRepo) transactions() []models.Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Transaction(nil), r.trxs...)
}

func (r *fakeRepo) countAvailable(code string) int {
	n := 0
	for _, item := range r.stock {
		if item.ProductCode == code && item.Status == models.StockStatusAvailable {
			n++
		}
	}
	return n
}

func (r *fakeRepo) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	r.touch()
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.snapshot()
	if err := fn(&fakeTx{r: r}); err != nil {
		r.restore(snap)
		return err
	}
	return nil
}

func (r *fakeRepo) CreateProduct(ctx context.Context, product *models.Product) error {
	r.touch()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[product.Code]; ok {
		return fmt.Errorf("%w: %s", store.ErrDuplicateCode, product.Code)
	}
	now := r.tick()
	product.CreatedAt, product.UpdatedAt = now, now
	r.products[product.Code] = *product
	return nil
}

func (r *fakeRepo) GetProduct(ctx context.Context, code string) (*models.Product, error) {
	r.touch()
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrProductNotFound, code)
	}
	return &p, nil
}

func (r *fakeRepo) UpdateProduct(ctx context.Context, code string, upd store.ProductUpdate) (*models.Product, error) {
	r.touch()
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrProductNotFound, code)
	}
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.Price != nil {
		p.Price = *upd.Price
	}
	if upd.Description != nil {
		p.Description.String, p.Description.Valid = *upd.Description, true
	}
	p.UpdatedAt = r.tick()
	r.products[code] = p
	return &p, nil
}

func (r *fakeRepo) DeleteProduct(ctx context.Context, code string) error {
	r.touch()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[code]; !ok {
		return fmt.Errorf("%w: %s", store.ErrProductNotFound, code)
	}
	for _, item := range r.stock {
		if item.ProductCode == code {
			return fmt.Errorf("%w: %s", store.ErrHasStock, code)
		}
	}
	delete(r.products, code)
	return nil
}

func (r *fakeRepo) ListProductsWithStock(ctx context.Context) ([]models.ProductStock, error) {
	r.touch()
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.ProductStock, 0, len(r.products))
	for code, p := range r.products {
		out = append(out, models.ProductStock{Product: p, Available: r.countAvailable(code)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *fakeRepo) AddStock(ctx context.Context, item *models.StockItem) error {
	r.touch()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[item.ProductCode]; !ok {
		return fmt.Errorf("%w: %s", store.ErrProductNotFound, item.ProductCode)
	}
	for _, existing := range r.stock {
		if existing.Content == item.Content {
			return store.ErrDuplicateContent
		}
	}
	now := r.tick()
	item.ID = r.id()
	item.Status = models.StockStatusAvailable
	item.AddedAt, item.UpdatedAt = now, now
	r.stock = append(r.stock, *item)
	return nil
}

func (r *fakeRepo) CountAvailable(ctx context.Context, code string) (int, error) {
	r.touch()
	return r.available(code), nil
}

func (r *fakeRepo) RemoveStock(ctx context.Context, code string, quantity int) (int, error) {
	r.touch()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[code]; !ok {
		return 0, fmt.Errorf("%w: %s", store.ErrProductNotFound, code)
	}
	if r.countAvailable(code) < quantity {
		return 0, store.ErrInsufficientStock
	}
	removed := 0
	for i := len(r.stock) - 1; i >= 0 && removed < quantity; i-- {
		if r.stock[i].ProductCode == code && r.stock[i].Status == models.StockStatusAvailable {
			r.stock[i].Status = models.StockStatusRemoved
			removed++
		}
	}
	return removed, nil
}

func (r *fakeRepo) StockHistory(ctx context.Context, code string, limit int) ([]models.StockItem, error) {
	r.touch()
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.StockItem
	for i := len(r.stock) - 1; i >= 0 && len(out) < limit; i-- {
		if r.stock[i].ProductCode == code {
			out = append(out, r.stock[i])
		}
	}
	return out, nil
}

func (r *fakeRepo) RegisterGrowID(ctx context.Context, discordID, growID string) (string, error) {
	r.touch()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[growID]; !ok {
		r.users[growID] = 0
	}
	previous := r.links[discordID]
	r.links[discordID] = growID
	return previous, nil
}

func (r *fakeRepo) GetGrowID(ctx context.Context, discordID string) (string, error) {
	r.touch()
	r.mu.Lock()
	defer r.mu.Unlock()
	growID, ok := r.links[discordID]
	if !ok {
		return "", store.ErrUserNotFound
	}
	return growID, nil
}

func (r *fakeRepo) GetUser(ctx context.Context, growID string) (*models.User, error) {
	r.touch()
	r.mu.Lock()
	defer r.mu.Unlock()
	balance, ok := r.users[growID]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return &models.User{GrowID: growID, Balance: balance}, nil
}

func (r *fakeRepo) RecordTransaction(ctx context.Context, trx *models.Transaction) error {
	r.touch()
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&fakeTx{r: r}).RecordTransaction(ctx, trx)
}

func (r *fakeRepo) TransactionHistory(ctx context.Context, growID string, limit int) ([]models.Transaction, error) {
	r.touch()
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Transaction
	for i := len(r.trxs) - 1; i >= 0 && len(out) < limit; i-- {
		if r.trxs[i].GrowID == growID {
			out = append(out, r.trxs[i])
		}
	}
	return out, nil
}

func (r *fakeRepo) GetWorldInfo(ctx context.Context) (*models.WorldInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.world == nil {
		return nil, store.ErrWorldInfoNotFound
	}
	info := *r.world
	return &info, nil
}

func (r *fakeRepo) SetWorldInfo(ctx context.Context, info *models.WorldInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	info.UpdatedAt = r.tick()
	stored := *info
	r.world = &stored
	return nil
}

func (r *fakeRepo) GetSetting(ctx context.Context, key string) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.settings[key]
	return v, ok, nil
}

func (r *fakeRepo) SetSetting(ctx context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings[key] = value
	return nil
}

func (r *fakeRepo) AddToBlacklist(ctx context.Context, entry *models.BlacklistEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[entry.GrowID]; !ok {
		return fmt.Errorf("%w: %s", store.ErrUserNotFound, entry.GrowID)
	}
	entry.AddedAt = r.tick()
	r.blacklist[entry.GrowID] = *entry
	return nil
}

func (r *fakeRepo) RemoveFromBlacklist(ctx context.Context, growID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.blacklist[growID]
	delete(r.blacklist, growID)
	return ok, nil
}

func (r *fakeRepo) IsBlacklisted(ctx context.Context, growID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.blacklist[growID]
	return ok, nil
}

// fakeTx runs with fakeRepo.mu already held
type fakeTx struct {
	r *fakeRepo
}

func (t *fakeTx) LockProduct(ctx context.Context, code string) (*models.Product, error) {
	p, ok := t.r.products[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrProductNotFound, code)
	}
	return &p, nil
}

func (t *fakeTx) ReserveStock(ctx context.Context, code string, quantity int, buyerID string) ([]models.StockItem, error) {
	if quantity <= 0 {
		return nil, store.ErrInvalidQuantity
	}
	if _, err := t.LockProduct(ctx, code); err != nil {
		return nil, err
	}
	if t.r.countAvailable(code) < quantity {
		return nil, fmt.Errorf("%w: %s", store.ErrInsufficientStock, code)
	}

	now := t.r.tick()
	var items []models.StockItem
	for i := range t.r.stock {
		if len(items) == quantity {
			break
		}
		item := &t.r.stock[i]
		if item.ProductCode != code || item.Status != models.StockStatusAvailable {
			continue
		}
		item.Status = models.StockStatusSold
		item.BuyerID.String, item.BuyerID.Valid = buyerID, true
		item.UsedAt.Time, item.UsedAt.Valid = now, true
		item.UpdatedAt = now
		items = append(items, *item)
	}
	return items, nil
}

func (t *fakeTx) EnsureUser(ctx context.Context, growID string) error {
	if _, ok := t.r.users[growID]; !ok {
		t.r.users[growID] = 0
	}
	return nil
}

func (t *fakeTx) AdjustBalance(ctx context.Context, growID string, delta int64) (int64, int64, error) {
	old, ok := t.r.users[growID]
	if !ok {
		return 0, 0, store.ErrUserNotFound
	}
	if old+delta < 0 {
		return 0, 0, store.ErrInsufficientBalance
	}
	t.r.users[growID] = old + delta
	return old, old + delta, nil
}

func (t *fakeTx) SetBalance(ctx context.Context, growID string, balance int64) (int64, error) {
	old, ok := t.r.users[growID]
	if !ok {
		return 0, store.ErrUserNotFound
	}
	t.r.users[growID] = balance
	return old, nil
}

func (t *fakeTx) RecordTransaction(ctx context.Context, trx *models.Transaction) error {
	if t.r.failRecord != nil {
		return t.r.failRecord
	}
	if _, ok := t.r.users[trx.GrowID]; !ok {
		return store.ErrUserNotFound
	}
	trx.ID = t.r.id()
	trx.CreatedAt = t.r.tick()
	t.r.trxs = append(t.r.trxs, *trx)
	return nil
}

type fakeCache struct {
	mu          sync.Mutex
	counts      map[string]int
	invalidated []string
	err         error
}

func newFakeCache() *fakeCache {
	return &fakeCache{counts: map[string]int{}}
}

func (c *fakeCache) GetStockCount(ctx context.Context, code string) (int, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, false, c.err
	}
	n, ok := c.counts[code]
	return n, ok, nil
}

func (c *fakeCache) SetStockCount(ctx context.Context, code string, count int, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.counts[code] = count
	return nil
}

func (c *fakeCache) InvalidateStockCount(ctx context.Context, codes ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, code := range codes {
		delete(c.counts, code)
		c.invalidated = append(c.invalidated, code)
	}
	return c.err
}

type fakePublisher struct {
	mu        sync.Mutex
	purchases []*models.PurchaseCompletedEvent
	stock     []*models.StockChangedEvent
	donations []*models.DonationReceivedEvent
	balances  []*models.BalanceChangedEvent
	err       error
}

func (p *fakePublisher) PublishPurchaseCompleted(ctx context.Context, e *models.PurchaseCompletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.purchases = append(p.purchases, e)
	return p.err
}

func (p *fakePublisher) PublishStockChanged(ctx context.Context, e *models.StockChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stock = append(p.stock, e)
	return p.err
}

func (p *fakePublisher) PublishDonationReceived(ctx context.Context, e *models.DonationReceivedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.donations = append(p.donations, e)
	return p.err
}

func (p *fakePublisher) PublishBalanceChanged(ctx context.Context, e *models.BalanceChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.balances = append(p.balances, e)
	return p.err
}

var errBoom = errors.New("boom")
