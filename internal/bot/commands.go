package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storebot/internal/models"
	"storebot/internal/service"
	"storebot/internal/util"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Purchaser runs the purchase orchestrator
type Purchaser interface {
	Purchase(ctx context.Context, growID, code string, quantity int) (*service.PurchaseResult, error)
}

// Catalog manages product definitions
type Catalog interface {
	AddProduct(ctx context.Context, req service.AddProductRequest) (*models.Product, error)
	EditProduct(ctx context.Context, code, field, value string) (*models.Product, error)
	RemoveProduct(ctx context.Context, code string) error
}

// Inventory manages stock items
type Inventory interface {
	StockLister
	AddStockBatch(ctx context.Context, code string, data []byte, addedBy string) (*service.BatchResult, error)
	ReduceStock(ctx context.Context, code string, quantity int, adminID, reason string) (int, error)
	StockHistory(ctx context.Context, code string, limit int) ([]models.StockItem, error)
}

// Wallet manages GrowIDs and balances
type Wallet interface {
	RegisterGrowID(ctx context.Context, discordID, growID string) error
	GetGrowID(ctx context.Context, discordID string) (string, error)
	GetBalance(ctx context.Context, growID string) (models.Balance, error)
	AdjustBalance(ctx context.Context, growID string, amount int64, admin string) (*models.Transaction, error)
	ResetBalance(ctx context.Context, growID, admin string) (*models.Transaction, error)
	History(ctx context.Context, growID string, limit int) ([]models.Transaction, error)
}

// Settings manages shop-wide settings and the blacklist
type Settings interface {
	WorldInfo(ctx context.Context) (*models.WorldInfo, error)
	SetWorldInfo(ctx context.Context, req service.WorldInfoRequest, admin string) (*models.WorldInfo, error)
	Maintenance(ctx context.Context) (bool, error)
	SetMaintenance(ctx context.Context, on bool, admin string) error
	Blacklist(ctx context.Context, growID, admin, reason string) error
	Unblacklist(ctx context.Context, growID, admin string) error
}

// FileFetcher downloads command attachments
type FileFetcher interface {
	FetchText(ctx context.Context, att *discordgo.MessageAttachment) ([]byte, error)
}

// Locker guards one purchase per user at a time
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// DirectMessenger sends a private message to a user
type DirectMessenger interface {
	SendDM(ctx context.Context, userID string, msg *discordgo.MessageSend) error
}

// ShopOptions tunes the shop commands
type ShopOptions struct {
	MaxPurchaseQuantity  int
	MaxTransactionAmount int64
	Cooldown             time.Duration
	PurchaseLockTTL      time.Duration
}

// Shop holds the command handlers of the storefront
type Shop struct {
	purchases Purchaser
	catalog   Catalog
	stock     Inventory
	wallet    Wallet
	settings  Settings
	files     FileFetcher
	locks     Locker
	dm        DirectMessenger
	opts      ShopOptions
	logger    *zap.Logger
}

// NewShop creates the storefront command set. locks may be nil.
func NewShop(purchases Purchaser, catalog Catalog, stock Inventory, wallet Wallet, settings Settings,
	files FileFetcher, locks Locker, dm DirectMessenger, opts ShopOptions) *Shop {
	if opts.MaxPurchaseQuantity <= 0 {
		opts.MaxPurchaseQuantity = 100
	}
	if opts.MaxTransactionAmount <= 0 {
		opts.MaxTransactionAmount = 1000000
	}
	if opts.PurchaseLockTTL <= 0 {
		opts.PurchaseLockTTL = 30 * time.Second
	}
	return &Shop{
		purchases: purchases,
		catalog:   catalog,
		stock:     stock,
		wallet:    wallet,
		settings:  settings,
		files:     files,
		locks:     locks,
		dm:        dm,
		opts:      opts,
		logger:    util.GetLogger(),
	}
}

// Register adds every shop command to the registry
func (s *Shop) Register(r *Registry) error {
	maxQty := int64(s.opts.MaxPurchaseQuantity)
	maxAmount := s.opts.MaxTransactionAmount

	codeOpt := OptionSpec{Name: "code", Description: "Product code", Type: OptionString, Required: true, Max: 32}
	growIDOpt := OptionSpec{Name: "growid", Description: "GrowID", Type: OptionString, Required: true, Min: 3, Max: 30}
	amountOpt := OptionSpec{Name: "amount", Description: "Amount", Type: OptionInteger, Required: true, Min: 1, Max: maxAmount}
	currencyOpt := OptionSpec{Name: "currency", Description: "WL, DL or BGL (default WL)", Type: OptionString, Choices: []string{"WL", "DL", "BGL"}}

	cmds := []Command{
		{
			Name:        "buy",
			Description: "Buy a product",
			Cooldown:    s.opts.Cooldown,
			Options: []OptionSpec{
				codeOpt,
				{Name: "quantity", Description: "How many items", Type: OptionInteger, Required: true, Min: 1, Max: maxQty},
			},
			Handler: s.buy,
		},
		{Name: "stock", Description: "Show available stock", Cooldown: s.opts.Cooldown, Handler: s.showStock},
		{Name: "balance", Description: "Show your balance", Cooldown: s.opts.Cooldown, Handler: s.balance},
		{
			Name:        "setgrowid",
			Description: "Link your GrowID",
			Cooldown:    s.opts.Cooldown,
			Options:     []OptionSpec{growIDOpt},
			Handler:     s.setGrowID,
		},
		{Name: "history", Description: "Show your recent transactions", Cooldown: s.opts.Cooldown, Handler: s.history},
		{Name: "growid", Description: "Show your registered GrowID", Cooldown: s.opts.Cooldown, Handler: s.showGrowID},
		{Name: "world", Description: "Show the shop world", Cooldown: s.opts.Cooldown, Handler: s.world},
		{
			Name:        "addproduct",
			Description: "Add a product",
			AdminOnly:   true,
			Options: []OptionSpec{
				codeOpt,
				{Name: "name", Description: "Product name", Type: OptionString, Required: true, Max: 100},
				{Name: "price", Description: "Price in WL", Type: OptionInteger, Required: true, Min: 1, Max: maxAmount},
				{Name: "description", Description: "Product description", Type: OptionString, Max: 1000},
			},
			Handler: s.addProduct,
		},
		{
			Name:        "editproduct",
			Description: "Edit a product field",
			AdminOnly:   true,
			Options: []OptionSpec{
				codeOpt,
				{Name: "field", Description: "Field to change", Type: OptionString, Required: true,
					Choices: []string{service.ProductFieldName, service.ProductFieldPrice, service.ProductFieldDescription}},
				{Name: "value", Description: "New value", Type: OptionString, Required: true, Max: 1000},
			},
			Handler: s.editProduct,
		},
		{
			Name:        "deleteproduct",
			Description: "Delete a product without stock",
			AdminOnly:   true,
			Options:     []OptionSpec{codeOpt},
			Handler:     s.deleteProduct,
		},
		{
			Name:        "addstock",
			Description: "Upload stock items from a .txt file, one per line",
			AdminOnly:   true,
			Options: []OptionSpec{
				codeOpt,
				{Name: "file", Description: "Stock file (.txt)", Type: OptionAttachment, Required: true},
			},
			Handler: s.addStock,
		},
		{
			Name:        "reducestock",
			Description: "Remove the newest available stock items",
			AdminOnly:   true,
			Options: []OptionSpec{
				codeOpt,
				{Name: "quantity", Description: "How many items", Type: OptionInteger, Required: true, Min: 1, Max: 10000},
				{Name: "reason", Description: "Why", Type: OptionString, Max: 200},
			},
			Handler: s.reduceStock,
		},
		{
			Name:        "stockhistory",
			Description: "Show recent stock changes of a product",
			AdminOnly:   true,
			Options:     []OptionSpec{codeOpt},
			Handler:     s.stockHistory,
		},
		{
			Name:        "addbal",
			Description: "Add balance to a GrowID",
			AdminOnly:   true,
			Options:     []OptionSpec{growIDOpt, amountOpt, currencyOpt},
			Handler:     s.addBalance,
		},
		{
			Name:        "reducebal",
			Description: "Remove balance from a GrowID",
			AdminOnly:   true,
			Options:     []OptionSpec{growIDOpt, amountOpt, currencyOpt},
			Handler:     s.reduceBalance,
		},
		{
			Name:        "resetbal",
			Description: "Reset the balance of a GrowID",
			AdminOnly:   true,
			Options:     []OptionSpec{growIDOpt},
			Handler:     s.resetBalance,
		},
		{
			Name:        "checkbal",
			Description: "Show the balance and history of a GrowID",
			AdminOnly:   true,
			Options:     []OptionSpec{growIDOpt},
			Handler:     s.checkBalance,
		},
		{
			Name:        "setworld",
			Description: "Set the shop world",
			AdminOnly:   true,
			Options: []OptionSpec{
				{Name: "world", Description: "World name", Type: OptionString, Required: true, Max: 24},
				{Name: "owner", Description: "World owner GrowID", Type: OptionString, Required: true, Min: 3, Max: 30},
				{Name: "bot", Description: "Bot GrowID", Type: OptionString, Required: true, Min: 3, Max: 30},
			},
			Handler: s.setWorld,
		},
		{
			Name:        "maintenance",
			Description: "Toggle maintenance mode",
			AdminOnly:   true,
			Options: []OptionSpec{
				{Name: "mode", Description: "on or off", Type: OptionString, Required: true, Choices: []string{"on", "off"}},
			},
			Handler: s.maintenance,
		},
		{
			Name:        "blacklist",
			Description: "Ban or unban a GrowID from the shop",
			AdminOnly:   true,
			Options: []OptionSpec{
				{Name: "action", Description: "add or remove", Type: OptionString, Required: true, Choices: []string{"add", "remove"}},
				growIDOpt,
				{Name: "reason", Description: "Why", Type: OptionString, Max: 200},
			},
			Handler: s.blacklist,
		},
	}

	for _, cmd := range cmds {
		if err := r.Register(cmd); err != nil {
			return err
		}
	}
	r.Use(s.maintenanceGuard)
	return nil
}

// maintenanceGuard turns away non-admin commands while maintenance mode is
// on. A failing settings backend keeps the shop open.
func (s *Shop) maintenanceGuard(ctx context.Context, cmd *Command, inv Invocation) error {
	if inv.IsAdmin {
		return nil
	}
	on, err := s.settings.Maintenance(ctx)
	if err != nil {
		s.logger.Warn("Maintenance check failed", zap.String("command", cmd.Name), zap.Error(err))
		return nil
	}
	if on {
		return errMaintenance
	}
	return nil
}

func (s *Shop) growIDOf(ctx context.Context, discordID string) (string, error) {
	growID, err := s.wallet.GetGrowID(ctx, discordID)
	if errors.Is(err, service.ErrUserNotFound) {
		return "", errNoGrowID
	}
	return growID, err
}

func (s *Shop) buy(ctx context.Context, req *Request) (*Response, error) {
	growID, err := s.growIDOf(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	if s.locks != nil {
		key := "purchase:" + req.UserID
		ok, err := s.locks.AcquireLock(ctx, key, s.opts.PurchaseLockTTL)
		switch {
		case err != nil:
			s.logger.Warn("Purchase lock unavailable", zap.String("user_id", req.UserID), zap.Error(err))
		case !ok:
			return nil, errPurchaseInProgress
		default:
			defer func() {
				if err := s.locks.ReleaseLock(context.Background(), key); err != nil {
					s.logger.Warn("Failed to release purchase lock", zap.String("user_id", req.UserID), zap.Error(err))
				}
			}()
		}
	}

	res, err := s.purchases.Purchase(ctx, growID, req.Args.String("code"), int(req.Args.Int("quantity")))
	if err != nil {
		return nil, err
	}

	err = s.dm.SendDM(ctx, req.UserID, &discordgo.MessageSend{
		Content: fmt.Sprintf("🛒 Your purchase of %d× %s", len(res.Contents), res.Product.Name),
		Files:   []*discordgo.File{itemsFile(res)},
	})
	if err != nil {
		s.logger.Warn("Failed to DM purchased items, attaching to reply",
			zap.String("user_id", req.UserID),
			zap.Int64("transaction_id", res.Transaction.ID),
			zap.Error(err))
		return &Response{
			Embeds: []*discordgo.MessageEmbed{purchaseEmbed(res, false)},
			Files:  []*discordgo.File{itemsFile(res)},
		}, nil
	}
	return &Response{Embeds: []*discordgo.MessageEmbed{purchaseEmbed(res, true)}}, nil
}

func (s *Shop) showStock(ctx context.Context, req *Request) (*Response, error) {
	products, err := s.stock.Overview(ctx)
	if err != nil {
		return nil, err
	}
	return &Response{Embeds: []*discordgo.MessageEmbed{stockBoardEmbed(products, time.Now())}}, nil
}

func (s *Shop) balance(ctx context.Context, req *Request) (*Response, error) {
	growID, err := s.growIDOf(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	bal, err := s.wallet.GetBalance(ctx, growID)
	if err != nil {
		return nil, err
	}
	return &Response{Embeds: []*discordgo.MessageEmbed{balanceEmbed(growID, bal)}}, nil
}

func (s *Shop) setGrowID(ctx context.Context, req *Request) (*Response, error) {
	growID := req.Args.String("growid")
	if err := s.wallet.RegisterGrowID(ctx, req.UserID, growID); err != nil {
		return nil, err
	}
	return &Response{Embeds: []*discordgo.MessageEmbed{{
		Title:       "✅ GrowID Set Successfully",
		Description: fmt.Sprintf("Your GrowID has been set to: `%s`", growID),
		Color:       colorSuccess,
	}}}, nil
}

func (s *Shop) history(ctx context.Context, req *Request) (*Response, error) {
	growID, err := s.growIDOf(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	trxs, err := s.wallet.History(ctx, growID, 0)
	if err != nil {
		return nil, err
	}
	return &Response{Embeds: []*discordgo.MessageEmbed{historyEmbed(growID, trxs)}}, nil
}

func (s *Shop) showGrowID(ctx context.Context, req *Request) (*Response, error) {
	growID, err := s.growIDOf(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	return &Response{Embeds: []*discordgo.MessageEmbed{growIDEmbed(growID)}}, nil
}

func (s *Shop) world(ctx context.Context, req *Request) (*Response, error) {
	info, err := s.settings.WorldInfo(ctx)
	if err != nil {
		return nil, err
	}
	return &Response{Embeds: []*discordgo.MessageEmbed{worldEmbed(info)}}, nil
}

func (s *Shop) addProduct(ctx context.Context, req *Request) (*Response, error) {
	product, err := s.catalog.AddProduct(ctx, service.AddProductRequest{
		Code:        req.Args.String("code"),
		Name:        req.Args.String("name"),
		Price:       req.Args.Int("price"),
		Description: req.Args.String("description"),
	})
	if err != nil {
		return nil, err
	}
	return &Response{Embeds: []*discordgo.MessageEmbed{productEmbed("✅ Product Added", product)}}, nil
}

func (s *Shop) editProduct(ctx context.Context, req *Request) (*Response, error) {
	product, err := s.catalog.EditProduct(ctx,
		req.Args.String("code"), strings.ToLower(req.Args.String("field")), req.Args.String("value"))
	if err != nil {
		return nil, err
	}
	return &Response{Embeds: []*discordgo.MessageEmbed{productEmbed("✅ Product Updated", product)}}, nil
}

func (s *Shop) deleteProduct(ctx context.Context, req *Request) (*Response, error) {
	code := req.Args.String("code")
	if err := s.catalog.RemoveProduct(ctx, code); err != nil {
		return nil, err
	}
	return &Response{Content: fmt.Sprintf("✅ Product `%s` deleted.", code)}, nil
}

func (s *Shop) addStock(ctx context.Context, req *Request) (*Response, error) {
	code := req.Args.String("code")
	data, err := s.files.FetchText(ctx, req.Args.Attachment("file"))
	if err != nil {
		return nil, err
	}
	res, err := s.stock.AddStockBatch(ctx, code, data, req.UserID)
	if err != nil {
		return nil, err
	}
	return &Response{Embeds: []*discordgo.MessageEmbed{batchEmbed(code, res)}}, nil
}

func (s *Shop) reduceStock(ctx context.Context, req *Request) (*Response, error) {
	code := req.Args.String("code")
	reason := req.Args.String("reason")
	if reason == "" {
		reason = "manual reduction"
	}
	removed, err := s.stock.ReduceStock(ctx, code, int(req.Args.Int("quantity")), req.UserID, reason)
	if err != nil {
		return nil, err
	}
	return &Response{Content: fmt.Sprintf("✅ Removed %d items from `%s`.", removed, code)}, nil
}

func (s *Shop) stockHistory(ctx context.Context, req *Request) (*Response, error) {
	code := req.Args.String("code")
	items, err := s.stock.StockHistory(ctx, code, 0)
	if err != nil {
		return nil, err
	}

	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("📦 Stock History of %s", code),
		Color: colorInfo,
	}
	if len(items) == 0 {
		embed.Description = "No stock items yet."
	}
	for i, item := range items {
		if i == maxEmbedFields {
			break
		}
		value := fmt.Sprintf("added by <@%s>", item.AddedBy)
		if item.BuyerID.Valid {
			value += fmt.Sprintf(", bought by `%s`", item.BuyerID.String)
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("#%d %s · %s", item.ID, item.Status, item.UpdatedAt.UTC().Format("2006-01-02 15:04")),
			Value: value,
		})
	}
	return &Response{Embeds: []*discordgo.MessageEmbed{embed}}, nil
}

// amountInWL converts the amount and currency options to World Locks
func amountInWL(args Args) int64 {
	rate := models.RateWL
	switch strings.ToUpper(args.String("currency")) {
	case "DL":
		rate = models.RateDL
	case "BGL":
		rate = models.RateBGL
	}
	return args.Int("amount") * rate
}

func (s *Shop) addBalance(ctx context.Context, req *Request) (*Response, error) {
	trx, err := s.wallet.AdjustBalance(ctx, req.Args.String("growid"), amountInWL(req.Args), req.UserID)
	if err != nil {
		return nil, err
	}
	return &Response{Embeds: []*discordgo.MessageEmbed{balanceChangeEmbed("✅ Balance Added", trx)}}, nil
}

func (s *Shop) reduceBalance(ctx context.Context, req *Request) (*Response, error) {
	trx, err := s.wallet.AdjustBalance(ctx, req.Args.String("growid"), -amountInWL(req.Args), req.UserID)
	if err != nil {
		return nil, err
	}
	return &Response{Embeds: []*discordgo.MessageEmbed{balanceChangeEmbed("✅ Balance Reduced", trx)}}, nil
}

func (s *Shop) resetBalance(ctx context.Context, req *Request) (*Response, error) {
	trx, err := s.wallet.ResetBalance(ctx, req.Args.String("growid"), req.UserID)
	if err != nil {
		return nil, err
	}
	return &Response{Embeds: []*discordgo.MessageEmbed{balanceChangeEmbed("✅ Balance Reset", trx)}}, nil
}

func (s *Shop) checkBalance(ctx context.Context, req *Request) (*Response, error) {
	growID := req.Args.String("growid")
	bal, err := s.wallet.GetBalance(ctx, growID)
	if err != nil {
		return nil, err
	}
	trxs, err := s.wallet.History(ctx, growID, 10)
	if err != nil {
		return nil, err
	}
	return &Response{Embeds: []*discordgo.MessageEmbed{balanceEmbed(growID, bal), historyEmbed(growID, trxs)}}, nil
}

func (s *Shop) setWorld(ctx context.Context, req *Request) (*Response, error) {
	info, err := s.settings.SetWorldInfo(ctx, service.WorldInfoRequest{
		World: req.Args.String("world"),
		Owner: req.Args.String("owner"),
		Bot:   req.Args.String("bot"),
	}, req.UserID)
	if err != nil {
		return nil, err
	}
	embed := worldEmbed(info)
	embed.Title = "✅ World Updated"
	return &Response{Embeds: []*discordgo.MessageEmbed{embed}}, nil
}

func (s *Shop) maintenance(ctx context.Context, req *Request) (*Response, error) {
	on := strings.EqualFold(req.Args.String("mode"), "on")
	if err := s.settings.SetMaintenance(ctx, on, req.UserID); err != nil {
		return nil, err
	}
	if on {
		return &Response{Content: "🔧 Maintenance mode enabled."}, nil
	}
	return &Response{Content: "✅ Maintenance mode disabled."}, nil
}

func (s *Shop) blacklist(ctx context.Context, req *Request) (*Response, error) {
	growID := req.Args.String("growid")
	if strings.EqualFold(req.Args.String("action"), "remove") {
		if err := s.settings.Unblacklist(ctx, growID, req.UserID); err != nil {
			return nil, err
		}
		return &Response{Content: fmt.Sprintf("✅ `%s` removed from the blacklist.", growID)}, nil
	}
	if err := s.settings.Blacklist(ctx, growID, req.UserID, req.Args.String("reason")); err != nil {
		return nil, err
	}
	return &Response{Content: fmt.Sprintf("⛔ `%s` added to the blacklist.", growID)}, nil
}
