package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storebot/config"
	"storebot/internal/api"
	"storebot/internal/bot"
	"storebot/internal/broker"
	"storebot/internal/redisclient"
	"storebot/internal/service"
	"storebot/internal/store"
	"storebot/internal/util"
	"storebot/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type nopTrigger struct{}

func (nopTrigger) Trigger() {}

func main() {

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := util.InitLogger(util.LogOptions{
		Env:   cfg.Server.Env,
		Level: cfg.Server.LogLevel,
		File:  cfg.Server.LogFile,
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting storebot")

	tp, err := util.InitTracer(util.TraceOptions{
		ServiceName:    "storebot",
		Environment:    cfg.Server.Env,
		JaegerEndpoint: cfg.Observ.JaegerEndpoint,
		SampleRatio:    cfg.Observ.TraceSampleRatio,
	})
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	if tp != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Error("Error shutting down tracer", zap.Error(err))
			}
		}()
	}

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = db.Migrate(migrateCtx)
	migrateCancel()
	if err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}
	logger.Info("Database connected")

	// Redis is optional: without it the stock cache, cooldowns and
	// purchase locks fall back to their in-process versions.
	var (
		stockCache service.StockCache
		cooldowns  bot.Cooldowns
		locks      bot.Locker
	)
	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warn("Redis unavailable, running without cache", zap.Error(err))
	} else {
		defer redisClient.Close()
		stockCache = redisClient
		cooldowns = redisClient
		locks = redisClient
		logger.Info("Redis connected")
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var shopEvents *broker.EventHandler
	var sink broker.Sink
	if cfg.Kafka.Enabled {
		sink = broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicShop)
		logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
	} else {
		local := broker.NewLocalSink(func(ctx context.Context, msg kafka.Message) error {
			return shopEvents.HandleMessage(ctx, msg)
		}, 256)
		go local.Run(workerCtx)
		sink = local
		logger.Info("Kafka disabled, delivering shop events in process")
	}
	defer sink.Close()

	eventPublisher := broker.NewEventPublisher(sink)

	catalogService := service.NewCatalogService(db, stockCache, eventPublisher)
	stockService := service.NewStockService(db, stockCache, eventPublisher,
		cfg.Business.StockCacheTTL, cfg.Business.MaxStockFileSize)
	walletService := service.NewWalletService(db, eventPublisher, cfg.Business.MaxTransactionAmount)
	purchaseService := service.NewPurchaseService(db, stockCache, eventPublisher, cfg.Business.MaxPurchaseQuantity)
	settingsService := service.NewSettingsService(db)

	discordBot, err := bot.New(cfg.Discord, cooldowns)
	if err != nil {
		logger.Fatal("Failed to create Discord bot", zap.Error(err))
	}

	shop := bot.NewShop(purchaseService, catalogService, stockService, walletService, settingsService,
		bot.NewDownloader(cfg.Business.MaxStockFileSize, 30*time.Second), locks, discordBot,
		bot.ShopOptions{
			MaxPurchaseQuantity:  cfg.Business.MaxPurchaseQuantity,
			MaxTransactionAmount: cfg.Business.MaxTransactionAmount,
			Cooldown:             cfg.Business.CommandCooldown,
		})
	if err := shop.Register(discordBot.Registry()); err != nil {
		logger.Fatal("Failed to register commands", zap.Error(err))
	}

	var boardTrigger worker.Trigger = nopTrigger{}
	var liveStockWorker *worker.LiveStockWorker
	if cfg.Discord.LiveStockChannelID != "" {
		board := bot.NewBoard(discordBot.Session(), stockService, cfg.Discord.LiveStockChannelID, discordBot.SelfID)
		liveStockWorker = worker.NewLiveStockWorker(board, cfg.Business.LiveStockInterval)
		boardTrigger = liveStockWorker
	} else {
		logger.Warn("DISCORD_LIVE_STOCK_CHANNEL_ID not set, stock board disabled")
	}

	notifier := bot.NewNotifier(discordBot.Session(),
		cfg.Discord.PurchaseLogChannelID, cfg.Discord.DonationLogChannelID)
	shopEvents = worker.NewShopEventHandler(notifier, boardTrigger)

	if err := discordBot.Start(); err != nil {
		logger.Fatal("Failed to start Discord bot", zap.Error(err))
	}

	if liveStockWorker != nil {
		go func() {
			if err := liveStockWorker.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Live stock worker error", zap.Error(err))
			}
		}()
	}

	var shopEventWorker *worker.ShopEventWorker
	if cfg.Kafka.Enabled {
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicShop, cfg.Kafka.ConsumerGroup)
		shopEventWorker = worker.NewShopEventWorker(consumer, shopEvents)
		go func() {
			if err := shopEventWorker.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Shop event worker error", zap.Error(err))
			}
		}()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(walletService, stockService, cfg.Business.DonationSecret).
		WithReadinessCheck("postgres", db)
	if redisClient != nil {
		handler.WithReadinessCheck("redis", redisClient).WithIdempotency(redisClient)
	}
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	if err := discordBot.Stop(); err != nil {
		logger.Error("Error closing Discord session", zap.Error(err))
	}

	workerCancel()
	if shopEventWorker != nil {
		if err := shopEventWorker.Stop(); err != nil {
			logger.Error("Error stopping shop event worker", zap.Error(err))
		}
	}

	logger.Info("Storebot exited")
}
