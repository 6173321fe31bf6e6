package worker

import (
	"context"

	"storebot/internal/broker"
	"storebot/internal/models"
	"storebot/internal/util"

	"go.uber.org/zap"
)

// Notifier posts shop activity to the log channels
type Notifier interface {
	NotifyPurchase(ctx context.Context, event *models.PurchaseCompletedEvent) error
	NotifyDonation(ctx context.Context, event *models.DonationReceivedEvent) error
}

// Trigger requests an out-of-band refresh
type Trigger interface {
	Trigger()
}

// NewShopEventHandler routes shop events to the notifier and the stock board
func NewShopEventHandler(notifier Notifier, board Trigger) *broker.EventHandler {
	handler := broker.NewEventHandler()

	handler.OnPurchaseCompleted(func(ctx context.Context, event *models.PurchaseCompletedEvent) error {
		board.Trigger()
		return notifier.NotifyPurchase(ctx, event)
	})
	handler.OnStockChanged(func(ctx context.Context, event *models.StockChangedEvent) error {
		board.Trigger()
		return nil
	})
	handler.OnDonationReceived(notifier.NotifyDonation)
	handler.OnBalanceChanged(func(ctx context.Context, event *models.BalanceChangedEvent) error {
		util.GetLogger().Info("Balance changed",
			zap.String("growid", event.GrowID),
			zap.String("type", event.Type),
			zap.Int64("old_balance", event.OldBalance),
			zap.Int64("new_balance", event.NewBalance),
			zap.String("actor", event.Actor))
		return nil
	})

	return handler
}

// ShopEventWorker consumes shop events from Kafka
type ShopEventWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewShopEventWorker creates a new shop event worker
func NewShopEventWorker(consumer *broker.Consumer, eventHandler *broker.EventHandler) *ShopEventWorker {
	return &ShopEventWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.Named("worker.events"),
	}
}

// Start starts the worker
func (w *ShopEventWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting shop event worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *ShopEventWorker) Stop() error {
	w.logger.Info("Stopping shop event worker")
	return w.consumer.Close()
}
