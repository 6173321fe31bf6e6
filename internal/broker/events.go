package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storebot/internal/models"
	"storebot/internal/util"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	sink Sink
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(sink Sink) *EventPublisher {
	return &EventPublisher{sink: sink}
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

// PublishPurchaseCompleted publishes PurchaseCompleted event
func (ep *EventPublisher) PublishPurchaseCompleted(ctx context.Context, event *models.PurchaseCompletedEvent) error {
	event.BaseEvent = newBaseEvent(models.EventTypePurchaseCompleted)
	return ep.sink.PublishEvent(ctx, "product-"+event.ProductCode, event)
}

// PublishStockChanged publishes StockChanged event
func (ep *EventPublisher) PublishStockChanged(ctx context.Context, event *models.StockChangedEvent) error {
	event.BaseEvent = newBaseEvent(models.EventTypeStockChanged)
	return ep.sink.PublishEvent(ctx, "product-"+event.ProductCode, event)
}

// PublishDonationReceived publishes DonationReceived event
func (ep *EventPublisher) PublishDonationReceived(ctx context.Context, event *models.DonationReceivedEvent) error {
	event.BaseEvent = newBaseEvent(models.EventTypeDonationReceived)
	return ep.sink.PublishEvent(ctx, "user-"+event.GrowID, event)
}

// PublishBalanceChanged publishes BalanceChanged event
func (ep *EventPublisher) PublishBalanceChanged(ctx context.Context, event *models.BalanceChangedEvent) error {
	event.BaseEvent = newBaseEvent(models.EventTypeBalanceChanged)
	return ep.sink.PublishEvent(ctx, "user-"+event.GrowID, event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onPurchaseCompleted func(context.Context, *models.PurchaseCompletedEvent) error
	onStockChanged      func(context.Context, *models.StockChangedEvent) error
	onDonationReceived  func(context.Context, *models.DonationReceivedEvent) error
	onBalanceChanged    func(context.Context, *models.BalanceChangedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnPurchaseCompleted registers a handler for PurchaseCompleted events
func (eh *EventHandler) OnPurchaseCompleted(handler func(context.Context, *models.PurchaseCompletedEvent) error) {
	eh.onPurchaseCompleted = handler
}

// OnStockChanged registers a handler for StockChanged events
func (eh *EventHandler) OnStockChanged(handler func(context.Context, *models.StockChangedEvent) error) {
	eh.onStockChanged = handler
}

// OnDonationReceived registers a handler for DonationReceived events
func (eh *EventHandler) OnDonationReceived(handler func(context.Context, *models.DonationReceivedEvent) error) {
	eh.onDonationReceived = handler
}

// OnBalanceChanged registers a handler for BalanceChanged events
func (eh *EventHandler) OnBalanceChanged(handler func(context.Context, *models.BalanceChangedEvent) error) {
	eh.onBalanceChanged = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	logger := util.GetLogger()
	logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypePurchaseCompleted:
		if eh.onPurchaseCompleted != nil {
			var event models.PurchaseCompletedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PurchaseCompleted event: %w", err)
			}
			return eh.onPurchaseCompleted(ctx, &event)
		}

	case models.EventTypeStockChanged:
		if eh.onStockChanged != nil {
			var event models.StockChangedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal StockChanged event: %w", err)
			}
			return eh.onStockChanged(ctx, &event)
		}

	case models.EventTypeDonationReceived:
		if eh.onDonationReceived != nil {
			var event models.DonationReceivedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal DonationReceived event: %w", err)
			}
			return eh.onDonationReceived(ctx, &event)
		}

	case models.EventTypeBalanceChanged:
		if eh.onBalanceChanged != nil {
			var event models.BalanceChangedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal BalanceChanged event: %w", err)
			}
			return eh.onBalanceChanged(ctx, &event)
		}

	default:
		logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
