package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"storebot/internal/broker"
	"storebot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingBoard struct {
	refreshes int32
	err       error
}

func (b *countingBoard) Refresh(ctx context.Context) error {
	atomic.AddInt32(&b.refreshes, 1)
	return b.err
}

func (b *countingBoard) count() int32 {
	return atomic.LoadInt32(&b.refreshes)
}

func TestLiveStockWorkerRefreshesOnTrigger(t *testing.T) {
	board := &countingBoard{}
	w := NewLiveStockWorker(board, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	require.Eventually(t, func() bool { return board.count() == 1 }, time.Second, 5*time.Millisecond)

	w.Trigger()
	require.Eventually(t, func() bool { return board.count() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestLiveStockWorkerTicks(t *testing.T) {
	board := &countingBoard{err: errors.New("discord down")}
	w := NewLiveStockWorker(board, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	assert.Eventually(t, func() bool { return board.count() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestTriggerDoesNotBlock(t *testing.T) {
	w := NewLiveStockWorker(&countingBoard{}, time.Hour)
	for i := 0; i < 10; i++ {
		w.Trigger()
	}
	assert.Len(t, w.trigger, 1)
}

type recordingNotifier struct {
	mu        sync.Mutex
	purchases []*models.PurchaseCompletedEvent
	donations []*models.DonationReceivedEvent
}

func (n *recordingNotifier) NotifyPurchase(ctx context.Context, e *models.PurchaseCompletedEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.purchases = append(n.purchases, e)
	return nil
}

func (n *recordingNotifier) NotifyDonation(ctx context.Context, e *models.DonationReceivedEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.donations = append(n.donations, e)
	return nil
}

func (n *recordingNotifier) counts() (int, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.purchases), len(n.donations)
}

func TestShopEventHandlerRouting(t *testing.T) {
	notifier := &recordingNotifier{}
	board := NewLiveStockWorker(&countingBoard{}, time.Hour)
	handler := NewShopEventHandler(notifier, board)

	sink := broker.NewLocalSink(handler.HandleMessage, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sink.Run(ctx)

	pub := broker.NewEventPublisher(sink)
	require.NoError(t, pub.PublishPurchaseCompleted(ctx, &models.PurchaseCompletedEvent{GrowID: "Alice", ProductCode: "DL", Quantity: 1}))
	require.NoError(t, pub.PublishDonationReceived(ctx, &models.DonationReceivedEvent{GrowID: "Alice", CreditedWL: 5}))
	require.NoError(t, pub.PublishBalanceChanged(ctx, &models.BalanceChangedEvent{GrowID: "Alice"}))

	assert.Eventually(t, func() bool {
		p, d := notifier.counts()
		return p == 1 && d == 1
	}, time.Second, 5*time.Millisecond)
	assert.Len(t, board.trigger, 1)
}
