package worker

import (
	"context"
	"time"

	"storebot/internal/util"

	"go.uber.org/zap"
)

// StockBoard renders the current stock overview somewhere visible
type StockBoard interface {
	Refresh(ctx context.Context) error
}

// LiveStockWorker refreshes the stock board on a fixed interval and
// whenever Trigger is called. Triggers arriving during a refresh collapse
// into a single follow-up refresh.
type LiveStockWorker struct {
	board    StockBoard
	interval time.Duration
	trigger  chan struct{}
	logger   *zap.Logger
}

// NewLiveStockWorker creates a new live stock worker
func NewLiveStockWorker(board StockBoard, interval time.Duration) *LiveStockWorker {
	return &LiveStockWorker{
		board:    board,
		interval: interval,
		trigger:  make(chan struct{}, 1),
		logger:   util.Named("worker.livestock"),
	}
}

// Trigger schedules a refresh without blocking
func (w *LiveStockWorker) Trigger() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// Start runs until ctx is done
func (w *LiveStockWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting live stock worker", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Stopping live stock worker")
			return ctx.Err()
		case <-ticker.C:
			w.refresh(ctx)
		case <-w.trigger:
			w.refresh(ctx)
			ticker.Reset(w.interval)
		}
	}
}

func (w *LiveStockWorker) refresh(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := w.board.Refresh(ctx); err != nil {
		util.LiveStockRefreshTotal.WithLabelValues("error").Inc()
		w.logger.Error("Failed to refresh stock board", zap.Error(err))
		return
	}
	util.LiveStockRefreshTotal.WithLabelValues("ok").Inc()
}
