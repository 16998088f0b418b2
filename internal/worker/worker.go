package worker

import (
	"context"

	"recycling-rewards/internal/broker"
	"recycling-rewards/internal/models"
	"recycling-rewards/internal/redisclient"
	"recycling-rewards/internal/util"

	"go.uber.org/zap"
)

// StockSyncWorker consumes committed points-economy events and keeps the
// Redis stock snapshot in step with them, so read traffic for stock levels
// never needs the primary database.
type StockSyncWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	redis        *redisclient.Client
	logger       *zap.Logger
}

// NewStockSyncWorker creates a new stock sync worker
func NewStockSyncWorker(consumer *broker.Consumer, redis *redisclient.Client) *StockSyncWorker {
	w := &StockSyncWorker{
		consumer: consumer,
		redis:    redis,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnRewardRedeemed(w.handleRewardRedeemed)
	eventHandler.OnStockAdjusted(w.handleStockAdjusted)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *StockSyncWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting stock sync worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *StockSyncWorker) Stop() error {
	w.logger.Info("Stopping stock sync worker")
	return w.consumer.Close()
}

func (w *StockSyncWorker) handleRewardRedeemed(ctx context.Context, event *models.RewardRedeemedEvent) error {
	w.logger.Debug("Syncing stock after redemption",
		zap.Int64("reward_id", event.RewardID),
		zap.Int64("stock_left", event.StockLeft))

	return w.redis.SetRewardStock(ctx, event.RewardID, event.StockLeft)
}

func (w *StockSyncWorker) handleStockAdjusted(ctx context.Context, event *models.StockAdjustedEvent) error {
	w.logger.Debug("Syncing stock after adjustment",
		zap.Int64("reward_id", event.RewardID),
		zap.Int64("new_stock", event.NewStock))

	return w.redis.SetRewardStock(ctx, event.RewardID, event.NewStock)
}
