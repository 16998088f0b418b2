package models

import "time"

// Event types
const (
	EventTypeOrderCompleted = "ORDER_COMPLETED"
	EventTypeOrderCancelled = "ORDER_CANCELLED"
	EventTypeRewardRedeemed = "REWARD_REDEEMED"
	EventTypeStockAdjusted  = "STOCK_ADJUSTED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCompletedEvent published after an order completion commits
type OrderCompletedEvent struct {
	BaseEvent
	OrderID       int64 `json:"order_id"`
	UserID        int64 `json:"user_id"`
	PointsAwarded int64 `json:"points_awarded"`
	Balance       int64 `json:"balance"`
}

// OrderCancelledEvent published after an order cancellation commits
type OrderCancelledEvent struct {
	BaseEvent
	OrderID int64 `json:"order_id"`
	UserID  int64 `json:"user_id"`
}

// RewardRedeemedEvent published after a redemption commits
type RewardRedeemedEvent struct {
	BaseEvent
	HistoryID  int64 `json:"history_id"`
	UserID     int64 `json:"user_id"`
	RewardID   int64 `json:"reward_id"`
	PointsUsed int64 `json:"points_used"`
	StockLeft  int64 `json:"stock_left"`
}

// StockAdjustedEvent published after an administrative stock correction commits
type StockAdjustedEvent struct {
	BaseEvent
	RewardID int64 `json:"reward_id"`
	Delta    int64 `json:"delta"`
	NewStock int64 `json:"new_stock"`
}
