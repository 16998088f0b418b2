package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"recycling-rewards/internal/models"
	"recycling-rewards/internal/points"
	"recycling-rewards/internal/store"
	"recycling-rewards/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventPublisher publishes domain events after a unit of work commits
type EventPublisher interface {
	PublishOrderCompleted(ctx context.Context, event *models.OrderCompletedEvent) error
	PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error
	PublishRewardRedeemed(ctx context.Context, event *models.RewardRedeemedEvent) error
	PublishStockAdjusted(ctx context.Context, event *models.StockAdjustedEvent) error
}

// OrderService owns the order state machine (PENDING -> COMPLETED | CANCELLED)
// and the point award that travels with completion.
type OrderService struct {
	storage     Storage
	calculator  *points.Calculator
	publisher   EventPublisher
	logger      *zap.Logger
	maxAttempts int
}

// NewOrderService creates a new order lifecycle service
func NewOrderService(storage Storage, calculator *points.Calculator, publisher EventPublisher, maxAttempts int) *OrderService {
	return &OrderService{
		storage:     storage,
		calculator:  calculator,
		publisher:   publisher,
		logger:      util.GetLogger(),
		maxAttempts: maxAttempts,
	}
}

// CompleteOrderResult reports the outcome of a successful completion
type CompleteOrderResult struct {
	OrderID       int64 `json:"order_id"`
	UserID        int64 `json:"user_id"`
	PointsAwarded int64 `json:"points_awarded"`
	Balance       int64 `json:"balance"`
}

// CompleteOrder transitions a pending order to COMPLETED and awards points to
// its submitting user. The status flip and the balance credit commit in one
// unit of work: either both happen or neither does. A second successful call
// on the same order is rejected by the status guard, so points are awarded at
// most once per order.
func (s *OrderService) CompleteOrder(ctx context.Context, orderID int64) (*CompleteOrderResult, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CompleteOrder")
	defer span.End()

	start := time.Now()
	defer func() {
		util.OrderCompletionLatency.Observe(time.Since(start).Seconds())
	}()

	var result CompleteOrderResult
	err := inUnitOfWork(ctx, s.storage, s.maxAttempts, func(uow UnitOfWork) error {
		order, err := uow.OrderForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrOrderNotFound
			}
			return err
		}

		if order.Status != models.OrderStatusPending {
			return fmt.Errorf("%w: order %d is %s", ErrInvalidTransition, orderID, order.Status)
		}

		materials, err := uow.MaterialsByOrder(ctx, orderID)
		if err != nil {
			return err
		}

		user, err := uow.UserForUpdate(ctx, order.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w: order %d references user %d", ErrMissingUser, orderID, order.UserID)
			}
			return err
		}

		awarded, err := s.calculator.OrderPoints(materials)
		if err != nil {
			return err
		}

		balance, err := uow.AddUserPoints(ctx, user.ID, awarded)
		if err != nil {
			return err
		}

		if err := uow.SetOrderStatus(ctx, orderID, models.OrderStatusCompleted); err != nil {
			return err
		}

		result = CompleteOrderResult{
			OrderID:       orderID,
			UserID:        user.ID,
			PointsAwarded: awarded,
			Balance:       balance,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	util.OrdersCompletedTotal.Inc()
	util.PointsAwardedTotal.Add(float64(result.PointsAwarded))

	s.logger.Info("Order completed",
		zap.Int64("order_id", result.OrderID),
		zap.Int64("user_id", result.UserID),
		zap.Int64("points_awarded", result.PointsAwarded))

	event := &models.OrderCompletedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCompleted,
			Timestamp: time.Now(),
		},
		OrderID:       result.OrderID,
		UserID:        result.UserID,
		PointsAwarded: result.PointsAwarded,
		Balance:       result.Balance,
	}
	if err := s.publisher.PublishOrderCompleted(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCompleted event", zap.Error(err))
	}

	return &result, nil
}

// CancelOrder transitions an order to CANCELLED. Completed orders are
// immutable with respect to cancellation; no point clawback exists. No points
// are ever touched on this path.
func (s *OrderService) CancelOrder(ctx context.Context, orderID int64) error {
	ctx, span := util.StartSpan(ctx, "OrderService.CancelOrder")
	defer span.End()

	var userID int64
	err := inUnitOfWork(ctx, s.storage, s.maxAttempts, func(uow UnitOfWork) error {
		order, err := uow.OrderForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrOrderNotFound
			}
			return err
		}

		if order.Status == models.OrderStatusCompleted {
			return fmt.Errorf("%w: cannot cancel completed order %d", ErrInvalidTransition, orderID)
		}
		if order.Status == models.OrderStatusCancelled {
			return fmt.Errorf("%w: order %d is already cancelled", ErrInvalidTransition, orderID)
		}

		userID = order.UserID
		return uow.SetOrderStatus(ctx, orderID, models.OrderStatusCancelled)
	})
	if err != nil {
		return err
	}

	util.OrdersCancelledTotal.Inc()

	s.logger.Info("Order cancelled", zap.Int64("order_id", orderID))

	event := &models.OrderCancelledEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCancelled,
			Timestamp: time.Now(),
		},
		OrderID: orderID,
		UserID:  userID,
	}
	if err := s.publisher.PublishOrderCancelled(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCancelled event", zap.Error(err))
	}

	return nil
}

// GetOrder retrieves an order with its material line items
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*models.Order, []models.Material, error) {
	order, err := s.storage.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrOrderNotFound
		}
		return nil, nil, err
	}

	materials, err := s.storage.MaterialsByOrder(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	return order, materials, nil
}
