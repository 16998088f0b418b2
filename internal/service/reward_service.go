package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"recycling-rewards/internal/models"
	"recycling-rewards/internal/store"
	"recycling-rewards/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RewardCache is a read-side snapshot of the reward catalog. It is strictly
// best-effort: the database remains the source of truth and cache failures
// never fail an operation.
type RewardCache interface {
	GetCatalog(ctx context.Context) ([]models.Reward, bool)
	SetCatalog(ctx context.Context, rewards []models.Reward)
	InvalidateCatalog(ctx context.Context)
}

// RewardService owns the spend side of the points economy: the redemption
// transaction and administrative stock corrections.
type RewardService struct {
	storage     Storage
	cache       RewardCache
	publisher   EventPublisher
	logger      *zap.Logger
	maxAttempts int
}

// NewRewardService creates a new reward redemption service
func NewRewardService(storage Storage, cache RewardCache, publisher EventPublisher, maxAttempts int) *RewardService {
	return &RewardService{
		storage:     storage,
		cache:       cache,
		publisher:   publisher,
		logger:      util.GetLogger(),
		maxAttempts: maxAttempts,
	}
}

// Redeem exchanges a user's points for one unit of a reward. Inside a single
// unit of work it debits the balance, decrements stock and appends the audit
// row; a failure at any step rolls all three back. The reward and user rows
// are locked for the duration, so two racing redemptions of the last unit of
// stock cannot both succeed.
//
// Validation order is fixed so the most actionable failure surfaces first:
// availability, stock, user existence, balance.
func (s *RewardService) Redeem(ctx context.Context, userID, rewardID int64) (*models.HistoryReward, error) {
	ctx, span := util.StartSpan(ctx, "RewardService.Redeem")
	defer span.End()

	start := time.Now()
	defer func() {
		util.RedemptionLatency.Observe(time.Since(start).Seconds())
	}()

	var (
		history   models.HistoryReward
		stockLeft int64
	)
	err := inUnitOfWork(ctx, s.storage, s.maxAttempts, func(uow UnitOfWork) error {
		reward, err := uow.RewardForUpdate(ctx, rewardID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w: reward %d", ErrRewardUnavailable, rewardID)
			}
			return err
		}
		if !reward.IsAvailable {
			return fmt.Errorf("%w: reward %d", ErrRewardUnavailable, rewardID)
		}

		if reward.StockQuantity <= 0 {
			return fmt.Errorf("%w: reward %d", ErrOutOfStock, rewardID)
		}

		user, err := uow.UserForUpdate(ctx, userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w: user %d", ErrUserNotFound, userID)
			}
			return err
		}

		if user.Points < reward.RequiredPoints {
			return fmt.Errorf("%w: user %d has %d, reward %d requires %d",
				ErrInsufficientPoints, userID, user.Points, rewardID, reward.RequiredPoints)
		}

		if _, err := uow.AddUserPoints(ctx, userID, -reward.RequiredPoints); err != nil {
			return err
		}

		stockLeft = reward.StockQuantity - 1
		if err := uow.SetRewardStock(ctx, rewardID, stockLeft); err != nil {
			return err
		}

		history = models.HistoryReward{
			UserID:     userID,
			RewardID:   rewardID,
			PointsUsed: reward.RequiredPoints,
		}
		return uow.AppendHistory(ctx, &history)
	})
	if err != nil {
		util.RedemptionsFailedTotal.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}

	util.RedemptionsTotal.Inc()
	util.PointsSpentTotal.Add(float64(history.PointsUsed))

	s.logger.Info("Reward redeemed",
		zap.Int64("user_id", userID),
		zap.Int64("reward_id", rewardID),
		zap.Int64("points_used", history.PointsUsed),
		zap.Int64("stock_left", stockLeft))

	s.cache.InvalidateCatalog(ctx)

	event := &models.RewardRedeemedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeRewardRedeemed,
			Timestamp: time.Now(),
		},
		HistoryID:  history.ID,
		UserID:     userID,
		RewardID:   rewardID,
		PointsUsed: history.PointsUsed,
		StockLeft:  stockLeft,
	}
	if err := s.publisher.PublishRewardRedeemed(ctx, event); err != nil {
		s.logger.Error("Failed to publish RewardRedeemed event", zap.Error(err))
	}

	return &history, nil
}

// AdjustStock applies an administrative stock correction. It is not part of
// the redemption path but shares the same atomic-write discipline; the
// resulting stock may never go negative.
func (s *RewardService) AdjustStock(ctx context.Context, rewardID, delta int64) (int64, error) {
	ctx, span := util.StartSpan(ctx, "RewardService.AdjustStock")
	defer span.End()

	var newStock int64
	err := inUnitOfWork(ctx, s.storage, s.maxAttempts, func(uow UnitOfWork) error {
		reward, err := uow.RewardForUpdate(ctx, rewardID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrRewardNotFound
			}
			return err
		}

		newStock = reward.StockQuantity + delta
		if newStock < 0 {
			return fmt.Errorf("%w: reward %d has stock %d, delta %d",
				ErrInvalidStockAdjustment, rewardID, reward.StockQuantity, delta)
		}

		return uow.SetRewardStock(ctx, rewardID, newStock)
	})
	if err != nil {
		return 0, err
	}

	util.StockAdjustmentsTotal.Inc()

	s.logger.Info("Stock adjusted",
		zap.Int64("reward_id", rewardID),
		zap.Int64("delta", delta),
		zap.Int64("new_stock", newStock))

	s.cache.InvalidateCatalog(ctx)

	event := &models.StockAdjustedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeStockAdjusted,
			Timestamp: time.Now(),
		},
		RewardID: rewardID,
		Delta:    delta,
		NewStock: newStock,
	}
	if err := s.publisher.PublishStockAdjusted(ctx, event); err != nil {
		s.logger.Error("Failed to publish StockAdjusted event", zap.Error(err))
	}

	return newStock, nil
}

// ListRewards returns the reward catalog, served from the cache when the
// snapshot is present
func (s *RewardService) ListRewards(ctx context.Context) ([]models.Reward, error) {
	if rewards, ok := s.cache.GetCatalog(ctx); ok {
		return rewards, nil
	}

	rewards, err := s.storage.ListRewards(ctx)
	if err != nil {
		return nil, err
	}

	s.cache.SetCatalog(ctx, rewards)
	return rewards, nil
}

// GetReward retrieves a single reward
func (s *RewardService) GetReward(ctx context.Context, rewardID int64) (*models.Reward, error) {
	reward, err := s.storage.GetReward(ctx, rewardID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrRewardNotFound
	}
	return reward, err
}

// LowStockRewards lists available rewards at or below a stock threshold
func (s *RewardService) LowStockRewards(ctx context.Context, threshold int64) ([]models.Reward, error) {
	return s.storage.LowStockRewards(ctx, threshold)
}

// UserBalance returns a user's current point balance
func (s *RewardService) UserBalance(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.storage.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

// UserHistory returns a user's redemption ledger, newest first
func (s *RewardService) UserHistory(ctx context.Context, userID int64) ([]models.HistoryReward, error) {
	if _, err := s.storage.GetUser(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.storage.HistoryByUser(ctx, userID)
}

// UserSummary aggregates a user's redemption history
func (s *RewardService) UserSummary(ctx context.Context, userID int64) (*models.RedemptionSummary, error) {
	if _, err := s.storage.GetUser(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.storage.RedemptionSummary(ctx, userID)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrRewardUnavailable):
		return "reward_unavailable"
	case errors.Is(err, ErrOutOfStock):
		return "out_of_stock"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, ErrInsufficientPoints):
		return "insufficient_points"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "storage_error"
	}
}
