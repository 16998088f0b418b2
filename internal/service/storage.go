package service

import (
	"context"

	"recycling-rewards/internal/models"
	"recycling-rewards/internal/store"
	"recycling-rewards/internal/util"
)

// UnitOfWork is the atomic multi-entity commit boundary the services run
// their mutations through. Rollback must be idempotent so it can always be
// deferred; any error between Begin and Commit leaves the store untouched.
type UnitOfWork interface {
	Commit() error
	Rollback() error

	OrderForUpdate(ctx context.Context, id int64) (*models.Order, error)
	UserForUpdate(ctx context.Context, id int64) (*models.User, error)
	RewardForUpdate(ctx context.Context, id int64) (*models.Reward, error)
	MaterialsByOrder(ctx context.Context, orderID int64) ([]models.Material, error)

	SetOrderStatus(ctx context.Context, orderID int64, status string) error
	AddUserPoints(ctx context.Context, userID, delta int64) (int64, error)
	SetRewardStock(ctx context.Context, rewardID, stock int64) error
	AppendHistory(ctx context.Context, h *models.HistoryReward) error
}

// Storage is what the services need from the ledger store: plain reads for
// the query endpoints plus the unit-of-work entry point.
type Storage interface {
	Begin(ctx context.Context) (UnitOfWork, error)

	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	MaterialsByOrder(ctx context.Context, orderID int64) ([]models.Material, error)
	GetReward(ctx context.Context, id int64) (*models.Reward, error)
	ListRewards(ctx context.Context) ([]models.Reward, error)
	LowStockRewards(ctx context.Context, threshold int64) ([]models.Reward, error)
	HistoryByUser(ctx context.Context, userID int64) ([]models.HistoryReward, error)
	RedemptionSummary(ctx context.Context, userID int64) (*models.RedemptionSummary, error)
}

// storeAdapter lifts *store.Store into Storage; only Begin needs wrapping
// because it returns the concrete unit-of-work type.
type storeAdapter struct {
	*store.Store
}

func (a storeAdapter) Begin(ctx context.Context) (UnitOfWork, error) {
	return a.Store.Begin(ctx)
}

// WrapStore adapts the SQL store to the Storage interface
func WrapStore(s *store.Store) Storage {
	return storeAdapter{s}
}

// inUnitOfWork runs fn inside a unit of work, committing on success and
// rolling back on any error. Concurrency conflicts are retried with a fresh
// unit of work up to maxAttempts before surfacing ErrConflict; every other
// error propagates unchanged after rollback.
func inUnitOfWork(ctx context.Context, storage Storage, maxAttempts int, fn func(uow UnitOfWork) error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			util.TxConflictRetriesTotal.Inc()
		}

		err = runOnce(ctx, storage, fn)
		if err == nil {
			return nil
		}
		if !store.IsConflict(err) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return ErrConflict
}

func runOnce(ctx context.Context, storage Storage, fn func(uow UnitOfWork) error) error {
	uow, err := storage.Begin(ctx)
	if err != nil {
		return err
	}
	defer uow.Rollback()

	if err := fn(uow); err != nil {
		return err
	}

	return uow.Commit()
}
