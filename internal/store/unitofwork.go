package store

import (
	"context"
	"database/sql"
	"fmt"

	"recycling-rewards/internal/models"

	"github.com/jmoiron/sqlx"
)

// UnitOfWork groups reads and writes across users, orders, rewards and the
// redemption ledger into one all-or-nothing commit. Row reads take FOR UPDATE
// locks so concurrent units of work touching the same user or reward
// serialize at the database.
type UnitOfWork struct {
	tx   *sqlx.Tx
	done bool
}

// Begin opens a new unit of work
func (s *Store) Begin(ctx context.Context) (*UnitOfWork, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin unit of work: %w", err)
	}
	return &UnitOfWork{tx: tx}, nil
}

// Commit persists all staged changes atomically. A conflict detected at
// commit time is reported as ErrTxConflict so callers can retry.
func (u *UnitOfWork) Commit() error {
	if u.done {
		return sql.ErrTxDone
	}
	u.done = true
	if err := u.tx.Commit(); err != nil {
		if IsConflict(err) {
			return fmt.Errorf("%w: %v", ErrTxConflict, err)
		}
		return fmt.Errorf("commit unit of work: %w", err)
	}
	return nil
}

// Rollback discards staged changes. It is safe to call after Commit and safe
// to call repeatedly, so callers can always defer it.
func (u *UnitOfWork) Rollback() error {
	if u.done {
		return nil
	}
	u.done = true
	if err := u.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return fmt.Errorf("rollback unit of work: %w", err)
	}
	return nil
}

// OrderForUpdate loads an order and locks its row for the unit of work
func (u *UnitOfWork) OrderForUpdate(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := u.tx.GetContext(ctx, &order,
		"SELECT * FROM orders WHERE id = $1 FOR UPDATE", id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock order %d: %w", id, err)
	}
	return &order, nil
}

// UserForUpdate loads a user and locks its row for the unit of work
func (u *UnitOfWork) UserForUpdate(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := u.tx.GetContext(ctx, &user,
		"SELECT * FROM users WHERE id = $1 FOR UPDATE", id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock user %d: %w", id, err)
	}
	return &user, nil
}

// RewardForUpdate loads a reward and locks its row for the unit of work
func (u *UnitOfWork) RewardForUpdate(ctx context.Context, id int64) (*models.Reward, error) {
	var reward models.Reward
	err := u.tx.GetContext(ctx, &reward,
		"SELECT * FROM rewards WHERE id = $1 FOR UPDATE", id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock reward %d: %w", id, err)
	}
	return &reward, nil
}

// MaterialsByOrder retrieves an order's material line items within the unit of work
func (u *UnitOfWork) MaterialsByOrder(ctx context.Context, orderID int64) ([]models.Material, error) {
	var materials []models.Material
	err := u.tx.SelectContext(ctx, &materials,
		"SELECT * FROM materials WHERE order_id = $1 ORDER BY id", orderID)
	if err != nil {
		return nil, fmt.Errorf("select materials for order %d: %w", orderID, err)
	}
	return materials, nil
}

// SetOrderStatus stages an order status change
func (u *UnitOfWork) SetOrderStatus(ctx context.Context, orderID int64, status string) error {
	res, err := u.tx.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
		status, orderID)
	if err != nil {
		return fmt.Errorf("update order %d status: %w", orderID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AddUserPoints stages a balance change and returns the resulting balance.
// A CHECK constraint on users.points backs up the in-transaction guard
// against a negative balance.
func (u *UnitOfWork) AddUserPoints(ctx context.Context, userID, delta int64) (int64, error) {
	var balance int64
	err := u.tx.GetContext(ctx, &balance,
		"UPDATE users SET points = points + $1 WHERE id = $2 RETURNING points",
		delta, userID)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("update points for user %d: %w", userID, err)
	}
	return balance, nil
}

// SetRewardStock stages a stock change
func (u *UnitOfWork) SetRewardStock(ctx context.Context, rewardID, stock int64) error {
	res, err := u.tx.ExecContext(ctx,
		"UPDATE rewards SET stock_quantity = $1, updated_at = NOW() WHERE id = $2",
		stock, rewardID)
	if err != nil {
		return fmt.Errorf("update reward %d stock: %w", rewardID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendHistory stages an append to the redemption ledger and fills in the
// row's generated ID and timestamp
func (u *UnitOfWork) AppendHistory(ctx context.Context, h *models.HistoryReward) error {
	err := u.tx.QueryRowxContext(ctx,
		`INSERT INTO history_rewards (user_id, reward_id, points_used)
		 VALUES ($1, $2, $3)
		 RETURNING id, claimed_at`,
		h.UserID, h.RewardID, h.PointsUsed).Scan(&h.ID, &h.ClaimedAt)
	if err != nil {
		return fmt.Errorf("append history for user %d: %w", h.UserID, err)
	}
	return nil
}
