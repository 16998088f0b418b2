package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"recycling-rewards/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a referenced row does not exist
	ErrNotFound = errors.New("not found")

	// ErrTxConflict marks a commit that lost a concurrency race
	// (serialization failure or deadlock) and is safe to retry.
	ErrTxConflict = errors.New("transaction conflict")
)

// Postgres SQLSTATEs that indicate a retryable concurrency conflict
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// IsConflict reports whether err is a retryable concurrency conflict
func IsConflict(err error) bool {
	if errors.Is(err, ErrTxConflict) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgSerializationFailure ||
			string(pqErr.Code) == pgDeadlockDetected
	}
	return false
}

// GetUser retrieves a user by ID
func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, "SELECT * FROM users WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetOrder retrieves an order by ID
func (s *Store) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// MaterialsByOrder retrieves the material line items of an order
func (s *Store) MaterialsByOrder(ctx context.Context, orderID int64) ([]models.Material, error) {
	var materials []models.Material
	err := s.db.SelectContext(ctx, &materials,
		"SELECT * FROM materials WHERE order_id = $1 ORDER BY id", orderID)
	return materials, err
}

// GetReward retrieves a reward by ID
func (s *Store) GetReward(ctx context.Context, id int64) (*models.Reward, error) {
	var reward models.Reward
	err := s.db.GetContext(ctx, &reward, "SELECT * FROM rewards WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &reward, nil
}

// ListRewards retrieves the reward catalog
func (s *Store) ListRewards(ctx context.Context) ([]models.Reward, error) {
	var rewards []models.Reward
	err := s.db.SelectContext(ctx, &rewards,
		"SELECT * FROM rewards ORDER BY required_points, id")
	return rewards, err
}

// LowStockRewards retrieves available rewards at or below a stock threshold
func (s *Store) LowStockRewards(ctx context.Context, threshold int64) ([]models.Reward, error) {
	var rewards []models.Reward
	err := s.db.SelectContext(ctx, &rewards,
		"SELECT * FROM rewards WHERE is_available AND stock_quantity <= $1 ORDER BY stock_quantity, id",
		threshold)
	return rewards, err
}

// HistoryByUser retrieves a user's redemption ledger, newest first
func (s *Store) HistoryByUser(ctx context.Context, userID int64) ([]models.HistoryReward, error) {
	var history []models.HistoryReward
	err := s.db.SelectContext(ctx, &history,
		"SELECT * FROM history_rewards WHERE user_id = $1 ORDER BY claimed_at DESC, id DESC",
		userID)
	return history, err
}

// RedemptionSummary aggregates a user's redemption count and total points spent
func (s *Store) RedemptionSummary(ctx context.Context, userID int64) (*models.RedemptionSummary, error) {
	summary := models.RedemptionSummary{UserID: userID}
	err := s.db.QueryRowxContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(points_used), 0) FROM history_rewards WHERE user_id = $1",
		userID).Scan(&summary.Redemptions, &summary.TotalPointsUsed)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}
