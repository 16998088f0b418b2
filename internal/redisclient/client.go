package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"recycling-rewards/internal/models"
	"recycling-rewards/internal/util"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	catalogKey      = "rewards:catalog"
	stockKeyPrefix  = "rewards:stock:"
	defaultCacheTTL = 5 * time.Minute
)

// Client is a best-effort read-side cache over the reward catalog. The
// database stays the source of truth; any Redis failure degrades to a
// database read.
type Client struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb, ttl: defaultCacheTTL, logger: util.GetLogger()}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// GetCatalog returns the cached reward catalog, if present
func (c *Client) GetCatalog(ctx context.Context) ([]models.Reward, bool) {
	raw, err := c.rdb.Get(ctx, catalogKey).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("Failed to read catalog cache", zap.Error(err))
		return nil, false
	}

	var rewards []models.Reward
	if err := json.Unmarshal(raw, &rewards); err != nil {
		c.logger.Warn("Corrupt catalog cache entry, dropping", zap.Error(err))
		c.rdb.Del(ctx, catalogKey)
		return nil, false
	}

	return rewards, true
}

// SetCatalog stores a reward catalog snapshot with a TTL
func (c *Client) SetCatalog(ctx context.Context, rewards []models.Reward) {
	raw, err := json.Marshal(rewards)
	if err != nil {
		c.logger.Warn("Failed to marshal catalog snapshot", zap.Error(err))
		return
	}

	if err := c.rdb.Set(ctx, catalogKey, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("Failed to write catalog cache", zap.Error(err))
	}
}

// InvalidateCatalog drops the catalog snapshot after a committed mutation
func (c *Client) InvalidateCatalog(ctx context.Context) {
	if err := c.rdb.Del(ctx, catalogKey).Err(); err != nil {
		c.logger.Warn("Failed to invalidate catalog cache", zap.Error(err))
	}
}

// SetRewardStock records the latest known stock for a reward; kept current by
// the event worker so dashboards can read stock without hitting Postgres
func (c *Client) SetRewardStock(ctx context.Context, rewardID, stock int64) error {
	key := fmt.Sprintf("%s%d", stockKeyPrefix, rewardID)
	return c.rdb.Set(ctx, key, stock, c.ttl).Err()
}

// GetRewardStock returns the last published stock for a reward
func (c *Client) GetRewardStock(ctx context.Context, rewardID int64) (int64, bool, error) {
	key := fmt.Sprintf("%s%d", stockKeyPrefix, rewardID)
	stock, err := c.rdb.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return stock, true, nil
}
