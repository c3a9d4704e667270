package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"farmbox-service/internal/models"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
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

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// MarkEventSeen records a webhook event id as seen. Returns false when the
// event was already recorded, so duplicate deliveries can be short-circuited
// before touching the database.
func (c *Client) MarkEventSeen(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("webhook:%s", eventID), "1", ttl).Result()
}

// AcquireLock acquires a short-lived lock around payment reconciliation for
// one session
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a reconciliation lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}

const boxSizesKey = "catalog:box_sizes"

// CacheBoxSizes stores the box-size catalog
func (c *Client) CacheBoxSizes(ctx context.Context, sizes []models.BoxSize, ttl time.Duration) error {
	data, err := json.Marshal(sizes)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, boxSizesKey, data, ttl).Err()
}

// GetCachedBoxSizes retrieves the cached box-size catalog. Returns nil
// without error on a cache miss.
func (c *Client) GetCachedBoxSizes(ctx context.Context) ([]models.BoxSize, error) {
	data, err := c.rdb.Get(ctx, boxSizesKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var sizes []models.BoxSize
	if err := json.Unmarshal(data, &sizes); err != nil {
		return nil, err
	}
	return sizes, nil
}
