// Package cache provides an optional Redis read cache for the latest
// aggregate, so the broadcast path does not hit SQLite every two seconds.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"device-monitor/internal/model"
)

// recentListLimit bounds the recent-aggregate list kept alongside the
// latest-value key.
const recentListLimit = 1000

// Cache wraps a Redis client. All methods are best-effort accelerators;
// callers fall back to the store on any error or miss.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// New connects to Redis at addr and verifies the connection.
func New(addr string, ttl time.Duration, logger zerolog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		PoolSize:     100,
		MinIdleConns: 10,
		MaxRetries:   3,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if ttl <= 0 {
		ttl = time.Hour
	}

	return &Cache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "cache").Logger(),
	}, nil
}

func latestKey(deviceID string) string {
	return "aggregate:latest:" + deviceID
}

func recentKey(deviceID string) string {
	return "aggregates:recent:" + deviceID
}

// StoreLatestAggregate caches the aggregate as the device's latest value
// and pushes it onto the bounded recent list.
func (c *Cache) StoreLatestAggregate(ctx context.Context, agg *model.Aggregate) error {
	data, err := json.Marshal(agg)
	if err != nil {
		return fmt.Errorf("failed to marshal aggregate: %w", err)
	}

	if err := c.client.Set(ctx, latestKey(agg.DeviceID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store aggregate in Redis: %w", err)
	}

	key := recentKey(agg.DeviceID)
	if err := c.client.LPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("failed to update recent aggregates list: %w", err)
	}
	c.client.LTrim(ctx, key, 0, recentListLimit-1)

	return nil
}

// LatestAggregate returns the cached latest aggregate, or (nil, nil) on
// a cache miss.
func (c *Cache) LatestAggregate(ctx context.Context, deviceID string) (*model.Aggregate, error) {
	data, err := c.client.Get(ctx, latestKey(deviceID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var agg model.Aggregate
	if err := json.Unmarshal(data, &agg); err != nil {
		c.logger.Warn().Err(err).Msg("dropping undecodable cached aggregate")
		return nil, nil
	}
	return &agg, nil
}

// RecentAggregates returns up to count aggregates from the recent list,
// newest first. Undecodable entries are skipped.
func (c *Cache) RecentAggregates(ctx context.Context, deviceID string, count int64) ([]*model.Aggregate, error) {
	values, err := c.client.LRange(ctx, recentKey(deviceID), 0, count-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read recent aggregates: %w", err)
	}

	aggregates := make([]*model.Aggregate, 0, len(values))
	for _, v := range values {
		var agg model.Aggregate
		if err := json.Unmarshal([]byte(v), &agg); err != nil {
			continue
		}
		aggregates = append(aggregates, &agg)
	}
	return aggregates, nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}
