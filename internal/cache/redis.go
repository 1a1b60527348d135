// Package cache provides read-through caches for the lookups fraud scoring
// performs on every run.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/medclaims-analyzer-server/internal/domain"
)

// RedisWatchlist is a read-through Redis cache in front of a watchlist
// reader. Redis failures fall through to the underlying reader so a cache
// outage never blocks claim analysis.
type RedisWatchlist struct {
	inner  domain.WatchlistReader
	client *redis.Client
	ttl    time.Duration
	log    *logrus.Logger
}

// NewRedisWatchlist creates the cache. ttl bounds how stale a cached
// watchlist answer may be.
func NewRedisWatchlist(inner domain.WatchlistReader, client *redis.Client, ttl time.Duration, logger *logrus.Logger) *RedisWatchlist {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisWatchlist{
		inner:  inner,
		client: client,
		ttl:    ttl,
		log:    logger,
	}
}

func watchlistKey(providerID string) string {
	return fmt.Sprintf("medclaims:watchlist:%s", providerID)
}

// IsWatchlisted answers from the cache when possible, falling back to the
// underlying reader and populating the cache on miss.
func (c *RedisWatchlist) IsWatchlisted(ctx context.Context, providerID string) (bool, error) {
	key := watchlistKey(providerID)

	val, err := c.client.Get(ctx, key).Result()
	if err == nil {
		return val == "1", nil
	}
	if err != redis.Nil {
		c.log.WithFields(logrus.Fields{
			"provider_id": providerID,
			"error":       err.Error(),
		}).Warn("Redis watchlist read failed, falling through")
	}

	listed, err := c.inner.IsWatchlisted(ctx, providerID)
	if err != nil {
		return false, err
	}

	cached := "0"
	if listed {
		cached = "1"
	}
	if err := c.client.Set(ctx, key, cached, c.ttl).Err(); err != nil {
		c.log.WithField("error", err.Error()).Debug("Redis watchlist write failed")
	}
	return listed, nil
}

// NewRedisClient builds a client from config and verifies connectivity.
func NewRedisClient(ctx context.Context, cfg domain.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return client, nil
}
