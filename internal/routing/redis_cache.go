package routing

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"dispatch-workers/internal/common/errors"
	"dispatch-workers/internal/common/logger"
	"dispatch-workers/internal/common/metrics"
	"dispatch-workers/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisCache shares routes between worker replicas. Redis expiry evicts entries
// after the TTL; LastUpdated is checked as well so clock skew never serves a
// stale route.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
	now    func() time.Time
	logger logger.Logger
}

func NewRedisCache(client redis.Cmdable, ttl time.Duration, log logger.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{client: client, ttl: ttl, now: time.Now, logger: log}
}

// Get treats every Redis or decoding failure as a miss.
func (c *RedisCache) Get(ctx context.Context, key Key) (models.CachedRoute, bool) {
	data, err := c.client.Get(ctx, key.String()).Bytes()
	if err != nil {
		if stderrors.Is(err, redis.Nil) {
			metrics.RouteCacheLookups.WithLabelValues("miss").Inc()
		} else {
			metrics.RouteCacheLookups.WithLabelValues("error").Inc()
			c.logger.Warn("Route cache read failed", map[string]interface{}{
				"key":   key.String(),
				"error": errors.NewCacheUnavailableError("redis", err).Error(),
			})
		}
		return models.CachedRoute{}, false
	}

	var route models.CachedRoute
	if err := json.Unmarshal(data, &route); err != nil {
		metrics.RouteCacheLookups.WithLabelValues("error").Inc()
		c.logger.Warn("Discarding undecodable cached route", map[string]interface{}{
			"key":   key.String(),
			"error": err.Error(),
		})
		return models.CachedRoute{}, false
	}

	if !fresh(route, c.now(), c.ttl) {
		metrics.RouteCacheLookups.WithLabelValues("miss").Inc()
		return models.CachedRoute{}, false
	}

	metrics.RouteCacheLookups.WithLabelValues("hit").Inc()
	return route, true
}

func (c *RedisCache) Put(ctx context.Context, key Key, route models.CachedRoute) error {
	data, err := json.Marshal(prepare(key, route))
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, key.String(), data, c.ttl).Err(); err != nil {
		return errors.NewCacheUnavailableError("redis", err)
	}
	return nil
}
