// Package cache keeps widget snapshots in Redis so the admission hot path
// does not hit Postgres on every page view.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"proof-engine/internal/common/logger"
	"proof-engine/internal/common/metrics"
	"proof-engine/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultKeyBase = "snapshot:widget"
	DefaultTTL     = 30 * time.Second
)

// Loader is the source of truth the cache reads through to.
type Loader interface {
	LoadSnapshot(ctx context.Context, widgetID string) (*models.Snapshot, error)
}

// SnapshotCache is a cache-aside layer over a Loader. Redis failures are
// logged and bypassed; only loader failures reach the caller.
type SnapshotCache struct {
	client  *redis.Client
	loader  Loader
	keyBase string
	ttl     time.Duration
	logger  logger.Logger
}

func NewSnapshotCache(client *redis.Client, loader Loader, keyBase string, ttl time.Duration, log logger.Logger) *SnapshotCache {
	if keyBase == "" {
		keyBase = DefaultKeyBase
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SnapshotCache{
		client:  client,
		loader:  loader,
		keyBase: keyBase,
		ttl:     ttl,
		logger:  log,
	}
}

func (c *SnapshotCache) key(widgetID string) string {
	return fmt.Sprintf("%s:%s", c.keyBase, widgetID)
}

func (c *SnapshotCache) LoadSnapshot(ctx context.Context, widgetID string) (*models.Snapshot, error) {
	key := c.key(widgetID)

	cached, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var snap models.Snapshot
		if jsonErr := json.Unmarshal(cached, &snap); jsonErr == nil {
			metrics.SnapshotFetches.WithLabelValues("hit").Inc()
			return &snap, nil
		}
		c.logger.Warn("Discarding undecodable cached snapshot", map[string]interface{}{"widgetId": widgetID})
	case errors.Is(err, redis.Nil):
	default:
		metrics.SnapshotFetches.WithLabelValues("error").Inc()
		c.logger.Warn("Snapshot cache read failed", map[string]interface{}{
			"widgetId": widgetID,
			"error":    err.Error(),
		})
	}

	metrics.SnapshotFetches.WithLabelValues("miss").Inc()
	snap, err := c.loader.LoadSnapshot(ctx, widgetID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(snap); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("Snapshot cache write failed", map[string]interface{}{
				"widgetId": widgetID,
				"error":    err.Error(),
			})
		}
	}
	return snap, nil
}

// Invalidate drops the cached snapshot so the next read goes to the loader.
func (c *SnapshotCache) Invalidate(ctx context.Context, widgetID string) error {
	return c.client.Del(ctx, c.key(widgetID)).Err()
}
