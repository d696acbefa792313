// Package rulecache puts a short-TTL redis read-through in front of the
// schedule rule store. Rules change rarely next to commitments, so a
// few seconds of staleness here is acceptable; commitments themselves
// are never cached.
package rulecache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"vetbook/internal/availability"
	"vetbook/internal/model"
)

// Cache implements availability.RuleStore over another rule store.
type Cache struct {
	inner  availability.RuleStore
	redis  *redis.Client
	ttl    time.Duration
	logger *zerolog.Logger
}

func New(inner availability.RuleStore, redisClient *redis.Client, ttl time.Duration, logger *zerolog.Logger) *Cache {
	return &Cache{inner: inner, redis: redisClient, ttl: ttl, logger: logger}
}

func (c *Cache) GetSchedulePeriods(ctx context.Context, vetID int64, date time.Time) ([]model.SchedulePeriod, error) {
	key := fmt.Sprintf("rules:periods:%d:%s", vetID, model.DateKey(date))

	var periods []model.SchedulePeriod
	if c.readCache(ctx, key, &periods) {
		return periods, nil
	}

	periods, err := c.inner.GetSchedulePeriods(ctx, vetID, date)
	if err != nil {
		return nil, err
	}
	c.writeCache(ctx, key, periods)
	return periods, nil
}

func (c *Cache) GetDayOff(ctx context.Context, vetID int64, date time.Time) (*model.DayOff, error) {
	key := fmt.Sprintf("rules:dayoff:%d:%s", vetID, model.DateKey(date))

	// A cached JSON null is a cached "no day off"; a cache miss falls
	// through to the store.
	var dayOff *model.DayOff
	if c.readCache(ctx, key, &dayOff) {
		return dayOff, nil
	}

	dayOff, err := c.inner.GetDayOff(ctx, vetID, date)
	if err != nil {
		return nil, err
	}
	c.writeCache(ctx, key, dayOff)
	return dayOff, nil
}

func (c *Cache) GetBreaks(ctx context.Context, vetID int64, date time.Time) ([]model.Break, error) {
	key := fmt.Sprintf("rules:breaks:%d:%s", vetID, model.DateKey(date))

	var breaks []model.Break
	if c.readCache(ctx, key, &breaks) {
		return breaks, nil
	}

	breaks, err := c.inner.GetBreaks(ctx, vetID, date)
	if err != nil {
		return nil, err
	}
	c.writeCache(ctx, key, breaks)
	return breaks, nil
}

// Invalidate drops cached rules for a (vet, date). Called after rule
// writes so admins see their change on the next read.
func (c *Cache) Invalidate(ctx context.Context, vetID int64, date time.Time) {
	if c.redis == nil {
		return
	}
	keys := []string{
		fmt.Sprintf("rules:periods:%d:%s", vetID, model.DateKey(date)),
		fmt.Sprintf("rules:dayoff:%d:%s", vetID, model.DateKey(date)),
		fmt.Sprintf("rules:breaks:%d:%s", vetID, model.DateKey(date)),
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		c.logger.Debug().Err(err).Msg("rule cache invalidation failed")
	}
}

func (c *Cache) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.ttl <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (c *Cache) writeCache(ctx context.Context, key string, value any) {
	if c.redis == nil || c.ttl <= 0 {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("rule cache write failed")
	}
}
