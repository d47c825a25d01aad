// Package cache holds a read-through cache for stock level queries.
//
// The cache only serves display reads. Every command decides on row-locked
// values inside its own transaction and never consults it.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"stock-ledger/internal/core"
)

// DefaultTTL bounds how stale a cached stock read can be if an invalidation is lost.
const DefaultTTL = 30 * time.Second

const keyPrefix = "stock-ledger:"

// StockCache caches GetStockLevels results per tenant and query.
//
// Each tenant has a generation that every invalidation bumps. A reader takes
// the generation before querying the database and passes it to SetStockLevels,
// which stores nothing if an invalidation happened in between.
type StockCache interface {
	GetStockLevels(ctx context.Context, tenant string, q core.StockQuery) ([]core.StockLevel, bool)
	// Generation returns the tenant's current generation, or a negative value
	// when it cannot be read and the result must not be cached.
	Generation(ctx context.Context, tenant string) int64
	SetStockLevels(ctx context.Context, tenant string, gen int64, q core.StockQuery, levels []core.StockLevel)
	// InvalidateItem bumps the generation and drops every cached query that could include item.
	InvalidateItem(ctx context.Context, tenant, item string)
	// InvalidateTenant bumps the generation and drops every cached query of tenant.
	InvalidateTenant(ctx context.Context, tenant string)
	Ping(ctx context.Context) error
	Close() error
}

// Key returns the cache key for a stock query. Empty filters are stored as "_".
func Key(tenant string, q core.StockQuery) string {
	return keyPrefix + "stock:" + strings.Join([]string{
		part(tenant), part(q.ItemCode), part(q.WarehouseCode), part(q.LocationCode),
	}, ":")
}

// itemPatterns are the SCAN patterns whose keys may contain item.
func itemPatterns(tenant, item string) []string {
	base := keyPrefix + "stock:" + escapeGlob(part(tenant)) + ":"
	return []string{
		base + escapeGlob(part(item)) + ":*",
		base + "_:*",
	}
}

func generationKey(tenant string) string {
	return keyPrefix + "gen:" + part(tenant)
}

func tenantPattern(tenant string) string {
	return keyPrefix + "stock:" + escapeGlob(part(tenant)) + ":*"
}

func part(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "_"
	}
	// ':' separates key parts.
	return strings.ReplaceAll(s, ":", "%3A")
}

// escapeGlob quotes the characters Redis MATCH treats as wildcards.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ── Redis ─────────────────────────────────────────────────────────────────────

// RedisCache is a StockCache backed by Redis. Redis failures are logged and
// treated as misses.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to the Redis instance at url (redis://[:password@]host:port/db).
func NewRedis(ctx context.Context, url string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("unable to parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("unable to ping redis: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

func (c *RedisCache) GetStockLevels(ctx context.Context, tenant string, q core.StockQuery) ([]core.StockLevel, bool) {
	val, err := c.client.Get(ctx, Key(tenant, q)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("[CACHE] get failed: %v", err)
		}
		return nil, false
	}
	var levels []core.StockLevel
	if err := json.Unmarshal(val, &levels); err != nil {
		log.Printf("[CACHE] corrupt entry %s: %v", Key(tenant, q), err)
		return nil, false
	}
	return levels, true
}

func (c *RedisCache) Generation(ctx context.Context, tenant string) int64 {
	gen, err := c.client.Get(ctx, generationKey(tenant)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		log.Printf("[CACHE] generation read failed: %v", err)
		return -1
	}
	return gen
}

var errStaleGeneration = errors.New("generation moved")

// SetStockLevels writes under WATCH on the generation key, so an invalidation
// landing between the check and the write aborts the write.
func (c *RedisCache) SetStockLevels(ctx context.Context, tenant string, gen int64, q core.StockQuery, levels []core.StockLevel) {
	if gen < 0 {
		return
	}
	data, err := json.Marshal(levels)
	if err != nil {
		return
	}
	genKey := generationKey(tenant)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return errStaleGeneration
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, Key(tenant, q), data, c.ttl)
			return nil
		})
		return err
	}, genKey)
	switch {
	case err == nil, errors.Is(err, errStaleGeneration), errors.Is(err, redis.TxFailedErr):
	default:
		log.Printf("[CACHE] set failed: %v", err)
	}
}

func (c *RedisCache) InvalidateItem(ctx context.Context, tenant, item string) {
	c.bump(ctx, tenant)
	for _, pattern := range itemPatterns(tenant, item) {
		c.deletePattern(ctx, pattern)
	}
}

func (c *RedisCache) InvalidateTenant(ctx context.Context, tenant string) {
	c.bump(ctx, tenant)
	c.deletePattern(ctx, tenantPattern(tenant))
}

// bump must run before the keys are deleted: a set that passed its check
// before the bump is removed by the delete, one that checks after it fails.
func (c *RedisCache) bump(ctx context.Context, tenant string) {
	if err := c.client.Incr(ctx, generationKey(tenant)).Err(); err != nil {
		log.Printf("[CACHE] generation bump failed: %v", err)
	}
}

func (c *RedisCache) deletePattern(ctx context.Context, pattern string) {
	var keys []string
	iter := c.client.Scan(ctx, 0, pattern, 200).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		log.Printf("[CACHE] scan %s failed: %v", pattern, err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		log.Printf("[CACHE] delete %d keys failed: %v", len(keys), err)
	}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// ── No-op ─────────────────────────────────────────────────────────────────────

// Noop is used when REDIS_URL is not configured.
type Noop struct{}

func (Noop) GetStockLevels(context.Context, string, core.StockQuery) ([]core.StockLevel, bool) {
	return nil, false
}
func (Noop) Generation(context.Context, string) int64                                          { return 0 }
func (Noop) SetStockLevels(context.Context, string, int64, core.StockQuery, []core.StockLevel) {}
func (Noop) InvalidateItem(context.Context, string, string)                                    {}
func (Noop) InvalidateTenant(context.Context, string)                                          {}
func (Noop) Ping(context.Context) error                                                        { return nil }
func (Noop) Close() error                                                                      { return nil }

// Open returns a RedisCache when url is set and Noop otherwise.
func Open(ctx context.Context, url string, ttl time.Duration) (StockCache, error) {
	if strings.TrimSpace(url) == "" {
		return Noop{}, nil
	}
	return NewRedis(ctx, url, ttl)
}
