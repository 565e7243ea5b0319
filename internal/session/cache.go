// Package session holds the per-session state the dashboard keeps: a result
// cache and the theme and cookie-consent preferences.
package session

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"influence-dashboard/internal/common/logger"
	"influence-dashboard/internal/common/metrics"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const DefaultCacheTTL = 5 * time.Minute

// Cache stores successful analytics responses per session, keyed by request
// path and parameters. Only the call that initiated a request writes its key.
type Cache interface {
	Get(ctx context.Context, sessionID, key string) ([]byte, bool, error)
	Set(ctx context.Context, sessionID, key string, value []byte) error
}

// NewID issues a fresh session identifier.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id looks like one NewID issued.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// CacheKey builds the cache key for a request. url.Values.Encode sorts keys so
// equal parameter sets produce equal keys.
func CacheKey(path string, params url.Values) string {
	if len(params) == 0 {
		return path
	}
	return path + "?" + params.Encode()
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache holds results in process. Expired entries, and session
// buckets left empty, are swept at most once per TTL from Set.
type MemoryCache struct {
	mu        sync.Mutex
	ttl       time.Duration
	now       func() time.Time
	entries   map[string]map[string]memoryEntry
	lastSweep time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &MemoryCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]map[string]memoryEntry),
	}
}

func (c *MemoryCache) Get(_ context.Context, sessionID, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[sessionID][key]
	if !ok {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false, nil
	}
	if c.now().After(entry.expiresAt) {
		delete(c.entries[sessionID], key)
		if len(c.entries[sessionID]) == 0 {
			delete(c.entries, sessionID)
		}
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false, nil
	}

	metrics.CacheLookups.WithLabelValues("hit").Inc()
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, true, nil
}

func (c *MemoryCache) Set(_ context.Context, sessionID, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.Sub(c.lastSweep) >= c.ttl {
		c.sweepLocked(now)
	}

	bucket, ok := c.entries[sessionID]
	if !ok {
		bucket = make(map[string]memoryEntry)
		c.entries[sessionID] = bucket
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	bucket[key] = memoryEntry{value: stored, expiresAt: now.Add(c.ttl)}
	return nil
}

// Sweep removes expired entries and empty sessions, reporting how many
// sessions were dropped.
func (c *MemoryCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepLocked(c.now())
}

// Sessions reports how many sessions hold at least one entry.
func (c *MemoryCache) Sessions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MemoryCache) sweepLocked(now time.Time) int {
	c.lastSweep = now
	dropped := 0
	for id, bucket := range c.entries {
		for key, entry := range bucket {
			if now.After(entry.expiresAt) {
				delete(bucket, key)
			}
		}
		if len(bucket) == 0 {
			delete(c.entries, id)
			dropped++
		}
	}
	return dropped
}

// Drop forgets everything cached for sessionID.
func (c *MemoryCache) Drop(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, sessionID)
}

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewRedisCache(client *redis.Client, ttl time.Duration, log logger.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{
		client: client,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "session-cache"}),
	}
}

func redisKey(sessionID, key string) string {
	return "session:" + sessionID + ":" + key
}

func (c *RedisCache) Get(ctx context.Context, sessionID, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, redisKey(sessionID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false, nil
	}
	if err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		c.logger.Warn("session cache read failed", map[string]interface{}{
			"sessionId": sessionID,
			"key":       key,
			"error":     err.Error(),
		})
		return nil, false, err
	}
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, sessionID, key string, value []byte) error {
	if err := c.client.Set(ctx, redisKey(sessionID, key), value, c.ttl).Err(); err != nil {
		c.logger.Warn("session cache write failed", map[string]interface{}{
			"sessionId": sessionID,
			"key":       key,
			"error":     err.Error(),
		})
		return err
	}
	return nil
}
