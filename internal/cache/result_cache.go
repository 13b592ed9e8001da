package cache

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/quantzone/zonekit/internal/models"
)

// Stats tracks cache performance counters across both tiers.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`
}

type memoryEntry struct {
	result    *models.AnalysisResult
	expiresAt time.Time
}

// ResultCache stores pipeline results under content-addressable keys in a
// fast in-process tier and an optional Redis tier. Results are immutable, so
// both tiers hand out shared references. Cache failures never propagate:
// they degrade to miss behavior with a logged warning.
type ResultCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	redis   *redis.Client
	ttl     time.Duration
	prefix  string
	logger  *logrus.Logger

	statsMu sync.Mutex
	stats   Stats
}

// NewResultCache creates a result cache. redisClient may be nil, in which
// case only the in-process tier is used.
func NewResultCache(redisClient *redis.Client, ttl time.Duration, logger *logrus.Logger) *ResultCache {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ResultCache{
		entries: make(map[string]memoryEntry),
		redis:   redisClient,
		ttl:     ttl,
		prefix:  "zonekit:result:",
		logger:  logger,
	}
}

// Get returns the cached result for a key, checking the in-process tier
// before Redis. A Redis hit repopulates the in-process tier.
func (c *ResultCache) Get(ctx context.Context, key string) (*models.AnalysisResult, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		if time.Now().Before(entry.expiresAt) {
			c.markHit()
			return entry.result, true
		}
		c.mu.Lock()
		// Re-check under the write lock: a concurrent Set may have
		// refreshed the entry since the read above.
		if current, still := c.entries[key]; still && !time.Now().Before(current.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
	}

	if c.redis == nil {
		c.markMiss()
		return nil, false
	}

	data, err := c.redis.Get(ctx, c.prefix+key).Bytes()
	if err == redis.Nil {
		c.markMiss()
		return nil, false
	}
	if err != nil {
		c.logger.WithFields(logrus.Fields{"key": key}).Warnf("Redis get failed, treating as miss: %v", err)
		c.markMiss()
		return nil, false
	}

	result, err := models.LoadBinaryResult(bytes.NewReader(data))
	if err != nil {
		c.logger.WithFields(logrus.Fields{"key": key}).Warnf("Cached result corrupt, treating as miss: %v", err)
		c.markMiss()
		return nil, false
	}

	c.mu.Lock()
	c.entries[key] = memoryEntry{result: result, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()

	c.markHit()
	return result, true
}

// Set stores a result in both tiers under the given key. Expired in-process
// entries are swept here so the memory tier stays bounded by the live
// working set rather than every key ever written.
func (c *ResultCache) Set(ctx context.Context, key string, result *models.AnalysisResult) {
	now := time.Now()
	c.mu.Lock()
	for k, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = memoryEntry{result: result, expiresAt: now.Add(c.ttl)}
	c.mu.Unlock()

	c.statsMu.Lock()
	c.stats.Sets++
	c.statsMu.Unlock()

	if c.redis == nil {
		return
	}

	var buf bytes.Buffer
	if err := result.SaveBinary(&buf); err != nil {
		c.logger.WithFields(logrus.Fields{"key": key}).Warnf("Failed to encode result for Redis: %v", err)
		return
	}
	if err := c.redis.Set(ctx, c.prefix+key, buf.Bytes(), c.ttl).Err(); err != nil {
		c.logger.WithFields(logrus.Fields{"key": key}).Warnf("Redis set failed: %v", err)
	}
}

// Delete removes a key from both tiers.
func (c *ResultCache) Delete(ctx context.Context, key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()

	if c.redis == nil {
		return
	}
	if err := c.redis.Del(ctx, c.prefix+key).Err(); err != nil {
		c.logger.WithFields(logrus.Fields{"key": key}).Warnf("Redis delete failed: %v", err)
	}
}

// GetStats returns a snapshot of the cache counters.
func (c *ResultCache) GetStats() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

func (c *ResultCache) markHit() {
	c.statsMu.Lock()
	c.stats.Hits++
	c.statsMu.Unlock()
}

func (c *ResultCache) markMiss() {
	c.statsMu.Lock()
	c.stats.Misses++
	c.statsMu.Unlock()
}
