package planner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"research-agent/internal/common/logger"
)

// Cache stores computed plans keyed by (chatId, exact message text). The
// in-process map is authoritative for one process lifetime; when a redis
// client is attached, plans are written through with a TTL so concurrent
// workflows on other instances see the same decision.
//
// Entries are append-only per key and safe under concurrent identical
// lookups: recomputing on a race is idempotent.
type Cache struct {
	local sync.Map // key -> []byte (marshalled plan)
	rdb   *redis.Client
	ttl   time.Duration
	log   logger.Logger
}

func NewCache(log logger.Logger) *Cache {
	return &Cache{log: log}
}

// WithRedis attaches a write-through redis backing store.
func (c *Cache) WithRedis(rdb *redis.Client, ttl time.Duration) *Cache {
	c.rdb = rdb
	c.ttl = ttl
	return c
}

// cacheKey hashes the message so arbitrarily long texts make fixed-size keys.
func cacheKey(chatID, message string) string {
	sum := sha256.Sum256([]byte(message))
	return "plan:" + chatID + ":" + hex.EncodeToString(sum[:])
}

// Get returns the cached plan for this exact (chatId, message) pair.
// Cached plans are stored marshalled, so every hit decodes the same bytes:
// identical inputs yield byte-identical plans.
func (c *Cache) Get(ctx context.Context, chatID, message string) (SearchPlan, bool) {
	key := cacheKey(chatID, message)

	if raw, ok := c.local.Load(key); ok {
		var plan SearchPlan
		if err := json.Unmarshal(raw.([]byte), &plan); err == nil {
			return plan, true
		}
	}

	if c.rdb != nil {
		raw, err := c.rdb.Get(ctx, key).Bytes()
		if err == nil {
			var plan SearchPlan
			if err := json.Unmarshal(raw, &plan); err == nil {
				c.local.LoadOrStore(key, raw)
				return plan, true
			}
		} else if err != redis.Nil {
			c.log.Warn("plan cache redis read failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	return SearchPlan{}, false
}

// Put stores a computed plan. LoadOrStore keeps the first writer's bytes on
// a race so later readers stay byte-identical.
func (c *Cache) Put(ctx context.Context, chatID, message string, plan SearchPlan) {
	raw, err := json.Marshal(plan)
	if err != nil {
		return
	}

	key := cacheKey(chatID, message)
	c.local.LoadOrStore(key, raw)

	if c.rdb != nil {
		if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.log.Warn("plan cache redis write failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
}
