// Package dedup suppresses duplicate webhook deliveries. The messaging
// provider redelivers a whole payload when an acknowledgment is slow, so
// each provider message id is marked on first sight and repeat sightings
// are dropped before any per-message work starts.
//
// Redis backs the cache when configured; otherwise a bounded in-process map
// is used. Either way a dedup failure degrades to "not seen" — a duplicate
// reply is better than a swallowed message.
package dedup

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "wamsg:"

// defaultTTL covers the provider's redelivery window with slack to spare.
const defaultTTL = 24 * time.Hour

// maxLocalEntries bounds the in-process fallback map.
const maxLocalEntries = 10000

// Deduper tracks which message ids have already been processed.
type Deduper struct {
	client *redis.Client // nil when running on the local map
	ttl    time.Duration

	mu    sync.Mutex
	local map[string]time.Time
}

// New creates a Deduper. redisURL may be empty; an unreachable Redis is
// logged and the local map takes over rather than failing startup.
func New(redisURL string) *Deduper {
	d := &Deduper{
		ttl:   defaultTTL,
		local: make(map[string]time.Time),
	}
	if redisURL == "" {
		return d
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Printf("[Dedup] invalid redis URL, using in-memory cache: %v", err)
		return d
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	c := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		log.Printf("[Dedup] redis unavailable, using in-memory cache: %v", err)
		c.Close()
		return d
	}

	log.Println("[Dedup] redis connected")
	d.client = c
	return d
}

// Close releases the Redis connection, if any.
func (d *Deduper) Close() {
	if d.client != nil {
		d.client.Close()
	}
}

// Seen marks messageID as processed and reports whether it had been seen
// before. An empty id is never deduplicated. Callers that mark a message
// and then fail to start work on it must Forget it, or the provider's
// redelivery gets suppressed and the message is lost.
func (d *Deduper) Seen(ctx context.Context, messageID string) bool {
	if messageID == "" {
		return false
	}
	if d.client != nil {
		ok, err := d.client.SetNX(ctx, keyPrefix+messageID, 1, d.ttl).Result()
		if err == nil {
			return !ok
		}
		log.Printf("[Dedup] redis set failed, falling back to in-memory: %v", err)
	}
	return d.seenLocal(messageID)
}

// Forget removes the mark for messageID so a later redelivery is processed
// again. Used when a marked message could not be handed off for processing.
func (d *Deduper) Forget(ctx context.Context, messageID string) {
	if messageID == "" {
		return
	}
	if d.client != nil {
		if err := d.client.Del(ctx, keyPrefix+messageID).Err(); err != nil {
			log.Printf("[Dedup] redis del failed: %v", err)
		}
	}
	d.mu.Lock()
	delete(d.local, messageID)
	d.mu.Unlock()
}

func (d *Deduper) seenLocal(messageID string) bool {
	now := time.Now()
	d.mu.Lock()
	defer d.mu.Unlock()

	if exp, ok := d.local[messageID]; ok && now.Before(exp) {
		return true
	}

	if len(d.local) >= maxLocalEntries {
		d.evictLocked(now)
	}
	d.local[messageID] = now.Add(d.ttl)
	return false
}

// evictLocked drops expired entries, then the soonest-to-expire ones while
// the map is still at capacity. Entries share a TTL, so soonest-to-expire
// is oldest-inserted.
func (d *Deduper) evictLocked(now time.Time) {
	for id, exp := range d.local {
		if !now.Before(exp) {
			delete(d.local, id)
		}
	}
	for len(d.local) >= maxLocalEntries {
		var oldestID string
		var oldestExp time.Time
		for id, exp := range d.local {
			if oldestID == "" || exp.Before(oldestExp) {
				oldestID, oldestExp = id, exp
			}
		}
		delete(d.local, oldestID)
	}
}
