package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/aigenflow/pipeline/pkg/logging"
)

// RedisStore is a Backend implementation over Redis, for deployments that
// share one response cache across multiple pipeline instances instead of
// each one keeping its own on-disk Store. TTL is enforced by Redis itself
// (SET ... EX), so entries never need the quarantine-on-read pass the
// filesystem Store does.
type RedisStore struct {
	client    *redis.Client
	namespace string
	logger    logging.Logger

	hits   int64
	misses int64
}

// NewRedisStore connects to redisURL and returns a ready Backend. namespace
// prefixes every key, isolating this cache from any other data sharing the
// same Redis instance.
func NewRedisStore(redisURL, namespace string, logger logging.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = logging.NoOp()
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("cache: invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cache: connecting to redis: %w", err)
	}

	if namespace == "" {
		namespace = "aigenflow-cache"
	}
	return &RedisStore{client: client, namespace: namespace, logger: logger}, nil
}

func (r *RedisStore) key(k string) string {
	return r.namespace + ":" + k
}

// Get returns the payload for key, or (nil, false) on a miss or an expired
// (Redis-evicted) entry.
func (r *RedisStore) Get(key string) ([]byte, bool) {
	ctx := context.Background()
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		atomic.AddInt64(&r.misses, 1)
		return nil, false
	}

	var entry redisEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		r.logger.Warn("cache entry corrupt, dropping", map[string]interface{}{"key": key, "error": err.Error()})
		_ = r.client.Del(ctx, r.key(key)).Err()
		atomic.AddInt64(&r.misses, 1)
		return nil, false
	}

	atomic.AddInt64(&r.hits, 1)
	return entry.Payload, true
}

// Save writes payload under key with ttl as a native Redis expiration.
func (r *RedisStore) Save(key string, payload []byte, ttl time.Duration) error {
	entry := redisEntry{Payload: payload, CreatedAt: time.Now()}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("cache: serializing entry: %w", err)
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if err := r.client.Set(context.Background(), r.key(key), data, ttl).Err(); err != nil {
		r.logger.Warn("cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
		return err
	}
	return nil
}

// Delete removes key's entry.
func (r *RedisStore) Delete(key string) {
	_ = r.client.Del(context.Background(), r.key(key)).Err()
}

// Clear removes every entry under this store's namespace and resets
// counters. Uses SCAN rather than KEYS to avoid blocking a shared Redis
// instance.
func (r *RedisStore) Clear() {
	ctx := context.Background()
	iter := r.client.Scan(ctx, 0, r.namespace+":*", 0).Iterator()
	for iter.Next(ctx) {
		_ = r.client.Del(ctx, iter.Val()).Err()
	}
	atomic.StoreInt64(&r.hits, 0)
	atomic.StoreInt64(&r.misses, 0)
}

// Stats reports hit/miss counters tracked locally; Redis doesn't expose
// per-namespace entry counts or sizes cheaply, so TotalEntries/
// TotalSizeBytes are left at zero here (the caller-facing Store, not this
// one, is the source of truth for those when running filesystem-backed).
func (r *RedisStore) Stats() Stats {
	hits := atomic.LoadInt64(&r.hits)
	misses := atomic.LoadInt64(&r.misses)
	stats := Stats{HitCount: hits, MissCount: misses}
	if hits+misses > 0 {
		stats.HitRate = float64(hits) / float64(hits+misses)
	}
	return stats
}

type redisEntry struct {
	Payload   []byte    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}
