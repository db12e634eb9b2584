package hotcache

import (
	"context"
	"strings"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Cache is the hot-cache accelerator in front of the durable store. It is
// best-effort: misses and backend failures look identical to callers, and
// writes never surface errors.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration)
	Keys(ctx context.Context, pattern string) []string
}

type memory struct {
	mu sync.Mutex
	m  map[string]entry
}

type entry struct {
	b   []byte
	exp time.Time
}

// NewMemory returns an in-process cache used when Redis is unreachable and
// in tests.
func NewMemory() Cache { return &memory{m: make(map[string]entry)} }

func (c *memory) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[key]
	if !ok || (!e.exp.IsZero() && time.Now().After(e.exp)) {
		return nil, false
	}
	return e.b, true
}

func (c *memory) Set(_ context.Context, key string, val []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := entry{b: append([]byte(nil), val...)}
	if ttl > 0 {
		e.exp = time.Now().Add(ttl)
	}
	c.m[key] = e
}

func (c *memory) Keys(_ context.Context, pattern string) []string {
	prefix := strings.TrimSuffix(pattern, "*")
	c.mu.Lock()
	defer c.mu.Unlock()
	var keys []string
	now := time.Now()
	for k, e := range c.m {
		if !e.exp.IsZero() && now.After(e.exp) {
			continue
		}
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys
}

type redisCache struct{ r *redis.Client }

// NewRedis wraps a Redis client behind the Cache interface.
func NewRedis(client *redis.Client) Cache { return &redisCache{r: client} }

// Connect dials Redis from a URL. On any failure it degrades to the
// in-memory cache so the service computes without the shared accelerator.
func Connect(ctx context.Context, url string) Cache {
	opts, err := redis.ParseURL(url)
	if err != nil {
		log.Warn().Err(err).Msg("invalid redis url, using in-memory cache")
		return NewMemory()
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis unreachable, using in-memory cache")
		return NewMemory()
	}
	return NewRedis(client)
}

func (r *redisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	v, err := r.r.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return v, true
}

func (r *redisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	if err := r.r.Set(ctx, key, val, ttl).Err(); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("hot cache set failed")
	}
}

func (r *redisCache) Keys(ctx context.Context, pattern string) []string {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	keys, err := r.r.Keys(ctx, pattern).Result()
	if err != nil {
		return nil
	}
	return keys
}
