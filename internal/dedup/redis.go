package dedup

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// setClient is the subset of redis commands the store uses.
type setClient interface {
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	Close() error
}

// RedisStore keeps the set in a Redis SET so several processes can share it.
// A local mirror answers Contains without a round trip.
type RedisStore struct {
	client setClient
	key    string

	mu     sync.RWMutex
	mirror map[string]struct{}
}

// DefaultRedisKey is used when no key is configured.
const DefaultRedisKey = "goexcerpt:dedup"

// OpenRedis connects to addr and loads the current members. A load failure
// leaves the mirror empty and is logged, matching the file store.
func OpenRedis(ctx context.Context, addr, key string) *RedisStore {
	return newRedisStore(ctx, redis.NewClient(&redis.Options{Addr: addr}), key)
}

func newRedisStore(ctx context.Context, c setClient, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	s := &RedisStore{client: c, key: key, mirror: map[string]struct{}{}}
	members, err := c.SMembers(ctx, key).Result()
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("dedup load from redis failed; starting empty")
		return s
	}
	for _, m := range members {
		s.mirror[m] = struct{}{}
	}
	log.Debug().Str("key", key).Int("count", len(s.mirror)).Msg("dedup loaded")
	return s
}

func (s *RedisStore) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.mirror[id]
	return ok
}

// Add is an idempotent SADD; the mirror is updated even when Redis fails.
func (s *RedisStore) Add(ctx context.Context, id string) error {
	s.mu.Lock()
	s.mirror[id] = struct{}{}
	s.mu.Unlock()
	if err := s.client.SAdd(ctx, s.key, id).Err(); err != nil {
		return fmt.Errorf("redis sadd: %w", err)
	}
	return nil
}

func (s *RedisStore) Snapshot() map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]struct{}, len(s.mirror))
	for id := range s.mirror {
		out[id] = struct{}{}
	}
	return out
}

func (s *RedisStore) Close() error { return s.client.Close() }
