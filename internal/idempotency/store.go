package idempotency

import (
	"context"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/tillpoint/internal/clock"
)

// Store keeps a short-lived in-flight marker and the remembered result per
// (scope, key).
type Store interface {
	TryLock(ctx context.Context, scope, key string) (bool, error)
	Unlock(ctx context.Context, scope, key string) error
	Remember(ctx context.Context, scope, key, value string) error
	Recall(ctx context.Context, scope, key string) (string, bool, error)
}

func lockKey(scope, key string) string { return "idemp:" + scope + ":" + key }

func resultKey(scope, key string) string { return "idemp:map:" + scope + ":" + key }

type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) TryLock(ctx context.Context, scope, key string) (bool, error) {
	return s.rdb.SetNX(ctx, lockKey(scope, key), "1", s.ttl).Result()
}

func (s *RedisStore) Unlock(ctx context.Context, scope, key string) error {
	return s.rdb.Del(ctx, lockKey(scope, key)).Err()
}

func (s *RedisStore) Remember(ctx context.Context, scope, key, value string) error {
	return s.rdb.Set(ctx, resultKey(scope, key), value, s.ttl).Err()
}

func (s *RedisStore) Recall(ctx context.Context, scope, key string) (string, bool, error) {
	val, err := s.rdb.Get(ctx, resultKey(scope, key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

type entry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore is the single-process Store used when Redis is not configured.
type MemoryStore struct {
	mu      sync.Mutex
	clock   clock.Clock
	ttl     time.Duration
	entries map[string]entry
}

func NewMemoryStore(c clock.Clock, ttl time.Duration) *MemoryStore {
	return &MemoryStore{clock: c, ttl: ttl, entries: map[string]entry{}}
}

func (s *MemoryStore) TryLock(_ context.Context, scope, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live(lockKey(scope, key)); ok {
		return false, nil
	}
	s.entries[lockKey(scope, key)] = entry{value: "1", expiresAt: s.clock.Now().Add(s.ttl)}
	return true, nil
}

func (s *MemoryStore) Unlock(_ context.Context, scope, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, lockKey(scope, key))
	return nil
}

func (s *MemoryStore) Remember(_ context.Context, scope, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[resultKey(scope, key)] = entry{value: value, expiresAt: s.clock.Now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Recall(_ context.Context, scope, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(resultKey(scope, key))
	return e.value, ok, nil
}

// live must be called with mu held.
func (s *MemoryStore) live(k string) (entry, bool) {
	e, ok := s.entries[k]
	if !ok {
		return entry{}, false
	}
	if !s.clock.Now().Before(e.expiresAt) {
		delete(s.entries, k)
		return entry{}, false
	}
	return e, true
}
