package idempotency

import (
	"context"
	"errors"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/tillpoint/internal/clock"
	"github.com/smallbiznis/tillpoint/internal/config"
	"go.uber.org/zap"
)

const ScopeOrders = "orders"

var (
	ErrInProgress = errors.New("idempotency_key_in_progress")
	ErrInvalidKey = errors.New("invalid_idempotency_key")
)

const maxKeyLength = 128

// Guard runs an operation at most once per key and replays its result id.
type Guard struct {
	store Store
	log   *zap.Logger
}

func NewGuard(store Store, log *zap.Logger) *Guard {
	return &Guard{store: store, log: log.Named("idempotency")}
}

// Provide picks Redis when a client is configured.
func Provide(rdb *redis.Client, cfg config.Config, c clock.Clock, log *zap.Logger) *Guard {
	var store Store
	if rdb != nil {
		store = NewRedisStore(rdb, cfg.IdempotencyTTL)
	} else {
		store = NewMemoryStore(c, cfg.IdempotencyTTL)
	}
	return NewGuard(store, log)
}

// Do returns the remembered id for key, or runs fn and remembers its id. An
// empty key runs fn unguarded. replayed is true when fn did not run.
func (g *Guard) Do(ctx context.Context, scope, key string, fn func() (string, error)) (id string, replayed bool, err error) {
	key = strings.TrimSpace(key)
	if key == "" {
		id, err = fn()
		return id, false, err
	}
	if len(key) > maxKeyLength {
		return "", false, ErrInvalidKey
	}

	if id, ok, err := g.store.Recall(ctx, scope, key); err != nil {
		return "", false, err
	} else if ok {
		return id, true, nil
	}

	locked, err := g.store.TryLock(ctx, scope, key)
	if err != nil {
		return "", false, err
	}
	if !locked {
		// The first request may have finished between Recall and TryLock.
		if id, ok, err := g.store.Recall(ctx, scope, key); err != nil {
			return "", false, err
		} else if ok {
			return id, true, nil
		}
		return "", false, ErrInProgress
	}

	id, err = fn()
	if err != nil {
		if unlockErr := g.store.Unlock(ctx, scope, key); unlockErr != nil {
			g.log.Warn("idempotency unlock failed", zap.String("key", key), zap.Error(unlockErr))
		}
		return "", false, err
	}
	if err := g.store.Remember(ctx, scope, key, id); err != nil {
		g.log.Warn("idempotency remember failed", zap.String("key", key), zap.Error(err))
	}
	return id, false, nil
}
