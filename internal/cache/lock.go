package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const keyPrefix = "tillpoint:lock:"

// Only the holder of the token may delete the key.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var ErrLockNotConfigured = errors.New("lock client not configured")

// Locker hands out short-lived exclusive leases on named keys so that only one
// replica runs a piece of work at a time.
type Locker struct {
	client *redis.Client
	script *redis.Script
}

// NewLocker returns nil for a nil client.
func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client: client,
		script: redis.NewScript(releaseScript),
	}
}

// TryLock returns the lease token and whether the lease was acquired.
func (l *Locker) TryLock(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	if l == nil {
		return "", false, ErrLockNotConfigured
	}
	if name == "" {
		return "", false, errors.New("lock name is empty")
	}
	if ttl <= 0 {
		return "", false, errors.New("lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, keyPrefix+name, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (l *Locker) Release(ctx context.Context, name, token string) error {
	if l == nil || name == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{keyPrefix + name}, token).Err()
}
