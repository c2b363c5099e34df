package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/tillpoint/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGuardReplaysRememberedResult(t *testing.T) {
	guard := NewGuard(NewMemoryStore(clock.NewFakeClock(time.Now()), time.Hour), zap.NewNop())
	ctx := context.Background()

	calls := 0
	fn := func() (string, error) {
		calls++
		return "42", nil
	}

	id, replayed, err := guard.Do(ctx, ScopeOrders, "key-1", fn)
	require.NoError(t, err)
	assert.Equal(t, "42", id)
	assert.False(t, replayed)

	id, replayed, err = guard.Do(ctx, ScopeOrders, "key-1", fn)
	require.NoError(t, err)
	assert.Equal(t, "42", id)
	assert.True(t, replayed)
	assert.Equal(t, 1, calls)
}

func TestGuardReleasesKeyOnFailure(t *testing.T) {
	guard := NewGuard(NewMemoryStore(clock.NewFakeClock(time.Now()), time.Hour), zap.NewNop())
	ctx := context.Background()
	boom := errors.New("boom")

	_, _, err := guard.Do(ctx, ScopeOrders, "key-1", func() (string, error) { return "", boom })
	require.ErrorIs(t, err, boom)

	id, replayed, err := guard.Do(ctx, ScopeOrders, "key-1", func() (string, error) { return "7", nil })
	require.NoError(t, err)
	assert.Equal(t, "7", id)
	assert.False(t, replayed)
}

func TestGuardRejectsConcurrentDuplicate(t *testing.T) {
	store := NewMemoryStore(clock.NewFakeClock(time.Now()), time.Hour)
	guard := NewGuard(store, zap.NewNop())
	ctx := context.Background()

	locked, err := store.TryLock(ctx, ScopeOrders, "key-1")
	require.NoError(t, err)
	require.True(t, locked)

	_, _, err = guard.Do(ctx, ScopeOrders, "key-1", func() (string, error) { return "1", nil })
	assert.ErrorIs(t, err, ErrInProgress)
}

func TestGuardWithoutKeyAlwaysRuns(t *testing.T) {
	guard := NewGuard(NewMemoryStore(clock.NewFakeClock(time.Now()), time.Hour), zap.NewNop())
	calls := 0
	for i := 0; i < 2; i++ {
		_, replayed, err := guard.Do(context.Background(), ScopeOrders, "  ", func() (string, error) {
			calls++
			return "1", nil
		})
		require.NoError(t, err)
		assert.False(t, replayed)
	}
	assert.Equal(t, 2, calls)
}

func TestGuardRejectsOversizedKey(t *testing.T) {
	guard := NewGuard(NewMemoryStore(clock.New(), time.Hour), zap.NewNop())
	long := make([]byte, maxKeyLength+1)
	for i := range long {
		long[i] = 'k'
	}
	_, _, err := guard.Do(context.Background(), ScopeOrders, string(long), func() (string, error) { return "1", nil })
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestMemoryStoreExpires(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2025, 7, 10, 10, 0, 0, 0, time.UTC))
	store := NewMemoryStore(fake, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Remember(ctx, ScopeOrders, "k", "9"))
	_, ok, _ := store.Recall(ctx, ScopeOrders, "k")
	assert.True(t, ok)

	fake.Advance(time.Minute)
	_, ok, _ = store.Recall(ctx, ScopeOrders, "k")
	assert.False(t, ok)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisStore(client, time.Minute)
	ctx := context.Background()

	locked, err := store.TryLock(ctx, ScopeOrders, "k")
	require.NoError(t, err)
	assert.True(t, locked)
	locked, err = store.TryLock(ctx, ScopeOrders, "k")
	require.NoError(t, err)
	assert.False(t, locked)

	_, ok, err := store.Recall(ctx, ScopeOrders, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Remember(ctx, ScopeOrders, "k", "15"))
	val, ok, err := store.Recall(ctx, ScopeOrders, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "15", val)
	assert.True(t, mr.Exists("idemp:map:orders:k"))

	mr.FastForward(2 * time.Minute)
	_, ok, err = store.Recall(ctx, ScopeOrders, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Unlock(ctx, ScopeOrders, "k"))
	assert.False(t, mr.Exists("idemp:orders:k"))
}
