package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	release, ok, err := l.TryLock(ctx, "reminders", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryLock(ctx, "reminders", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, _ = l.TryLock(ctx, "breaches", time.Minute)
	assert.True(t, ok, "different keys do not contend")

	release()
	release()

	_, ok, _ = l.TryLock(ctx, "reminders", time.Minute)
	assert.True(t, ok)
}

func TestRedisLocker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	l := NewRedisLockerFromClient(client, "test:", nil)
	ctx := context.Background()

	release, ok, err := l.TryLock(ctx, "reminders", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists("test:reminders"))

	_, ok, err = l.TryLock(ctx, "reminders", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	release()
	assert.False(t, mr.Exists("test:reminders"))

	_, ok, err = l.TryLock(ctx, "reminders", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockerDoesNotReleaseForeignToken(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	l := NewRedisLockerFromClient(client, "test:", nil)
	release, ok, err := l.TryLock(context.Background(), "breaches", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	// Lock expired and was taken by another replica.
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set("test:breaches", "someone-else"))

	release()
	got, err := mr.Get("test:breaches")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}
