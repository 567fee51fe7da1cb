package rate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	rdb "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLimiter_FixedWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := rdb.NewClient(&rdb.Options{Addr: mr.Addr()})
	defer client.Close()

	l := NewRedisLimiter(client, "", 2, time.Minute)
	ctx := context.Background()

	r1, err := l.Allow(ctx, "login:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, r1.Allowed)
	assert.Equal(t, int64(1), r1.Remaining)

	r2, err := l.Allow(ctx, "login:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, r2.Allowed)
	assert.Equal(t, int64(0), r2.Remaining)

	r3, err := l.Allow(ctx, "login:1.2.3.4")
	require.NoError(t, err)
	assert.False(t, r3.Allowed)
	assert.Equal(t, int64(3), r3.CurrentHits)
	assert.Greater(t, r3.RetryAfter, time.Duration(0))

	other, err := l.Allow(ctx, "login:5.6.7.8")
	require.NoError(t, err)
	assert.True(t, other.Allowed)

	// La key expira con la ventana.
	mr.FastForward(2 * time.Minute)
	r4, err := l.Allow(ctx, "login:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, r4.Allowed)
}

func TestRedisLimiter_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := rdb.NewClient(&rdb.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	_, err := NewRedisLimiter(client, "rl:", 1, time.Minute).Allow(context.Background(), "k")
	assert.Error(t, err)
}

func TestMemoryLimiter(t *testing.T) {
	l := NewMemoryLimiter(1, time.Minute)
	base := time.Date(2024, 1, 1, 10, 0, 10, 0, time.UTC)
	l.now = func() time.Time { return base }
	ctx := context.Background()

	r1, err := l.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, r1.Allowed)

	r2, err := l.Allow(ctx, "k")
	require.NoError(t, err)
	assert.False(t, r2.Allowed)
	assert.Equal(t, 50*time.Second, r2.RetryAfter)

	// Nueva ventana, nueva key.
	l.now = func() time.Time { return base.Add(time.Minute) }
	r3, err := l.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, r3.Allowed)
}
