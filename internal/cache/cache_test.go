package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exercise(t *testing.T, c Client) {
	t.Helper()
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	assert.True(t, IsNotFound(err))

	require.NoError(t, c.Set(ctx, "k", []byte("v1"), time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, c.Delete(ctx, "k"))
	require.NoError(t, c.Ping(ctx))
}

func TestMemory(t *testing.T) {
	c := NewMemory("t:")
	exercise(t, c)

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "short", []byte("x"), 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)
	_, err := c.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	c := NewMemory("")
	buf := []byte("abc")
	require.NoError(t, c.Set(ctx, "k", buf, 0))
	buf[0] = 'z'

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := New(context.Background(), Config{Kind: "redis", Addr: mr.Addr(), Prefix: "sg:"})
	require.NoError(t, err)
	defer c.Close()

	exercise(t, c)

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "ttl", []byte("x"), time.Minute))
	assert.True(t, mr.Exists("sg:ttl"))
	mr.FastForward(2 * time.Minute)
	_, err = c.Get(ctx, "ttl")
	assert.ErrorIs(t, err, ErrNotFound)

	_, ok := Redis(c)
	assert.True(t, ok)
}

func TestNew_UnknownKind(t *testing.T) {
	_, err := New(context.Background(), Config{Kind: "memcached"})
	assert.Error(t, err)

	c, err := New(context.Background(), Config{})
	require.NoError(t, err)
	_, ok := Redis(c)
	assert.False(t, ok)
}
