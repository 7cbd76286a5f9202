package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coderi421/ratorm/orm"
)

func TestCache(t *testing.T) {
	ctx := context.Background()
	c := NewCache(time.Minute)

	_, err := c.Get(ctx, "ratorm:user:1")
	assert.ErrorIs(t, err, orm.ErrCacheMiss)

	val := []byte("hello")
	require.NoError(t, c.Set(ctx, "ratorm:user:1", val, 0))
	val[0] = 'j'
	data, err := c.Get(ctx, "ratorm:user:1")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	require.NoError(t, c.Delete(ctx, "ratorm:user:1"))
	_, err = c.Get(ctx, "ratorm:user:1")
	assert.ErrorIs(t, err, orm.ErrCacheMiss)
}

func TestCache_expiration(t *testing.T) {
	ctx := context.Background()
	c := NewCache(time.Minute)
	require.NoError(t, c.Set(ctx, "k", []byte("v"), 50*time.Millisecond))
	time.Sleep(100 * time.Millisecond)
	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, orm.ErrCacheMiss)
}
