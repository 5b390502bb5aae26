package cache

import (
	"context"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dispatch-api/pkg/config"
)

func TestNewRedisPingsServer(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	client, err := NewRedis(context.Background(), config.RedisConfig{Host: mr.Host(), Port: port, PoolSize: 4})
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, 4, client.Options().PoolSize)
	require.NoError(t, client.Set(context.Background(), "workers:active", "[]", 0).Err())
	assert.True(t, mr.Exists("workers:active"))
}

func TestNewRedisFailsWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	host := mr.Host()
	mr.Close()

	_, err = NewRedis(context.Background(), config.RedisConfig{Host: host, Port: port})
	assert.Error(t, err)
}

func TestOptionsKeepsLibraryPoolDefault(t *testing.T) {
	opts := Options(config.RedisConfig{Host: "::1", Port: 6379})
	assert.Equal(t, "[::1]:6379", opts.Addr)
	assert.Zero(t, opts.PoolSize)
}
