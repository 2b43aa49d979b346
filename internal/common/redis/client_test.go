package redis

import (
	"context"
	"testing"

	"garage-layout/internal/common/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	c := NewRedisClient(&config.RedisConfig{Addr: mr.Addr()})
	defer c.Close()
	require.NoError(t, Ping(context.Background(), c))

	mr.Close()
	assert.Error(t, Ping(context.Background(), c))
}
