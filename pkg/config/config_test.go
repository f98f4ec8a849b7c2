package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("Should load defaults when environment is empty", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "memory", cfg.Store.Driver)
		assert.Equal(t, "localhost:6379", cfg.Store.Redis.Addr())
		assert.Equal(t, "info", cfg.Log.Level)
	})

	t.Run("Should override fields from environment", func(t *testing.T) {
		t.Setenv("TURNSTATE_STORE_DRIVER", "redis")
		t.Setenv("TURNSTATE_STORE_REDIS_HOST", "redis.internal")
		t.Setenv("TURNSTATE_STORE_REDIS_PORT", "6380")
		t.Setenv("TURNSTATE_STORE_REDIS_TTL", "15m")
		t.Setenv("TURNSTATE_LOG_LEVEL", "debug")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "redis", cfg.Store.Driver)
		assert.Equal(t, "redis.internal:6380", cfg.Store.Redis.Addr())
		assert.Equal(t, 15*time.Minute, cfg.Store.Redis.TTL)
		assert.Equal(t, "debug", cfg.Log.Level)
	})

	t.Run("Should reject unknown store driver", func(t *testing.T) {
		t.Setenv("TURNSTATE_STORE_DRIVER", "cassandra")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("Should reject out-of-range redis port", func(t *testing.T) {
		t.Setenv("TURNSTATE_STORE_REDIS_PORT", "70000")
		_, err := Load()
		assert.Error(t, err)
	})
}
