package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/turnkit/turnstate/pkg/config"
	"github.com/turnkit/turnstate/pkg/logger"
)

// FromConfig builds the Backend selected by the configuration. The returned
// cleanup releases any connections the backend owns and is safe to call even
// when it owns none.
func FromConfig(ctx context.Context, cfg *config.Config) (Backend, func(), error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("config cannot be nil")
	}
	switch cfg.Store.Driver {
	case "memory":
		return NewMemory(), func() {}, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.Redis.Addr(),
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Store.Redis.Addr(), err)
		}
		backend, err := NewRedis(client, cfg.Store.Redis.TTL)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		logger.FromContext(ctx).Info("redis store connected", "addr", cfg.Store.Redis.Addr())
		return backend, func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
