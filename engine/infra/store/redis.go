package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turnkit/turnstate/engine/core"
	"github.com/turnkit/turnstate/pkg/logger"
)

// Redis is a Backend persisting JSON-serialized documents in Redis. An
// optional TTL bounds how long idle turn state survives; zero means no
// expiry.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedis wraps an existing Redis client as a Backend.
func NewRedis(client redis.UniversalClient, ttl time.Duration) (*Redis, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	return &Redis{client: client, ttl: ttl}, nil
}

func (r *Redis) Read(ctx context.Context, keys []string) (map[string]core.Document, error) {
	out := make(map[string]core.Document, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read keys from redis: %w", err)
	}
	for i, v := range vals {
		if v == nil {
			// Absent key, first-use case.
			continue
		}
		var raw string
		switch t := v.(type) {
		case string:
			raw = t
		case []byte:
			raw = string(t)
		default:
			return nil, fmt.Errorf("unexpected redis value type %T for key %q", v, keys[i])
		}
		doc := core.NewDocument()
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("failed to decode document for key %q: %w", keys[i], err)
		}
		out[keys[i]] = doc
	}
	return out, nil
}

func (r *Redis) Write(ctx context.Context, changes map[string]core.Document) error {
	if len(changes) == 0 {
		return nil
	}
	pipe := r.client.Pipeline()
	for key, doc := range changes {
		raw, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to encode document for key %q: %w", key, err)
		}
		pipe.Set(ctx, key, raw, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logger.FromContext(ctx).With("component", "store", "driver", "redis").
			Debug("write pipeline failed", "keys", len(changes), "error", err)
		return fmt.Errorf("failed to write documents to redis: %w", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete keys from redis: %w", err)
	}
	return nil
}
