// Package config centralizes runtime configuration for the state layer:
// which storage driver backs the managers and how to reach it. Defaults are
// struct-driven and every field can be overridden from the environment.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration object.
type Config struct {
	Store StoreConfig `koanf:"store" validate:"required"`
	Log   LogConfig   `koanf:"log"`
}

// StoreConfig selects and tunes the durable storage backend.
type StoreConfig struct {
	// Driver picks the backend implementation.
	Driver string      `koanf:"driver" validate:"oneof=memory redis" env:"STORE_DRIVER"`
	Redis  RedisConfig `koanf:"redis"`
}

// RedisConfig carries connection settings for the Redis backend.
type RedisConfig struct {
	Host     string        `koanf:"host"     validate:"required"        env:"STORE_REDIS_HOST"`
	Port     int           `koanf:"port"     validate:"min=1,max=65535" env:"STORE_REDIS_PORT"`
	Password string        `koanf:"password"                            env:"STORE_REDIS_PASSWORD"`
	DB       int           `koanf:"db"       validate:"min=0"           env:"STORE_REDIS_DB"`
	// TTL bounds how long idle state documents survive; zero disables expiry.
	TTL time.Duration `koanf:"ttl" env:"STORE_REDIS_TTL"`
}

// LogConfig tunes the structured logger.
type LogConfig struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error" env:"LOG_LEVEL"`
	JSON  bool   `koanf:"json" env:"LOG_JSON"`
}

// Default returns the baseline configuration before environment overrides.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Driver: "memory",
			Redis: RedisConfig{
				Host: "localhost",
				Port: 6379,
				DB:   0,
				TTL:  0,
			},
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// RedisAddr renders the host:port pair the Redis client dials.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
