package notify

import (
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Driver selects a notifier implementation.
type Driver string

const (
	// DriverMemory is the in-process hub for single-process deployments.
	DriverMemory Driver = "memory"
	// DriverRedis is the Redis pub/sub plane for multi-process deployments.
	DriverRedis Driver = "redis"
)

type factoryConfig struct {
	redisClient *redis.Client
}

// Option configures the notifier factory.
type Option func(*factoryConfig)

// WithRedisClient supplies the Redis client for the redis driver.
func WithRedisClient(client *redis.Client) Option {
	return func(config *factoryConfig) {
		config.redisClient = client
	}
}

// New builds a notifier for the named driver.
func New(driver Driver, opts ...Option) (Notifier, error) {
	var config factoryConfig
	for _, opt := range opts {
		opt(&config)
	}

	switch driver {
	case DriverMemory:
		return NewMemoryNotifier(), nil
	case DriverRedis:
		return NewRedisNotifier(config.redisClient)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}
