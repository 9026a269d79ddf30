package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/siherrmann/archivist/helper"
)

// ErrLockTimeout is returned when a Redis lock could not be acquired in time.
var ErrLockTimeout = errors.New("lock timeout")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisConfig holds the Redis lock configuration
type RedisConfig struct {
	// Addr is the Redis server address (host:port)
	Addr string
	// Password is the Redis password (optional)
	Password string
	// DB is the Redis database number
	DB int
	// Prefix is prepended to every lock key
	Prefix string
	// TTL bounds how long a crashed holder can block a key
	TTL time.Duration
	// Wait is the maximum time Lock waits for a held key
	Wait time.Duration
	// RetryInterval is the pause between acquisition attempts
	RetryInterval time.Duration
}

// DefaultRedisConfig returns a default Redis lock configuration
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:          "localhost:6379",
		Prefix:        "archivist:lock:",
		TTL:           10 * time.Second,
		Wait:          5 * time.Second,
		RetryInterval: 20 * time.Millisecond,
	}
}

// RedisLocker is a Locker shared by every process using the same Redis.
type RedisLocker struct {
	client *redis.Client
	config RedisConfig
}

// NewRedisLocker connects to Redis and verifies the connection with a ping.
func NewRedisLocker(config RedisConfig) (*RedisLocker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, helper.NewError("redis ping", err)
	}

	return NewRedisLockerWithClient(client, config), nil
}

// NewRedisLockerWithClient creates a Redis locker with an existing client
func NewRedisLockerWithClient(client *redis.Client, config RedisConfig) *RedisLocker {
	defaults := DefaultRedisConfig()
	if config.TTL <= 0 {
		config.TTL = defaults.TTL
	}
	if config.Wait <= 0 {
		config.Wait = defaults.Wait
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = defaults.RetryInterval
	}

	return &RedisLocker{
		client: client,
		config: config,
	}
}

// Lock acquires key with SET NX, retrying until the configured wait elapses.
func (r *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	fullKey := r.config.Prefix + key
	token := uuid.NewString()

	ctx, cancel := context.WithTimeout(ctx, r.config.Wait)
	defer cancel()

	ticker := time.NewTicker(r.config.RetryInterval)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, fullKey, token, r.config.TTL).Result()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return nil, helper.NewError("redis setnx", err)
		}
		if ok {
			return func() {
				// The request context may be done by now.
				releaseCtx, releaseCancel := context.WithTimeout(context.Background(), time.Second)
				defer releaseCancel()
				releaseScript.Run(releaseCtx, r.client, []string{fullKey}, token)
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, helper.NewError("redis lock "+key, fmt.Errorf("%w: %v", ErrLockTimeout, ctx.Err()))
		case <-ticker.C:
		}
	}
}

// Close closes the Redis client
func (r *RedisLocker) Close() error {
	return r.client.Close()
}
