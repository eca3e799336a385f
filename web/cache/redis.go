// Package cache wraps the redis client used for profile caching and rate
// limiting. It runs an embedded miniredis when no external server is set.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/medreport/medreport/logger"
	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned when a key is absent.
var ErrMiss = errors.New("cache: key not found")

var errNotInitialized = errors.New("redis client not initialized")

var (
	client     *redis.Client
	miniRedis  *miniredis.Miniredis
	ctx        = context.Background()
	isEmbedded = true
)

// InitRedis initializes Redis client. If redisAddr is empty, starts embedded Redis.
func InitRedis(redisAddr string) error {
	if redisAddr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("failed to start embedded Redis: %w", err)
		}
		miniRedis = mr
		client = redis.NewClient(&redis.Options{
			Addr: mr.Addr(),
		})
		isEmbedded = true
		logger.Info("Embedded Redis started on ", mr.Addr())
		return nil
	}

	opts, err := redis.ParseURL(redisAddr)
	if err != nil {
		opts = &redis.Options{Addr: redisAddr}
	}
	client = redis.NewClient(opts)
	isEmbedded = false

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis at %s: %w", redisAddr, err)
	}
	logger.Info("Connected to external Redis at ", opts.Addr)
	return nil
}

// IsEmbedded returns true if using embedded Redis.
func IsEmbedded() bool {
	return isEmbedded
}

// Close closes the Redis connection and stops embedded Redis if running.
func Close() error {
	if client != nil {
		if err := client.Close(); err != nil {
			return err
		}
		client = nil
	}
	if miniRedis != nil {
		miniRedis.Close()
		miniRedis = nil
	}
	return nil
}

// Set stores a value in Redis with expiration.
func Set(key string, value any, expiration time.Duration) error {
	if client == nil {
		return errNotInitialized
	}
	return client.Set(ctx, key, value, expiration).Err()
}

// Get retrieves a value from Redis.
func Get(key string) (string, error) {
	if client == nil {
		return "", errNotInitialized
	}
	result, err := client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	return result, err
}

// Incr increments a counter, starting its expiry window on the first hit.
func Incr(key string, window time.Duration) (int64, error) {
	if client == nil {
		return 0, errNotInitialized
	}
	n, err := client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := client.Expire(ctx, key, window).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// TTL returns the remaining lifetime of key.
func TTL(key string) (time.Duration, error) {
	if client == nil {
		return 0, errNotInitialized
	}
	return client.TTL(ctx, key).Result()
}
