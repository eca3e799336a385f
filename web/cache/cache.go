package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/medreport/medreport/logger"
)

const (
	TTLProfile = 5 * time.Minute
)

const (
	KeyProfilePrefix   = "profile:"
	KeyRateLimitPrefix = "ratelimit:"
)

// ProfileKey is the cache key of a user's dashboard profile.
func ProfileKey(role string, userId int) string {
	return fmt.Sprintf("%s%s:%d", KeyProfilePrefix, role, userId)
}

// GetJSON retrieves a value from cache and unmarshals it as JSON.
func GetJSON(key string, dest any) error {
	val, err := Get(key)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(val), dest)
}

// SetJSON marshals a value as JSON and stores it in cache.
func SetJSON(key string, value any, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return Set(key, string(data), expiration)
}

// GetOrSet loads key into dest, or on a miss fills dest with fn and caches
// the result. Cache failures are logged and never fail the call.
func GetOrSet[T any](key string, dest *T, expiration time.Duration, fn func() (T, error)) error {
	err := GetJSON(key, dest)
	if err == nil {
		logger.Debugf("Cache hit for key: %s", key)
		return nil
	}
	if !errors.Is(err, ErrMiss) {
		logger.Warningf("Cache read for key %s failed: %v", key, err)
	}

	value, err := fn()
	if err != nil {
		return err
	}
	*dest = value

	if err := SetJSON(key, value, expiration); err != nil {
		logger.Warningf("Failed to set cache for key %s: %v", key, err)
	}
	return nil
}
