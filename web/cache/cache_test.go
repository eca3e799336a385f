package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type profile struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func setup(t *testing.T) {
	t.Helper()
	require.NoError(t, InitRedis(""))
	t.Cleanup(func() { _ = Close() })
}

func TestGetOrSetCachesValue(t *testing.T) {
	setup(t)

	calls := 0
	load := func() (profile, error) {
		calls++
		return profile{Name: "A", Email: "a@x.com"}, nil
	}

	var first, second profile
	require.NoError(t, GetOrSet(ProfileKey("patient", 1), &first, TTLProfile, load))
	require.NoError(t, GetOrSet(ProfileKey("patient", 1), &second, TTLProfile, load))

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
	assert.Equal(t, "a@x.com", second.Email)
}

func TestGetOrSetPropagatesLoaderError(t *testing.T) {
	setup(t)

	boom := errors.New("boom")
	var p profile
	err := GetOrSet(ProfileKey("doctor", 2), &p, TTLProfile, func() (profile, error) {
		return profile{}, boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = Get(ProfileKey("doctor", 2))
	assert.ErrorIs(t, err, ErrMiss)
}

func TestIncrSetsWindow(t *testing.T) {
	setup(t)

	n, err := Incr("ratelimit:test", time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = Incr("ratelimit:test", time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	ttl, err := TTL("ratelimit:test")
	require.NoError(t, err)
	assert.True(t, ttl > 0 && ttl <= time.Minute)
}
