package server

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(cfg RateLimitConfig) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(cfg)
	rl.now = clock.now
	return rl, clock
}

func TestRateLimiter_PerMinute(t *testing.T) {
	rl, clock := newTestLimiter(RateLimitConfig{Enabled: true, RequestsPerMinute: 2})

	require.NoError(t, rl.Allow("a", 0))
	clock.advance(10 * time.Second)
	require.NoError(t, rl.Allow("a", 0))

	err := rl.Allow("a", 0)
	var rle *RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, "minute", rle.Window)
	assert.Equal(t, 2, rle.Limit)
	assert.Equal(t, 50*time.Second, rle.RetryAfter)
	assert.Contains(t, err.Error(), "2 requests per minute")

	// other clients are independent
	require.NoError(t, rl.Allow("b", 0))

	clock.advance(50 * time.Second)
	assert.NoError(t, rl.Allow("a", 0))
}

func TestRateLimiter_PerHour(t *testing.T) {
	rl, clock := newTestLimiter(RateLimitConfig{Enabled: true, RequestsPerHour: 3})
	for range 3 {
		require.NoError(t, rl.Allow("a", 0))
		clock.advance(2 * time.Minute)
	}
	var rle *RateLimitError
	require.ErrorAs(t, rl.Allow("a", 0), &rle)
	assert.Equal(t, "hour", rle.Window)
	assert.Equal(t, 54*time.Minute, rle.RetryAfter)
}

func TestRateLimiter_DailyQuotas(t *testing.T) {
	rl, clock := newTestLimiter(RateLimitConfig{Enabled: true, RequestsPerDay: 2, MaxMBPerDay: 1})

	require.NoError(t, rl.Allow("a", 600*1024))
	var qe *QuotaExceededError
	require.ErrorAs(t, rl.Allow("a", 600*1024), &qe)
	assert.Equal(t, "data", qe.Kind)
	assert.Equal(t, int64(600*1024), qe.Used)
	assert.Equal(t, clock.t.Add(24*time.Hour), qe.Resets)

	// rejected requests are not counted
	require.NoError(t, rl.Allow("a", 100))
	require.ErrorAs(t, rl.Allow("a", 0), &qe)
	assert.Equal(t, "requests", qe.Kind)
	assert.Equal(t, int64(2), qe.Used)

	clock.advance(24 * time.Hour)
	assert.NoError(t, rl.Allow("a", 900*1024))
}

func TestRateLimiter_Unlimited(t *testing.T) {
	rl, _ := newTestLimiter(RateLimitConfig{Enabled: true})
	for range 1000 {
		require.NoError(t, rl.Allow("a", 1<<20))
	}
}

func TestRateLimiter_PrunesExpiredClients(t *testing.T) {
	rl, clock := newTestLimiter(RateLimitConfig{Enabled: true})
	for i := range maxTrackedClients {
		require.NoError(t, rl.Allow(strconv.Itoa(i), 0))
	}
	assert.Equal(t, maxTrackedClients, rl.Clients())

	clock.advance(25 * time.Hour)
	require.NoError(t, rl.Allow("fresh", 0))
	assert.Equal(t, 1, rl.Clients())
}
