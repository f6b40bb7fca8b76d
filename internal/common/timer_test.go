package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimer(t *testing.T) {
	timer := NewNamedTimer("test_timer")
	assert.Equal(t, "test_timer", timer.Name())

	// Sleep for a short duration
	time.Sleep(10 * time.Millisecond)

	duration := timer.Stop()
	assert.GreaterOrEqual(t, duration, 10*time.Millisecond)
	assert.Equal(t, duration, timer.Duration())

	str := timer.String()
	assert.Contains(t, str, "test_timer")
	assert.Contains(t, str, "ms")
}

func TestTimerStopIsIdempotent(t *testing.T) {
	timer := NewTimer()
	assert.Empty(t, timer.Name())
	assert.Zero(t, timer.Duration())

	first := timer.Stop()
	time.Sleep(2 * time.Millisecond)
	assert.Equal(t, first, timer.Stop())
	assert.Equal(t, first, timer.Elapsed())
	assert.Equal(t, first.String(), timer.String())
}

func TestTimerElapsedWhileRunning(t *testing.T) {
	timer := NewTimer()
	time.Sleep(2 * time.Millisecond)
	assert.GreaterOrEqual(t, timer.Elapsed(), 2*time.Millisecond)
	assert.Zero(t, timer.Duration())
}
