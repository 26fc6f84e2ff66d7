package display

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/jmylchreest/overlay/internal/clock"
	"github.com/jmylchreest/overlay/internal/model"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestLifetime_Expires(t *testing.T) {
	c := clock.NewFake(epoch)
	fired := 0
	l := NewLifetime(c, 5*time.Second, func() { fired++ })

	l.Start()
	c.Advance(4999 * time.Millisecond)
	assert.Equal(t, 0, fired)
	assert.Equal(t, time.Millisecond, l.Remaining())

	c.Advance(time.Millisecond)
	assert.Equal(t, 1, fired)
	assert.True(t, l.Expired())
	assert.Equal(t, time.Duration(0), l.Remaining())

	c.Advance(time.Hour)
	assert.Equal(t, 1, fired, "expires exactly once")
}

func TestLifetime_PauseResumeKeepsRemaining(t *testing.T) {
	c := clock.NewFake(epoch)
	fired := 0
	l := NewLifetime(c, 5000*time.Millisecond, func() { fired++ })

	l.Start()
	c.Advance(2000 * time.Millisecond)
	l.Pause()
	assert.True(t, l.Paused())
	assert.Equal(t, 3000*time.Millisecond, l.Remaining())

	// Time spent paused does not count
	c.Advance(10 * time.Second)
	assert.Equal(t, 0, fired)
	assert.Equal(t, 3000*time.Millisecond, l.Remaining())

	l.Resume()
	assert.False(t, l.Paused())
	c.Advance(2999 * time.Millisecond)
	assert.Equal(t, 0, fired)

	c.Advance(time.Millisecond)
	assert.Equal(t, 1, fired)
}

func TestLifetime_PauseResumeIdempotent(t *testing.T) {
	c := clock.NewFake(epoch)
	l := NewLifetime(c, 4*time.Second, nil)

	l.Resume() // not running
	l.Pause()  // not running
	assert.False(t, l.Paused())

	l.Start()
	c.Advance(time.Second)
	l.Pause()
	c.Advance(time.Second)
	l.Pause()
	assert.Equal(t, 3*time.Second, l.Remaining())

	l.Resume()
	l.Resume()
	assert.Equal(t, 1, c.Pending(), "double resume schedules one timer")
}

func TestLifetime_Stop(t *testing.T) {
	c := clock.NewFake(epoch)
	fired := false
	l := NewLifetime(c, time.Second, func() { fired = true })

	l.Start()
	l.Stop()
	c.Advance(time.Minute)
	assert.False(t, fired)
	assert.Equal(t, 0, c.Pending())
}

func TestLifetime_Infinite(t *testing.T) {
	c := clock.NewFake(epoch)
	fired := false
	l := NewLifetime(c, model.Infinite, func() { fired = true })

	l.Start()
	assert.Equal(t, 0, c.Pending(), "infinite lifetimes never schedule")
	c.Advance(24 * time.Hour)
	assert.False(t, fired)
	assert.Equal(t, model.Infinite, l.Remaining())

	l.Pause()
	l.Resume()
	assert.Equal(t, 0, c.Pending())
}

func TestLifetime_Restart(t *testing.T) {
	c := clock.NewFake(epoch)
	fired := 0
	l := NewLifetime(c, 2*time.Second, func() { fired++ })

	l.Start()
	c.Advance(1500 * time.Millisecond)
	l.Start()
	c.Advance(1500 * time.Millisecond)
	assert.Equal(t, 0, fired, "restart resets to the full duration")
	c.Advance(500 * time.Millisecond)
	assert.Equal(t, 1, fired)
}

// TestLifetimeProperties checks that pauses never change the total active time.
func TestLifetimeProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(9753)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("expiry happens after exactly duration of unpaused time", prop.ForAll(
		func(durationMs int, activeMs []int, pausedMs int) bool {
			c := clock.NewFake(epoch)
			fired := false
			l := NewLifetime(c, time.Duration(durationMs)*time.Millisecond, func() { fired = true })
			l.Start()

			active := 0
			for _, step := range activeMs {
				if active+step >= durationMs {
					break
				}
				c.Advance(time.Duration(step) * time.Millisecond)
				active += step
				l.Pause()
				c.Advance(time.Duration(pausedMs) * time.Millisecond)
				l.Resume()
			}
			if fired {
				return false
			}
			if l.Remaining() != time.Duration(durationMs-active)*time.Millisecond {
				return false
			}

			c.Advance(time.Duration(durationMs-active-1) * time.Millisecond)
			if fired {
				return false
			}
			c.Advance(time.Millisecond)
			return fired
		},
		gen.IntRange(2, 10000),
		gen.SliceOf(gen.IntRange(1, 3000)),
		gen.IntRange(0, 60000),
	))

	properties.TestingRun(t)
}
