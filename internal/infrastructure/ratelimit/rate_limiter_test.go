package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestCooldownBlocksSecondSendWithinInterval(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	rl := NewRateLimiter(WithClock(clock.Now))

	ok, _ := rl.Allow("u1", ActionSendMessage)
	assert.True(t, ok)

	clock.Advance(500 * time.Millisecond)
	ok, wait := rl.Allow("u1", ActionSendMessage)
	assert.False(t, ok)
	assert.Equal(t, 1500*time.Millisecond, wait)

	clock.Advance(1500 * time.Millisecond)
	ok, _ = rl.Allow("u1", ActionSendMessage)
	assert.True(t, ok)
}

func TestCooldownRestartsAfterIdle(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	rl := NewRateLimiter(WithClock(clock.Now))

	ok, _ := rl.Allow("u1", ActionSendMessage)
	assert.True(t, ok)

	clock.Advance(10 * time.Second)
	ok, _ = rl.Allow("u1", ActionSendMessage)
	assert.True(t, ok)

	clock.Advance(1900 * time.Millisecond)
	ok, _ = rl.Allow("u1", ActionSendMessage)
	assert.False(t, ok)

	clock.Advance(100 * time.Millisecond)
	ok, _ = rl.Allow("u1", ActionSendMessage)
	assert.True(t, ok)
}

func TestKeysAreIndependent(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	rl := NewRateLimiter(WithClock(clock.Now), WithPolicy(ActionSendMessage, Cooldown(time.Minute)))

	ok, _ := rl.Allow("u1", ActionSendMessage)
	assert.True(t, ok)
	ok, _ = rl.Allow("u2", ActionSendMessage)
	assert.True(t, ok)
	ok, wait := rl.Allow("u1", ActionSendMessage)
	assert.False(t, ok)
	assert.Equal(t, time.Minute, wait)
}

func TestRefundRestoresCooldownToken(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	rl := NewRateLimiter(WithClock(clock.Now))

	ok, _ := rl.Allow("u1", ActionSendMessage)
	assert.True(t, ok)
	rl.Refund("u1", ActionSendMessage)
	rl.Refund("u1", ActionSendMessage)

	ok, _ = rl.Allow("u1", ActionSendMessage)
	assert.True(t, ok)
	ok, _ = rl.Allow("u1", ActionSendMessage)
	assert.False(t, ok)

	rl.Refund("unknown", ActionSendMessage)
}
