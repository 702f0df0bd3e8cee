package ratelimit

import (
	"sync"
	"time"
)

// ActionSendMessage is the cooldown-limited chat send.
const ActionSendMessage = "send_message"

// Policy describes a token bucket: MaxTokens burst, refilled by RefillRate
// every RefillTime. A bucket of one token is a plain cooldown.
type Policy struct {
	MaxTokens  int
	RefillRate int
	RefillTime time.Duration
}

// Cooldown allows one action per interval.
func Cooldown(interval time.Duration) Policy {
	return Policy{MaxTokens: 1, RefillRate: 1, RefillTime: interval}
}

// TokenBucket represents a token bucket for rate limiting
type TokenBucket struct {
	tokens     int
	maxTokens  int
	refillRate int
	refillTime time.Duration
	lastRefill time.Time
	mutex      sync.Mutex
}

func NewTokenBucket(p Policy, now time.Time) *TokenBucket {
	return &TokenBucket{
		tokens:     p.MaxTokens,
		maxTokens:  p.MaxTokens,
		refillRate: p.RefillRate,
		refillTime: p.RefillTime,
		lastRefill: now,
	}
}

// refill tops the bucket up. A full bucket restarts its refill clock so the
// interval is measured from the first token taken.
func (tb *TokenBucket) refill(now time.Time) {
	if tb.tokens >= tb.maxTokens {
		tb.lastRefill = now
		return
	}

	intervals := int(now.Sub(tb.lastRefill) / tb.refillTime)
	if intervals <= 0 {
		return
	}

	tb.tokens += intervals * tb.refillRate
	tb.lastRefill = tb.lastRefill.Add(time.Duration(intervals) * tb.refillTime)
	if tb.tokens >= tb.maxTokens {
		tb.tokens = tb.maxTokens
		tb.lastRefill = now
	}
}

// Allow consumes a token if one is available, otherwise reports the wait.
func (tb *TokenBucket) Allow(now time.Time) (bool, time.Duration) {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	tb.refill(now)

	if tb.tokens > 0 {
		tb.tokens--
		return true, 0
	}

	return false, tb.lastRefill.Add(tb.refillTime).Sub(now)
}

// Refund returns a token taken by an action that did not happen.
func (tb *TokenBucket) Refund() {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()
	if tb.tokens < tb.maxTokens {
		tb.tokens++
	}
}

// RateLimiter keeps one bucket per key and action.
type RateLimiter struct {
	buckets  map[string]*TokenBucket
	policies map[string]Policy
	fallback Policy
	now      func() time.Time
	mutex    sync.RWMutex
}

type Option func(*RateLimiter)

func WithPolicy(action string, p Policy) Option {
	return func(rl *RateLimiter) {
		rl.policies[action] = p
	}
}

func WithClock(now func() time.Time) Option {
	return func(rl *RateLimiter) {
		rl.now = now
	}
}

func NewRateLimiter(opts ...Option) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*TokenBucket),
		policies: map[string]Policy{
			ActionSendMessage: Cooldown(2 * time.Second),
		},
		fallback: Policy{MaxTokens: 20, RefillRate: 1, RefillTime: 3 * time.Second},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(rl)
	}
	return rl
}

func (rl *RateLimiter) Allow(key, action string) (bool, time.Duration) {
	bucketKey := key + ":" + action

	rl.mutex.RLock()
	bucket, exists := rl.buckets[bucketKey]
	rl.mutex.RUnlock()

	if !exists {
		rl.mutex.Lock()
		if bucket, exists = rl.buckets[bucketKey]; !exists {
			policy, ok := rl.policies[action]
			if !ok {
				policy = rl.fallback
			}
			bucket = NewTokenBucket(policy, rl.now())
			rl.buckets[bucketKey] = bucket
		}
		rl.mutex.Unlock()
	}

	return bucket.Allow(rl.now())
}

// Refund gives back the token of an allowed action that then failed.
func (rl *RateLimiter) Refund(key, action string) {
	rl.mutex.RLock()
	bucket, exists := rl.buckets[key+":"+action]
	rl.mutex.RUnlock()

	if exists {
		bucket.Refund()
	}
}
