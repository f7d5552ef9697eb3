package notification

import (
	"sync"
	"time"

	"github.com/Veraticus/awakeguard/pkg/interfaces"
)

// TokenBucket allows up to capacity notifications per window. Tokens come
// back one at a time, evenly spread over the window, so a burst of toggles
// drains the bucket and later toggles trickle through.
type TokenBucket struct {
	mu         sync.Mutex
	capacity   int
	tokens     int
	perToken   time.Duration
	lastRefill time.Time
	now        func() time.Time
}

// NewTokenBucket creates a full bucket. A non-positive capacity denies
// everything; a non-positive window never refills.
func NewTokenBucket(capacity int, window time.Duration) *TokenBucket {
	if capacity < 0 {
		capacity = 0
	}
	var perToken time.Duration
	if capacity > 0 && window > 0 {
		perToken = window / time.Duration(capacity)
		if perToken <= 0 {
			perToken = time.Nanosecond
		}
	}
	tb := &TokenBucket{
		capacity: capacity,
		tokens:   capacity,
		perToken: perToken,
		now:      time.Now,
	}
	tb.lastRefill = tb.now()
	return tb
}

// Allow consumes a token if one is available
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// Tokens returns the tokens currently available
func (tb *TokenBucket) Tokens() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()
	return tb.tokens
}

// Reset refills the bucket
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens = tb.capacity
	tb.lastRefill = tb.now()
}

// refillLocked adds whole tokens for the time since the last refill and
// carries the remainder forward.
func (tb *TokenBucket) refillLocked() {
	if tb.perToken <= 0 {
		return
	}
	now := tb.now()
	earned := int(now.Sub(tb.lastRefill) / tb.perToken)
	if earned <= 0 {
		return
	}
	if tb.tokens+earned >= tb.capacity {
		tb.tokens = tb.capacity
		tb.lastRefill = now
		return
	}
	tb.tokens += earned
	tb.lastRefill = tb.lastRefill.Add(time.Duration(earned) * tb.perToken)
}

// Ensure TokenBucket implements RateLimiter
var _ interfaces.RateLimiter = (*TokenBucket)(nil)
