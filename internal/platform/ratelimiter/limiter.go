// Package ratelimiter throttles callers with one token bucket per key.
package ratelimiter

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const defaultIdleTTL = 10 * time.Minute

// Policy sets the sustained rate, the burst, and how long an unused bucket
// is kept before it is forgotten.
type Policy struct {
	RPS     float64
	Burst   int
	IdleTTL time.Duration
}

// Enabled reports whether the policy limits anything.
func (p Policy) Enabled() bool {
	return p.RPS > 0 && p.Burst > 0
}

// Decision is the outcome of one Reserve call.
type Decision struct {
	Allowed bool
	// RetryAfter is how long the key must wait for its next token. Zero when
	// Allowed.
	RetryAfter time.Duration
}

// Limiter applies a Policy per string key. A nil Limiter allows everything.
type Limiter struct {
	policy    Policy
	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	tokens *rate.Limiter
	usedAt time.Time
}

// New returns a Limiter for policy, or nil when the policy is disabled.
func New(policy Policy) *Limiter {
	if !policy.Enabled() {
		return nil
	}
	if policy.IdleTTL <= 0 {
		policy.IdleTTL = defaultIdleTTL
	}
	return &Limiter{
		policy:  policy,
		buckets: make(map[string]*bucket),
	}
}

// Reserve takes one token for key at now. A denied call consumes nothing.
// Blank keys are never limited.
func (l *Limiter) Reserve(key string, now time.Time) Decision {
	if l == nil {
		return Decision{Allowed: true}
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return Decision{Allowed: true}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweepLocked(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: rate.NewLimiter(rate.Limit(l.policy.RPS), l.policy.Burst)}
		l.buckets[key] = b
	}
	b.usedAt = now

	reservation := b.tokens.ReserveN(now, 1)
	if !reservation.OK() {
		return Decision{}
	}
	delay := reservation.DelayFrom(now)
	if delay > 0 {
		reservation.CancelAt(now)
		return Decision{RetryAfter: delay}
	}
	return Decision{Allowed: true}
}

// Allow reports whether key may proceed at now.
func (l *Limiter) Allow(key string, now time.Time) bool {
	return l.Reserve(key, now).Allowed
}

// Tracked returns the number of live buckets.
func (l *Limiter) Tracked() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// sweepLocked drops buckets idle for longer than the policy allows, at most
// once per IdleTTL.
func (l *Limiter) sweepLocked(now time.Time) {
	if l.lastSweep.IsZero() {
		l.lastSweep = now
		return
	}
	if now.Sub(l.lastSweep) < l.policy.IdleTTL {
		return
	}
	l.lastSweep = now
	cutoff := now.Add(-l.policy.IdleTTL)
	for key, b := range l.buckets {
		if b.usedAt.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}
