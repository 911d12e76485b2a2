// Package ratelimit implements the per-(userId, event) token-bucket table
// from §5: each inbound event kind has its own bucket per user, refilled
// continuously rather than in fixed windows.
package ratelimit

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Rate describes a token bucket: capacity tokens, refilled at rate per
// Per duration.
type Rate struct {
	Capacity float64
	Per      time.Duration
}

// perSecond returns the bucket's continuous refill rate.
func (r Rate) perSecond() float64 {
	if r.Per <= 0 {
		return 0
	}
	return r.Capacity / r.Per.Seconds()
}

// Limits maps an inbound event name to its rate.
type Limits map[string]Rate

// DefaultLimits implements the table in §5.
func DefaultLimits() Limits {
	return Limits{
		"movePlayer":   {Capacity: 60, Per: time.Second},
		"teleport":     {Capacity: 2, Per: time.Second},
		"changedSkin":  {Capacity: 1, Per: time.Second},
		"sendMessage":  {Capacity: 10, Per: time.Minute},
		"joinRealm":    {Capacity: 5, Per: time.Minute},
	}
}

type bucketKey struct {
	userID uuid.UUID
	event  string
}

type bucket struct {
	tokens float64
	last   time.Time
}

// Limiter enforces DefaultLimits (or a custom table) per (userId, event).
type Limiter struct {
	mu      sync.Mutex
	limits  Limits
	buckets map[bucketKey]*bucket
	now     func() time.Time
}

// New constructs a Limiter. A nil limits table uses DefaultLimits.
func New(limits Limits) *Limiter {
	if limits == nil {
		limits = DefaultLimits()
	}
	return &Limiter{
		limits:  limits,
		buckets: make(map[bucketKey]*bucket),
		now:     time.Now,
	}
}

// Allow reports whether userID may perform event now, consuming one token
// if so. Events with no configured rate are always allowed.
func (l *Limiter) Allow(userID uuid.UUID, event string) bool {
	rate, limited := l.limits[event]
	if !limited {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := bucketKey{userID: userID, event: event}
	b, ok := l.buckets[key]
	now := l.now()
	if !ok {
		b = &bucket{tokens: rate.Capacity, last: now}
		l.buckets[key] = b
	} else {
		elapsed := now.Sub(b.last).Seconds()
		if elapsed > 0 {
			b.tokens += elapsed * rate.perSecond()
			if b.tokens > rate.Capacity {
				b.tokens = rate.Capacity
			}
			b.last = now
		}
	}

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Forget releases the buckets for a user, called on disconnect to bound
// memory use across the lifetime of a long-running server.
func (l *Limiter) Forget(userID uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key := range l.buckets {
		if key.userID == userID {
			delete(l.buckets, key)
		}
	}
}
