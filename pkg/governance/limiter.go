package governance

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter throttles vote attempts per user ahead of the vote gate.
type Limiter interface {
	// Allow reports whether userID may attempt another vote now.
	Allow(ctx context.Context, userID string) (bool, error)
}

// RatePolicy configures a per-user token bucket.
type RatePolicy struct {
	PerMinute int
	Burst     int
}

func (p RatePolicy) perSecond() float64 {
	r := float64(p.PerMinute) / 60.0
	if r <= 0 {
		r = 1
	}
	return r
}

func (p RatePolicy) burst() int {
	if p.Burst <= 0 {
		return 1
	}
	return p.Burst
}

// userBucket tracks a user's limiter and when it was last used.
type userBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter keeps one token bucket per user in process memory.
// Buckets idle for longer than the idle TTL are dropped on the next call.
type MemoryLimiter struct {
	mu      sync.Mutex
	policy  RatePolicy
	buckets map[string]*userBucket
	clock   func() time.Time
	idleTTL time.Duration
}

// NewMemoryLimiter creates an in-process limiter.
func NewMemoryLimiter(policy RatePolicy) *MemoryLimiter {
	return &MemoryLimiter{
		policy:  policy,
		buckets: make(map[string]*userBucket),
		clock:   time.Now,
		idleTTL: 10 * time.Minute,
	}
}

// WithClock overrides the limiter's clock.
func (l *MemoryLimiter) WithClock(clock func() time.Time) *MemoryLimiter {
	l.clock = clock
	return l
}

func (l *MemoryLimiter) Allow(_ context.Context, userID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	l.sweep(now)

	b, ok := l.buckets[userID]
	if !ok {
		b = &userBucket{limiter: rate.NewLimiter(rate.Limit(l.policy.perSecond()), l.policy.burst())}
		l.buckets[userID] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1), nil
}

func (l *MemoryLimiter) sweep(now time.Time) {
	for id, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.idleTTL {
			delete(l.buckets, id)
		}
	}
}

// Len returns the number of tracked users.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
