// Package quota implements the narrow Quota capability used at the ingest
// and trigger_run entry points: a per-workspace token bucket that bounds
// how often a tenant can kick off expensive background work.
package quota

import (
	"sync"

	"golang.org/x/time/rate"
)

// Checker is the capability the Control API depends on. It is deliberately
// narrow so request handlers don't take a dependency on the token-bucket
// implementation directly.
type Checker interface {
	// Allow reports whether workspaceID may proceed right now, consuming
	// one token from its bucket if so.
	Allow(workspaceID string) bool
}

// Limiter is the default in-process Checker: one rate.Limiter per
// workspace, created lazily on first use.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	burst    int
	refill   rate.Limit
}

// New creates a Limiter. burstSize is the bucket capacity; refillPerSecond
// is the sustained rate at which tokens are replenished.
func New(burstSize int, refillPerSecond float64) *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		burst:    burstSize,
		refill:   rate.Limit(refillPerSecond),
	}
}

// Allow reports whether workspaceID has quota remaining, consuming a token
// if so.
func (l *Limiter) Allow(workspaceID string) bool {
	return l.limiterFor(workspaceID).Allow()
}

func (l *Limiter) limiterFor(workspaceID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[workspaceID]
	if !ok {
		lim = rate.NewLimiter(l.refill, l.burst)
		l.limiters[workspaceID] = lim
	}
	return lim
}

// Unlimited is a Checker that always allows the request, used when quota
// enforcement is disabled entirely.
type Unlimited struct{}

// Allow always returns true.
func (Unlimited) Allow(string) bool { return true }
