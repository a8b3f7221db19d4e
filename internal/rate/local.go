package rate

import (
	"context"
	"sync"
	"time"

	xrate "golang.org/x/time/rate"
)

const localIdleTTL = 2 * time.Hour

type localEntry struct {
	limiter  *xrate.Limiter
	lastSeen time.Time
}

// LocalLimiter is a per-key token bucket refilling Limit tokens per Window.
// Idle keys are pruned lazily.
type LocalLimiter struct {
	policy Policy
	now    func() time.Time

	mu        sync.Mutex
	entries   map[string]*localEntry
	lastPrune time.Time
}

// NewLocal creates a [LocalLimiter]. now may be nil.
func NewLocal(p Policy, now func() time.Time) *LocalLimiter {
	if now == nil {
		now = time.Now
	}
	return &LocalLimiter{
		policy:  p,
		now:     now,
		entries: make(map[string]*localEntry),
	}
}

func (l *LocalLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune(now)

	e, ok := l.entries[key]
	if !ok {
		every := l.policy.Window / time.Duration(l.policy.Limit)
		e = &localEntry{limiter: xrate.NewLimiter(xrate.Every(every), l.policy.Limit)}
		l.entries[key] = e
	}
	e.lastSeen = now

	d := Decision{Limit: l.policy.Limit}
	r := e.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		d.RetryAfter = delay
		return d, nil
	}

	d.Allowed = true
	d.Remaining = int(e.limiter.TokensAt(now))
	return d, nil
}

func (l *LocalLimiter) prune(now time.Time) {
	if now.Sub(l.lastPrune) < time.Minute {
		return
	}
	l.lastPrune = now
	for k, e := range l.entries {
		if now.Sub(e.lastSeen) > localIdleTTL {
			delete(l.entries, k)
		}
	}
}
