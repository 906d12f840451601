package ratelimit

import (
	"log"
	"sync"
	"time"
)

// Decision is the outcome of one rate-limit check.
type Decision struct {
	Allowed    bool
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

type entry struct {
	count       int
	limit       int
	windowStart time.Time
	resetAt     time.Time
}

// Limiter is a fixed-window request governor keyed by (route, client).
// State is process-scoped and lost on restart; the guarantee is best-effort
// abuse mitigation, not correctness.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	verbose bool
	now     func() time.Time
}

// NewLimiter creates a new in-memory limiter.
func NewLimiter(verbose bool) *Limiter {
	return &Limiter{
		entries: make(map[string]*entry),
		verbose: verbose,
		now:     time.Now,
	}
}

// Check applies the fixed-window algorithm for the given key. It never
// fails; it can only deny. The read-check-increment sequence runs under the
// lock so concurrent callers on the same key cannot overshoot the limit.
func (l *Limiter) Check(route, clientID string, limit int, window time.Duration) Decision {
	key := route + "|" + clientID
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, exists := l.entries[key]
	if !exists || !now.Before(e.resetAt) {
		// Expired windows are replaced, never incremented.
		e = &entry{
			limit:       limit,
			windowStart: now,
			resetAt:     now.Add(window),
		}
		l.entries[key] = e
	}

	if e.count < e.limit {
		e.count++
		return Decision{
			Allowed:   true,
			Remaining: e.limit - e.count,
			ResetAt:   e.resetAt,
		}
	}

	if l.verbose {
		log.Printf("[RATELIMIT] Denied %s (limit %d per %v)", key, limit, window)
	}

	return Decision{
		Allowed:    false,
		Remaining:  0,
		ResetAt:    e.resetAt,
		RetryAfter: e.resetAt.Sub(now),
	}
}

// Sweep removes expired entries to bound memory.
func (l *Limiter) Sweep() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, e := range l.entries {
		if !now.Before(e.resetAt) {
			delete(l.entries, key)
			removed++
		}
	}

	if l.verbose && removed > 0 {
		log.Printf("[RATELIMIT] Sweep removed %d expired windows", removed)
	}

	return removed
}

// Clear drops all state. Intended for tests.
func (l *Limiter) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[string]*entry)
}

// StartSweepRoutine starts a background routine that sweeps expired windows.
func (l *Limiter) StartSweepRoutine(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for range ticker.C {
			l.Sweep()
		}
	}()
}

// SetClock overrides the time source. Intended for tests.
func (l *Limiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}
