package httpapi

import (
	"sync"
	"time"
)

// loginLimiter throttles the credential endpoints (/v1/auth/login by client
// ip and by email, /v1/auth/recovery by client ip) with a sliding window per
// key. Counters live in memory; a restart resets them, which is acceptable
// for brute-force protection.
type loginLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	max     int
	entries map[string][]time.Time
}

func newLoginLimiter() *loginLimiter {
	return &loginLimiter{
		window:  5 * time.Minute,
		max:     10,
		entries: make(map[string][]time.Time),
	}
}

func (l *loginLimiter) Allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-l.window)
	ts := l.entries[key]

	kept := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	ts = kept
	if len(ts) >= l.max {
		l.entries[key] = ts
		return false
	}

	ts = append(ts, now)
	l.entries[key] = ts
	return true
}
