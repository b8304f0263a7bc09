// Package ratelimit provides per-identity fixed-window counters for abuse
// protection on public write endpoints.
package ratelimit

import (
	"sync"
	"time"
)

// Limit describes one fixed window: at most Count events per Window.
type Limit struct {
	Count  int
	Window time.Duration
}

type window struct {
	start time.Time
	count int
}

// Limiter tracks independent fixed windows per identity string. An identity is
// whatever the caller uses to bucket requests (viewer id, remote address).
// Windows reset fully once their duration elapses; there is no sliding.
type Limiter struct {
	mu      sync.Mutex
	limit   Limit
	windows map[string]*window
	now     func() time.Time
}

// New creates a limiter enforcing the given limit.
func New(limit Limit) *Limiter {
	return &Limiter{
		limit:   limit,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Allow reports whether the identity may perform one more event in the current
// window, counting it if so. The first rejected call does not extend the
// window.
func (l *Limiter) Allow(identity string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[identity]
	if !ok || now.Sub(w.start) >= l.limit.Window {
		l.windows[identity] = &window{start: now, count: 1}
		return true
	}
	if w.count >= l.limit.Count {
		return false
	}
	w.count++
	return true
}

// Prune drops windows that ended before now. Called periodically so the map
// does not grow with every identity ever seen.
func (l *Limiter) Prune() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for id, w := range l.windows {
		if now.Sub(w.start) >= l.limit.Window {
			delete(l.windows, id)
		}
	}
}
