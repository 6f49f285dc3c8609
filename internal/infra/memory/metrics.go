package memory

import (
	"context"
	"sync"
	"time"
)

// Metrics is a process-local counter set.
type Metrics struct {
	mu     sync.Mutex
	counts map[string]int64
}

func NewMetrics() *Metrics {
	return &Metrics{counts: make(map[string]int64)}
}

func (m *Metrics) Incr(_ context.Context, name string) {
	m.mu.Lock()
	m.counts[name]++
	m.mu.Unlock()
}

func (m *Metrics) Snapshot(_ context.Context) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(m.counts))
	for k, v := range m.counts {
		out[k] = v
	}
	return out, nil
}

// RateLimiter allows limit hits per key in fixed windows.
type RateLimiter struct {
	limit  int
	window time.Duration
	clock  func() time.Time

	mu      sync.Mutex
	windows map[string]rateWindow
}

type rateWindow struct {
	start time.Time
	count int
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{limit: limit, window: window, clock: time.Now, windows: make(map[string]rateWindow)}
}

func (l *RateLimiter) Allow(_ context.Context, key string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock()
	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.window {
		for k, old := range l.windows {
			if now.Sub(old.start) >= l.window {
				delete(l.windows, k)
			}
		}
		w = rateWindow{start: now}
	}
	w.count++
	l.windows[key] = w
	return w.count <= l.limit, nil
}
