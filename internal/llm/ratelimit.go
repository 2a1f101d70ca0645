package llm

import (
	"sync"
	"time"
)

// rateLimiter tracks per-provider request counts against a fixed
// one-minute window. A provider with no configured rate is never limited.
type rateLimiter struct {
	mu      sync.Mutex
	windows map[string]*rateWindow
}

type rateWindow struct {
	start time.Time
	count int
}

func newRateLimiter() *rateLimiter {
	return &rateLimiter{windows: make(map[string]*rateWindow)}
}

func (l *rateLimiter) allow(name string, perMinute int, now time.Time) bool {
	if perMinute <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	window, ok := l.windows[name]
	if !ok || now.Sub(window.start) >= time.Minute {
		l.windows[name] = &rateWindow{start: now, count: 1}
		return true
	}
	if window.count >= perMinute {
		return false
	}
	window.count++
	return true
}
