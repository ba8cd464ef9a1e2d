// ABOUTME: In-process fixed-window rate limiter for single-instance deployments
// ABOUTME: Mutex-guarded counters with a background sweep of stale windows

package ratelimit

import (
	"context"
	"sync"
	"time"
)

// windowEntry tracks one scope's count within the current window.
type windowEntry struct {
	start time.Time
	count int
}

// MemoryLimiter is a thread-safe fixed-window limiter. A background
// goroutine periodically drops windows that have rolled over so the map
// does not grow with dead scope keys.
type MemoryLimiter struct {
	mu      sync.Mutex
	entries map[string]*windowEntry
	limit   int
	window  time.Duration
	done    chan struct{}
	closed  bool
}

// NewMemoryLimiter creates a limiter allowing limit calls per key per
// window. A non-positive window falls back to DefaultWindow.
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	if window <= 0 {
		window = DefaultWindow
	}
	l := &MemoryLimiter{
		entries: make(map[string]*windowEntry),
		limit:   limit,
		window:  window,
		done:    make(chan struct{}),
	}
	go l.cleanup()
	return l
}

// Allow consumes one unit for key, or returns ErrLimited.
func (l *MemoryLimiter) Allow(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	entry, ok := l.entries[key]
	if !ok || now.Sub(entry.start) >= l.window {
		l.entries[key] = &windowEntry{start: now, count: 1}
		if l.limit < 1 {
			return ErrLimited
		}
		return nil
	}

	entry.count++
	if entry.count > l.limit {
		return ErrLimited
	}
	return nil
}

// cleanup runs in a background goroutine, periodically removing expired windows.
func (l *MemoryLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.runCleanup()
		case <-l.done:
			return
		}
	}
}

func (l *MemoryLimiter) runCleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for key, entry := range l.entries {
		if now.Sub(entry.start) >= l.window {
			delete(l.entries, key)
		}
	}
}

// Close stops the background cleanup goroutine. It is safe to call multiple times.
func (l *MemoryLimiter) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.closed {
		close(l.done)
		l.closed = true
	}
	return nil
}

var _ Limiter = (*MemoryLimiter)(nil)
