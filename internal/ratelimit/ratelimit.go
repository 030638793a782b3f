// Package ratelimit enforces a per-user sliding-window query cap, backed by
// an in-memory map-plus-mutex store, with an optional secondary
// rate.Limiter that smooths bursts before they reach the generator.
package ratelimit

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ayeshadev283/bookrag/internal/config"
)

// window tracks one user's recent request timestamps.
type window struct {
	timestamps []time.Time
	lastSeen   time.Time
}

// Limiter enforces a sliding-window request cap per user, with an optional
// per-process token bucket that smooths bursts into the generator.
type Limiter struct {
	cfg config.RateLimitConfig
	log *zap.Logger

	mu       sync.Mutex
	windows  map[string]*window
	smoother *rate.Limiter

	stopCh chan struct{}
}

// New builds a Limiter from the process's rate-limit configuration. When
// cfg.Enabled is false, Allow always succeeds.
func New(cfg config.RateLimitConfig, log *zap.Logger) *Limiter {
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = 60
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Hour
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 10 * time.Minute
	}

	l := &Limiter{
		cfg:     cfg,
		log:     log,
		windows: make(map[string]*window),
		// Secondary smoothing bucket: same nominal rate spread evenly across
		// the window, with a small burst allowance so a handful of requests
		// arriving together don't trip the generator's circuit breaker.
		smoother: rate.NewLimiter(rate.Limit(float64(cfg.MaxRequests)/cfg.Window.Seconds()), maxInt(cfg.MaxRequests/10, 1)),
		stopCh:   make(chan struct{}),
	}

	go l.evictLoop()
	return l
}

// Allow reports whether userID may make another request right now, recording
// the attempt if so. The sliding window is the primary gate; it rejects a
// request purely on total count within cfg.Window regardless of what the
// secondary smoother would have allowed.
func (l *Limiter) Allow(userID string) bool {
	if !l.cfg.Enabled {
		return true
	}
	return l.allowWithMax(userID, l.cfg.MaxRequests)
}

// allowWithMax is Allow parameterized by request cap, letting
// AllowForTier apply a per-call override without mutating shared config.
func (l *Limiter) allowWithMax(userID string, max int) bool {
	now := time.Now()

	l.mu.Lock()
	w, ok := l.windows[userID]
	if !ok {
		w = &window{}
		l.windows[userID] = w
	}
	cutoff := now.Add(-l.cfg.Window)
	w.timestamps = pruneBefore(w.timestamps, cutoff)
	w.lastSeen = now

	if len(w.timestamps) >= max {
		l.mu.Unlock()
		return false
	}
	w.timestamps = append(w.timestamps, now)
	l.mu.Unlock()

	return true
}

// WaitGeneratorSlot blocks until the secondary smoother admits another call
// into the generator, or ctx is done. It never rejects outright — only
// delays — since the per-user window already enforces the hard cap.
func (l *Limiter) WaitGeneratorSlot(ctxDone <-chan struct{}) {
	r := l.smoother.Reserve()
	if !r.OK() {
		return
	}
	delay := r.Delay()
	if delay <= 0 {
		return
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctxDone:
		r.Cancel()
	}
}

// Close stops the background eviction loop.
func (l *Limiter) Close() {
	close(l.stopCh)
}

func (l *Limiter) evictLoop() {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.evictIdle()
		case <-l.stopCh:
			return
		}
	}
}

// evictIdle drops user entries that are empty or haven't been touched in
// over two window durations, bounding memory growth for long-lived
// processes with many distinct users.
func (l *Limiter) evictIdle() {
	cutoff := time.Now().Add(-2 * l.cfg.Window)
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, w := range l.windows {
		if len(w.timestamps) == 0 || w.lastSeen.Before(cutoff) {
			delete(l.windows, id)
		}
	}
}

func pruneBefore(timestamps []time.Time, cutoff time.Time) []time.Time {
	kept := timestamps[:0]
	for _, t := range timestamps {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
