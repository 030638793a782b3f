package ratelimit

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ayeshadev283/bookrag/internal/config"
)

func newTestLimiter(max int) *Limiter {
	l := New(config.RateLimitConfig{
		Enabled:         true,
		MaxRequests:     max,
		Window:          time.Hour,
		CleanupInterval: time.Hour,
	}, zap.NewNop())
	return l
}

func TestAllowWithinLimit(t *testing.T) {
	l := newTestLimiter(3)
	defer l.Close()

	for i := 0; i < 3; i++ {
		if !l.Allow("user-1") {
			t.Fatalf("expected request %d to be allowed", i)
		}
	}
	if l.Allow("user-1") {
		t.Error("expected 4th request to be rejected")
	}
}

func TestAllowIsPerUser(t *testing.T) {
	l := newTestLimiter(1)
	defer l.Close()

	if !l.Allow("user-a") {
		t.Error("expected user-a's first request to be allowed")
	}
	if !l.Allow("user-b") {
		t.Error("expected user-b's first request to be allowed independently")
	}
	if l.Allow("user-a") {
		t.Error("expected user-a's second request to be rejected")
	}
}

func TestDisabledLimiterAlwaysAllows(t *testing.T) {
	l := New(config.RateLimitConfig{Enabled: false}, zap.NewNop())
	defer l.Close()

	for i := 0; i < 100; i++ {
		if !l.Allow("user-1") {
			t.Fatal("disabled limiter should never reject")
		}
	}
}

func TestEvictIdleRemovesStaleEntries(t *testing.T) {
	l := newTestLimiter(5)
	defer l.Close()

	l.Allow("user-1")
	l.mu.Lock()
	l.windows["user-1"].lastSeen = time.Now().Add(-3 * time.Hour)
	l.mu.Unlock()

	l.evictIdle()

	l.mu.Lock()
	_, exists := l.windows["user-1"]
	l.mu.Unlock()
	if exists {
		t.Error("expected idle user entry to be evicted")
	}
}
