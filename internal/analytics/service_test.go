package analytics

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ayeshadev283/bookrag/internal/config"
	"github.com/ayeshadev283/bookrag/internal/models"
)

func newTestService() *Service {
	return New(nil, config.AnalyticsConfig{
		CacheTTL:      time.Hour,
		MaxCacheSize:  5,
		EvictionCount: 2,
	}, zap.NewNop())
}

func TestCacheKeyStableForSameInputs(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)

	a := cacheKey(start, end, "book-1")
	b := cacheKey(start, end, "book-1")
	if a != b {
		t.Errorf("expected identical cache keys, got %q and %q", a, b)
	}
}

func TestCacheKeyDiffersByBook(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)

	a := cacheKey(start, end, "book-1")
	b := cacheKey(start, end, "book-2")
	if a == b {
		t.Error("expected different cache keys for different books")
	}
}

func TestCacheKeyTreatsEmptyBookAsAll(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)

	if cacheKey(start, end, "") != cacheKey(start, end, "all") {
		t.Error("expected empty book id to hash the same as the literal 'all'")
	}
}

func TestSummaryServesFromCacheWithoutTouchingDB(t *testing.T) {
	s := newTestService()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)

	want := models.AnalyticsSummary{TotalQueries: 42, BookID: "book-1"}
	s.cache[cacheKey(start, end, "book-1")] = cacheEntry{summary: want, cachedAt: time.Now()}

	got, err := s.Summary(context.Background(), start, end, "book-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.TotalQueries != 42 {
		t.Errorf("expected cached summary to be returned, got %+v", got)
	}
}

func TestEvictOldestLockedRemovesOldestEntries(t *testing.T) {
	s := newTestService()
	now := time.Now()
	for i := 0; i < 5; i++ {
		s.cache[string(rune('a'+i))] = cacheEntry{cachedAt: now.Add(time.Duration(i) * time.Minute)}
	}

	s.mu.Lock()
	s.evictOldestLocked()
	s.mu.Unlock()

	if len(s.cache) != 3 {
		t.Fatalf("expected 3 entries to remain after evicting 2, got %d", len(s.cache))
	}
	if _, ok := s.cache["a"]; ok {
		t.Error("expected the oldest entry to be evicted")
	}
	if _, ok := s.cache["e"]; !ok {
		t.Error("expected the newest entry to survive eviction")
	}
}
