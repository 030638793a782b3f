// Package analytics computes the dashboard summary served by
// GET /v1/analytics/summary: query volume, latency percentiles, feedback
// rates, average confidence, and top question topics over a time window.
package analytics

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ayeshadev283/bookrag/internal/config"
	"github.com/ayeshadev283/bookrag/internal/db"
	"github.com/ayeshadev283/bookrag/internal/models"
)

// minutesPerQuery estimates average teacher intervention time saved by each
// answered query, used for the estimated_minutes_saved figure.
const minutesPerQuery = 2.5

const topTopicsN = 10

type cacheEntry struct {
	summary  models.AnalyticsSummary
	cachedAt time.Time
}

// Service computes and caches analytics summaries.
type Service struct {
	db  *db.Client
	cfg config.AnalyticsConfig
	log *zap.Logger

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// New builds an analytics Service backed by the Postgres client.
func New(dbClient *db.Client, cfg config.AnalyticsConfig, log *zap.Logger) *Service {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.MaxCacheSize <= 0 {
		cfg.MaxCacheSize = 1000
	}
	if cfg.EvictionCount <= 0 {
		cfg.EvictionCount = 100
	}
	return &Service{db: dbClient, cfg: cfg, log: log, cache: make(map[string]cacheEntry)}
}

// Summary returns the analytics summary for [start, end], optionally scoped
// to bookID, serving from cache when a fresh entry exists.
func (s *Service) Summary(ctx context.Context, start, end time.Time, bookID string) (models.AnalyticsSummary, error) {
	key := cacheKey(start, end, bookID)

	s.mu.Lock()
	if entry, ok := s.cache[key]; ok && time.Since(entry.cachedAt) < s.cfg.CacheTTL {
		s.mu.Unlock()
		return entry.summary, nil
	}
	s.mu.Unlock()

	summary, err := s.compute(ctx, start, end, bookID)
	if err != nil {
		return models.AnalyticsSummary{}, err
	}

	s.mu.Lock()
	s.cache[key] = cacheEntry{summary: summary, cachedAt: time.Now()}
	if len(s.cache) > s.cfg.MaxCacheSize {
		s.evictOldestLocked()
	}
	s.mu.Unlock()

	return summary, nil
}

// compute fans the five sub-aggregations out concurrently and joins them
// before building the summary, mirroring the original asyncio.gather call.
func (s *Service) compute(ctx context.Context, start, end time.Time, bookID string) (models.AnalyticsSummary, error) {
	var (
		queryCount db.QueryCount
		latency    db.LatencyPercentiles
		feedback   db.FeedbackRates
		confidence float64
		topics     []models.TopicCount
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		queryCount, err = s.db.CountQueries(gctx, start, end, bookID)
		return err
	})
	g.Go(func() (err error) {
		latency, err = s.db.LatencyPercentilesFor(gctx, start, end, bookID)
		return err
	})
	g.Go(func() (err error) {
		feedback, err = s.db.FeedbackRateFor(gctx, start, end, bookID)
		return err
	})
	g.Go(func() (err error) {
		confidence, err = s.db.AverageConfidenceFor(gctx, start, end, bookID)
		return err
	})
	g.Go(func() error {
		texts, err := s.db.QueryTextsFor(gctx, start, end, bookID)
		if err != nil {
			return err
		}
		topics = TopTopics(texts, topTopicsN)
		return nil
	})

	if err := g.Wait(); err != nil {
		return models.AnalyticsSummary{}, fmt.Errorf("analytics: computation failed: %w", err)
	}

	positiveRate := 0.0
	if feedback.PositiveFeedbackRate != nil {
		positiveRate = *feedback.PositiveFeedbackRate
	}

	return models.AnalyticsSummary{
		StartDate:             start,
		EndDate:               end,
		BookID:                bookID,
		TotalQueries:          queryCount.TotalQueries,
		UniqueUsers:           queryCount.UniqueUsers,
		LatencyP50Ms:          latency.P50,
		LatencyP95Ms:          latency.P95,
		LatencyP99Ms:          latency.P99,
		FeedbackRate:          feedback.FeedbackRate,
		PositiveFeedbackRate:  positiveRate,
		AverageConfidence:     confidence,
		EstimatedMinutesSaved: float64(queryCount.TotalQueries) * minutesPerQuery,
		TopTopics:             topics,
	}, nil
}

// evictOldestLocked drops the cfg.EvictionCount oldest cache entries. Caller
// must hold s.mu.
func (s *Service) evictOldestLocked() {
	type keyedEntry struct {
		key      string
		cachedAt time.Time
	}
	entries := make([]keyedEntry, 0, len(s.cache))
	for k, v := range s.cache {
		entries = append(entries, keyedEntry{key: k, cachedAt: v.cachedAt})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].cachedAt.Before(entries[j].cachedAt) })

	n := s.cfg.EvictionCount
	if n > len(entries) {
		n = len(entries)
	}
	for i := 0; i < n; i++ {
		delete(s.cache, entries[i].key)
	}
}

// cacheKey mirrors the original implementation's MD5-hashed cache key over
// the ISO-8601 date range and book filter.
func cacheKey(start, end time.Time, bookID string) string {
	id := bookID
	if id == "" {
		id = "all"
	}
	raw := start.UTC().Format(time.RFC3339) + "|" + end.UTC().Format(time.RFC3339) + "|" + id
	sum := md5.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}
