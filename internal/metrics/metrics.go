package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Query pipeline metrics
	QueriesSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookrag_queries_submitted_total",
			Help: "Total number of queries submitted",
		},
		[]string{"mode"},
	)

	QueryLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bookrag_query_latency_seconds",
			Help:    "End-to-end query latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode", "refused"},
	)

	QueriesRefused = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookrag_queries_refused_total",
			Help: "Total number of queries that were refused",
		},
		[]string{"reason"},
	)

	QueryConfidence = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bookrag_query_confidence",
			Help:    "Confidence score distribution for answered queries",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	// Vector DB metrics
	VectorSearches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookrag_vector_search_total",
			Help: "Total number of vector searches",
		},
		[]string{"collection", "status"},
	)

	VectorSearchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bookrag_vector_search_latency_seconds",
			Help:    "Vector search latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collection"},
	)

	// Embedding metrics
	EmbeddingRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookrag_embedding_requests_total",
			Help: "Total number of embedding requests",
		},
		[]string{"model", "status"},
	)

	EmbeddingLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bookrag_embedding_latency_seconds",
			Help:    "Embedding generation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model"},
	)

	// Generator metrics
	GenerationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookrag_generation_requests_total",
			Help: "Total number of LLM generation requests",
		},
		[]string{"status"},
	)

	GenerationLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bookrag_generation_latency_seconds",
			Help:    "LLM generation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	GenerationRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookrag_generation_retries_total",
			Help: "Total number of LLM generation retry attempts",
		},
	)

	// Rate limiter metrics
	RateLimitRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookrag_rate_limit_rejections_total",
			Help: "Total number of requests rejected by the per-user sliding window",
		},
	)

	RateLimitActiveUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bookrag_rate_limit_active_users",
			Help: "Number of users currently tracked by the rate limiter",
		},
	)

	// Audit writer metrics
	AuditWritesQueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookrag_audit_writes_queued_total",
			Help: "Total number of audit records enqueued for async write",
		},
		[]string{"table"},
	)

	AuditWriteErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookrag_audit_write_errors_total",
			Help: "Total number of audit writes that failed",
		},
		[]string{"table"},
	)

	// Analytics metrics
	AnalyticsCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookrag_analytics_cache_hits_total",
			Help: "Total number of analytics summary cache hits",
		},
	)

	AnalyticsCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookrag_analytics_cache_misses_total",
			Help: "Total number of analytics summary cache misses",
		},
	)
)

// RecordVectorSearchMetrics records vector search metrics
func RecordVectorSearchMetrics(collection, status string, durationSeconds float64) {
	VectorSearches.WithLabelValues(collection, status).Inc()
	if durationSeconds > 0 {
		VectorSearchLatency.WithLabelValues(collection).Observe(durationSeconds)
	}
}

// RecordEmbeddingMetrics records embedding metrics
func RecordEmbeddingMetrics(model, status string, durationSeconds float64) {
	EmbeddingRequests.WithLabelValues(model, status).Inc()
	if durationSeconds > 0 {
		EmbeddingLatency.WithLabelValues(model).Observe(durationSeconds)
	}
}

// RecordGenerationMetrics records metrics for a single LLM generation call
func RecordGenerationMetrics(status string, durationSeconds float64, retries int) {
	GenerationRequests.WithLabelValues(status).Inc()
	if durationSeconds > 0 {
		GenerationLatency.Observe(durationSeconds)
	}
	if retries > 0 {
		GenerationRetries.Add(float64(retries))
	}
}

// RecordQueryMetrics records metrics for a completed query pipeline run
func RecordQueryMetrics(mode string, refused bool, durationSeconds float64, confidence float64) {
	QueriesSubmitted.WithLabelValues(mode).Inc()
	QueryLatency.WithLabelValues(mode, boolLabel(refused)).Observe(durationSeconds)
	if !refused {
		QueryConfidence.Observe(confidence)
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
