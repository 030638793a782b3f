package httpapi

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ayeshadev283/bookrag/internal/analytics"
	"github.com/ayeshadev283/bookrag/internal/db"
	"github.com/ayeshadev283/bookrag/internal/health"
	"github.com/ayeshadev283/bookrag/internal/orchestrator"
	"github.com/ayeshadev283/bookrag/internal/tracing"
)

// NewRouter assembles the full HTTP surface: query, feedback, and analytics
// endpoints plus the health manager's own routes. The query, feedback and
// analytics routes are wrapped in a tracing span and a panic-recovery guard;
// the health routes are registered as the health handler provides them,
// without that wrapper.
func NewRouter(pipeline *orchestrator.Pipeline, store *db.Client, analyticsSvc *analytics.Service, healthMgr *health.Manager, log *zap.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	queryHandler := NewQueryHandler(pipeline, log)
	feedbackHandler := NewFeedbackHandler(store, log)
	analyticsHandler := NewAnalyticsHandler(analyticsSvc, log)

	mux.Handle("POST /v1/query", withMiddleware("query", log, http.HandlerFunc(queryHandler.Submit)))
	mux.Handle("POST /v1/feedback", withMiddleware("feedback", log, http.HandlerFunc(feedbackHandler.Submit)))
	mux.Handle("GET /v1/analytics/summary", withMiddleware("analytics_summary", log, http.HandlerFunc(analyticsHandler.Summary)))

	health.NewHTTPHandler(healthMgr, log).RegisterRoutes(mux)

	return mux
}

// withMiddleware wraps a handler with a tracing span and panic recovery, the
// bare minimum cross-cutting chain every route in this module needs. There
// is no per-route auth or idempotency layer since this surface has no
// authenticated principal.
func withMiddleware(spanName string, log *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, span := tracing.StartSpan(r.Context(), "http."+spanName)
		defer span.End()

		defer func() {
			if rec := recover(); rec != nil {
				log.Error("handler panicked", zap.Any("recover", rec), zap.String("route", spanName))
				sendError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred while processing your request.")
			}
		}()

		next.ServeHTTP(w, r.WithContext(ctx))

		log.Debug("request handled", zap.String("route", spanName), zap.Duration("duration", time.Since(start)))
	})
}
