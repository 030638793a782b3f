package httpapi

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ayeshadev283/bookrag/internal/analytics"
)

// AnalyticsHandler serves GET /v1/analytics/summary.
type AnalyticsHandler struct {
	svc *analytics.Service
	log *zap.Logger
}

// NewAnalyticsHandler builds an AnalyticsHandler backed by the analytics
// service.
func NewAnalyticsHandler(svc *analytics.Service, log *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc, log: log}
}

func (h *AnalyticsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	start, err := parseRFC3339(q.Get("start_date"))
	if err != nil {
		sendError(w, http.StatusBadRequest, "INVALID_START_DATE", "start_date must be an ISO 8601 timestamp")
		return
	}
	end, err := parseRFC3339(q.Get("end_date"))
	if err != nil {
		sendError(w, http.StatusBadRequest, "INVALID_END_DATE", "end_date must be an ISO 8601 timestamp")
		return
	}
	bookID := q.Get("book_id")

	if err := validateDateRange(start, end); err != nil {
		sendError(w, http.StatusBadRequest, "INVALID_DATE_RANGE", err.Error())
		return
	}

	summary, err := h.svc.Summary(r.Context(), start, end, bookID)
	if err != nil {
		h.log.Error("failed to compute analytics summary", zap.Error(err))
		sendError(w, http.StatusServiceUnavailable, "ANALYTICS_FAILED", "Failed to compute analytics summary. Please try again.")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func parseRFC3339(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, errors.New("missing timestamp")
	}
	return time.Parse(time.RFC3339, v)
}

// validateDateRange ports AnalyticsSummaryRequest's two field validators:
// end_date must follow start_date, and neither may be in the future.
func validateDateRange(start, end time.Time) error {
	now := time.Now()
	if start.After(now) || end.After(now) {
		return errors.New("date cannot be in the future")
	}
	if !end.After(start) {
		return errors.New("end_date must be after start_date")
	}
	return nil
}
