package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// QueryCount is the (total_queries, unique_users) pair for a time window.
type QueryCount struct {
	TotalQueries int
	UniqueUsers  int
}

// CountQueries returns the total query count and distinct user count in
// [start, end], optionally scoped to a single book.
func (c *Client) CountQueries(ctx context.Context, start, end time.Time, bookID string) (QueryCount, error) {
	query := `
		SELECT COUNT(query_id), COUNT(DISTINCT user_id)
		FROM queries
		WHERE timestamp >= $1 AND timestamp <= $2`
	args := []interface{}{start, end}
	if bookID != "" {
		query += " AND book_context->>'book_id' = $3"
		args = append(args, bookID)
	}

	row, err := c.db.QueryRowContextCB(ctx, query, args...)
	if err != nil {
		return QueryCount{}, err
	}
	var qc QueryCount
	if err := row.Scan(&qc.TotalQueries, &qc.UniqueUsers); err != nil {
		return QueryCount{}, fmt.Errorf("failed to count queries: %w", err)
	}
	return qc, nil
}

// LatencyPercentiles is the (p50, p95, p99) response-latency breakdown, in
// milliseconds, for a time window.
type LatencyPercentiles struct {
	P50 float64
	P95 float64
	P99 float64
}

// LatencyPercentilesFor computes response-latency percentiles using
// Postgres's continuous percentile aggregate, avoiding pulling every row
// into the application to sort client-side.
func (c *Client) LatencyPercentilesFor(ctx context.Context, start, end time.Time, bookID string) (LatencyPercentiles, error) {
	query := `
		SELECT
			COALESCE(percentile_cont(0.50) WITHIN GROUP (ORDER BY qr.latency_ms), 0),
			COALESCE(percentile_cont(0.95) WITHIN GROUP (ORDER BY qr.latency_ms), 0),
			COALESCE(percentile_cont(0.99) WITHIN GROUP (ORDER BY qr.latency_ms), 0)
		FROM query_responses qr
		JOIN queries q ON q.query_id = qr.query_id
		WHERE q.timestamp >= $1 AND q.timestamp <= $2`
	args := []interface{}{start, end}
	if bookID != "" {
		query += " AND q.book_context->>'book_id' = $3"
		args = append(args, bookID)
	}

	row, err := c.db.QueryRowContextCB(ctx, query, args...)
	if err != nil {
		return LatencyPercentiles{}, err
	}
	var lp LatencyPercentiles
	if err := row.Scan(&lp.P50, &lp.P95, &lp.P99); err != nil {
		return LatencyPercentiles{}, fmt.Errorf("failed to compute latency percentiles: %w", err)
	}
	return lp, nil
}

// FeedbackRates is (feedback_rate, positive_feedback_rate), both
// percentages. PositiveFeedbackRate is nil when no feedback was submitted.
type FeedbackRates struct {
	FeedbackRate         float64
	PositiveFeedbackRate *float64
}

// FeedbackRateFor computes the share of responses that received any
// feedback, and among those, the share rated helpful.
func (c *Client) FeedbackRateFor(ctx context.Context, start, end time.Time, bookID string) (FeedbackRates, error) {
	totalQuery := `
		SELECT COUNT(qr.response_id)
		FROM query_responses qr
		JOIN queries q ON q.query_id = qr.query_id
		WHERE q.timestamp >= $1 AND q.timestamp <= $2`
	args := []interface{}{start, end}
	if bookID != "" {
		totalQuery += " AND q.book_context->>'book_id' = $3"
		args = append(args, bookID)
	}

	row, err := c.db.QueryRowContextCB(ctx, totalQuery, args...)
	if err != nil {
		return FeedbackRates{}, err
	}
	var totalResponses int
	if err := row.Scan(&totalResponses); err != nil {
		return FeedbackRates{}, fmt.Errorf("failed to count responses: %w", err)
	}
	if totalResponses == 0 {
		return FeedbackRates{}, nil
	}

	feedbackQuery := `
		SELECT
			COUNT(uf.feedback_id),
			COUNT(uf.feedback_id) FILTER (WHERE uf.rating = 'helpful')
		FROM user_feedbacks uf
		JOIN query_responses qr ON qr.response_id = uf.response_id
		JOIN queries q ON q.query_id = qr.query_id
		WHERE q.timestamp >= $1 AND q.timestamp <= $2`
	if bookID != "" {
		feedbackQuery += " AND q.book_context->>'book_id' = $3"
	}

	row, err = c.db.QueryRowContextCB(ctx, feedbackQuery, args...)
	if err != nil {
		return FeedbackRates{}, err
	}
	var totalFeedback, positiveFeedback int
	if err := row.Scan(&totalFeedback, &positiveFeedback); err != nil {
		return FeedbackRates{}, fmt.Errorf("failed to count feedback: %w", err)
	}

	rates := FeedbackRates{FeedbackRate: (float64(totalFeedback) / float64(totalResponses)) * 100}
	if totalFeedback > 0 {
		positiveRate := (float64(positiveFeedback) / float64(totalFeedback)) * 100
		rates.PositiveFeedbackRate = &positiveRate
	}
	return rates, nil
}

// AverageConfidenceFor computes the mean confidence_score across responses
// that recorded one (responses from the fixed refusal message never set
// confidence_score).
func (c *Client) AverageConfidenceFor(ctx context.Context, start, end time.Time, bookID string) (float64, error) {
	query := `
		SELECT COALESCE(AVG(qr.confidence_score), 0)
		FROM query_responses qr
		JOIN queries q ON q.query_id = qr.query_id
		WHERE q.timestamp >= $1 AND q.timestamp <= $2 AND qr.confidence_score IS NOT NULL`
	args := []interface{}{start, end}
	if bookID != "" {
		query += " AND q.book_context->>'book_id' = $3"
		args = append(args, bookID)
	}

	row, err := c.db.QueryRowContextCB(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	var avg float64
	if err := row.Scan(&avg); err != nil {
		return 0, fmt.Errorf("failed to compute average confidence: %w", err)
	}
	return avg, nil
}

// QueryTextsFor returns the raw query text for every question asked in a
// time window, fed into the topic extractor. Uses sqlx directly against the
// pool's underlying *sql.DB: a plain read for a cached dashboard aggregate
// doesn't need the circuit-breaker-wrapped path the rest of this package
// goes through.
func (c *Client) QueryTextsFor(ctx context.Context, start, end time.Time, bookID string) ([]string, error) {
	query := `SELECT query_text FROM queries WHERE timestamp >= $1 AND timestamp <= $2`
	args := []interface{}{start, end}
	if bookID != "" {
		query += " AND book_context->>'book_id' = $3"
		args = append(args, bookID)
	}

	sx := sqlx.NewDb(c.db.GetDB(), "postgres")
	var texts []string
	if err := sx.SelectContext(ctx, &texts, sx.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to fetch query texts: %w", err)
	}
	return texts, nil
}
