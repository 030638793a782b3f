package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ayeshadev283/bookrag/internal/circuitbreaker"
)

// SaveQuery persists a submitted question to the queries table.
func (c *Client) SaveQuery(ctx context.Context, q *QueryRecord) error {
	if q.QueryID == uuid.Nil {
		q.QueryID = uuid.New()
	}
	if q.Timestamp.IsZero() {
		q.Timestamp = time.Now()
	}

	bookContext := q.BookContext
	if bookContext == nil {
		bookContext = JSONB{}
	}

	query := `
		INSERT INTO queries (
			query_id, user_id, query_text, query_mode,
			book_context, selected_text, session_id, ip_address_hash, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := c.db.ExecContext(ctx, query,
		q.QueryID, q.UserID, q.QueryText, string(q.QueryMode),
		bookContext, q.SelectedText, q.SessionID, q.IPAddressHash, q.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to save query: %w", err)
	}

	c.logger.Debug("Query logged",
		zap.String("query_id", q.QueryID.String()),
		zap.String("query_mode", string(q.QueryMode)))
	return nil
}

// SaveRetrievedContexts persists the ranked chunks returned for a query.
func (c *Client) SaveRetrievedContexts(ctx context.Context, contexts []*RetrievedContextRecord) error {
	if len(contexts) == 0 {
		return nil
	}

	return c.WithTransactionCB(ctx, func(tx *circuitbreaker.TxWrapper) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO retrieved_contexts (
				retrieval_id, query_id, chunk_id, qdrant_point_id,
				chunk_text, similarity_score, rank, metadata, timestamp
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, rc := range contexts {
			if rc.RetrievalID == uuid.Nil {
				rc.RetrievalID = uuid.New()
			}
			if rc.Timestamp.IsZero() {
				rc.Timestamp = time.Now()
			}
			metadata := rc.Metadata
			if metadata == nil {
				metadata = JSONB{}
			}

			_, err := stmt.ExecContext(ctx,
				rc.RetrievalID, rc.QueryID, rc.ChunkID, rc.QdrantPointID,
				rc.ChunkText, rc.SimilarityScore, rc.Rank, metadata, rc.Timestamp,
			)
			if err != nil {
				return fmt.Errorf("failed to insert retrieved context %s: %w", rc.ChunkID, err)
			}
		}

		return nil
	})
}

// SaveQueryResponse persists the generated answer for a query.
func (c *Client) SaveQueryResponse(ctx context.Context, r *QueryResponseRecord) error {
	if r.ResponseID == uuid.Nil {
		r.ResponseID = uuid.New()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}

	sourceRefs := r.SourceReferences
	if sourceRefs == nil {
		sourceRefs = JSONB{}
	}
	genParams := r.GenerationParams
	if genParams == nil {
		genParams = JSONB{}
	}

	query := `
		INSERT INTO query_responses (
			response_id, query_id, response_text, source_references,
			generation_params, latency_ms, confidence_score,
			refusal_triggered, refusal_reason, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := c.db.ExecContext(ctx, query,
		r.ResponseID, r.QueryID, r.ResponseText, sourceRefs,
		genParams, r.LatencyMs, r.ConfidenceScore,
		r.RefusalTriggered, r.RefusalReason, r.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to save query response: %w", err)
	}

	c.logger.Debug("Response logged",
		zap.String("response_id", r.ResponseID.String()),
		zap.String("query_id", r.QueryID.String()))
	return nil
}

// SaveFeedback persists a user rating against a response.
func (c *Client) SaveFeedback(ctx context.Context, f *FeedbackRecord) error {
	if f.FeedbackID == uuid.Nil {
		f.FeedbackID = uuid.New()
	}
	if f.Timestamp.IsZero() {
		f.Timestamp = time.Now()
	}

	query := `
		INSERT INTO user_feedbacks (
			feedback_id, response_id, rating, comment, timestamp
		) VALUES ($1, $2, $3, $4, $5)`

	_, err := c.db.ExecContext(ctx, query,
		f.FeedbackID, f.ResponseID, string(f.Rating), f.Comment, f.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to save feedback: %w", err)
	}

	return nil
}

// SaveAnalyticsAggregate upserts a precomputed dashboard metric, replacing any
// prior computation for the same metric/period/book.
func (c *Client) SaveAnalyticsAggregate(ctx context.Context, a *AnalyticsAggregateRecord) error {
	if a.AggregateID == uuid.Nil {
		a.AggregateID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	metricValue := a.MetricValue
	if metricValue == nil {
		metricValue = JSONB{}
	}

	query := `
		INSERT INTO analytics_aggregates (
			aggregate_id, metric_name, time_period_start, time_period_end,
			metric_value, book_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (metric_name, time_period_start, time_period_end, book_id) DO UPDATE SET
			metric_value = EXCLUDED.metric_value,
			created_at = EXCLUDED.created_at`

	_, err := c.db.ExecContext(ctx, query,
		a.AggregateID, string(a.MetricName), a.TimePeriodStart, a.TimePeriodEnd,
		metricValue, a.BookID, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save analytics aggregate: %w", err)
	}

	return nil
}

// BatchSaveQueries saves multiple query records in a single transaction.
func (c *Client) BatchSaveQueries(ctx context.Context, queries []*QueryRecord) error {
	if len(queries) == 0 {
		return nil
	}

	valueStrings := make([]string, 0, len(queries))
	valueArgs := make([]interface{}, 0, len(queries)*9)

	for i, q := range queries {
		if q.QueryID == uuid.Nil {
			q.QueryID = uuid.New()
		}
		if q.Timestamp.IsZero() {
			q.Timestamp = time.Now()
		}
		bookContext := q.BookContext
		if bookContext == nil {
			bookContext = JSONB{}
		}

		base := i * 9
		valueStrings = append(valueStrings, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9,
		))
		valueArgs = append(valueArgs,
			q.QueryID, q.UserID, q.QueryText, string(q.QueryMode),
			bookContext, q.SelectedText, q.SessionID, q.IPAddressHash, q.Timestamp,
		)
	}

	query := fmt.Sprintf(`
		INSERT INTO queries (
			query_id, user_id, query_text, query_mode,
			book_context, selected_text, session_id, ip_address_hash, timestamp
		) VALUES %s`, strings.Join(valueStrings, ","))

	if _, err := c.db.ExecContext(ctx, query, valueArgs...); err != nil {
		return fmt.Errorf("failed to batch save queries: %w", err)
	}

	return nil
}

// GetQueryResponse retrieves a response record by its ID, used by the feedback
// endpoint to validate that response_id exists before accepting a rating.
func (c *Client) GetQueryResponse(ctx context.Context, responseID uuid.UUID) (*QueryResponseRecord, error) {
	var r QueryResponseRecord

	query := `
		SELECT response_id, query_id, response_text, source_references,
			generation_params, latency_ms, confidence_score,
			refusal_triggered, refusal_reason, timestamp
		FROM query_responses
		WHERE response_id = $1`

	row, err := c.db.QueryRowContextCB(ctx, query, responseID)
	if err != nil {
		return nil, err
	}

	err = row.Scan(
		&r.ResponseID, &r.QueryID, &r.ResponseText, &r.SourceReferences,
		&r.GenerationParams, &r.LatencyMs, &r.ConfidenceScore,
		&r.RefusalTriggered, &r.RefusalReason, &r.Timestamp,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get query response: %w", err)
	}

	return &r, nil
}

// FindLowConfidenceQueries supports the analytics review endpoint that surfaces
// queries with low confidence scores or negative feedback for manual review.
func (c *Client) FindLowConfidenceQueries(ctx context.Context, filter QueryFilter) ([]*QueryResponseRecord, error) {
	var clauses []string
	var args []interface{}
	argN := 1

	query := `
		SELECT qr.response_id, qr.query_id, qr.response_text, qr.source_references,
			qr.generation_params, qr.latency_ms, qr.confidence_score,
			qr.refusal_triggered, qr.refusal_reason, qr.timestamp
		FROM query_responses qr`

	if filter.IncludeNegativeFeedback {
		query += ` LEFT JOIN user_feedbacks uf ON uf.response_id = qr.response_id`
	}

	if filter.MinConfidence != nil {
		clauses = append(clauses, fmt.Sprintf("qr.confidence_score < $%d", argN))
		args = append(args, *filter.MinConfidence)
		argN++
	}
	if filter.StartTime != nil {
		clauses = append(clauses, fmt.Sprintf("qr.timestamp >= $%d", argN))
		args = append(args, *filter.StartTime)
		argN++
	}
	if filter.EndTime != nil {
		clauses = append(clauses, fmt.Sprintf("qr.timestamp <= $%d", argN))
		args = append(args, *filter.EndTime)
		argN++
	}
	if filter.IncludeNegativeFeedback {
		clauses = append(clauses, "uf.rating = 'not_helpful'")
	}

	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " OR ")
	}

	query += " ORDER BY qr.timestamp DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query low confidence responses: %w", err)
	}
	defer rows.Close()

	var results []*QueryResponseRecord
	for rows.Next() {
		var r QueryResponseRecord
		if err := rows.Scan(
			&r.ResponseID, &r.QueryID, &r.ResponseText, &r.SourceReferences,
			&r.GenerationParams, &r.LatencyMs, &r.ConfidenceScore,
			&r.RefusalTriggered, &r.RefusalReason, &r.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan response row: %w", err)
		}
		results = append(results, &r)
	}

	return results, rows.Err()
}
