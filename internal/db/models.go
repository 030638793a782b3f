package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ayeshadev283/bookrag/internal/models"
)

// JSONB represents a PostgreSQL jsonb column
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into JSONB", value)
	}

	return json.Unmarshal(bytes, j)
}

// MetricName enumerates the allowed analytics_aggregates.metric_name values
type MetricName string

const (
	MetricDailyQueryCount       MetricName = "daily_query_count"
	MetricWeeklyAvgLatency      MetricName = "weekly_avg_latency"
	MetricMonthlyFeedbackRate   MetricName = "monthly_feedback_rate"
	MetricTopQuestionTopics     MetricName = "top_question_topics"
	MetricHourlyConcurrentUsers MetricName = "hourly_concurrent_users"
)

// QueryRecord is a row in the queries table: one per submitted question
type QueryRecord struct {
	QueryID       uuid.UUID        `db:"query_id"`
	UserID        string           `db:"user_id"`
	QueryText     string           `db:"query_text"`
	QueryMode     models.QueryMode `db:"query_mode"`
	BookContext   JSONB            `db:"book_context"`
	SelectedText  *string          `db:"selected_text"`
	SessionID     *uuid.UUID       `db:"session_id"`
	IPAddressHash string           `db:"ip_address_hash"`
	Timestamp     time.Time        `db:"timestamp"`
}

// RetrievedContextRecord is a row in retrieved_contexts: one per chunk returned for a query
type RetrievedContextRecord struct {
	RetrievalID     uuid.UUID `db:"retrieval_id"`
	QueryID         uuid.UUID `db:"query_id"`
	ChunkID         string    `db:"chunk_id"`
	QdrantPointID   string    `db:"qdrant_point_id"`
	ChunkText       string    `db:"chunk_text"`
	SimilarityScore float64   `db:"similarity_score"`
	Rank            int       `db:"rank"`
	Metadata        JSONB     `db:"metadata"`
	Timestamp       time.Time `db:"timestamp"`
}

// QueryResponseRecord is a row in query_responses: the generated answer for a query
type QueryResponseRecord struct {
	ResponseID       uuid.UUID `db:"response_id"`
	QueryID          uuid.UUID `db:"query_id"`
	ResponseText     string    `db:"response_text"`
	SourceReferences JSONB     `db:"source_references"`
	GenerationParams JSONB     `db:"generation_params"`
	LatencyMs        int       `db:"latency_ms"`
	ConfidenceScore  *float64  `db:"confidence_score"`
	RefusalTriggered bool      `db:"refusal_triggered"`
	RefusalReason    *string   `db:"refusal_reason"`
	Timestamp        time.Time `db:"timestamp"`
}

// FeedbackRecord is a row in user_feedbacks: a rating against a response
type FeedbackRecord struct {
	FeedbackID uuid.UUID             `db:"feedback_id"`
	ResponseID uuid.UUID             `db:"response_id"`
	Rating     models.FeedbackRating `db:"rating"`
	Comment    *string               `db:"comment"`
	Timestamp  time.Time             `db:"timestamp"`
}

// AnalyticsAggregateRecord is a row in analytics_aggregates: a precomputed dashboard metric
type AnalyticsAggregateRecord struct {
	AggregateID     uuid.UUID  `db:"aggregate_id"`
	MetricName      MetricName `db:"metric_name"`
	TimePeriodStart time.Time  `db:"time_period_start"`
	TimePeriodEnd   time.Time  `db:"time_period_end"`
	MetricValue     JSONB      `db:"metric_value"`
	BookID          *string    `db:"book_id"`
	CreatedAt       time.Time  `db:"created_at"`
}

// QueryFilter provides filtering options for query-log lookups (e.g. the
// low-confidence/negative-feedback review endpoint).
type QueryFilter struct {
	BookID                  *string
	MinConfidence           *float64
	IncludeNegativeFeedback bool
	StartTime               *time.Time
	EndTime                 *time.Time
	Limit                   int
	Offset                  int
}
