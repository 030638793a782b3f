// Package models holds the domain records shared across the query pipeline:
// chunks stored in the vector index, the request/response shapes of the
// query API, and the rows persisted to Postgres for audit and analytics.
package models

import "time"

// QueryMode selects how a query is scoped against the book corpus.
type QueryMode string

const (
	// ModeBookWide searches the full corpus for the given book.
	ModeBookWide QueryMode = "book_wide"
	// ModeSelectedText restricts the answer to a passage the caller supplies
	// and refuses to draw on anything outside it.
	ModeSelectedText QueryMode = "selected_text"
)

// FeedbackRating is the caller's judgment of a prior response.
type FeedbackRating string

const (
	RatingHelpful    FeedbackRating = "helpful"
	RatingNotHelpful FeedbackRating = "not_helpful"
)

// RefusalReason records why the refusal gate declined to answer.
type RefusalReason string

const (
	RefusalNone                RefusalReason = ""
	RefusalInsufficientContext RefusalReason = "insufficient_context"
	RefusalLowSimilarity       RefusalReason = "low_similarity"
	RefusalExternalReference   RefusalReason = "external_reference"
	RefusalOutsideSelection    RefusalReason = "outside_selection"
	RefusalGeneratorRefused    RefusalReason = "generator_refused"
)

// Chunk is a single indexed passage of a book, stored as a point in the
// vector index and mirrored here for payload decoding.
type Chunk struct {
	ID            string `json:"id"`
	BookID        string `json:"book_id"`
	BookVersion   string `json:"book_version"`
	ChapterNumber int    `json:"chapter_number"`
	ChapterTitle  string `json:"chapter_title"`
	Section       string `json:"section"`
	SectionSlug   string `json:"section_slug"`
	SourceFile    string `json:"source_file"`
	Content       string `json:"content"`
	WordCount     int    `json:"word_count"`
	HasCodeBlock  bool   `json:"has_code_block"`
	HasMath       bool   `json:"has_math"`
}

// RetrievedChunk pairs a Chunk with the similarity score it was retrieved at.
type RetrievedChunk struct {
	Chunk
	Score float64 `json:"score"`
}

// QueryRequest is the body of POST /v1/query.
type QueryRequest struct {
	Query         string    `json:"query"`
	BookID        string    `json:"book_id"`
	ChapterNumber *int      `json:"chapter_number,omitempty"`
	Mode          QueryMode `json:"mode"`
	SelectedText  string    `json:"selected_text,omitempty"`
}

// Citation is a de-duplicated, navigable reference attached to a response.
type Citation struct {
	Chapter      string   `json:"chapter"`
	Section      string   `json:"section"`
	SourceFile   string   `json:"source_file"`
	URL          string   `json:"url"`
	ChunkCount   int      `json:"chunk_count"`
	ChunkIDs     []string `json:"chunk_ids"`
	MaxSimilarity float64 `json:"max_similarity"`
}

// QueryResponse is the body returned by POST /v1/query.
type QueryResponse struct {
	QueryID          string        `json:"query_id"`
	ResponseText     string        `json:"response_text"`
	SourceReferences []Citation    `json:"source_references"`
	ConfidenceScore  float64       `json:"confidence_score"`
	RefusalTriggered bool          `json:"refusal_triggered"`
	RefusalReason    RefusalReason `json:"refusal_reason,omitempty"`
	LatencyMs        int64         `json:"latency_ms"`
	Timestamp        time.Time     `json:"timestamp"`
}

// FeedbackRequest is the body of POST /v1/feedback.
type FeedbackRequest struct {
	QueryID string         `json:"query_id"`
	Rating  FeedbackRating `json:"rating"`
	Comment string         `json:"comment,omitempty"`
}

// AnalyticsSummary is the body returned by GET /v1/analytics/summary.
type AnalyticsSummary struct {
	StartDate             time.Time      `json:"start_date"`
	EndDate               time.Time      `json:"end_date"`
	BookID                string         `json:"book_id,omitempty"`
	TotalQueries          int            `json:"total_queries"`
	UniqueUsers           int            `json:"unique_users"`
	LatencyP50Ms          float64        `json:"latency_p50_ms"`
	LatencyP95Ms          float64        `json:"latency_p95_ms"`
	LatencyP99Ms          float64        `json:"latency_p99_ms"`
	FeedbackRate          float64        `json:"feedback_rate"`
	PositiveFeedbackRate  float64        `json:"positive_feedback_rate"`
	AverageConfidence     float64        `json:"average_confidence"`
	EstimatedMinutesSaved float64        `json:"estimated_minutes_saved"`
	TopTopics             []TopicCount   `json:"top_topics"`
}

// TopicCount is one entry of the top-N query-topic breakdown.
type TopicCount struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

// HealthStatus is the body returned by GET /health.
type HealthStatus struct {
	Status    string            `json:"status"`
	Services  map[string]string `json:"services"`
	Version   string            `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
}
