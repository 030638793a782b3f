// Package audit persists the record of a query, its retrieved context, and
// the generated response through the database client's async write queue.
// It is a thin wrapper around internal/db's QueueWrite: the original
// submit_query handler logged each of these three facts in its own
// try/except block so a persistence failure on one never blocked the
// others or the response to the caller, and this package keeps that same
// independence per write.
package audit

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ayeshadev283/bookrag/internal/db"
	"github.com/ayeshadev283/bookrag/internal/models"
)

// Writer queues query/retrieval/response records for async persistence.
type Writer struct {
	store *db.Client
	log   *zap.Logger
}

// New builds a Writer backed by the given database client.
func New(store *db.Client, log *zap.Logger) *Writer {
	return &Writer{store: store, log: log}
}

// Record queues the query, its retrieved chunks (if any), and the final
// response for persistence. Each write is independent; a failure in one is
// logged and does not prevent the others from being attempted.
func (w *Writer) Record(queryID uuid.UUID, userID string, req models.QueryRequest, chunks []models.RetrievedChunk, scores []float64, resp *models.QueryResponse) {
	w.recordQuery(queryID, userID, req)
	w.recordRetrievedContexts(queryID, chunks, scores)
	w.recordResponse(queryID, req, resp)
}

func (w *Writer) recordQuery(queryID uuid.UUID, userID string, req models.QueryRequest) {
	bookContext := db.JSONB{"book_id": req.BookID}
	if req.ChapterNumber != nil {
		bookContext["chapter_number"] = *req.ChapterNumber
	}

	var selectedText *string
	if req.SelectedText != "" {
		selectedText = &req.SelectedText
	}

	record := &db.QueryRecord{
		QueryID:       queryID,
		UserID:        userID,
		QueryText:     req.Query,
		QueryMode:     req.Mode,
		BookContext:   bookContext,
		SelectedText:  selectedText,
		IPAddressHash: userID,
		Timestamp:     time.Now(),
	}
	if err := w.store.QueueWrite(db.WriteTypeQuery, record, nil); err != nil {
		w.log.Error("failed to queue query log", zap.Error(err), zap.String("query_id", queryID.String()))
	}
}

func (w *Writer) recordRetrievedContexts(queryID uuid.UUID, chunks []models.RetrievedChunk, scores []float64) {
	if len(chunks) == 0 {
		return
	}
	contexts := make([]*db.RetrievedContextRecord, len(chunks))
	for i, c := range chunks {
		contexts[i] = &db.RetrievedContextRecord{
			QueryID:         queryID,
			ChunkID:         c.ID,
			QdrantPointID:   c.ID,
			ChunkText:       c.Content,
			SimilarityScore: scores[i],
			Rank:            i + 1,
			Metadata: db.JSONB{
				"chapter_number": c.ChapterNumber,
				"section":        c.Section,
			},
		}
	}
	if err := w.store.QueueWrite(db.WriteTypeRetrievedContexts, contexts, nil); err != nil {
		w.log.Error("failed to queue retrieved context log", zap.Error(err), zap.String("query_id", queryID.String()))
	}
}

func (w *Writer) recordResponse(queryID uuid.UUID, req models.QueryRequest, resp *models.QueryResponse) {
	var confidence *float64
	if !resp.RefusalTriggered {
		c := resp.ConfidenceScore
		confidence = &c
	}
	var refusalReason *string
	if resp.RefusalReason != "" {
		r := string(resp.RefusalReason)
		refusalReason = &r
	}

	record := &db.QueryResponseRecord{
		ResponseID:       queryID,
		QueryID:          queryID,
		ResponseText:     resp.ResponseText,
		SourceReferences: citationsToJSONB(resp.SourceReferences),
		GenerationParams: db.JSONB{"mode": string(req.Mode)},
		LatencyMs:        int(resp.LatencyMs),
		ConfidenceScore:  confidence,
		RefusalTriggered: resp.RefusalTriggered,
		RefusalReason:    refusalReason,
	}
	if err := w.store.QueueWrite(db.WriteTypeQueryResponse, record, nil); err != nil {
		w.log.Error("failed to queue response log", zap.Error(err), zap.String("query_id", queryID.String()))
	}
}

func citationsToJSONB(cites []models.Citation) db.JSONB {
	if len(cites) == 0 {
		return db.JSONB{}
	}
	raw := make([]interface{}, len(cites))
	for i, c := range cites {
		raw[i] = map[string]interface{}{
			"chapter":        c.Chapter,
			"section":        c.Section,
			"source_file":    c.SourceFile,
			"url":            c.URL,
			"chunk_count":    c.ChunkCount,
			"max_similarity": c.MaxSimilarity,
		}
	}
	return db.JSONB{"citations": raw}
}
