package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ayeshadev283/bookrag/internal/db"
	"github.com/ayeshadev283/bookrag/internal/models"
)

const maxFeedbackCommentLength = 500

// FeedbackHandler serves POST /v1/feedback.
type FeedbackHandler struct {
	store *db.Client
	log   *zap.Logger
}

// NewFeedbackHandler builds a FeedbackHandler backed by the audit store.
func NewFeedbackHandler(store *db.Client, log *zap.Logger) *FeedbackHandler {
	return &FeedbackHandler{store: store, log: log}
}

func (h *FeedbackHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req models.FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "INVALID_BODY", "Request body could not be parsed as JSON")
		return
	}

	responseID, err := uuid.Parse(req.QueryID)
	if err != nil {
		sendError(w, http.StatusBadRequest, "INVALID_QUERY_ID", "query_id must be a valid UUID")
		return
	}
	if req.Rating != models.RatingHelpful && req.Rating != models.RatingNotHelpful {
		sendError(w, http.StatusBadRequest, "INVALID_RATING", "rating must be 'helpful' or 'not_helpful'")
		return
	}
	if len(req.Comment) > maxFeedbackCommentLength {
		sendError(w, http.StatusBadRequest, "COMMENT_TOO_LONG", "comment must be 500 characters or less")
		return
	}

	existing, err := h.store.GetQueryResponse(r.Context(), responseID)
	if err != nil {
		h.log.Error("failed to look up query response for feedback", zap.Error(err))
		sendError(w, http.StatusServiceUnavailable, "LOOKUP_FAILED", "Failed to record feedback. Please try again.")
		return
	}
	if existing == nil {
		sendError(w, http.StatusNotFound, "QUERY_NOT_FOUND", "No response found for the given query_id")
		return
	}

	var comment *string
	if req.Comment != "" {
		comment = &req.Comment
	}

	record := &db.FeedbackRecord{
		ResponseID: responseID,
		Rating:     req.Rating,
		Comment:    comment,
	}
	if err := h.store.SaveFeedback(r.Context(), record); err != nil {
		h.log.Error("failed to save feedback", zap.Error(err))
		sendError(w, http.StatusServiceUnavailable, "SAVE_FAILED", "Failed to record feedback. Please try again.")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"feedback_id": record.FeedbackID,
		"message":     "Feedback submitted successfully",
		"timestamp":   record.Timestamp,
	})
}
