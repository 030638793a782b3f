package httpapi

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ayeshadev283/bookrag/internal/models"
	"github.com/ayeshadev283/bookrag/internal/orchestrator"
	"github.com/ayeshadev283/bookrag/internal/util"
)

var validQueryModes = []string{string(models.ModeBookWide), string(models.ModeSelectedText)}

const (
	maxQueryLength        = 500
	maxSelectedTextLength = 1000
)

// QueryHandler serves POST /v1/query.
type QueryHandler struct {
	pipeline *orchestrator.Pipeline
	log      *zap.Logger
}

// NewQueryHandler builds a QueryHandler backed by the given pipeline.
func NewQueryHandler(pipeline *orchestrator.Pipeline, log *zap.Logger) *QueryHandler {
	return &QueryHandler{pipeline: pipeline, log: log}
}

func (h *QueryHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "INVALID_BODY", "Request body could not be parsed as JSON")
		return
	}

	if err := validateQueryRequest(&req); err != nil {
		sendError(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
		return
	}

	id := orchestrator.Identity{RemoteAddr: remoteIP(r), UserAgent: r.UserAgent()}

	resp, err := h.pipeline.Answer(r.Context(), req, id)
	if err != nil {
		if errors.Is(err, orchestrator.ErrRateLimited) {
			sendError(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED",
				"Maximum queries per hour exceeded. Please try again later.")
			return
		}
		h.log.Error("query pipeline failed", zap.Error(err))
		sendError(w, http.StatusServiceUnavailable, "QUERY_FAILED",
			"Failed to process query. Please try again.")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func validateQueryRequest(req *models.QueryRequest) error {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return errors.New("query cannot be empty or just whitespace")
	}
	if len(req.Query) > maxQueryLength {
		return errors.New("query exceeds maximum length of 500 characters")
	}
	if len(req.SelectedText) > maxSelectedTextLength {
		return errors.New("selected_text exceeds maximum length of 1000 characters")
	}
	if req.BookID == "" {
		return errors.New("book_id is required")
	}
	if req.Mode == "" {
		req.Mode = models.ModeBookWide
	}
	if !util.ContainsString(validQueryModes, string(req.Mode)) {
		return errors.New("mode must be book_wide or selected_text")
	}
	if req.Mode == models.ModeSelectedText && req.SelectedText == "" {
		return errors.New("selected_text is required when mode is selected_text")
	}
	return nil
}

// remoteIP strips the port from r.RemoteAddr, falling back to the raw value
// when it isn't in host:port form (e.g. behind some test harnesses).
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
