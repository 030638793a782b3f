// Package orchestrator sequences a single query through embedding,
// retrieval, the refusal gate, generation, citation building, and async
// persistence. It is the Go counterpart of the original submit_query
// handler, restructured as an injectable pipeline rather than a router
// function closed over module-level service singletons.
package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ayeshadev283/bookrag/internal/audit"
	"github.com/ayeshadev283/bookrag/internal/citation"
	"github.com/ayeshadev283/bookrag/internal/db"
	"github.com/ayeshadev283/bookrag/internal/embeddings"
	"github.com/ayeshadev283/bookrag/internal/generation"
	ometrics "github.com/ayeshadev283/bookrag/internal/metrics"
	"github.com/ayeshadev283/bookrag/internal/models"
	"github.com/ayeshadev283/bookrag/internal/ratelimit"
	"github.com/ayeshadev283/bookrag/internal/refusal"
	"github.com/ayeshadev283/bookrag/internal/retrieval"
	"github.com/ayeshadev283/bookrag/internal/tracing"
)

// ErrRateLimited is returned when the caller has exceeded their per-hour
// query budget; the HTTP layer maps this to 429.
var ErrRateLimited = fmt.Errorf("rate limit exceeded")

// Pipeline wires the full question-answering flow together. All fields are
// required.
type Pipeline struct {
	embedder  *embeddings.Service
	retriever *retrieval.Retriever
	gate      *refusal.Gate
	generator *generation.Generator
	limiter   *ratelimit.Limiter
	audit     *audit.Writer
	log       *zap.Logger
}

// New builds a Pipeline from its already-constructed dependencies. store is
// wrapped in an audit.Writer so persistence stays a separate concern from
// the pipeline's own sequencing.
func New(
	embedder *embeddings.Service,
	retriever *retrieval.Retriever,
	gate *refusal.Gate,
	generator *generation.Generator,
	limiter *ratelimit.Limiter,
	store *db.Client,
	log *zap.Logger,
) *Pipeline {
	return &Pipeline{
		embedder:  embedder,
		retriever: retriever,
		gate:      gate,
		generator: generator,
		limiter:   limiter,
		audit:     audit.New(store, log),
		log:       log,
	}
}

// Identity is the caller context derived from the inbound HTTP request,
// used for rate limiting and audit logging without storing anything that
// identifies an individual.
type Identity struct {
	RemoteAddr string
	UserAgent  string
}

// AnonymizedUserID hashes the caller's network identity into a stable but
// non-reversible user key, the same construction as the original
// anonymize_user_id (SHA-256 over "ip:user-agent").
func (id Identity) AnonymizedUserID() string {
	ip := id.RemoteAddr
	if ip == "" {
		ip = "unknown"
	}
	ua := id.UserAgent
	if ua == "" {
		ua = "unknown"
	}
	sum := sha256.Sum256([]byte(ip + ":" + ua))
	return hex.EncodeToString(sum[:])
}

// Answer runs req through the full pipeline for the caller described by id
// and returns the response the HTTP layer should serve. Persistence
// failures are logged but never turn a successful answer into an error, the
// same "don't fail the request if logging fails" behavior as the original.
func (p *Pipeline) Answer(ctx context.Context, req models.QueryRequest, id Identity) (*models.QueryResponse, error) {
	start := time.Now()
	queryID := uuid.New()
	userID := id.AnonymizedUserID()

	if !p.limiter.Allow(userID) {
		p.log.Warn("rate limit exceeded", zap.String("user_id", userID[:8]))
		return nil, ErrRateLimited
	}

	ctx, span := tracing.StartSpan(ctx, "orchestrator.Answer")
	defer span.End()

	embedding, err := p.embedder.GenerateEmbedding(ctx, req.Query, "", embeddings.InputTypeQuery)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: embedding failed: %w", err)
	}

	chunks, err := p.retriever.Retrieve(ctx, embedding, req.BookID, req.ChapterNumber, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: retrieval failed: %w", err)
	}

	scores := make([]float64, len(chunks))
	for i, c := range chunks {
		scores[i] = c.Score
	}

	resp := &models.QueryResponse{QueryID: queryID.String()}

	// An empty retrieval (nothing in the index for this book/chapter) is
	// handed to the generator so its own insufficient-context fallback
	// produces the response; the similarity gate only fires once there is
	// at least one score to judge, keeping "nothing retrieved" distinct
	// from "retrieved, but below the similarity floor".
	if len(chunks) > 0 && p.gate.ShouldForceRefusal(scores) {
		resp.ResponseText = refusal.BuildMessage(req.Mode, models.RefusalLowSimilarity)
		resp.RefusalTriggered = true
		resp.RefusalReason = models.RefusalLowSimilarity
	} else {
		bookTitle := strings.Title(strings.ReplaceAll(req.BookID, "-", " ")) //nolint:staticcheck // matches original .title() casing
		result, err := p.generator.Generate(ctx, req.Query, chunks, bookTitle)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: generation failed: %w", err)
		}

		reason := models.RefusalReason("")
		refused := result.Refused
		if refused && len(chunks) == 0 {
			reason = models.RefusalInsufficientContext
		}
		if !refused && p.gate.IsRefusalResponse(result.ResponseText) {
			refused = true
			reason = models.RefusalGeneratorRefused
		}
		if extRefs := p.gate.DetectExternalReferences(result.ResponseText); len(extRefs) > 0 && req.Mode == models.ModeSelectedText {
			refused = true
			reason = models.RefusalOutsideSelection
			result.ResponseText = refusal.BuildMessage(req.Mode, reason)
		}

		resp.ResponseText = result.ResponseText
		resp.RefusalTriggered = refused
		resp.RefusalReason = reason
		if !refused {
			resp.SourceReferences = citation.Build(chunks)
			resp.ConfidenceScore = retrieval.ConfidenceScore(scores)
		}
	}

	resp.LatencyMs = time.Since(start).Milliseconds()
	resp.Timestamp = time.Now().UTC()

	ometrics.RecordQueryMetrics(string(req.Mode), resp.RefusalTriggered, time.Since(start).Seconds(), resp.ConfidenceScore)

	p.audit.Record(queryID, userID, req, chunks, scores, resp)

	p.log.Info("query completed",
		zap.String("query_id", resp.QueryID),
		zap.Int64("latency_ms", resp.LatencyMs),
		zap.Bool("refused", resp.RefusalTriggered))

	return resp, nil
}

