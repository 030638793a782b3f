package vectordb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ayeshadev283/bookrag/internal/circuitbreaker"
	ometrics "github.com/ayeshadev283/bookrag/internal/metrics"
	"github.com/ayeshadev283/bookrag/internal/tracing"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Client is a minimal Qdrant HTTP client
type Client struct {
	cfg   Config
	http  *http.Client
	base  string
	httpw *circuitbreaker.HTTPWrapper
	log   *zap.Logger
}

var global *Client

func Initialize(cfg Config) {
	c := cfg
	if c.Port == 0 {
		c.Port = 6333
	}
	if c.TopK == 0 {
		c.TopK = 5
	}
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Second
	}
	if c.Chunks == "" {
		c.Chunks = "book_chunks"
	}
	logger, _ := zap.NewProduction()
	httpClient := &http.Client{Timeout: c.Timeout}
	httpw := circuitbreaker.NewHTTPWrapper(httpClient, "qdrant", "vectordb", logger)
	client := &Client{cfg: c, http: httpClient, base: fmt.Sprintf("http://%s:%d", c.Host, c.Port), httpw: httpw, log: logger}
	global = client
}

func Get() *Client { return global }

// GetConfig returns the current configuration
func (c *Client) GetConfig() Config {
	if c == nil {
		return Config{Chunks: "book_chunks"}
	}
	return c.cfg
}

// qdrant search request/response (simplified)
type qdrantQueryRequest struct {
	Query          []float32              `json:"query"`
	Limit          int                    `json:"limit"`
	ScoreThreshold *float64               `json:"score_threshold,omitempty"`
	WithPayload    bool                   `json:"with_payload"`
	Filter         map[string]interface{} `json:"filter,omitempty"`
	WithVector     bool                   `json:"with_vector,omitempty"`
}

type qdrantPoint struct {
	ID      interface{}            `json:"id"`
	Score   float64                `json:"score"`
	Payload map[string]interface{} `json:"payload"`
	Vector  []float64              `json:"vector,omitempty"`
}

type qdrantSearchResponse struct {
	Result []qdrantPoint `json:"result"`
	Status string        `json:"status"`
}

// qdrantQueryResponse for the /points/query endpoint which has nested structure
type qdrantQueryResponse struct {
	Result struct {
		Points []qdrantPoint `json:"points"`
	} `json:"result"`
	Status string `json:"status"`
}

// search runs a vector query against collection, preferring the modern
// /points/query endpoint and falling back to /points/search when the
// former isn't available (older Qdrant deployments).
func (c *Client) search(ctx context.Context, collection string, vec []float32, limit int, threshold float64, filter map[string]interface{}) ([]qdrantPoint, error) {
	if c == nil || !c.cfg.Enabled {
		return nil, fmt.Errorf("vectordb: search called while disabled")
	}
	start := time.Now()

	ctx, span := tracing.StartHTTPSpan(ctx, "POST", fmt.Sprintf("%s/collections/%s/points/query", c.base, collection))
	defer span.End()

	var thr *float64
	if threshold > 0 {
		thr = &threshold
	}
	reqBody := qdrantQueryRequest{Query: vec, Limit: limit, ScoreThreshold: thr, WithPayload: true, Filter: filter, WithVector: c.cfg.MMREnabled}
	buf, _ := json.Marshal(reqBody)

	call := func(url string, body []byte) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		tracing.InjectTraceparent(ctx, req)
		return c.httpw.Do(req)
	}

	urlQuery := fmt.Sprintf("%s/collections/%s/points/query", c.base, collection)
	resp, err := call(urlQuery, buf)
	if err != nil {
		ometrics.RecordVectorSearchMetrics(collection, "error", time.Since(start).Seconds())
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		// fallback to /points/search
		urlSearch := fmt.Sprintf("%s/collections/%s/points/search", c.base, collection)
		legacy := map[string]interface{}{"vector": vec, "limit": limit, "with_payload": true, "with_vector": c.cfg.MMREnabled}
		if threshold > 0 {
			legacy["score_threshold"] = threshold
		}
		if filter != nil {
			legacy["filter"] = filter
		}
		buf2, _ := json.Marshal(legacy)
		resp2, err2 := call(urlSearch, buf2)
		if err2 != nil {
			ometrics.RecordVectorSearchMetrics(collection, "error", time.Since(start).Seconds())
			return nil, fmt.Errorf("qdrant query/search failed: %w", err2)
		}
		defer resp2.Body.Close()
		if resp2.StatusCode != http.StatusOK {
			ometrics.RecordVectorSearchMetrics(collection, "error", time.Since(start).Seconds())
			return nil, fmt.Errorf("qdrant status %d", resp2.StatusCode)
		}
		var qr qdrantSearchResponse
		if err := json.NewDecoder(resp2.Body).Decode(&qr); err != nil {
			ometrics.RecordVectorSearchMetrics(collection, "error", time.Since(start).Seconds())
			return nil, err
		}
		ometrics.RecordVectorSearchMetrics(collection, "ok", time.Since(start).Seconds())
		return qr.Result, nil
	}
	var qr qdrantQueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		ometrics.RecordVectorSearchMetrics(collection, "error", time.Since(start).Seconds())
		return nil, err
	}
	ometrics.RecordVectorSearchMetrics(collection, "ok", time.Since(start).Seconds())
	return qr.Result.Points, nil
}

// SearchChunks runs a similarity search over the book-chunks collection,
// restricted by the Qdrant filter built by the caller (book_id / chapter
// scoping lives in internal/retrieval).
func (c *Client) SearchChunks(ctx context.Context, vec []float32, limit int, threshold float64, filter map[string]interface{}) ([]ChunkMatch, error) {
	if c == nil || !c.cfg.Enabled {
		return nil, fmt.Errorf("vectordb: search called while disabled")
	}
	if limit <= 0 {
		limit = c.cfg.TopK
	}
	points, err := c.search(ctx, c.cfg.Chunks, vec, limit, threshold, filter)
	if err != nil {
		return nil, err
	}
	return toChunkMatches(points), nil
}

func toChunkMatches(points []qdrantPoint) []ChunkMatch {
	matches := make([]ChunkMatch, 0, len(points))
	for _, p := range points {
		m := ChunkMatch{ID: fmt.Sprintf("%v", p.ID), Score: p.Score, Payload: p.Payload}
		if len(p.Vector) > 0 {
			v := make([]float32, len(p.Vector))
			for i, f := range p.Vector {
				v[i] = float32(f)
			}
			m.Vector = v
		}
		matches = append(matches, m)
	}
	return matches
}

// Upsert inserts or updates one or more points into a collection
func (c *Client) Upsert(ctx context.Context, collection string, points []UpsertItem) (*UpsertResponse, error) {
	if c == nil || !c.cfg.Enabled {
		return nil, fmt.Errorf("vectordb: upsert called while disabled")
	}

	url := fmt.Sprintf("%s/collections/%s/points", c.base, collection)
	ctx, span := tracing.StartHTTPSpan(ctx, "PUT", url)
	defer span.End()

	body := map[string]interface{}{
		"points": points,
	}
	buf, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	tracing.InjectTraceparent(ctx, req)
	resp, err := c.httpw.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("qdrant upsert status %d", resp.StatusCode)
	}
	var r UpsertResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, err
	}
	return &r, nil
}

// UpsertChunk inserts a single book-chunk embedding with its payload into the
// configured chunks collection, generating a point ID when the caller
// doesn't supply one.
func (c *Client) UpsertChunk(ctx context.Context, id string, vec []float32, payload map[string]interface{}) (*UpsertResponse, error) {
	if id == "" {
		id = uuid.New().String()
	}
	p := UpsertItem{ID: id, Vector: vec, Payload: payload}
	return c.Upsert(ctx, c.cfg.Chunks, []UpsertItem{p})
}

// CollectionStatus reports the chunk collection's point count and green/
// yellow/red status, used by the vector-index health checker.
type CollectionStatus struct {
	Status      string `json:"status"`
	PointsCount int64  `json:"points_count"`
}

type qdrantCollectionInfoResponse struct {
	Result struct {
		Status      string `json:"status"`
		PointsCount int64  `json:"points_count"`
	} `json:"result"`
	Status string `json:"status"`
}

// CollectionInfo fetches the configured chunks collection's status from
// Qdrant, used to confirm the vector index is reachable and populated.
func (c *Client) CollectionInfo(ctx context.Context) (*CollectionStatus, error) {
	if c == nil || !c.cfg.Enabled {
		return nil, fmt.Errorf("vectordb: collection info called while disabled")
	}
	url := fmt.Sprintf("%s/collections/%s", c.base, c.cfg.Chunks)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	tracing.InjectTraceparent(ctx, req)
	resp, err := c.httpw.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("qdrant collection info status %d", resp.StatusCode)
	}
	var r qdrantCollectionInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, err
	}
	return &CollectionStatus{Status: r.Result.Status, PointsCount: r.Result.PointsCount}, nil
}
