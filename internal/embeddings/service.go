package embeddings

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ayeshadev283/bookrag/internal/circuitbreaker"
	ometrics "github.com/ayeshadev283/bookrag/internal/metrics"
	"github.com/ayeshadev283/bookrag/internal/tracing"
	"go.uber.org/zap"
)

// Service provides embedding generation with caching, tracing, and circuit
// breaking in front of the configured provider's HTTP API.
type Service struct {
	cfg    Config
	vendor vendorClient
	cache  EmbeddingCache
	lru    *LocalLRU
}

// Global singleton for simple wiring
var globalSvc *Service

// Initialize constructs the package-level embedding Service for the
// configured provider (Cohere or Google). Cache is optional; when nil the
// service falls back to the in-process LRU alone.
func Initialize(cfg Config, cache EmbeddingCache, logger *zap.Logger) {
	c := cfg
	if c.Provider == "" {
		c.Provider = ProviderCohere
	}
	defaultModel, defaultDims := c.defaultsFor(c.Provider)
	if c.DefaultModel == "" {
		c.DefaultModel = defaultModel
	}
	if c.Dimensions == 0 {
		c.Dimensions = defaultDims
	}
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Second
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = time.Hour
	}
	if c.MaxLRU == 0 {
		c.MaxLRU = 2048
	}
	if c.Chunking.Enabled && c.Chunking.MaxTokens == 0 {
		c.Chunking = DefaultChunkingConfig()
	}

	httpClient := &http.Client{Timeout: c.Timeout}
	httpw := circuitbreaker.NewHTTPWrapper(httpClient, string(c.Provider), "embeddings", logger)

	globalSvc = &Service{
		cfg:    c,
		vendor: newVendorClient(c, httpw),
		cache:  cache,
		lru:    NewLocalLRU(c.MaxLRU),
	}
}

func Get() *Service { return globalSvc }

// GetConfig returns the current configuration
func (s *Service) GetConfig() Config {
	if s == nil {
		return Config{
			Provider:     ProviderCohere,
			DefaultModel: "embed-english-v3.0",
			Dimensions:   1024,
			Chunking:     DefaultChunkingConfig(),
		}
	}
	return s.cfg
}

// GenerateEmbedding returns the vector for a single text using the configured
// provider. inputType tells an asymmetric provider like Cohere whether text
// is a search query or a document being indexed; pass "" to default to
// document embedding.
func (s *Service) GenerateEmbedding(ctx context.Context, text string, model string, inputType InputType) ([]float32, error) {
	out, err := s.GenerateBatchEmbeddings(ctx, []string{text}, model, inputType)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return out[0], nil
}

// GenerateBatchEmbeddings generates embeddings for multiple texts, consulting
// the LRU then the shared cache before calling the provider for whatever's
// left, and populating both cache tiers with the fresh results. Uncached
// texts are sent to the provider in sub-batches of at most maxEmbedBatch,
// since Cohere's /embed endpoint rejects larger single requests.
func (s *Service) GenerateBatchEmbeddings(ctx context.Context, texts []string, model string, inputType InputType) ([][]float32, error) {
	if s == nil {
		return nil, fmt.Errorf("embedding service not initialized")
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	m := model
	if m == "" {
		m = s.cfg.DefaultModel
	}

	results := make([][]float32, len(texts))
	var uncachedTexts []string
	var uncachedIndices []int

	for i, text := range texts {
		key := MakeKey(m, text)
		if v, ok := s.lru.Get(ctx, key); ok {
			results[i] = v
			ometrics.RecordEmbeddingMetrics(m, "lru_hit", 0)
			continue
		}
		if s.cache != nil {
			if v, ok := s.cache.Get(ctx, key); ok {
				results[i] = v
				s.lru.Set(ctx, key, v, 30*time.Minute)
				ometrics.RecordEmbeddingMetrics(m, "cache_hit", 0)
				continue
			}
		}
		uncachedTexts = append(uncachedTexts, text)
		uncachedIndices = append(uncachedIndices, i)
	}

	if len(uncachedTexts) == 0 {
		return results, nil
	}

	start := time.Now()
	ctx, span := tracing.StartHTTPSpan(ctx, "POST", string(s.cfg.Provider)+":embed")
	defer span.End()

	embeddings, err := s.embedInBatches(ctx, uncachedTexts, m, inputType)
	if err != nil {
		ometrics.RecordEmbeddingMetrics(m, "error", time.Since(start).Seconds())
		return nil, err
	}
	if len(embeddings) != len(uncachedTexts) {
		ometrics.RecordEmbeddingMetrics(m, "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("provider returned %d embeddings for %d texts", len(embeddings), len(uncachedTexts))
	}

	for i, vec := range embeddings {
		idx := uncachedIndices[i]
		results[idx] = vec

		key := MakeKey(m, uncachedTexts[i])
		s.lru.Set(ctx, key, vec, 30*time.Minute)
		if s.cache != nil {
			s.cache.Set(ctx, key, vec, s.cfg.CacheTTL)
		}
	}

	ometrics.RecordEmbeddingMetrics(m, "ok", time.Since(start).Seconds())
	return results, nil
}

// embedInBatches calls the vendor client once per maxEmbedBatch-sized slice
// of texts and concatenates the results in order.
func (s *Service) embedInBatches(ctx context.Context, texts []string, model string, inputType InputType) ([][]float32, error) {
	if len(texts) <= maxEmbedBatch {
		return s.vendor.embed(ctx, texts, model, inputType)
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxEmbedBatch {
		end := start + maxEmbedBatch
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := s.vendor.embed(ctx, texts[start:end], model, inputType)
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}
