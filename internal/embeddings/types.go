package embeddings

import "time"

// Provider selects which embedding vendor backs the Service.
type Provider string

const (
	// ProviderCohere embeds via Cohere's embed-english-v3.0 model (1024 dims).
	ProviderCohere Provider = "cohere"
	// ProviderGoogle embeds via Google's text-embedding-004 model (768 dims).
	ProviderGoogle Provider = "google"
)

// InputType hints to the provider whether a text is a query being matched
// against the index or a document being added to it. Cohere's embed
// endpoint produces different vectors for each, so queries must never be
// embedded with the document hint and vice versa.
type InputType string

const (
	// InputTypeQuery marks text as a search query (asymmetric retrieval).
	InputTypeQuery InputType = "search_query"
	// InputTypeDocument marks text as content being indexed.
	InputTypeDocument InputType = "search_document"
)

// maxEmbedBatch caps how many texts Cohere will accept in a single /embed
// request; larger uncached batches are split into sequential sub-batches.
const maxEmbedBatch = 96

// Config controls the embedding service behavior
type Config struct {
	// Provider selects the embedding vendor.
	Provider Provider
	// APIKey authenticates against the selected provider.
	APIKey string
	// BaseURL overrides the provider's default API endpoint (tests, proxies).
	BaseURL string
	// DefaultModel is the default embedding model for the selected provider.
	DefaultModel string
	// Dimensions is the vector width the selected model produces; used to
	// validate the vector index collection at startup.
	Dimensions int
	// Timeout for outbound HTTP calls
	Timeout time.Duration
	// EnableRedis enables Redis-backed cache (optional)
	EnableRedis bool
	// RedisAddr in host:port form when EnableRedis is true
	RedisAddr string
	// CacheTTL sets TTL for embedding cache entries
	CacheTTL time.Duration
	// MaxLRU controls in-process LRU size
	MaxLRU int
	// Chunking configuration for long texts
	Chunking ChunkingConfig
}

// defaultsFor fills in the provider-specific default model and dimension
// when the caller left them unset.
func (c Config) defaultsFor(p Provider) (model string, dims int) {
	switch p {
	case ProviderGoogle:
		return "text-embedding-004", 768
	default: // ProviderCohere
		return "embed-english-v3.0", 1024
	}
}
