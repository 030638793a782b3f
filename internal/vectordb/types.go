package vectordb

import "time"

// Config controls Qdrant client behavior
type Config struct {
	Enabled bool
	Host    string
	Port    int
	// Chunks is the collection holding book chunk embeddings.
	Chunks string
	// Search params
	TopK      int
	Threshold float64
	Timeout   time.Duration
	// Validation
	ExpectedEmbeddingDim int // Must match the configured embedding provider's Dimensions
	// MMR (diversity) re-ranking
	MMREnabled        bool
	MMRLambda         float64
	MMRPoolMultiplier int
}

// ChunkMatch is a single retrieved chunk, as returned by the vector index
// before it is assembled into a models.RetrievedChunk.
type ChunkMatch struct {
	ID      string                 `json:"id"`
	Score   float64                `json:"score"`
	Payload map[string]interface{} `json:"payload"`
	// Vector is only populated when the caller requested it (e.g. for MMR).
	Vector []float32 `json:"-"`
}

// UpsertItem represents a single point to insert into Qdrant
type UpsertItem struct {
	ID      interface{}            `json:"id,omitempty"`
	Vector  []float32              `json:"vector"`
	Payload map[string]interface{} `json:"payload"`
}

// UpsertResponse captures basic Qdrant upsert response
type UpsertResponse struct {
	Status string  `json:"status"`
	Time   float64 `json:"time"`
}
