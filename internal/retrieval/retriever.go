// Package retrieval builds Qdrant filters for book-scoped chunk search and
// assembles the raw matches into the domain's Chunk/RetrievedChunk shapes.
package retrieval

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/ayeshadev283/bookrag/internal/config"
	"github.com/ayeshadev283/bookrag/internal/models"
	"github.com/ayeshadev283/bookrag/internal/vectordb"
)

// Retriever wraps the vector index client with the chunk-payload filtering
// and overfetch strategy the book-RAG domain needs.
type Retriever struct {
	vdb *vectordb.Client
	cfg config.VectorConfig
	log *zap.Logger
}

// New builds a Retriever against the given vector index client.
func New(vdb *vectordb.Client, cfg config.VectorConfig, log *zap.Logger) *Retriever {
	if cfg.FilterPoolMultiplier <= 0 {
		cfg.FilterPoolMultiplier = 4
	}
	return &Retriever{vdb: vdb, cfg: cfg, log: log}
}

// Retrieve runs the similarity search for a query embedding, scoped to a
// book (and optionally a single chapter), and returns the ranked chunks.
//
// The payload index is declared on book_id only. When chapterNumber is set,
// the search overfetches topK*FilterPoolMultiplier candidates restricted to
// the book and applies the chapter filter in memory, trimming back to topK.
func (r *Retriever) Retrieve(
	ctx context.Context,
	queryEmbedding []float32,
	bookID string,
	chapterNumber *int,
	topK int,
	threshold float64,
) ([]models.RetrievedChunk, error) {
	if topK <= 0 {
		topK = r.cfg.TopK
	}
	if threshold <= 0 {
		threshold = r.cfg.Threshold
	}

	filter := buildFilter(bookID)

	fetchLimit := topK
	if chapterNumber != nil {
		fetchLimit = topK * r.cfg.FilterPoolMultiplier
		if ceil := r.cfg.TopK * 20; ceil > 0 && fetchLimit > ceil {
			fetchLimit = ceil
		}
	}

	matches, err := r.vdb.SearchChunks(ctx, queryEmbedding, fetchLimit, threshold, filter)
	if err != nil {
		return nil, fmt.Errorf("retrieval: search failed: %w", err)
	}

	chunks := make([]models.RetrievedChunk, 0, len(matches))
	for _, m := range matches {
		chunks = append(chunks, toRetrievedChunk(m))
	}

	if chapterNumber != nil {
		filtered := chunks[:0]
		for _, c := range chunks {
			if c.ChapterNumber == *chapterNumber {
				filtered = append(filtered, c)
			}
		}
		chunks = filtered
	}

	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].Score > chunks[j].Score })

	if len(chunks) > topK {
		chunks = chunks[:topK]
	}

	r.log.Info("Retrieved chunks",
		zap.Int("count", len(chunks)),
		zap.Float64("threshold", threshold),
		zap.String("book_id", bookID))

	return chunks, nil
}

func buildFilter(bookID string) map[string]interface{} {
	if bookID == "" {
		return nil
	}
	return map[string]interface{}{
		"must": []map[string]interface{}{
			{"key": "book_id", "match": map[string]interface{}{"value": bookID}},
		},
	}
}

func toRetrievedChunk(m vectordb.ChunkMatch) models.RetrievedChunk {
	p := m.Payload
	return models.RetrievedChunk{
		Chunk: models.Chunk{
			ID:            m.ID,
			BookID:        stringField(p, "book_id"),
			BookVersion:   stringField(p, "book_version"),
			ChapterNumber: intField(p, "chapter_number"),
			ChapterTitle:  stringField(p, "chapter_title"),
			Section:       stringField(p, "section"),
			SectionSlug:   stringField(p, "section_slug"),
			SourceFile:    stringField(p, "source_file"),
			Content:       stringField(p, "content"),
			WordCount:     intField(p, "word_count"),
			HasCodeBlock:  boolField(p, "has_code_block"),
			HasMath:       boolField(p, "has_math"),
		},
		Score: m.Score,
	}
}

func stringField(p map[string]interface{}, key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

func intField(p map[string]interface{}, key string) int {
	switch v := p[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func boolField(p map[string]interface{}, key string) bool {
	if v, ok := p[key].(bool); ok {
		return v
	}
	return false
}

// ConfidenceScore averages retrieved-chunk similarity scores into a single
// 0.0-1.0 confidence value attached to the generated response.
func ConfidenceScore(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	avg := sum / float64(len(scores))
	return roundTo2(avg)
}

func roundTo2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

// SourceReference is the legacy per-chunk citation projection, kept for
// callers that want a flat reference list rather than the grouped Citation
// shape internal/citation produces.
type SourceReference struct {
	Chapter string `json:"chapter"`
	Section string `json:"section"`
	Citation string `json:"citation"`
	ChunkID string `json:"chunk_id"`
}

// ExtractSourceReferences projects retrieved chunks into flat source
// references, one per chunk.
func ExtractSourceReferences(chunks []models.RetrievedChunk) []SourceReference {
	refs := make([]SourceReference, 0, len(chunks))
	for _, c := range chunks {
		refs = append(refs, SourceReference{
			Chapter:  fmt.Sprintf("%d", c.ChapterNumber),
			Section:  c.Section,
			Citation: formatCitation(c.ChapterNumber, c.Section),
			ChunkID:  c.ID,
		})
	}
	return refs
}

func formatCitation(chapter int, section string) string {
	if section != "" {
		return fmt.Sprintf("Chapter %d, %s", chapter, section)
	}
	return fmt.Sprintf("Chapter %d", chapter)
}
