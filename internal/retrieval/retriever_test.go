package retrieval

import (
	"testing"

	"github.com/ayeshadev283/bookrag/internal/models"
)

func TestConfidenceScore(t *testing.T) {
	cases := []struct {
		name   string
		scores []float64
		want   float64
	}{
		{"empty", nil, 0},
		{"single", []float64{0.842}, 0.84},
		{"average", []float64{0.9, 0.8, 0.7}, 0.8},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ConfidenceScore(tc.scores)
			if got != tc.want {
				t.Errorf("ConfidenceScore(%v) = %v, want %v", tc.scores, got, tc.want)
			}
		})
	}
}

func TestExtractSourceReferences(t *testing.T) {
	chunks := []models.RetrievedChunk{
		{Chunk: models.Chunk{ID: "c1", ChapterNumber: 3, Section: "Intro"}, Score: 0.9},
		{Chunk: models.Chunk{ID: "c2", ChapterNumber: 4}, Score: 0.8},
	}

	refs := ExtractSourceReferences(chunks)
	if len(refs) != 2 {
		t.Fatalf("expected 2 references, got %d", len(refs))
	}
	if refs[0].Citation != "Chapter 3, Intro" {
		t.Errorf("unexpected citation: %s", refs[0].Citation)
	}
	if refs[1].Citation != "Chapter 4" {
		t.Errorf("unexpected citation: %s", refs[1].Citation)
	}
	if refs[0].ChunkID != "c1" {
		t.Errorf("expected chunk_id c1, got %s", refs[0].ChunkID)
	}
}

func TestBuildFilter(t *testing.T) {
	if f := buildFilter(""); f != nil {
		t.Errorf("expected nil filter for empty book id, got %v", f)
	}

	f := buildFilter("physical-ai-robotics")
	must, ok := f["must"].([]map[string]interface{})
	if !ok || len(must) != 1 {
		t.Fatalf("expected single must clause, got %v", f)
	}
	if must[0]["key"] != "book_id" {
		t.Errorf("expected book_id key, got %v", must[0]["key"])
	}
}
