package audit

import (
	"testing"

	"github.com/ayeshadev283/bookrag/internal/models"
)

func TestCitationsToJSONBEmpty(t *testing.T) {
	got := citationsToJSONB(nil)
	if len(got) != 0 {
		t.Errorf("expected empty JSONB for no citations, got %v", got)
	}
}

func TestCitationsToJSONBWrapsEntries(t *testing.T) {
	cites := []models.Citation{{Chapter: "1", Section: "Intro", SourceFile: "ch1.md", URL: "/books/x#ch1", ChunkCount: 2}}
	got := citationsToJSONB(cites)
	raw, ok := got["citations"].([]interface{})
	if !ok || len(raw) != 1 {
		t.Fatalf("expected one wrapped citation, got %v", got)
	}
}
