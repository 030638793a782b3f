package refusal

import (
	"testing"

	"github.com/ayeshadev283/bookrag/internal/config"
	"github.com/ayeshadev283/bookrag/internal/models"
)

func TestShouldForceRefusal(t *testing.T) {
	g := New(config.RefusalConfig{PreLLMSimilarityThreshold: 0.7})

	if !g.ShouldForceRefusal(nil) {
		t.Error("expected refusal when no scores were retrieved")
	}
	if !g.ShouldForceRefusal([]float64{0.2, 0.5, 0.69}) {
		t.Error("expected refusal when max score is below threshold")
	}
	if g.ShouldForceRefusal([]float64{0.2, 0.71, 0.5}) {
		t.Error("expected no refusal when max score meets threshold")
	}
}

func TestIsRefusalResponse(t *testing.T) {
	g := New(config.RefusalConfig{})

	if !g.IsRefusalResponse("I'm sorry, the book does not contain information about that.") {
		t.Error("expected refusal keyword to be detected")
	}
	if g.IsRefusalResponse("Photosynthesis converts light energy into chemical energy.") {
		t.Error("did not expect a normal answer to be flagged as a refusal")
	}
	if g.IsRefusalResponse("") {
		t.Error("empty response should never be flagged as refusal")
	}
}

func TestDetectExternalReferences(t *testing.T) {
	g := New(config.RefusalConfig{EnableExternalRefDetector: true})

	refs := g.DetectExternalReferences("As described in Chapter 3, the mitochondria is the powerhouse of the cell.")
	if len(refs) != 2 {
		t.Fatalf("expected 2 external references, got %d: %v", len(refs), refs)
	}

	if g.DetectExternalReferences("The cell wall provides structural support.") != nil {
		t.Error("expected no external references for a clean response")
	}

	disabled := New(config.RefusalConfig{EnableExternalRefDetector: false})
	if disabled.DetectExternalReferences("See Chapter 1 for details.") != nil {
		t.Error("detector disabled via config should never report references")
	}
}

func TestBuildMessage(t *testing.T) {
	if msg := BuildMessage(models.ModeSelectedText, models.RefusalLowSimilarity); msg == "" {
		t.Error("expected a non-empty selected-text refusal message")
	}

	bookWide := BuildMessage(models.ModeBookWide, models.RefusalExternalReference)
	if bookWide == "" {
		t.Error("expected a non-empty book-wide refusal message")
	}
}
