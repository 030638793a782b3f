package generation

import (
	"strings"
	"testing"

	"github.com/ayeshadev283/bookrag/internal/models"
)

func TestFormatRetrievedChunksWithSection(t *testing.T) {
	chunks := []models.RetrievedChunk{
		{Chunk: models.Chunk{ChapterNumber: 2, Section: "Gradient Descent", Content: "Gradients point uphill."}},
	}
	out := formatRetrievedChunks(chunks)
	if !strings.Contains(out, "[Source 1 - Chapter 2, Section Gradient Descent]") {
		t.Errorf("missing formatted source header: %q", out)
	}
	if !strings.Contains(out, "Gradients point uphill.") {
		t.Errorf("missing chunk content: %q", out)
	}
}

func TestFormatRetrievedChunksWithoutSection(t *testing.T) {
	chunks := []models.RetrievedChunk{
		{Chunk: models.Chunk{ChapterNumber: 5, Content: "Backpropagation computes gradients layer by layer."}},
	}
	out := formatRetrievedChunks(chunks)
	if !strings.Contains(out, "[Source 1 - Chapter 5]") {
		t.Errorf("expected section-less header, got %q", out)
	}
}

func TestFormatSystemPromptIncludesQuestionAndTitle(t *testing.T) {
	chunks := []models.RetrievedChunk{{Chunk: models.Chunk{ChapterNumber: 1, Content: "Intro text."}}}
	prompt := formatSystemPrompt("Deep Learning", chunks, "What is backpropagation?")

	if !strings.Contains(prompt, "Deep Learning") {
		t.Error("expected book title in prompt")
	}
	if !strings.Contains(prompt, "What is backpropagation?") {
		t.Error("expected user question in prompt")
	}
	if !strings.Contains(prompt, "Intro text.") {
		t.Error("expected chunk content in prompt")
	}
}

func TestFormatSystemPromptDefaultsTitle(t *testing.T) {
	prompt := formatSystemPrompt("", nil, "question")
	if !strings.Contains(prompt, "this book") {
		t.Errorf("expected default book title fallback, got %q", prompt)
	}
}

func TestDefaultEndpoint(t *testing.T) {
	if defaultEndpoint("anthropic") != "https://api.anthropic.com/v1/messages" {
		t.Error("unexpected anthropic endpoint")
	}
	if defaultEndpoint("openai") != "https://api.openai.com/v1/chat/completions" {
		t.Error("unexpected default endpoint")
	}
}
