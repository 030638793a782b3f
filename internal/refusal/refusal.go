// Package refusal implements the anti-hallucination gates that run before
// and after the LLM call: a pre-LLM similarity floor that skips generation
// entirely when retrieval came back too thin, and a post-LLM scan for
// refusal language or references the model should not be making.
package refusal

import (
	"regexp"
	"strings"

	"github.com/ayeshadev283/bookrag/internal/config"
	"github.com/ayeshadev283/bookrag/internal/models"
)

// refusalKeywords are phrases that indicate the generator could not answer
// from the supplied context, checked case-insensitively against the raw
// response text.
var refusalKeywords = []string{
	"don't have information",
	"does not contain information",
	"not contain sufficient information",
	"cannot answer",
	"outside the scope",
	"not mentioned in",
	"not covered in",
	"insufficient information",
	"unable to find information",
}

// externalReferencePatterns catch a response citing chapter/section
// structure that was never part of the caller's selected text.
var externalReferencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)chapter\s+\d+`),
	regexp.MustCompile(`(?i)module\s+\d+`),
	regexp.MustCompile(`(?i)section\s+\d+`),
	regexp.MustCompile(`(?i)see\s+chapter`),
	regexp.MustCompile(`(?i)as\s+mentioned\s+in\s+chapter`),
	regexp.MustCompile(`(?i)described\s+in\s+chapter`),
}

// Gate evaluates the pre-LLM similarity floor and the post-LLM content
// checks, using the thresholds and feature flags loaded at startup.
type Gate struct {
	cfg config.RefusalConfig
}

// New builds a Gate from the process's refusal-gate configuration.
func New(cfg config.RefusalConfig) *Gate {
	return &Gate{cfg: cfg}
}

// ShouldForceRefusal reports whether generation should be skipped because
// retrieval's best match falls below the similarity threshold. An empty
// score list is always refused — there is nothing to answer from.
func (g *Gate) ShouldForceRefusal(similarityScores []float64) bool {
	if len(similarityScores) == 0 {
		return true
	}

	max := similarityScores[0]
	for _, s := range similarityScores[1:] {
		if s > max {
			max = s
		}
	}

	threshold := g.cfg.PreLLMSimilarityThreshold
	if threshold <= 0 {
		threshold = 0.3
	}
	return max < threshold
}

// IsRefusalResponse reports whether a generated response reads as a refusal,
// checked post-generation so callers can log refusal_reason accurately even
// when the model declines on its own.
func (g *Gate) IsRefusalResponse(responseText string) bool {
	if responseText == "" {
		return false
	}
	lower := strings.ToLower(responseText)
	for _, kw := range refusalKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// DetectExternalReferences scans a generated response for chapter/section
// references, relevant when the query mode restricts the model to a single
// selected passage. Returns nil when nothing was found.
func (g *Gate) DetectExternalReferences(responseText string) []string {
	if !g.cfg.EnableExternalRefDetector || responseText == "" {
		return nil
	}

	var refs []string
	for _, pattern := range externalReferencePatterns {
		refs = append(refs, pattern.FindAllString(responseText, -1)...)
	}
	if len(refs) == 0 {
		return nil
	}
	return refs
}

// BuildMessage renders the user-facing refusal text for a given query mode
// and reason. Selected-text mode always gets the mandatory fixed message
// regardless of reason.
func BuildMessage(mode models.QueryMode, reason models.RefusalReason) string {
	if mode == models.ModeSelectedText {
		return "The selected text does not contain sufficient information to answer this question."
	}

	switch reason {
	case models.RefusalExternalReference:
		return "I cannot answer questions that require information beyond the book's content."
	case models.RefusalLowSimilarity:
		return "I don't have information about that topic in the book. Please try rephrasing your question or asking about content covered in the chapters."
	default:
		return "I cannot find sufficient information in the book to answer this question."
	}
}
