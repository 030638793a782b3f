package citation

import (
	"testing"

	"github.com/ayeshadev283/bookrag/internal/models"
)

func chunk(id string, score float64, chapterNum int, chapterTitle, section, slug, sourceFile string) models.RetrievedChunk {
	return models.RetrievedChunk{
		Chunk: models.Chunk{
			ID:            id,
			ChapterNumber: chapterNum,
			ChapterTitle:  chapterTitle,
			Section:       section,
			SectionSlug:   slug,
			SourceFile:    sourceFile,
		},
		Score: score,
	}
}

func TestBuildConsolidatesSameSection(t *testing.T) {
	chunks := []models.RetrievedChunk{
		chunk("a", 0.85, 0, "Foundations", "Locomotion and Motor Control", "locomotion-motor-control", "docs/chapters/module-0-foundations/04-locomotion-motor-control.md"),
		chunk("b", 0.78, 0, "Foundations", "Locomotion and Motor Control", "locomotion-motor-control", "docs/chapters/module-0-foundations/04-locomotion-motor-control.md"),
	}

	citations := Build(chunks)
	if len(citations) != 1 {
		t.Fatalf("expected 1 citation, got %d", len(citations))
	}
	if citations[0].ChunkCount != 2 {
		t.Errorf("expected chunk_count 2, got %d", citations[0].ChunkCount)
	}
	if citations[0].MaxSimilarity != 0.85 {
		t.Errorf("expected max_similarity 0.85, got %v", citations[0].MaxSimilarity)
	}
}

func TestBuildGeneratesAnchorURL(t *testing.T) {
	chunks := []models.RetrievedChunk{
		chunk("a", 0.85, 0, "Foundations", "Locomotion and Motor Control", "locomotion-motor-control", "docs/chapters/module-0-foundations/04-locomotion-motor-control.md"),
	}

	citations := Build(chunks)
	url := citations[0].URL
	if url != "/chapters/module-0-foundations/locomotion-motor-control#locomotion-motor-control" {
		t.Errorf("unexpected url: %s", url)
	}
}

func TestBuildHandlesMultipleSections(t *testing.T) {
	chunks := []models.RetrievedChunk{
		chunk("a", 0.85, 0, "Foundations", "Locomotion and Motor Control", "locomotion-motor-control", "docs/a.md"),
		chunk("b", 0.80, 0, "Foundations", "Embodied Intelligence", "embodied-intelligence", "docs/b.md"),
	}

	citations := Build(chunks)
	if len(citations) != 2 {
		t.Fatalf("expected 2 citations, got %d", len(citations))
	}
}

func TestBuildOrdersByChapterNumber(t *testing.T) {
	chunks := []models.RetrievedChunk{
		chunk("a", 0.85, 1, "ROS2", "Core Concepts", "core-concepts", "docs/a.md"),
		chunk("b", 0.80, 0, "Foundations", "Locomotion", "locomotion", "docs/b.md"),
	}

	citations := Build(chunks)
	if citations[0].Chapter[:len("Module 0")] != "Module 0" {
		t.Errorf("expected module 0 first, got %s", citations[0].Chapter)
	}
	if citations[1].Chapter[:len("Module 1")] != "Module 1" {
		t.Errorf("expected module 1 second, got %s", citations[1].Chapter)
	}
}

func TestBuildHandlesEmptyChunks(t *testing.T) {
	if citations := Build(nil); len(citations) != 0 {
		t.Errorf("expected empty citation list, got %v", citations)
	}
}

func TestBuildHandlesMissingMetadata(t *testing.T) {
	chunks := []models.RetrievedChunk{chunk("a", 0.85, 0, "", "", "", "")}
	citations := Build(chunks)
	if len(citations) != 1 {
		t.Fatalf("expected 1 citation even with missing metadata, got %d", len(citations))
	}
	if citations[0].Section != "Unknown Section" {
		t.Errorf("expected default section, got %s", citations[0].Section)
	}
	if citations[0].URL != "#unknown-section" {
		t.Errorf("expected default url for missing source file, got %s", citations[0].URL)
	}
}

func TestGenerateSlugHandlesSpecialCharacters(t *testing.T) {
	slug := generateSlug("ROS 2 & Simulation")
	if slug != "ros-2-simulation" {
		t.Errorf("unexpected slug: %s", slug)
	}
}
