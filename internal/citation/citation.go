// Package citation consolidates retrieved chunks from the same chapter and
// section into single, de-duplicated citations with navigable anchor URLs.
package citation

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ayeshadev283/bookrag/internal/models"
)

var (
	slugDisallowed = regexp.MustCompile(`[^\w\s-]`)
	slugWhitespace = regexp.MustCompile(`[-\s]+`)
	numericPrefix  = regexp.MustCompile(`^\d+-`)
)

type groupKey struct {
	chapter     string
	section     string
	sectionSlug string
	sourceFile  string
}

// Build groups retrieved chunks by (chapter, section, section slug, source
// file) and returns one Citation per group, sorted by the module number in
// the chapter label, then by the label itself. Multiple chunks from the
// same section collapse into a single citation with an aggregated
// chunk_count and the highest similarity score in the group.
func Build(chunks []models.RetrievedChunk) []models.Citation {
	if len(chunks) == 0 {
		return []models.Citation{}
	}

	order := make([]groupKey, 0)
	groups := make(map[groupKey][]models.RetrievedChunk)

	for _, c := range chunks {
		key := groupKey{
			chapter:     formatChapter(c.ChapterNumber, c.ChapterTitle),
			section:     orDefault(c.Section, "Unknown Section"),
			sectionSlug: orDefault(c.SectionSlug, generateSlug(c.Section)),
			sourceFile:  c.SourceFile,
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], c)
	}

	citations := make([]models.Citation, 0, len(order))
	for _, key := range order {
		group := groups[key]

		ids := make([]string, 0, len(group))
		maxScore := 0.0
		for _, c := range group {
			ids = append(ids, c.ID)
			if c.Score > maxScore {
				maxScore = c.Score
			}
		}

		citations = append(citations, models.Citation{
			Chapter:       key.chapter,
			Section:       key.section,
			SourceFile:    key.sourceFile,
			URL:           buildURL(key.sourceFile, key.sectionSlug),
			ChunkCount:    len(group),
			ChunkIDs:      ids,
			MaxSimilarity: maxScore,
		})
	}

	sort.SliceStable(citations, func(i, j int) bool {
		oi, oj := extractChapterOrder(citations[i].Chapter), extractChapterOrder(citations[j].Chapter)
		if oi != oj {
			return oi < oj
		}
		return citations[i].Chapter < citations[j].Chapter
	})

	return citations
}

func formatChapter(number int, title string) string {
	if title == "" {
		return fmt.Sprintf("Module %d", number)
	}
	return fmt.Sprintf("Module %d - %s", number, title)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// buildURL constructs a Docusaurus-style anchor link from a chunk's source
// file path, stripping the "docs/" prefix, the ".md" extension, and any
// numeric ordering prefix on the filename (e.g. "04-locomotion.md").
func buildURL(sourceFile, sectionSlug string) string {
	if sourceFile == "" {
		return "#unknown-section"
	}

	clean := strings.TrimSuffix(strings.TrimPrefix(sourceFile, "docs/"), ".md")
	parts := strings.Split(clean, "/")
	if len(parts) > 0 {
		parts[len(parts)-1] = numericPrefix.ReplaceAllString(parts[len(parts)-1], "")
	}

	return fmt.Sprintf("/%s#%s", strings.Join(parts, "/"), sectionSlug)
}

// generateSlug derives a URL-safe slug from a section title when the chunk
// payload didn't carry one already.
func generateSlug(section string) string {
	slug := strings.ToLower(section)
	slug = slugDisallowed.ReplaceAllString(slug, "")
	slug = slugWhitespace.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

var moduleNumber = regexp.MustCompile(`(?i)module\s+(\d+)`)

// extractChapterOrder pulls the leading module number out of a chapter
// label for sorting; chapters without one sort last, alphabetically.
func extractChapterOrder(chapter string) int {
	m := moduleNumber.FindStringSubmatch(chapter)
	if m == nil {
		return 999
	}
	n := 0
	fmt.Sscanf(m[1], "%d", &n)
	return n
}
