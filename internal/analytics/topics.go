package analytics

import (
	"regexp"
	"sort"
	"strings"

	"github.com/ayeshadev283/bookrag/internal/models"
)

var capitalizedPhrase = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+){0,3}\b`)
var technicalWord = regexp.MustCompile(`\b\w{5,}\b`)

// stopwords are common question words and filler terms excluded from topic
// extraction so they don't crowd out genuine subject keywords.
var stopwords = map[string]bool{
	"what": true, "how": true, "why": true, "when": true, "where": true,
	"who": true, "which": true, "is": true, "are": true, "was": true,
	"were": true, "the": true, "a": true, "an": true, "and": true,
	"or": true, "but": true, "in": true, "on": true, "at": true,
	"to": true, "for": true, "of": true, "with": true, "by": true,
	"from": true, "about": true, "as": true, "into": true, "like": true,
	"through": true, "after": true, "over": true, "between": true,
	"out": true, "against": true, "during": true, "without": true,
	"before": true, "under": true, "around": true, "among": true,
	"does": true, "do": true, "did": true, "can": true, "could": true,
	"should": true, "would": true, "will": true, "may": true,
	"might": true, "must": true, "shall": true, "explain": true,
	"describe": true, "tell": true, "me": true, "you": true,
}

// TopTopics extracts the topN most common keywords/phrases across a set of
// query strings: capitalized phrases (likely proper nouns/topics) plus any
// word of 5+ characters that isn't a stopword.
func TopTopics(queries []string, topN int) []models.TopicCount {
	if len(queries) == 0 {
		return nil
	}

	counts := make(map[string]int)
	for _, q := range queries {
		for _, phrase := range capitalizedPhrase.FindAllString(q, -1) {
			counts[phrase]++
		}
		for _, word := range technicalWord.FindAllString(strings.ToLower(q), -1) {
			if !stopwords[word] {
				counts[word]++
			}
		}
	}

	topics := make([]models.TopicCount, 0, len(counts))
	for topic, count := range counts {
		topics = append(topics, models.TopicCount{Topic: topic, Count: count})
	}

	sort.SliceStable(topics, func(i, j int) bool {
		if topics[i].Count != topics[j].Count {
			return topics[i].Count > topics[j].Count
		}
		return topics[i].Topic < topics[j].Topic
	})

	if len(topics) > topN {
		topics = topics[:topN]
	}
	return topics
}
