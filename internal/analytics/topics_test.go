package analytics

import "testing"

func TestTopTopicsEmptyInput(t *testing.T) {
	if got := TopTopics(nil, 10); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
}

func TestTopTopicsRanksByFrequency(t *testing.T) {
	queries := []string{
		"What is photosynthesis?",
		"How does photosynthesis work in plants?",
		"Explain mitochondria function",
	}
	topics := TopTopics(queries, 5)
	if len(topics) == 0 {
		t.Fatal("expected at least one topic")
	}
	if topics[0].Topic != "photosynthesis" {
		t.Errorf("expected photosynthesis to rank first, got %q", topics[0].Topic)
	}
	if topics[0].Count != 2 {
		t.Errorf("expected count 2 for photosynthesis, got %d", topics[0].Count)
	}
}

func TestTopTopicsExcludesStopwords(t *testing.T) {
	topics := TopTopics([]string{"What should I explain about this topic?"}, 10)
	for _, topic := range topics {
		if stopwords[topic.Topic] {
			t.Errorf("stopword %q leaked into topic results", topic.Topic)
		}
	}
}

func TestTopTopicsCapturesCapitalizedPhrases(t *testing.T) {
	topics := TopTopics([]string{"Tell me about the French Revolution and its causes"}, 10)
	found := false
	for _, topic := range topics {
		if topic.Topic == "French Revolution" {
			found = true
		}
	}
	if !found {
		t.Error("expected capitalized phrase 'French Revolution' to be extracted")
	}
}

func TestTopTopicsRespectsTopN(t *testing.T) {
	queries := []string{"alpha bravo charlie delta echo foxtrot golf hotel"}
	topics := TopTopics(queries, 3)
	if len(topics) > 3 {
		t.Errorf("expected at most 3 topics, got %d", len(topics))
	}
}

func TestTopTopicsTieBreaksAlphabetically(t *testing.T) {
	topics := TopTopics([]string{"zeppelin skyline", "zeppelin skyline"}, 10)
	var names []string
	for _, tc := range topics {
		if tc.Count == topics[0].Count {
			names = append(names, tc.Topic)
		}
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Errorf("expected alphabetical tiebreak, got %v", names)
		}
	}
}
