package services

import (
	"strings"
	"unicode"
)

// TopicCategory labels a content candidate for saturation and diversity
// checks.
type TopicCategory string

const (
	TopicPolitics      TopicCategory = "politics"
	TopicBusiness      TopicCategory = "business"
	TopicTechnology    TopicCategory = "technology"
	TopicScience       TopicCategory = "science"
	TopicHealth        TopicCategory = "health"
	TopicSports        TopicCategory = "sports"
	TopicEntertainment TopicCategory = "entertainment"
	TopicGeneral       TopicCategory = "general"
)

// AllTopics returns the classifiable categories in canonical order.
func AllTopics() []TopicCategory {
	return []TopicCategory{
		TopicPolitics, TopicBusiness, TopicTechnology, TopicScience,
		TopicHealth, TopicSports, TopicEntertainment,
	}
}

var topicKeywords = map[TopicCategory][]string{
	TopicPolitics: {
		"election", "government", "president", "congress", "senate", "parliament",
		"minister", "policy", "legislation", "campaign", "vote", "democracy",
		"diplomat", "sanction", "treaty", "referendum",
	},
	TopicBusiness: {
		"market", "economy", "stock", "investor", "startup", "revenue",
		"earnings", "inflation", "trade", "merger", "acquisition", "bank",
		"finance", "profit", "ipo", "quarterly",
	},
	TopicTechnology: {
		"software", "technology", "startup", "app", "smartphone", "computer",
		"internet", "cyber", "artificial intelligence", "machine learning",
		"algorithm", "data", "cloud", "chip", "semiconductor", "robot",
	},
	TopicScience: {
		"research", "study", "scientist", "discovery", "physics", "chemistry",
		"biology", "astronomy", "climate", "species", "experiment", "telescope",
		"genome", "fossil", "quantum", "laboratory",
	},
	TopicHealth: {
		"health", "medical", "disease", "vaccine", "hospital", "doctor",
		"patient", "treatment", "drug", "cancer", "virus", "mental health",
		"nutrition", "epidemic", "surgery", "diagnosis",
	},
	TopicSports: {
		"game", "match", "tournament", "championship", "league", "player",
		"coach", "season", "goal", "team", "olympic", "football", "soccer",
		"basketball", "tennis", "athlete",
	},
	TopicEntertainment: {
		"film", "movie", "music", "album", "celebrity", "actor", "actress",
		"concert", "festival", "streaming", "premiere", "box office",
		"television", "series", "award", "director",
	},
}

// ClassifyTopic determines the topic for a candidate from title and content.
// Title keyword hits are weighted 2x; ties and no-hits fall back to general.
func ClassifyTopic(title, content string) TopicCategory {
	titleLower := strings.ToLower(title)
	contentLower := strings.ToLower(contentHead(content, 600))

	best := TopicGeneral
	bestScore := 0
	for _, topic := range AllTopics() {
		score := 0
		for _, kw := range topicKeywords[topic] {
			score += 2 * countOccurrences(titleLower, kw)
			score += countOccurrences(contentLower, kw)
		}
		if score > bestScore {
			bestScore = score
			best = topic
		}
	}
	return best
}

// countOccurrences counts whole-word (or whole-phrase) matches.
func countOccurrences(text, keyword string) int {
	count := 0
	idx := 0
	for {
		pos := strings.Index(text[idx:], keyword)
		if pos < 0 {
			break
		}
		start := idx + pos
		end := start + len(keyword)
		beforeOK := start == 0 || !isWordChar(rune(text[start-1]))
		afterOK := end >= len(text) || !isWordChar(rune(text[end]))
		if beforeOK && afterOK {
			count++
		}
		idx = end
	}
	return count
}

func isWordChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func contentHead(content string, n int) string {
	if len(content) <= n {
		return content
	}
	return content[:n]
}
