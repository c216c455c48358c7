package services

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/language"
)

// Minimum content length in characters, per language. Languages without an
// entry use the default.
var minContentLength = map[string]int{
	"en": 1200,
	"es": 1000,
}

const defaultMinContentLength = 800

// Minimal stopword sets used to check that the declared language plausibly
// matches the content. Intentionally small: this is a sanity check, not
// language identification.
var stopwords = map[string][]string{
	"en": {"the", "and", "of", "to", "in", "is", "that", "for", "with", "was"},
	"es": {"el", "la", "de", "que", "y", "en", "los", "del", "las", "una"},
}

// ValidationOutcome reports a language/quality decision with a reason.
type ValidationOutcome struct {
	Valid  bool
	Reason string
}

// LanguageValidator enforces declared-language validity, minimum length and
// structural quality per language.
type LanguageValidator struct{}

func NewLanguageValidator() *LanguageValidator {
	return &LanguageValidator{}
}

// Validate checks a candidate's declared language tag against its content.
func (v *LanguageValidator) Validate(lang, title, content string) ValidationOutcome {
	tag, err := language.Parse(lang)
	if err != nil {
		return ValidationOutcome{Reason: fmt.Sprintf("invalid language tag %q", lang)}
	}
	base, _ := tag.Base()
	langCode := base.String()

	minLen, ok := minContentLength[langCode]
	if !ok {
		minLen = defaultMinContentLength
	}
	if len(content) < minLen {
		return ValidationOutcome{Reason: fmt.Sprintf("content too short: %d chars, minimum %d for %s", len(content), minLen, langCode)}
	}

	if strings.TrimSpace(title) == "" {
		return ValidationOutcome{Reason: "missing title"}
	}

	words := strings.Fields(content)
	if len(words) < 100 {
		return ValidationOutcome{Reason: fmt.Sprintf("too few words: %d", len(words))}
	}

	// Sentence structure: at least some terminal punctuation
	if !strings.ContainsAny(content, ".!?") {
		return ValidationOutcome{Reason: "no sentence structure detected"}
	}

	// Shouty/garbage content: cap the uppercase-letter ratio
	if upperRatio(content) > 0.4 {
		return ValidationOutcome{Reason: "excessive uppercase content"}
	}

	// Declared language must agree with the content, where we have a
	// stopword list to check against
	if list, ok := stopwords[langCode]; ok {
		if stopwordRatio(words, list) < 0.01 {
			return ValidationOutcome{Reason: fmt.Sprintf("content does not look like %s", langCode)}
		}
	}

	return ValidationOutcome{Valid: true}
}

func upperRatio(content string) float64 {
	var letters, upper int
	for _, r := range content {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(upper) / float64(letters)
}

func stopwordRatio(words []string, list []string) float64 {
	if len(words) == 0 {
		return 0
	}
	set := make(map[string]bool, len(list))
	for _, w := range list {
		set[w] = true
	}
	hits := 0
	for _, w := range words {
		if set[strings.ToLower(strings.Trim(w, ".,;:!?\"'()"))] {
			hits++
		}
	}
	return float64(hits) / float64(len(words))
}
