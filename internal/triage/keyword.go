package triage

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultVocabulary is the emergency term list used when no vocabulary file
// is configured. Matching is case-insensitive substring containment.
var DefaultVocabulary = []string{
	"trapped", "unconscious", "fire", "injured", "can't breathe",
	"emergency", "urgent", "help", "attack", "bleeding",
}

// KeywordClassifier is the first, cheapest triage stage: a pure substring
// match with no I/O. Its false negatives are caught by the semantic
// fallback; its false positives are the accepted cost of recall-first
// triage.
type KeywordClassifier struct {
	terms []string
}

// NewKeywordClassifier builds a classifier over the given vocabulary.
// Empty or whitespace-only terms are dropped; an empty vocabulary falls
// back to DefaultVocabulary.
func NewKeywordClassifier(vocabulary []string) *KeywordClassifier {
	terms := make([]string, 0, len(vocabulary))
	for _, t := range vocabulary {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			terms = append(terms, t)
		}
	}
	if len(terms) == 0 {
		return NewKeywordClassifier(DefaultVocabulary)
	}
	return &KeywordClassifier{terms: terms}
}

// Classify reports whether text contains any vocabulary term, in any letter
// case. Empty text never matches. No scoring, no ranking: first hit wins.
func (k *KeywordClassifier) Classify(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, term := range k.terms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// vocabularyFile is the YAML shape of a vocabulary override file.
type vocabularyFile struct {
	Terms []string `yaml:"terms"`
}

// LoadVocabulary reads an emergency term list from a YAML file of the form:
//
//	terms:
//	  - trapped
//	  - fire
func LoadVocabulary(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary file: %w", err)
	}

	var vf vocabularyFile
	if err := yaml.Unmarshal(raw, &vf); err != nil {
		return nil, fmt.Errorf("parse vocabulary file %s: %w", path, err)
	}
	if len(vf.Terms) == 0 {
		return nil, fmt.Errorf("vocabulary file %s contains no terms", path)
	}
	return vf.Terms, nil
}
