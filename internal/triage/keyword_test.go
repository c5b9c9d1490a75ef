package triage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestKeywordClassifier_Matches(t *testing.T) {
	t.Parallel()

	k := NewKeywordClassifier(DefaultVocabulary)

	tests := []struct {
		name string
		text string
		want bool
	}{
		{"exact term", "fire", true},
		{"term inside sentence", "there is a fire in the kitchen", true},
		{"mixed case", "My neighbor is TRAPPED under debris", true},
		{"apostrophe term", "she can't breathe", true},
		{"substring of larger word", "the firefighters arrived", true},
		{"no signal", "everything is fine here, thanks", false},
		{"empty text", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := k.Classify(tt.text); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestNewKeywordClassifier_NormalizesTerms(t *testing.T) {
	t.Parallel()

	k := NewKeywordClassifier([]string{"  FLOOD  ", "", "   "})

	if !k.Classify("the flood reached the second floor") {
		t.Error("expected normalized term to match")
	}
	if k.Classify("fire") {
		t.Error("default vocabulary should not apply when custom terms exist")
	}
}

func TestNewKeywordClassifier_EmptyFallsBackToDefaults(t *testing.T) {
	t.Parallel()

	k := NewKeywordClassifier(nil)

	if !k.Classify("send help now") {
		t.Error("expected default vocabulary to apply for empty input")
	}
}

func TestLoadVocabulary(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "vocab.yaml")
	content := "terms:\n  - flood\n  - landslide\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write vocab file: %v", err)
	}

	terms, err := LoadVocabulary(path)
	if err != nil {
		t.Fatalf("LoadVocabulary: %v", err)
	}
	if len(terms) != 2 {
		t.Fatalf("len(terms) = %d, want 2", len(terms))
	}
	if terms[0] != "flood" || terms[1] != "landslide" {
		t.Errorf("terms = %v, want [flood landslide]", terms)
	}
}

func TestLoadVocabulary_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := LoadVocabulary(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadVocabulary_NoTerms(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(path, []byte("terms: []\n"), 0o600); err != nil {
		t.Fatalf("write vocab file: %v", err)
	}

	if _, err := LoadVocabulary(path); err == nil {
		t.Error("expected error for empty term list")
	}
}
