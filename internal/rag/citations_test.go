package rag

import (
	"strings"
	"testing"
)

func testCitations() []Citation {
	return []Citation{
		{DocumentID: "d1", SimilarityScore: 0.9},
		{DocumentID: "d2", SimilarityScore: 0.5},
		{DocumentID: "d3", SimilarityScore: 0.2},
	}
}

func TestValidateCitedSources_DropsOutOfRange(t *testing.T) {
	valid := validateCitedSources([]int{1, 5, 0, 3}, testCitations())

	if len(valid) != 2 || valid[0] != 1 || valid[1] != 3 {
		t.Errorf("expected [1 3], got %v", valid)
	}
}

func TestValidateCitedSources_EmptyFallsBackToTop3(t *testing.T) {
	valid := validateCitedSources([]int{7, 8}, testCitations())

	if len(valid) != 3 {
		t.Fatalf("expected 3 fallback sources, got %v", valid)
	}
	if valid[0] != 1 {
		t.Errorf("expected highest-similarity source first, got %v", valid)
	}
}

func TestUsedCitations_FiltersLowSimilarity(t *testing.T) {
	citations := []Citation{
		{DocumentID: "d1", SimilarityScore: 0.9},
		{DocumentID: "d2", SimilarityScore: -0.5},
	}

	used := usedCitations([]int{1, 2}, citations)

	if len(used) != 1 || used[0].DocumentID != "d1" {
		t.Errorf("expected only high-similarity citation, got %+v", used)
	}
}

func TestUsedCitations_AllFilteredKeepsTop3(t *testing.T) {
	citations := []Citation{
		{DocumentID: "d1", SimilarityScore: -0.5},
		{DocumentID: "d2", SimilarityScore: -0.4},
	}

	used := usedCitations([]int{1, 2}, citations)

	if len(used) != 2 {
		t.Fatalf("expected top citations kept despite low scores, got %d", len(used))
	}
	if used[0].DocumentID != "d2" {
		t.Errorf("expected best score first, got %+v", used)
	}
}

func TestUsedCitations_Deduplicates(t *testing.T) {
	used := usedCitations([]int{2, 1, 2, 1}, testCitations())

	if len(used) != 2 {
		t.Errorf("expected duplicate source numbers collapsed, got %d", len(used))
	}
}

func TestScrubSourceReferences_RemovesInvalid(t *testing.T) {
	answer := "Termination needs notice [Source 1]. Penalties apply [Source 9]."

	cleaned := scrubSourceReferences(answer, []int{1})

	if strings.Contains(cleaned, "Source 9") {
		t.Errorf("invalid reference should be removed: %q", cleaned)
	}
	if !strings.Contains(cleaned, "[Source 1]") {
		t.Errorf("valid reference should survive: %q", cleaned)
	}
}

func TestScrubSourceReferences_BracketsBareReferences(t *testing.T) {
	cleaned := scrubSourceReferences("See Source 2 for details.", []int{2})

	if !strings.Contains(cleaned, "[Source 2]") {
		t.Errorf("bare valid reference should be bracketed: %q", cleaned)
	}
}

func TestScrubSourceReferences_PreservesParagraphs(t *testing.T) {
	answer := "First   paragraph with    spaces.\n\nSecond paragraph."

	cleaned := scrubSourceReferences(answer, nil)

	if !strings.Contains(cleaned, "\n\n") {
		t.Errorf("paragraph break should survive: %q", cleaned)
	}
	if strings.Contains(cleaned, "  ") {
		t.Errorf("space runs should collapse: %q", cleaned)
	}
}
