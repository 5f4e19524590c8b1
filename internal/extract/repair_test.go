package extract

import (
	"strings"
	"testing"
)

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{"empty", "", 0},
		{"single sentence", "This is a sentence.", 1},
		{"multiple sentences", "First sentence. Second sentence. Third sentence.", 3},
		{"with exclamation", "Hello! How are you? I am fine.", 3},
		{"no ending punctuation", "This has no ending punctuation", 1},
		{"abbreviation kept intact", "Payment is due to Acme Inc. within 30 days.", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sentences := splitSentences(tt.input)
			if len(sentences) != tt.expected {
				t.Errorf("expected %d sentences, got %d: %v", tt.expected, len(sentences), sentences)
			}
		})
	}
}

func TestIsAbbreviation(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"Dr.", true},
		{"Inc.", true},
		{"e.g.", true},
		{"etc.", true},
		{"notice.", false},
		{"Agreement.", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := isAbbreviation(tt.input); got != tt.expected {
				t.Errorf("isAbbreviation(%q) = %v, expected %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSentenceChunks_PacksToLimit(t *testing.T) {
	sentence := strings.Repeat("word ", 100) + "ends here."
	text := sentence + " " + sentence + " " + sentence

	chunks := sentenceChunks(3, text, "LIABILITY", 600, "")

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks for long text, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.PageNumber != 3 {
			t.Errorf("chunk %d has page %d, expected 3", i, c.PageNumber)
		}
		if c.SectionName != "LIABILITY" {
			t.Errorf("chunk %d has section %q", i, c.SectionName)
		}
		if c.ChunkType != "clause" {
			t.Errorf("chunk %d has type %q", i, c.ChunkType)
		}
	}
	if chunks[0].ChunkID != "chunk_3_0" {
		t.Errorf("unexpected first chunk id %s", chunks[0].ChunkID)
	}
	if chunks[1].ChunkID != "chunk_3_1" {
		t.Errorf("unexpected second chunk id %s", chunks[1].ChunkID)
	}
}

func TestFallbackChunksForPage_ClauseMarkers(t *testing.T) {
	pageText := "A. The contractor shall deliver all work product on schedule.\n" +
		"B. Payment shall be made within thirty days of invoice.\n" +
		"C. Either party may terminate with written notice."

	chunks := fallbackChunksForPage(2, pageText, nil)

	if len(chunks) != 3 {
		t.Fatalf("expected 3 clause chunks, got %d: %+v", len(chunks), chunks)
	}
	if !strings.HasPrefix(chunks[0].Text, "The contractor") {
		t.Errorf("marker should be stripped from chunk text, got %q", chunks[0].Text)
	}
	if chunks[1].Text != "Payment shall be made within thirty days of invoice." {
		t.Errorf("unexpected second chunk %q", chunks[1].Text)
	}
}

func TestFallbackChunksForPage_NoMarkersUsesSentences(t *testing.T) {
	pageText := "This agreement is effective immediately. It supersedes prior drafts."

	chunks := fallbackChunksForPage(5, pageText, nil)

	if len(chunks) != 1 {
		t.Fatalf("expected 1 packed chunk, got %d", len(chunks))
	}
	if chunks[0].SectionName != "Unknown" {
		t.Errorf("expected Unknown section, got %q", chunks[0].SectionName)
	}
}

func TestFallbackChunksForPage_InheritsSectionFromAdjacentPage(t *testing.T) {
	existing := []Chunk{{PageNumber: 4, SectionName: "TERMINATION"}}

	chunks := fallbackChunksForPage(5, "Notice must be written. It must be delivered.", existing)

	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	if chunks[0].SectionName != "TERMINATION" {
		t.Errorf("expected inherited section TERMINATION, got %q", chunks[0].SectionName)
	}
}

func TestRepairCoverage_AddsMissingPages(t *testing.T) {
	pages := []Page{
		{Number: 1, Text: "Page one clause text. More text here."},
		{Number: 2, Text: "Page two clause text. More text here."},
		{Number: 3, Text: "   "},
	}
	chunks := []Chunk{{ChunkID: "c1", Text: "covered", PageNumber: 1, SectionName: "INTRO"}}

	repaired := repairCoverage(chunks, pages)

	var page2 bool
	for _, c := range repaired {
		if c.PageNumber == 2 {
			page2 = true
		}
		if c.PageNumber == 3 {
			t.Error("whitespace-only pages should not get fallback chunks")
		}
	}
	if !page2 {
		t.Error("expected fallback chunks for uncovered page 2")
	}
}

func TestRepairCoverage_FullCoverageUnchanged(t *testing.T) {
	pages := []Page{{Number: 1, Text: "text"}}
	chunks := []Chunk{{ChunkID: "c1", PageNumber: 1}}

	repaired := repairCoverage(chunks, pages)
	if len(repaired) != 1 {
		t.Errorf("expected unchanged chunks, got %d", len(repaired))
	}
}

func TestTruncatePages(t *testing.T) {
	pages := []Page{
		{Number: 1, Text: strings.Repeat("a", 50)},
		{Number: 2, Text: strings.Repeat("b", 50)},
		{Number: 3, Text: strings.Repeat("c", 50)},
	}

	kept := truncatePages(pages, 120)

	if len(kept) != 3 {
		t.Fatalf("expected 3 pages (last partial), got %d", len(kept))
	}
	if len(kept[0].Text) != 50 || len(kept[1].Text) != 50 {
		t.Error("full pages within budget should be untouched")
	}
	// 50 + 2 + 50 + 2 = 104 consumed, 16 remain for page 3.
	if len(kept[2].Text) != 16 {
		t.Errorf("expected partial last page of 16 chars, got %d", len(kept[2].Text))
	}
}
