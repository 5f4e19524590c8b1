package extract

import (
	"strings"
	"testing"
)

func TestPaginateParagraphs(t *testing.T) {
	long := strings.Repeat("x", 1200)

	tests := []struct {
		name       string
		paragraphs []string
		pages      int
	}{
		{"empty input yields one page", nil, 1},
		{"short text single page", []string{"Hello", "World"}, 1},
		{"two long paragraphs fill a page", []string{long, long}, 1},
		{"three long paragraphs spill over", []string{long, long, long}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages := paginateParagraphs(tt.paragraphs)
			if len(pages) != tt.pages {
				t.Errorf("expected %d pages, got %d", tt.pages, len(pages))
			}
			for i, p := range pages {
				if p.Number != i+1 {
					t.Errorf("page %d has number %d", i, p.Number)
				}
				if len(p.Lines) != 0 {
					t.Error("synthetic pages must not carry positioned lines")
				}
			}
		})
	}
}

func TestPaginateParagraphs_JoinsWithNewlines(t *testing.T) {
	pages := paginateParagraphs([]string{"First paragraph.", "Second paragraph."})
	if pages[0].Text != "First paragraph.\nSecond paragraph." {
		t.Errorf("unexpected page text %q", pages[0].Text)
	}
}
