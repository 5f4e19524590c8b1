package extract

import "testing"

func testLines() []Line {
	return []Line{
		{Text: "SECTION 8. TERMINATION", X0: 72, Y0: 100, X1: 300, Y1: 112},
		{Text: "Either party may terminate this Agreement", X0: 72, Y0: 120, X1: 520, Y1: 132},
		{Text: "with thirty days written notice.", X0: 72, Y0: 140, X1: 420, Y1: 152},
	}
}

func TestEnrichCoordinates_FindsSpanAcrossLines(t *testing.T) {
	pages := []Page{{Number: 1, Lines: testLines()}}
	chunks := []Chunk{{
		ChunkID:    "c1",
		Text:       "Either party may terminate this Agreement with thirty days written notice.",
		PageNumber: 1,
	}}

	enrichCoordinates(chunks, pages)

	c := chunks[0].Coordinates
	if c == nil {
		t.Fatal("expected coordinates to be attached")
	}
	if c.Page != 1 {
		t.Errorf("expected page 1, got %d", c.Page)
	}
	if c.Y0 != 120 || c.Y1 != 152 {
		t.Errorf("expected union of matched lines (120-152), got %f-%f", c.Y0, c.Y1)
	}
	if c.X1 != 520 {
		t.Errorf("expected widest line extent 520, got %f", c.X1)
	}
}

func TestEnrichCoordinates_MissKeepsNil(t *testing.T) {
	pages := []Page{{Number: 1, Lines: testLines()}}
	chunks := []Chunk{{ChunkID: "c1", Text: "text that appears nowhere on the page at all", PageNumber: 1}}

	enrichCoordinates(chunks, pages)

	if chunks[0].Coordinates != nil {
		t.Error("unmatched chunk should keep nil coordinates")
	}
}

func TestEnrichCoordinates_SkipsPagesWithoutLines(t *testing.T) {
	pages := []Page{{Number: 1}}
	chunks := []Chunk{{ChunkID: "c1", Text: "anything", PageNumber: 1}}

	enrichCoordinates(chunks, pages)

	if chunks[0].Coordinates != nil {
		t.Error("pages without lines cannot produce coordinates")
	}
}

func TestEnrichCoordinates_PreservesExisting(t *testing.T) {
	existing := &Coordinates{X0: 1, Y0: 2, X1: 3, Y1: 4, Page: 1}
	pages := []Page{{Number: 1, Lines: testLines()}}
	chunks := []Chunk{{ChunkID: "c1", Text: "Either party may terminate", PageNumber: 1, Coordinates: existing}}

	enrichCoordinates(chunks, pages)

	if chunks[0].Coordinates != existing {
		t.Error("existing coordinates must not be overwritten")
	}
}
