package extract

import "strings"

// searchPrefixChars is how much of a chunk's text is matched against page
// lines when locating its bounding box.
const searchPrefixChars = 100

// enrichCoordinates attaches bounding boxes to chunks by locating their text
// on the extracted page lines. Chunks that cannot be located keep nil
// coordinates; enrichment never fails the pipeline.
func enrichCoordinates(chunks []Chunk, pages []Page) {
	byNumber := make(map[int]*Page, len(pages))
	for i := range pages {
		byNumber[pages[i].Number] = &pages[i]
	}

	for i := range chunks {
		chunk := &chunks[i]
		if chunk.Coordinates != nil {
			continue
		}
		page, ok := byNumber[chunk.PageNumber]
		if !ok || len(page.Lines) == 0 {
			continue
		}

		prefix := normalizeSpace(chunk.Text)
		if len(prefix) > searchPrefixChars {
			prefix = prefix[:searchPrefixChars]
		}
		if prefix == "" {
			continue
		}

		if box, ok := locate(prefix, page.Lines); ok {
			box.Page = chunk.PageNumber
			chunk.Coordinates = &box
		}
	}
}

// locate finds the span of lines containing needle and returns their union box.
func locate(needle string, lines []Line) (Coordinates, bool) {
	// Build the page as one normalized string while remembering where each
	// line lands in it.
	type span struct{ start, end int }
	spans := make([]span, len(lines))
	var sb strings.Builder
	for i, line := range lines {
		if i > 0 {
			sb.WriteString(" ")
		}
		start := sb.Len()
		sb.WriteString(normalizeSpace(line.Text))
		spans[i] = span{start: start, end: sb.Len()}
	}

	idx := strings.Index(sb.String(), needle)
	if idx < 0 {
		return Coordinates{}, false
	}
	end := idx + len(needle)

	var box Coordinates
	found := false
	for i, sp := range spans {
		if sp.end <= idx || sp.start >= end {
			continue
		}
		l := lines[i]
		if !found {
			box = Coordinates{X0: l.X0, Y0: l.Y0, X1: l.X1, Y1: l.Y1}
			found = true
			continue
		}
		if l.X0 < box.X0 {
			box.X0 = l.X0
		}
		if l.Y0 < box.Y0 {
			box.Y0 = l.Y0
		}
		if l.X1 > box.X1 {
			box.X1 = l.X1
		}
		if l.Y1 > box.Y1 {
			box.Y1 = l.Y1
		}
	}
	return box, found
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
