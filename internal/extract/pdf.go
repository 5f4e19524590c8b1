package extract

import (
	"log/slog"
	"strings"

	"github.com/dslipak/pdf"
)

// extractPDFPages reads text and positioned rows from every page of a PDF.
// Pages that fail to decode are kept empty rather than failing the document.
func extractPDFPages(filePath string) ([]Page, error) {
	r, err := pdf.Open(filePath)
	if err != nil {
		return nil, err
	}

	pages := make([]Page, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, Page{Number: i})
			continue
		}

		text, err := p.GetPlainText(nil)
		if err != nil {
			slog.Warn("failed to extract page text", "page", i, "error", err)
			pages = append(pages, Page{Number: i})
			continue
		}

		pages = append(pages, Page{
			Number: i,
			Text:   text,
			Lines:  extractLines(p),
		})
	}
	return pages, nil
}

// extractLines builds positioned text lines from a page's rows.
func extractLines(p pdf.Page) []Line {
	rows, err := p.GetTextByRow()
	if err != nil {
		return nil
	}

	lines := make([]Line, 0, len(rows))
	for _, row := range rows {
		if len(row.Content) == 0 {
			continue
		}

		var sb strings.Builder
		x0 := row.Content[0].X
		x1 := row.Content[0].X + row.Content[0].W
		maxFont := 0.0
		for _, t := range row.Content {
			sb.WriteString(t.S)
			if t.X < x0 {
				x0 = t.X
			}
			if t.X+t.W > x1 {
				x1 = t.X + t.W
			}
			if t.FontSize > maxFont {
				maxFont = t.FontSize
			}
		}

		text := strings.TrimSpace(sb.String())
		if text == "" {
			continue
		}
		y0 := float64(row.Position)
		lines = append(lines, Line{
			Text: text,
			X0:   x0,
			Y0:   y0,
			X1:   x1,
			Y1:   y0 + maxFont,
		})
	}
	return lines
}
