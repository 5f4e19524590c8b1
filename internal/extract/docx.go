package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"strings"
)

// docxPageChars is the approximate character count per synthesized page.
// DOCX files have no fixed pagination, so paragraphs are bucketed.
const docxPageChars = 2000

// docxDocument mirrors the paragraph structure of word/document.xml.
type docxDocument struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
	} `xml:"body"`
}

type docxParagraph struct {
	Runs []struct {
		Text []string `xml:"t"`
	} `xml:"r"`
}

// extractDOCXParagraphs reads paragraph text from a DOCX archive.
func extractDOCXParagraphs(filePath string) ([]string, error) {
	zr, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening docx archive: %w", err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening document.xml: %w", err)
		}
		defer rc.Close()

		var doc docxDocument
		if err := xml.NewDecoder(rc).Decode(&doc); err != nil {
			return nil, fmt.Errorf("decoding document.xml: %w", err)
		}

		var paragraphs []string
		for _, p := range doc.Body.Paragraphs {
			var sb strings.Builder
			for _, r := range p.Runs {
				for _, t := range r.Text {
					sb.WriteString(t)
				}
			}
			if text := strings.TrimSpace(sb.String()); text != "" {
				paragraphs = append(paragraphs, text)
			}
		}
		return paragraphs, nil
	}
	return nil, fmt.Errorf("document.xml not found in archive")
}

// paginateParagraphs groups paragraphs into synthetic pages of roughly
// docxPageChars characters. An empty input still yields one empty page.
func paginateParagraphs(paragraphs []string) []Page {
	var pages []Page
	pageNum := 1
	var current []string
	currentLen := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		pages = append(pages, Page{
			Number: pageNum,
			Text:   strings.Join(current, "\n"),
		})
		pageNum++
		current = nil
		currentLen = 0
	}

	for _, p := range paragraphs {
		current = append(current, p)
		currentLen += len(p)
		if currentLen >= docxPageChars {
			flush()
		}
	}
	flush()

	if len(pages) == 0 {
		pages = append(pages, Page{Number: 1})
	}
	return pages
}
