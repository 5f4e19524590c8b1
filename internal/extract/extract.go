// Package extract turns uploaded contract files into structured text:
// deterministic page extraction, LLM structuring, page coverage repair, and
// coordinate enrichment for highlighting.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/contractiq/server/internal/llm"
)

const (
	// maxStructureChars caps the text sent to the structuring model.
	maxStructureChars = 200000

	// fallbackChunkChars is the chunk target when structuring fails entirely.
	fallbackChunkChars = 1000

	// repairChunkChars is the soft chunk target during coverage repair.
	repairChunkChars = 1500
)

// Coordinates is a bounding box on a page, in PDF points.
type Coordinates struct {
	X0   float64 `json:"x0"`
	Y0   float64 `json:"y0"`
	X1   float64 `json:"x1"`
	Y1   float64 `json:"y1"`
	Page int     `json:"page"`
}

// Line is a positioned row of text on a page.
type Line struct {
	Text string
	X0   float64
	Y0   float64
	X1   float64
	Y1   float64
}

// Page holds the extracted text of one page. Lines carry positions for PDF
// pages; synthetic DOCX pages have no lines.
type Page struct {
	Number int
	Text   string
	Lines  []Line
}

// Section is a major document section identified by the model.
type Section struct {
	SectionName string `json:"section_name"`
	PageNumber  int    `json:"page_number"`
	StartChar   int    `json:"start_char"`
	EndChar     int    `json:"end_char"`
	Content     string `json:"content"`
}

// Chunk is a semantic unit of document text.
type Chunk struct {
	ChunkID       string       `json:"chunk_id"`
	Text          string       `json:"text"`
	PageNumber    int          `json:"page_number"`
	SectionName   string       `json:"section_name"`
	ChunkType     string       `json:"chunk_type"`
	ContextBefore string       `json:"context_before"`
	ContextAfter  string       `json:"context_after"`
	Coordinates   *Coordinates `json:"coordinates,omitempty"`
}

// Structure is the model's analysis of the document.
type Structure struct {
	Sections          []Section         `json:"sections"`
	Chunks            []Chunk           `json:"chunks"`
	Metadata          map[string]string `json:"metadata"`
	ContractTypeHints []string          `json:"contract_type_hints"`
}

// Result is the complete output of document processing.
type Result struct {
	PageCount         int
	FullText          string
	Pages             []Page
	Sections          []Section
	Chunks            []Chunk
	Metadata          map[string]string
	ContractTypeHints []string
	ContractType      string // first hint, if any
}

// Extractor processes PDF and DOCX contracts.
type Extractor struct {
	llm   llm.LLM
	model string
}

// New creates an Extractor backed by the given LLM client.
func New(client llm.LLM, model string) *Extractor {
	return &Extractor{llm: client, model: model}
}

// ProcessPDF extracts, structures, and enriches a PDF document.
func (e *Extractor) ProcessPDF(ctx context.Context, filePath string) (*Result, error) {
	pages, err := extractPDFPages(filePath)
	if err != nil {
		return nil, fmt.Errorf("extracting pdf text: %w", err)
	}
	result := e.process(ctx, pages)
	enrichCoordinates(result.Chunks, pages)
	return result, nil
}

// ProcessDOCX extracts and structures a DOCX document. DOCX has no real page
// geometry, so pages are synthesized and chunks carry no coordinates.
func (e *Extractor) ProcessDOCX(ctx context.Context, filePath string) (*Result, error) {
	paragraphs, err := extractDOCXParagraphs(filePath)
	if err != nil {
		return nil, fmt.Errorf("extracting docx text: %w", err)
	}
	pages := paginateParagraphs(paragraphs)
	return e.process(ctx, pages), nil
}

func (e *Extractor) process(ctx context.Context, pages []Page) *Result {
	fullText := joinPages(pages)

	structure := e.structureWithLLM(ctx, fullText, pages)
	structure.Chunks = repairCoverage(structure.Chunks, pages)

	result := &Result{
		PageCount:         len(pages),
		FullText:          fullText,
		Pages:             pages,
		Sections:          structure.Sections,
		Chunks:            structure.Chunks,
		Metadata:          structure.Metadata,
		ContractTypeHints: structure.ContractTypeHints,
	}
	if len(structure.ContractTypeHints) > 0 {
		result.ContractType = structure.ContractTypeHints[0]
	}
	return result
}

func joinPages(pages []Page) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = p.Text
	}
	return strings.Join(parts, "\n\n")
}

// truncatePages trims pages so their joined text fits the structuring budget.
// The last page that crosses the budget is kept partially.
func truncatePages(pages []Page, budget int) []Page {
	accumulated := 0
	var kept []Page
	for _, p := range pages {
		if accumulated+len(p.Text) <= budget {
			kept = append(kept, p)
			accumulated += len(p.Text) + 2 // joined by "\n\n"
			continue
		}
		remaining := budget - accumulated
		if remaining > 0 {
			kept = append(kept, Page{Number: p.Number, Text: p.Text[:remaining], Lines: p.Lines})
		}
		break
	}
	return kept
}

// repairCoverage adds fallback chunks for pages the model skipped.
func repairCoverage(chunks []Chunk, pages []Page) []Chunk {
	covered := make(map[int]bool)
	for _, c := range chunks {
		covered[c.PageNumber] = true
	}

	var missing []int
	pageText := make(map[int]string, len(pages))
	for _, p := range pages {
		pageText[p.Number] = p.Text
		if !covered[p.Number] && strings.TrimSpace(p.Text) != "" {
			missing = append(missing, p.Number)
		}
	}
	if len(missing) == 0 {
		return chunks
	}
	sort.Ints(missing)

	slog.Warn("structuring skipped pages, adding fallback chunks", "missing_pages", missing)
	for _, pageNum := range missing {
		chunks = append(chunks, fallbackChunksForPage(pageNum, pageText[pageNum], chunks)...)
	}
	return chunks
}
