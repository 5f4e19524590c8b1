package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/contractiq/server/internal/llm"
)

const structureSystemPrompt = `You are a document analysis expert. Analyze this contract document and extract:

1. **Sections**: Identify all major sections (e.g., TERMINATION, LIABILITY, PAYMENT TERMS, etc.) with their page numbers and character positions in the text.

2. **Semantic Chunks**: Break the text into semantic chunks. Each chunk should be a COMPLETE semantic unit:
   - A complete clause (not split mid-sentence)
   - A complete definition
   - A complete paragraph with full meaning
   - Do NOT create arbitrary fixed-size chunks
   - Preserve context - each chunk should make sense on its own
   - **CRITICAL**: You MUST create chunks for ALL pages, even if content appears similar or duplicate
   - **CRITICAL**: Do NOT skip any pages - every page must have at least one chunk

3. **Metadata**: Extract document metadata:
   - Document type (e.g., "SaaS Agreement", "Vendor Contract")
   - Parties involved (if mentioned)
   - Key dates
   - Any other relevant metadata

4. **Contract Type Hints**: Identify what type of contract this appears to be:
   - vendor_procurement
   - service_agreement
   - saas_technology
   - government_contract
   - employment
   - generic

Be precise with page numbers and character positions. Each chunk should reference the correct page number based on where that text appears in the document. Ensure you process every single page of the document.`

// structureSchema is the JSON schema for the structured document analysis.
var structureSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"sections": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"section_name": map[string]any{"type": "string"},
					"page_number":  map[string]any{"type": "integer"},
					"start_char":   map[string]any{"type": "integer"},
					"end_char":     map[string]any{"type": "integer"},
					"content":      map[string]any{"type": "string"},
				},
				"required":             []string{"section_name", "page_number", "start_char", "end_char", "content"},
				"additionalProperties": false,
			},
		},
		"chunks": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"chunk_id":       map[string]any{"type": "string"},
					"text":           map[string]any{"type": "string"},
					"page_number":    map[string]any{"type": "integer"},
					"section_name":   map[string]any{"type": "string"},
					"chunk_type":     map[string]any{"type": "string"},
					"context_before": map[string]any{"type": "string"},
					"context_after":  map[string]any{"type": "string"},
				},
				"required":             []string{"chunk_id", "text", "page_number", "section_name", "chunk_type", "context_before", "context_after"},
				"additionalProperties": false,
			},
		},
		"metadata": map[string]any{
			"type":                 "object",
			"additionalProperties": map[string]any{"type": "string"},
		},
		"contract_type_hints": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
	},
	"required":             []string{"sections", "chunks", "metadata", "contract_type_hints"},
	"additionalProperties": false,
}

// structureWithLLM asks the model for sections, chunks, and metadata. On any
// model failure every page is sentence-chunked instead, so processing never
// stops here.
func (e *Extractor) structureWithLLM(ctx context.Context, fullText string, pages []Page) Structure {
	if len(fullText) > maxStructureChars {
		pages = truncatePages(pages, maxStructureChars)
		fullText = joinPages(pages)
	}

	var boundaries strings.Builder
	charPos := 0
	for _, p := range pages {
		fmt.Fprintf(&boundaries, "page %d: chars %d-%d\n", p.Number, charPos, charPos+len(p.Text))
		charPos += len(p.Text) + 2
	}

	firstPage, lastPage := 0, 0
	if len(pages) > 0 {
		firstPage = pages[0].Number
		lastPage = pages[len(pages)-1].Number
	}

	prompt := fmt.Sprintf(`Analyze this contract document:

%s

Page boundaries (character positions):
%s
**IMPORTANT**: This document has %d pages (pages %d to %d).
You MUST create chunks for ALL %d pages. Do not skip any pages, even if they contain similar content.

Extract sections, create semantic chunks, and provide metadata.`,
		fullText, boundaries.String(), len(pages), firstPage, lastPage, len(pages))

	var structure Structure
	err := e.llm.GenerateObject(ctx, prompt, "document_structure", structureSchema, &structure, llm.GenerateOptions{
		Model:        e.model,
		SystemPrompt: structureSystemPrompt,
		Temperature:  0.1,
	})
	if err != nil {
		slog.Error("document structuring failed, using sentence fallback", "error", err)
		return fallbackStructure(pages, err)
	}
	return structure
}

// fallbackStructure sentence-chunks every page when the model is unavailable.
func fallbackStructure(pages []Page, cause error) Structure {
	var chunks []Chunk
	for _, p := range pages {
		chunks = append(chunks, sentenceChunks(p.Number, p.Text, "Unknown", fallbackChunkChars, "")...)
	}
	return Structure{
		Chunks:   chunks,
		Metadata: map[string]string{"error": cause.Error()},
	}
}
