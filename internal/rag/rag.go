// Package rag answers questions about workspace documents with a
// retrieve-then-generate pipeline that produces validated citations.
package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/contractiq/server/internal/llm"
	"github.com/contractiq/server/internal/vectorstore"
)

const (
	// retrieveResults is how many chunks the vector search returns before filtering.
	retrieveResults = 10

	// minSimilarity drops very low relevance chunks and citations.
	minSimilarity = -0.3

	// maxContextChunks caps the chunks handed to the generator.
	maxContextChunks = 5

	// historyWindow is how many trailing conversation messages reach the prompt.
	historyWindow = 4

	// excerptChars caps the citation excerpt length.
	excerptChars = 500
)

var simpleGreetings = []string{
	"hi", "hello", "hey", "greetings",
	"good morning", "good afternoon", "good evening",
}

// Citation points at a source chunk that supported the answer.
type Citation struct {
	DocumentID      string         `json:"document_id"`
	DocumentName    string         `json:"document_name"`
	PageNumber      int            `json:"page_number"`
	SectionName     string         `json:"section_name"`
	TextExcerpt     string         `json:"text_excerpt"`
	SimilarityScore float64        `json:"similarity_score"`
	ChunkID         string         `json:"chunk_id,omitempty"`
	Coordinates     map[string]any `json:"coordinates,omitempty"`
}

// HistoryMessage is one prior turn of the conversation.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Result is the pipeline output for one question.
type Result struct {
	Answer              string     `json:"answer"`
	Citations           []Citation `json:"citations"`
	RetrievedChunkCount int        `json:"retrieved_chunks_count"`
	Err                 string     `json:"error,omitempty"`
}

// Pipeline runs retrieval and answer generation.
type Pipeline struct {
	llm   llm.LLM
	model string
	store vectorstore.VectorStore
}

// NewPipeline creates a RAG pipeline.
func NewPipeline(client llm.LLM, model string, store vectorstore.VectorStore) *Pipeline {
	return &Pipeline{llm: client, model: model, store: store}
}

// Ask answers a question against the workspace's indexed documents. The
// returned Result always carries a user-facing answer; Err records pipeline
// failures without replacing the answer.
func (p *Pipeline) Ask(ctx context.Context, question, workspaceID string, documentIDs []string, history []HistoryMessage) Result {
	chunks := p.retrieve(ctx, question, workspaceID, documentIDs)
	result := p.generate(ctx, question, chunks, history)
	result.RetrievedChunkCount = len(chunks)
	return result
}

// retrieve searches the vector store and keeps the most relevant chunks.
// Simple greetings skip retrieval entirely.
func (p *Pipeline) retrieve(ctx context.Context, question, workspaceID string, documentIDs []string) []vectorstore.SearchResult {
	q := strings.ToLower(strings.TrimSpace(question))
	for _, g := range simpleGreetings {
		if q == g {
			return nil
		}
	}

	results, err := p.store.Search(ctx, workspaceID, question, retrieveResults, nil)
	if err != nil {
		slog.Error("vector search failed", "workspace_id", workspaceID, "error", err)
		return nil
	}

	if len(documentIDs) > 0 {
		wanted := make(map[string]bool, len(documentIDs))
		for _, id := range documentIDs {
			wanted[id] = true
		}
		kept := results[:0]
		for _, r := range results {
			if wanted[r.DocumentID] {
				kept = append(kept, r)
			}
		}
		results = kept
	}

	filtered := make([]vectorstore.SearchResult, 0, len(results))
	for _, r := range results {
		if float64(r.Similarity) > minSimilarity {
			filtered = append(filtered, r)
		}
	}
	// All below threshold: fall back to the best of what we have.
	if len(filtered) == 0 {
		filtered = results
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Similarity > filtered[j].Similarity
	})
	if len(filtered) > maxContextChunks {
		filtered = filtered[:maxContextChunks]
	}
	return filtered
}

// structuredAnswer is the generator's structured response.
type structuredAnswer struct {
	Answer       string  `json:"answer"`
	CitedSources []int   `json:"cited_sources"`
	Confidence   float64 `json:"confidence"`
	AnswerNotes  string  `json:"answer_notes"`
}

var answerSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"answer": map[string]any{
			"type":        "string",
			"description": "Complete answer to the question based on provided sources",
		},
		"cited_sources": map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "integer"},
			"description": "1-based source numbers actually used for the answer",
		},
		"confidence": map[string]any{
			"type":        "number",
			"description": "Confidence score (0.0-1.0) for the answer accuracy",
		},
		"answer_notes": map[string]any{
			"type":        "string",
			"description": "Notes about the answer (limitations, assumptions)",
		},
	},
	"required":             []string{"answer", "cited_sources", "confidence", "answer_notes"},
	"additionalProperties": false,
}

func (p *Pipeline) generate(ctx context.Context, question string, chunks []vectorstore.SearchResult, history []HistoryMessage) Result {
	if len(chunks) == 0 {
		return p.answerWithoutContext(ctx, question)
	}

	citations := make([]Citation, 0, len(chunks))
	contextParts := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		contextParts = append(contextParts, fmt.Sprintf(
			"[Source %d]\nDocument: %s\nPage: %d\nSection: %s\nContent: %s\n",
			i+1, nameOrUnknown(chunk.DocumentName), chunk.PageNumber,
			nameOrUnknown(chunk.SectionName), chunk.Text))
		citations = append(citations, citationFor(chunk))
	}

	var answer structuredAnswer
	err := p.llm.GenerateObject(ctx, userPrompt(question, contextParts, history), "structured_answer", answerSchema, &answer, llm.GenerateOptions{
		Model:        p.model,
		SystemPrompt: answerSystemPrompt(len(citations)),
		Temperature:  0.1,
	})
	if err != nil {
		return Result{
			Answer: fmt.Sprintf("Error generating answer: %v", err),
			Err:    err.Error(),
		}
	}

	validSources := validateCitedSources(answer.CitedSources, citations)
	used := usedCitations(validSources, citations)
	cleaned := scrubSourceReferences(answer.Answer, validSources)
	if cleaned == "" {
		cleaned = answer.Answer
	}

	return Result{Answer: cleaned, Citations: used}
}

// Canned answers for questions that retrieved nothing.
const (
	greetingAnswer = "Hello! I'm here to help you understand your contracts. You can ask me questions like:\n\n" +
		"• What are the termination terms?\n" +
		"• What is the liability cap?\n" +
		"• What are the payment terms?\n" +
		"• Explain the confidentiality clause\n\n" +
		"What would you like to know about your contracts?"

	offTopicAnswer = "I'm specialized in helping with contract analysis. Please ask me questions about your uploaded contracts, such as terms, clauses, liability, payment terms, etc."

	noContextAnswer = "I couldn't find any relevant information to answer your question. Please try rephrasing your question or make sure you have documents uploaded in your workspace."
)

const classifierSystemPrompt = "Classify the user's message into one category:\n" +
	"- 'greeting' - casual greetings (hi, hello, hey, etc.)\n" +
	"- 'needs_context' - questions about contracts that need document context\n" +
	"- 'off_topic' - questions not related to contracts\n\n" +
	"Respond with ONLY the category name."

// answerWithoutContext classifies the question to pick a canned response.
func (p *Pipeline) answerWithoutContext(ctx context.Context, question string) Result {
	classification, err := p.llm.Generate(ctx, question, llm.GenerateOptions{
		Model:        p.model,
		SystemPrompt: classifierSystemPrompt,
		Temperature:  0,
		MaxTokens:    10,
	})
	if err != nil {
		return Result{Answer: noContextAnswer, Err: "No relevant chunks found"}
	}

	classification = strings.ToLower(strings.TrimSpace(classification))
	switch {
	case strings.Contains(classification, "greeting"):
		return Result{Answer: greetingAnswer}
	case strings.Contains(classification, "off_topic"):
		return Result{Answer: offTopicAnswer}
	default:
		return Result{Answer: noContextAnswer, Err: "No relevant chunks found"}
	}
}

func citationFor(chunk vectorstore.SearchResult) Citation {
	excerpt := chunk.Text
	if len(excerpt) > excerptChars {
		excerpt = excerpt[:excerptChars]
	}

	var coords map[string]any
	if raw := chunk.Metadata["coordinates"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &coords); err != nil {
			coords = nil
		}
	}

	return Citation{
		DocumentID:      chunk.DocumentID,
		DocumentName:    nameOrUnknown(chunk.DocumentName),
		PageNumber:      chunk.PageNumber,
		SectionName:     nameOrUnknown(chunk.SectionName),
		TextExcerpt:     excerpt,
		SimilarityScore: float64(chunk.Similarity),
		ChunkID:         chunk.ID,
		Coordinates:     coords,
	}
}

func nameOrUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func answerSystemPrompt(numSources int) string {
	return fmt.Sprintf(`You are an experienced contract attorney providing legal analysis. Answer questions about contracts using ONLY the provided source material.

CRITICAL: You have been provided with EXACTLY %[1]d sources, numbered 1 to %[1]d.

STYLE AND TONE:
- Answer like a lawyer: professional, precise, and direct
- Be concise: go straight to the point, avoid unnecessary verbosity
- Be practical: focus on what matters for contract analysis
- Use clear, professional language without being overly formal
- Structure your answer logically (use bullet points or numbered lists when helpful)
- Preserve proper paragraph breaks and spacing in your response
- Format markdown properly: use **bold** for emphasis, preserve line breaks between paragraphs

INSTRUCTIONS:
1. Answer the question based ONLY on the provided sources
2. In the cited_sources field, list ONLY the source numbers (1-based) that you actually used
3. IMPORTANT: cited_sources can ONLY contain numbers from 1 to %[1]d
4. Do NOT include any number greater than %[1]d in cited_sources
5. Do NOT include any number less than 1 in cited_sources
6. Be precise and accurate - cite specific clauses, page numbers, and sections
7. Include specific details from sources (exact terms, numbers, dates, conditions)
8. If the answer requires multiple points, use bullet points or numbered lists
9. If information is not in the sources, state that clearly

VALIDATION RULES:
- cited_sources must ONLY contain integers between 1 and %[1]d (inclusive)
- If you see "Source 5" but only %[1]d sources exist, DO NOT include 5
- Each number in cited_sources must be >= 1 and <= %[1]d
- Set confidence based on how certain you are (0.0-1.0)

EXAMPLES OF GOOD ANSWERS:
- "The contract allows termination with 30 days written notice (Page 5, Section 8.1). No penalties apply for termination."
- "Payment terms: Net 30 days. Late payments incur 1.5%% monthly interest (Page 3, Section 4.2)."
- "Liability is capped at the contract value. Exclusions apply for indirect damages (Page 7, Section 12.3)."

Be direct, useful, and actionable. Focus on what the user needs to know.`, numSources)
}

func userPrompt(question string, contextParts []string, history []HistoryMessage) string {
	historySection := ""
	if len(history) > 0 {
		start := len(history) - historyWindow
		if start < 0 {
			start = 0
		}
		lines := make([]string, 0, historyWindow)
		for _, msg := range history[start:] {
			lines = append(lines, fmt.Sprintf("%s: %s", capitalize(msg.Role), msg.Content))
		}
		historySection = fmt.Sprintf("Previous conversation:\n%s\n\n", strings.Join(lines, "\n"))
	}

	n := len(contextParts)
	return fmt.Sprintf(`Question: %s

%sAvailable Sources (numbered 1 to %[3]d):
%s

CRITICAL REMINDER: You have EXACTLY %[3]d sources available (numbered 1 to %[3]d).

Answer the question using the sources above. In your response:
- Provide a complete, accurate answer
- List ONLY the source numbers you actually used in cited_sources
- cited_sources must ONLY contain numbers from 1 to %[3]d (no higher, no lower)
- Do NOT include any number outside the range 1-%[3]d
- Set confidence score based on answer certainty`,
		question, historySection, n, strings.Join(contextParts, "\n\n"))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
