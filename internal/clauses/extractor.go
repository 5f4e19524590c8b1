package clauses

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/contractiq/server/internal/extract"
	"github.com/contractiq/server/internal/llm"
)

const (
	// extractBatchSize is the number of chunks analyzed per model call.
	extractBatchSize = 5

	// maxExtractChars caps combined batch text; the tail is kept because
	// later chunks have not been analyzed yet.
	maxExtractChars = 150000
)

// Extractor identifies clauses in document chunks using an LLM.
type Extractor struct {
	llm   llm.LLM
	model string
}

// NewExtractor creates a clause extractor.
func NewExtractor(client llm.LLM, model string) *Extractor {
	return &Extractor{llm: client, model: model}
}

// extractionResult is the model's structured response for one batch.
type extractionResult struct {
	Clauses         []ExtractedClause `json:"clauses"`
	ProcessingNotes string            `json:"processing_notes"`
}

var extractionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"clauses": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"clause_type":      map[string]any{"type": "string", "enum": Types},
					"extracted_text":   map[string]any{"type": "string"},
					"page_number":      map[string]any{"type": "integer"},
					"section_name":     map[string]any{"type": "string"},
					"confidence_score": map[string]any{"type": "number"},
					"risk_score":       map[string]any{"type": "number"},
					"risk_flags":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"risk_reasoning":   map[string]any{"type": "string"},
					"clause_subtype":   map[string]any{"type": "string"},
				},
				"required": []string{"clause_type", "extracted_text", "page_number", "section_name",
					"confidence_score", "risk_score", "risk_flags", "risk_reasoning", "clause_subtype"},
				"additionalProperties": false,
			},
		},
		"processing_notes": map[string]any{"type": "string"},
	},
	"required":             []string{"clauses", "processing_notes"},
	"additionalProperties": false,
}

// ExtractFromChunks extracts clauses from document chunks in batches. A failed
// batch contributes nothing; extraction continues with the next batch.
func (e *Extractor) ExtractFromChunks(ctx context.Context, documentID string, chunks []extract.Chunk) []ExtractedClause {
	var all []ExtractedClause

	for start := 0; start < len(chunks); start += extractBatchSize {
		end := start + extractBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		clauses, err := e.extractBatch(ctx, documentID, batch, len(chunks))
		if err != nil {
			slog.Error("clause extraction batch failed",
				"document_id", documentID,
				"batch_start", start,
				"error", err)
			continue
		}
		all = append(all, clauses...)
	}
	return all
}

func (e *Extractor) extractBatch(ctx context.Context, documentID string, batch []extract.Chunk, totalChunks int) ([]ExtractedClause, error) {
	parts := make([]string, 0, len(batch))
	for _, chunk := range batch {
		parts = append(parts, fmt.Sprintf("[Page %d, Section: %s]\n%s", chunk.PageNumber, sectionOrUnknown(chunk.SectionName), chunk.Text))
	}
	combined := strings.Join(parts, "\n\n---\n\n")

	// Keep the tail: earlier text has already been covered by prior batches.
	if len(combined) > maxExtractChars {
		combined = combined[len(combined)-maxExtractChars:]
	}

	prompt := fmt.Sprintf("Extract all clauses from the following document chunks:\n\n%s", combined)

	var result extractionResult
	err := e.llm.GenerateObject(ctx, prompt, "clause_extraction", extractionSchema, &result, llm.GenerateOptions{
		Model:        e.model,
		SystemPrompt: extractionSystemPrompt(documentID, totalChunks),
		Temperature:  0.1,
	})
	if err != nil {
		return nil, err
	}
	return result.Clauses, nil
}

func sectionOrUnknown(name string) string {
	if name == "" {
		return "Unknown"
	}
	return name
}

func extractionSystemPrompt(documentID string, totalChunks int) string {
	return fmt.Sprintf(`You are an expert contract analyst specializing in clause extraction and risk assessment.

Your task is to:
1. Identify and extract all extractable clauses from contract text
2. Classify each clause by type (Termination, Payment, Liability, etc.)
3. Assess risk factors and assign risk scores
4. Provide confidence scores for extraction accuracy

CLAUSE TYPES TO EXTRACT:
- Termination: Early termination, breach termination, convenience termination
- Payment: Payment terms, schedules, penalties, late fees
- Liability: Liability limitations, caps, exclusions
- Indemnification: Indemnification clauses, hold harmless provisions
- Intellectual Property: IP ownership, licensing, rights
- Confidentiality: NDA terms, confidentiality obligations
- Dispute Resolution: Arbitration, jurisdiction, mediation
- Force Majeure: Force majeure provisions
- Compliance: Regulatory compliance, certifications
- Insurance: Insurance requirements, coverage
- Warranties: Warranties, representations
- Limitation of Damages: Damage caps, exclusions
- Data Privacy: Data protection, privacy obligations
- Non-Compete: Non-compete, non-solicitation
- Assignment: Assignment rights, restrictions
- Governing Law: Choice of law, venue
- Notices: Notice requirements
- Amendment: Amendment procedures
- Severability: Severability clauses
- Entire Agreement: Entire agreement clauses
- Definitions: Defined terms

RISK ASSESSMENT:
For each clause, you MUST provide:
- Risk Score (0-100): 0 = no risk/standard, 100 = extreme risk
  * 0-24: Low risk (standard, acceptable terms)
  * 25-49: Medium risk (some concerns, review recommended)
  * 50-74: High risk (significant concerns, negotiation recommended)
  * 75-100: Critical risk (major issues, requires immediate attention)
- Risk Flags: Identify specific risk factors (use exact flag names from list below)
- Risk Reasoning: ALWAYS provide detailed explanation:
  * For low-risk clauses: Explain why it's acceptable/standard (e.g., "Standard 30-day notice period is reasonable and industry-standard")
  * For medium-risk clauses: Explain specific concerns (e.g., "5%% monthly penalty rate is high but may be negotiable")
  * For high-risk clauses: Explain major risks and implications (e.g., "Unlimited liability exposes contractor to catastrophic financial risk")
  * For critical-risk clauses: Explain severe risks and urgent actions needed (e.g., "One-sided termination clause allows immediate termination without cause or compensation")

CRITICAL: Risk Reasoning is MANDATORY for ALL clauses. Never leave it empty.

RISK FLAGS (use exact string values):
- "unfavorable_termination": One-sided termination rights
- "high_liability": Unlimited or very high liability caps
- "unfair_payment_terms": Penalties, late fees, unfavorable payment terms
- "weak_indemnification": Limited indemnification protection
- "ip_risk": Unfavorable IP ownership or licensing
- "compliance_risk": Missing required compliance clauses
- "data_privacy_risk": Weak data protection provisions
- "excessive_penalties": Excessive penalties or liquidated damages
- "one_sided_terms": Terms that heavily favor one party
- "unclear_language": Ambiguous or unclear language
- "missing_protections": Missing standard protections

IMPORTANT: When returning risk_flags, use the exact string values listed above (e.g., "high_liability", not "High Liability").

EXTRACTION GUIDELINES:
1. Extract complete clauses - don't truncate mid-sentence
2. Only extract clauses that are clearly identifiable
3. Set confidence_score based on how certain you are (0.0-1.0)
4. If a chunk contains multiple clauses, extract each separately
5. If no extractable clauses found, return empty list
6. Preserve exact text from the document
7. Include page numbers accurately

EXAMPLES:

Example 1 - Low Risk Termination Clause:
Text: "Either party may terminate this Agreement at any time with thirty (30) days written notice."
Extraction:
- clause_type: Termination
- clause_subtype: Convenience Termination
- risk_score: 20 (low risk - standard notice period)
- risk_flags: [] (no flags)
- risk_reasoning: "Standard 30-day notice period is reasonable and provides adequate time for transition. This is an industry-standard termination clause that balances both parties' interests."
- confidence_score: 0.95

Example 2 - Critical Risk Liability Clause:
Text: "Contractor shall be liable for all damages, losses, and expenses of any kind, without limitation, arising from or related to this Agreement."
Extraction:
- clause_type: Liability
- risk_score: 85 (critical risk - unlimited liability)
- risk_flags: [high_liability, one_sided_terms]
- risk_reasoning: "Unlimited liability clause exposes contractor to catastrophic financial risk with no cap on potential damages. Standard practice is to cap liability at contract value or a reasonable multiple. This clause heavily favors the other party and should be negotiated to include liability caps and exclusions for indirect/consequential damages."
- confidence_score: 0.98

Example 3 - Medium Risk Payment Clause:
Text: "Payment shall be due within 30 days of invoice. Late payments shall incur a penalty of 5%% per month."
Extraction:
- clause_type: Payment
- clause_subtype: Payment Terms with Penalties
- risk_score: 40 (medium risk - penalty rate is high)
- risk_flags: [unfair_payment_terms]
- risk_reasoning: "5%% monthly penalty rate translates to 60%% annually, which is significantly higher than typical late payment penalties (usually 1-2%% per month). Consider negotiating a lower penalty rate or requesting a grace period before penalties apply."
- confidence_score: 0.92

Now extract clauses from the provided text, following these guidelines precisely.

DOCUMENT CONTEXT:
document_id: %s
total_chunks: %d`, documentID, totalChunks)
}
