package clauses

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/contractiq/server/internal/llm"
)

const (
	// duplicateConfidenceThreshold gates LLM duplicate verdicts.
	duplicateConfidenceThreshold = 0.8

	// fallbackSimilarityThreshold is used when the LLM comparison fails.
	fallbackSimilarityThreshold = 0.9
)

// Deduplicator removes duplicate clause extractions with LLM comparison.
type Deduplicator struct {
	llm   llm.LLM
	model string
}

// NewDeduplicator creates a clause deduplicator.
func NewDeduplicator(client llm.LLM, model string) *Deduplicator {
	return &Deduplicator{llm: client, model: model}
}

// duplicateDecision is the model's verdict on a clause pair.
type duplicateDecision struct {
	IsDuplicate bool    `json:"is_duplicate"`
	Reasoning   string  `json:"reasoning"`
	Confidence  float64 `json:"confidence"`
}

var duplicateSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"is_duplicate": map[string]any{"type": "boolean"},
		"reasoning":    map[string]any{"type": "string"},
		"confidence":   map[string]any{"type": "number"},
	},
	"required":             []string{"is_duplicate", "reasoning", "confidence"},
	"additionalProperties": false,
}

const dedupSystemPrompt = `You are an expert at analyzing contract clauses to determine if they are duplicates.

Two clauses are DUPLICATES if they:
1. Express the same legal obligation or right
2. Cover the same subject matter with the same effect
3. Are restatements or overlapping extractions of the same underlying clause

Two clauses are NOT duplicates if they:
1. Cover different obligations, even within the same topic
2. Apply to different parties or situations
3. Have materially different terms, amounts, or time periods

Be conservative: false positives (merging distinct clauses) are worse than false negatives (keeping near-duplicates). Only mark as duplicate when you are confident.`

// Dedup removes duplicate clauses, keeping the better extraction of each
// duplicate pair. Survivors retain their original order.
func (d *Deduplicator) Dedup(ctx context.Context, documentID string, clauses []ExtractedClause) []ExtractedClause {
	if len(clauses) < 2 {
		return clauses
	}

	groups := groupClausesForComparison(clauses)

	removed := make(map[int]bool)
	for _, group := range groups {
		for i := 0; i < len(group); i++ {
			if removed[group[i]] {
				continue
			}
			for j := i + 1; j < len(group); j++ {
				if removed[group[j]] {
					continue
				}
				a, b := clauses[group[i]], clauses[group[j]]
				if !couldBeDuplicates(a, b) {
					continue
				}
				if !d.isDuplicate(ctx, a, b) {
					continue
				}
				if isClauseBetter(a, b) {
					removed[group[j]] = true
				} else {
					removed[group[i]] = true
					break
				}
			}
		}
	}

	kept := make([]ExtractedClause, 0, len(clauses))
	for i, c := range clauses {
		if !removed[i] {
			kept = append(kept, c)
		}
	}
	if len(kept) < len(clauses) {
		slog.Info("removed duplicate clauses",
			"document_id", documentID,
			"before", len(clauses),
			"after", len(kept))
	}
	return kept
}

// groupClausesForComparison buckets clause indexes by (type, page), also
// registering each clause under its adjacent pages so near-boundary
// extractions get compared.
func groupClausesForComparison(clauses []ExtractedClause) map[string][]int {
	groups := make(map[string][]int)
	for i, c := range clauses {
		for _, page := range []int{c.PageNumber - 1, c.PageNumber, c.PageNumber + 1} {
			key := fmt.Sprintf("%s:%d", c.ClauseType, page)
			groups[key] = append(groups[key], i)
		}
	}
	return groups
}

// couldBeDuplicates is a cheap filter before the model call.
func couldBeDuplicates(a, b ExtractedClause) bool {
	if a.ClauseType != b.ClauseType {
		return false
	}
	if abs(a.PageNumber-b.PageNumber) > 2 {
		return false
	}
	return true
}

func (d *Deduplicator) isDuplicate(ctx context.Context, a, b ExtractedClause) bool {
	prompt := fmt.Sprintf(`Compare these two extracted contract clauses and determine if they are duplicates.

CLAUSE 1 (Type: %s, Page: %d):
%s

CLAUSE 2 (Type: %s, Page: %d):
%s

Are these duplicates of the same underlying clause?`,
		a.ClauseType, a.PageNumber, a.ExtractedText,
		b.ClauseType, b.PageNumber, b.ExtractedText)

	var decision duplicateDecision
	err := d.llm.GenerateObject(ctx, prompt, "duplicate_decision", duplicateSchema, &decision, llm.GenerateOptions{
		Model:        d.model,
		SystemPrompt: dedupSystemPrompt,
		Temperature:  0.1,
	})
	if err != nil {
		slog.Warn("duplicate comparison failed, using text similarity fallback", "error", err)
		return textSimilarityFallback(a.ExtractedText, b.ExtractedText)
	}
	return decision.IsDuplicate && decision.Confidence >= duplicateConfidenceThreshold
}

// textSimilarityFallback declares a duplicate only for near-identical text:
// lengths within 10% of each other and an exact match on the first 100
// characters, both on trimmed lowercase text.
func textSimilarityFallback(a, b string) bool {
	ta := strings.ToLower(strings.TrimSpace(a))
	tb := strings.ToLower(strings.TrimSpace(b))
	if len(ta) == 0 || len(tb) == 0 {
		return false
	}

	shorter, longer := len(ta), len(tb)
	if shorter > longer {
		shorter, longer = longer, shorter
	}
	if float64(shorter)/float64(longer) <= fallbackSimilarityThreshold {
		return false
	}
	return prefix(ta, 100) == prefix(tb, 100)
}

func prefix(s string, n int) string {
	if len(s) > n {
		s = s[:n]
	}
	return s
}

// isClauseBetter reports whether a should survive over b.
func isClauseBetter(a, b ExtractedClause) bool {
	if a.ConfidenceScore-b.ConfidenceScore > 0.05 {
		return true
	}
	if b.ConfidenceScore-a.ConfidenceScore > 0.05 {
		return false
	}
	if len(a.ExtractedText)-len(b.ExtractedText) > 20 {
		return true
	}
	if len(b.ExtractedText)-len(a.ExtractedText) > 20 {
		return false
	}
	if a.RiskReasoning != "" && b.RiskReasoning == "" {
		return true
	}
	if b.RiskReasoning != "" && a.RiskReasoning == "" {
		return false
	}
	return true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
