package rag

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
)

var (
	bracketedSourceRe   = regexp.MustCompile(`(?i)\[Source\s+(\d+)\]`)
	unbracketedSourceRe = regexp.MustCompile(`(?i)\bSource\s+(\d+)\b`)
	spaceRunRe          = regexp.MustCompile(`[ \t]+`)
	spaceBeforeCiteRe   = regexp.MustCompile(`[ \t]*\[Source`)
	bareSourceRe        = regexp.MustCompile(`\s+Source\s+(\d+)`)
	paragraphBreakRe    = regexp.MustCompile(`\n\s*\n`)
)

// validateCitedSources keeps only 1-based source numbers that exist. If the
// model cited nothing valid, the top 3 sources by similarity are used instead.
func validateCitedSources(cited []int, citations []Citation) []int {
	valid := make([]int, 0, len(cited))
	var invalid []int
	for _, s := range cited {
		if s >= 1 && s <= len(citations) {
			valid = append(valid, s)
		} else {
			invalid = append(invalid, s)
		}
	}
	if len(invalid) > 0 {
		slog.Warn("filtered invalid source numbers from answer",
			"invalid_sources", invalid,
			"valid_range", fmt.Sprintf("1-%d", len(citations)))
	}

	if len(valid) == 0 {
		order := bySimilarity(citations)
		for i := 0; i < len(order) && i < 3; i++ {
			valid = append(valid, order[i]+1)
		}
	}
	return valid
}

// usedCitations resolves source numbers to citations, dropping low-similarity
// sources. If that drops everything, the top 3 by similarity survive.
func usedCitations(sourceNums []int, citations []Citation) []Citation {
	seen := make(map[int]bool)
	nums := make([]int, 0, len(sourceNums))
	for _, n := range sourceNums {
		if !seen[n] {
			seen[n] = true
			nums = append(nums, n)
		}
	}
	sort.Ints(nums)

	used := make([]Citation, 0, len(nums))
	for _, n := range nums {
		idx := n - 1
		if idx < 0 || idx >= len(citations) {
			continue
		}
		if citations[idx].SimilarityScore > minSimilarity {
			used = append(used, citations[idx])
		}
	}
	if len(used) == 0 {
		order := bySimilarity(citations)
		for i := 0; i < len(order) && i < 3; i++ {
			used = append(used, citations[order[i]])
		}
	}
	return used
}

// bySimilarity returns citation indexes sorted by descending similarity.
func bySimilarity(citations []Citation) []int {
	order := make([]int, len(citations))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return citations[order[a]].SimilarityScore > citations[order[b]].SimilarityScore
	})
	return order
}

// scrubSourceReferences removes references to invalid sources from the answer
// text and normalizes spacing around the remaining ones. Paragraph breaks are
// preserved.
func scrubSourceReferences(answer string, validSources []int) string {
	validSet := make(map[string]bool, len(validSources))
	for _, s := range validSources {
		validSet[fmt.Sprintf("%d", s)] = true
	}

	referenced := make(map[string]bool)
	for _, m := range bracketedSourceRe.FindAllStringSubmatch(answer, -1) {
		referenced[m[1]] = true
	}
	for _, m := range unbracketedSourceRe.FindAllStringSubmatch(answer, -1) {
		referenced[m[1]] = true
	}

	cleaned := answer
	for ref := range referenced {
		if validSet[ref] {
			continue
		}
		cleaned = regexp.MustCompile(`(?i)\[Source\s+`+ref+`\]`).ReplaceAllString(cleaned, "")
		cleaned = regexp.MustCompile(`(?i)\bSource\s+`+ref+`\b`).ReplaceAllString(cleaned, "")
	}

	cleaned = spaceRunRe.ReplaceAllString(cleaned, " ")
	cleaned = spaceBeforeCiteRe.ReplaceAllString(cleaned, " [Source")
	cleaned = bareSourceRe.ReplaceAllString(cleaned, " [Source $1]")
	cleaned = paragraphBreakRe.ReplaceAllString(cleaned, "\n\n")
	return strings.TrimSpace(cleaned)
}
