package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// clauseMarkerPattern matches enumerated clause markers like "B. " or "12. "
// at the start of a line.
var clauseMarkerPattern = regexp.MustCompile(`(\n\s*|^)([A-Z]\.\s+|\d+\.\s+)`)

// fallbackChunksForPage builds chunks for a page the model skipped. Section
// context is inherited from an existing chunk within one page; the text is
// split on clause markers when enough are present, otherwise by sentences.
func fallbackChunksForPage(pageNum int, pageText string, existing []Chunk) []Chunk {
	sectionName := "Unknown"
	for _, c := range existing {
		if abs(c.PageNumber-pageNum) <= 1 {
			sectionName = c.SectionName
			break
		}
	}

	matches := clauseMarkerPattern.FindAllStringSubmatchIndex(pageText, -1)
	if len(matches) >= 2 {
		return clauseMarkerChunks(pageNum, pageText, sectionName, matches)
	}
	return sentenceChunks(pageNum, pageText, sectionName, repairChunkChars, "")
}

// clauseMarkerChunks splits page text at enumerated markers. Oversized parts
// are further packed into sentence chunks.
func clauseMarkerChunks(pageNum int, pageText, sectionName string, matches [][]int) []Chunk {
	type part struct {
		text string
	}
	var parts []part

	// Text before the first marker.
	if first := matches[0][0]; first > 0 {
		if head := strings.TrimSpace(pageText[:first]); head != "" {
			parts = append(parts, part{text: head})
		}
	}

	for i, m := range matches {
		start := m[1] // end of full match, start of clause body
		end := len(pageText)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		if body := strings.TrimSpace(pageText[start:end]); body != "" {
			parts = append(parts, part{text: body})
		}
	}

	var chunks []Chunk
	for i, p := range parts {
		if len(p.text) > repairChunkChars {
			prefix := fmt.Sprintf("chunk_%d_%d", pageNum, i)
			chunks = append(chunks, sentenceChunks(pageNum, p.text, sectionName, repairChunkChars, prefix)...)
			continue
		}
		chunks = append(chunks, Chunk{
			ChunkID:     fmt.Sprintf("chunk_%d_%d", pageNum, i),
			Text:        p.text,
			PageNumber:  pageNum,
			SectionName: sectionName,
			ChunkType:   "clause",
		})
	}
	return chunks
}

// sentenceChunks packs sentences into chunks up to maxChars. idPrefix, when
// set, produces subchunk IDs under a parent chunk.
func sentenceChunks(pageNum int, text, sectionName string, maxChars int, idPrefix string) []Chunk {
	sentences := splitSentences(text)

	makeID := func(n int) string {
		if idPrefix != "" {
			return fmt.Sprintf("%s_%d", idPrefix, n)
		}
		return fmt.Sprintf("chunk_%d_%d", pageNum, n)
	}

	var chunks []Chunk
	var current strings.Builder
	chunkNum := 0

	flush := func() {
		if t := strings.TrimSpace(current.String()); t != "" {
			chunks = append(chunks, Chunk{
				ChunkID:     makeID(chunkNum),
				Text:        t,
				PageNumber:  pageNum,
				SectionName: sectionName,
				ChunkType:   "clause",
			})
			chunkNum++
		}
		current.Reset()
	}

	for _, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		if current.Len()+len(sentence) > maxChars {
			flush()
		}
		current.WriteString(sentence)
		current.WriteString(" ")
	}
	flush()

	return chunks
}

// splitSentences splits text at sentence-ending punctuation, keeping common
// abbreviations intact.
func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var sentences []string
	var current strings.Builder

	words := strings.Fields(text)
	for i, word := range words {
		current.WriteString(word)

		endsSentence := strings.HasSuffix(word, ".") || strings.HasSuffix(word, "!") || strings.HasSuffix(word, "?")
		if endsSentence && !isAbbreviation(word) {
			sentences = append(sentences, current.String())
			current.Reset()
		} else if i < len(words)-1 {
			current.WriteString(" ")
		}
	}
	if current.Len() > 0 {
		sentences = append(sentences, current.String())
	}
	return sentences
}

var abbreviations = map[string]bool{
	"Dr.": true, "Mr.": true, "Mrs.": true, "Ms.": true, "Prof.": true,
	"Inc.": true, "Ltd.": true, "Corp.": true, "Co.": true, "LLC.": true,
	"vs.": true, "etc.": true, "e.g.": true, "i.e.": true, "cf.": true,
	"No.": true, "Art.": true, "Sec.": true, "approx.": true,
}

func isAbbreviation(word string) bool {
	return abbreviations[word]
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
