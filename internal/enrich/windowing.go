package enrich

import (
	"regexp"
	"strings"
)

const (
	defaultBatchWordTarget = 500
	defaultWindowWordSize  = 2000
)

// splitFrontMatter separates a leading "---"-fenced YAML block (fences
// included, plus any blank lines that follow it) from the Markdown body.
// A document without front-matter returns ("", doc) unchanged.
func splitFrontMatter(doc string) (frontMatter, body string) {
	if !strings.HasPrefix(doc, "---\n") {
		return "", doc
	}
	rest := doc[len("---\n"):]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return "", doc
	}
	after := rest[end+len("\n---"):]
	if after != "" && after[0] != '\n' {
		return "", doc
	}
	cut := len(doc) - len(after)
	for cut < len(doc) && (doc[cut] == '\n' || doc[cut] == '\r') {
		cut++
	}
	return doc[:cut], doc[cut:]
}

// splitParagraphs breaks a Markdown body into empty-line-delimited
// blocks, preserving Markdown syntax within each.
func splitParagraphs(body string) []Paragraph {
	blocks := regexp.MustCompile(`\n\s*\n`).Split(body, -1)
	paragraphs := make([]Paragraph, 0, len(blocks))
	idx := 0
	for _, b := range blocks {
		if strings.TrimSpace(b) == "" {
			continue
		}
		paragraphs = append(paragraphs, Paragraph{Index: idx, Text: b})
		idx++
	}
	return paragraphs
}

var sentenceBoundary = regexp.MustCompile(`[.!?]["')\]]?(\s|$)`)

// buildWindows slices paragraphs into overlapping word-count windows
// with 50% step; each window is extended forward until its last
// paragraph ends in a sentence boundary (see extendToSentenceBoundary). Every
// paragraph belongs to at least one window by construction: the step
// never exceeds the window size.
func buildWindows(paragraphs []Paragraph, windowSize int) []Window {
	if windowSize <= 0 || len(paragraphs) == 0 {
		return []Window{{Paragraphs: paragraphs}}
	}

	wordCounts := make([]int, len(paragraphs))
	totalWords := 0
	for i, p := range paragraphs {
		wordCounts[i] = len(strings.Fields(p.Text))
		totalWords += wordCounts[i]
	}
	if totalWords <= windowSize {
		return []Window{{Paragraphs: paragraphs}}
	}

	step := windowSize / 2
	if step < 1 {
		step = 1
	}

	var windows []Window
	startWord := 0
	for startWord < totalWords {
		endWord := startWord + windowSize
		startIdx, endIdx := wordRangeToParagraphRange(wordCounts, startWord, endWord)
		endIdx = extendToSentenceBoundary(paragraphs, startIdx, endIdx, windowSize)

		windows = append(windows, Window{Paragraphs: paragraphs[startIdx:endIdx]})

		if endIdx >= len(paragraphs) {
			break
		}
		startWord += step
	}
	return windows
}

// wordRangeToParagraphRange maps a [startWord, endWord) word-offset span
// onto a paragraph index range, always including at least one paragraph.
func wordRangeToParagraphRange(wordCounts []int, startWord, endWord int) (int, int) {
	cursor := 0
	startIdx, endIdx := -1, len(wordCounts)
	for i, n := range wordCounts {
		if startIdx < 0 && cursor+n > startWord {
			startIdx = i
		}
		cursor += n
		if cursor >= endWord {
			endIdx = i + 1
			break
		}
	}
	if startIdx < 0 {
		startIdx = len(wordCounts) - 1
	}
	if endIdx <= startIdx {
		endIdx = startIdx + 1
	}
	return startIdx, endIdx
}

// extendToSentenceBoundary looks within the last 20% of the characters
// of the slice's final paragraph for a sentence-ending punctuation mark;
// if one is there, the window ends at endIdx unchanged. Otherwise it pulls
// in trailing paragraphs one at a time until a boundary appears, capped
// at windowSize extra paragraphs. The slice is never cut back to an
// earlier boundary; it only grows.
func extendToSentenceBoundary(paragraphs []Paragraph, startIdx, endIdx, windowSize int) int {
	if endIdx >= len(paragraphs) {
		return len(paragraphs)
	}
	if hasBoundaryInTail(paragraphs[endIdx-1].Text) {
		return endIdx
	}

	maxExtension := endIdx + windowSize
	for endIdx < len(paragraphs) && endIdx < maxExtension {
		if hasBoundaryInTail(paragraphs[endIdx-1].Text) {
			return endIdx
		}
		endIdx++
	}
	return endIdx
}

func hasBoundaryInTail(paragraph string) bool {
	tailStart := len(paragraph) * 4 / 5
	if tailStart < 0 {
		tailStart = 0
	}
	return sentenceBoundary.MatchString(paragraph[tailStart:])
}

// buildBatches accumulates contiguous paragraphs within one window up to
// a word-count target; batches never span window boundaries.
func buildBatches(window Window, batchWordTarget int) []Batch {
	if batchWordTarget <= 0 {
		batchWordTarget = defaultBatchWordTarget
	}

	var batches []Batch
	var current []Paragraph
	wordCount := 0
	for _, p := range window.Paragraphs {
		n := len(strings.Fields(p.Text))
		if wordCount > 0 && wordCount+n > batchWordTarget {
			batches = append(batches, Batch{Paragraphs: current})
			current = nil
			wordCount = 0
		}
		current = append(current, p)
		wordCount += n
	}
	if len(current) > 0 {
		batches = append(batches, Batch{Paragraphs: current})
	}
	return batches
}
