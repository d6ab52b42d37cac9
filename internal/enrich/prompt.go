package enrich

import (
	"fmt"
	"strings"
)

// enrichmentContract is the prompt-level rule list pushed verbatim into
// the LLM instructions for every document.
const enrichmentContract = `Rules:
- Only annotations in [[...]] may be added; nothing else may change, not even punctuation or whitespace.
- Annotations may only introduce information that appears elsewhere in the provided window context.
- Annotations target pronouns, deictic references ("this"/"that"/"these"), acronyms (expanded to a form present in the document), temporal and geographic clarifications, and role/relationship qualifiers.
- URLs, image alt text, and any other Markdown syntax are untouchable; no [[...]] inside links/images/code fences.
- Do not repeat information already explicit in the same sentence.`

// buildCachedInstructions is the document-level cached_context pushed
// once per document.
func buildCachedInstructions(title, url, description string) string {
	var b strings.Builder
	b.WriteString("You are annotating a document for retrieval-augmented generation.\n")
	fmt.Fprintf(&b, "Title: %s\n", title)
	fmt.Fprintf(&b, "URL: %s\n", url)
	if description != "" {
		fmt.Fprintf(&b, "Description: %s\n", description)
	}
	b.WriteString(enrichmentContract)
	return b.String()
}

// buildWindowPrompt assembles the surrounding window context plus a
// batch's numbered paragraphs, requesting the strict JSON response shape.
func buildWindowPrompt(window Window, batch Batch) string {
	var b strings.Builder
	b.WriteString("Window context:\n")
	for _, p := range window.Paragraphs {
		fmt.Fprintf(&b, "[%d] %s\n\n", p.Index, p.Text)
	}

	b.WriteString("\nParagraphs to annotate (respond with exactly one entry per paragraph, in order):\n")
	for i, p := range batch.Paragraphs {
		fmt.Fprintf(&b, "%d. %s\n", i+1, p.Text)
	}

	b.WriteString(`
Respond with a strict JSON object: {"enhanced_paragraphs": [{"text": "...", "summary": "..."}]}`)
	return b.String()
}

// windowResponseSchema is the schema passed to the LLM call layer for
// validation.
func windowResponseSchema() map[string]any {
	return map[string]any{
		"required": []string{"enhanced_paragraphs"},
		"properties": map[string]any{
			"enhanced_paragraphs": map[string]any{"type": "array"},
		},
	}
}
