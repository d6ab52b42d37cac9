package mdconvert_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rohmanhakim/docs-crawler/internal/mdconvert"
	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/internal/sanitizer"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

// loadHtmlFixture reads an HTML fixture from fixture/input.
func loadHtmlFixture(t *testing.T, filename string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("fixture", "input", filename))
	require.NoError(t, err, "failed to read fixture %s", filename)
	return data
}

// loadExpectedMarkdown reads the expected markdown for a fixture from
// fixture/expected, with trailing newlines trimmed to match the
// converter's output format.
func loadExpectedMarkdown(t *testing.T, fixtureName string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("fixture", "expected", fixtureName+".md"))
	require.NoError(t, err, "failed to read expected markdown for %s", fixtureName)
	return bytes.TrimRight(data, "\n")
}

func createTestRule() *mdconvert.StrictConversionRule {
	return mdconvert.NewRule(&metadata.NoopSink{})
}

// createSanitizedDoc wraps parsed HTML in a SanitizedHTMLDoc the way the
// sanitizer hands content to the conversion stage: the body node is the
// content node.
func createSanitizedDoc(t *testing.T, htmlContent string) sanitizer.SanitizedHTMLDoc {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(htmlContent))
	require.NoError(t, err)

	var body *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if body != nil {
			return
		}
		if n.Type == html.ElementNode && n.Data == "body" {
			body = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	if body == nil {
		body = doc
	}
	return sanitizer.NewSanitizedHTMLDoc(body, nil)
}
