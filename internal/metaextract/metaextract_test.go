package metaextract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func parseDoc(t *testing.T, raw string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(raw))
	require.Nil(t, err)
	return doc
}

func TestExtractResolvesFromJSONLD(t *testing.T) {
	raw := `<html lang="en"><head>
<script type="application/ld+json">
{
  "@type": "Article",
  "headline": "Deep Dive Into Consultation",
  "description": "An exploration of collective decision-making.",
  "datePublished": "2024-03-01",
  "author": {"@type": "Person", "name": "Jane Doe", "jobTitle": "Editor"},
  "publisher": {"@type": "Organization", "name": "Example Press", "logo": {"url": "https://example.com/logo.png"}},
  "keywords": ["consultation", "unity"]
}
</script>
</head><body><p>body text</p></body></html>`

	doc := parseDoc(t, raw)
	var e MetaExtractor
	meta := e.Extract(doc, "body text")

	require.Equal(t, "Deep Dive Into Consultation", meta.Title)
	require.Equal(t, "An exploration of collective decision-making.", meta.Description)
	require.Equal(t, "2024-03-01", meta.DatePublished)
	require.Equal(t, "Jane Doe", meta.Author.Name)
	require.Equal(t, "Editor", meta.Author.JobTitle)
	require.Equal(t, "Example Press", meta.Publisher.Name)
	require.Equal(t, "https://example.com/logo.png", meta.Publisher.Logo)
	require.ElementsMatch(t, []string{"consultation", "unity"}, meta.Keywords)
	require.Equal(t, "en", meta.Language)
}

func TestExtractFallsBackToMetaTags(t *testing.T) {
	raw := `<html><head>
<title>Fallback Title</title>
<meta name="description" content="fallback description">
<meta name="author" content="John Smith">
<meta property="og:site_name" content="Fallback Press">
<link rel="canonical" href="https://example.com/canonical">
</head><body><p>no jsonld here</p></body></html>`

	doc := parseDoc(t, raw)
	var e MetaExtractor
	meta := e.Extract(doc, "no jsonld here")

	require.Equal(t, "Fallback Title", meta.Title)
	require.Equal(t, "fallback description", meta.Description)
	require.Equal(t, "John Smith", meta.Author.Name)
	require.Equal(t, "Fallback Press", meta.Publisher.Name)
	require.Equal(t, "https://example.com/canonical", meta.CanonicalURL)
}

func TestExtractFallsBackToBylineRegex(t *testing.T) {
	raw := `<html><head><title>No Author Metadata</title></head><body></body></html>`
	doc := parseDoc(t, raw)
	var e MetaExtractor
	meta := e.Extract(doc, "This article was written by Maria Garcia for the community.")
	require.Equal(t, "Maria Garcia", meta.Author.Name)
}

func TestExtractDropsEmptyAuthorAndKeywords(t *testing.T) {
	raw := `<html><head><title>Minimal</title></head><body></body></html>`
	doc := parseDoc(t, raw)
	var e MetaExtractor
	meta := e.Extract(doc, "")

	require.Equal(t, Person{}, meta.Author)
	require.Nil(t, meta.Keywords)
}

func TestExtractPrefersArticleNodeOverOrganizationNode(t *testing.T) {
	raw := `<html><head>
<script type="application/ld+json">
[
  {"@type": "Organization", "name": "Site Org"},
  {"@type": "Article", "headline": "The Real Headline"}
]
</script>
</head><body></body></html>`

	doc := parseDoc(t, raw)
	var e MetaExtractor
	meta := e.Extract(doc, "")
	require.Equal(t, "The Real Headline", meta.Title)
}

func TestExtractHandlesGraphWrappedJSONLD(t *testing.T) {
	raw := `<html><head>
<script type="application/ld+json">
{"@graph": [
  {"@type": "WebSite", "name": "Example Site"},
  {"@type": "NewsArticle", "headline": "Graph Headline", "author": "Plain Name"}
]}
</script>
</head><body></body></html>`

	doc := parseDoc(t, raw)
	var e MetaExtractor
	meta := e.Extract(doc, "")
	require.Equal(t, "Graph Headline", meta.Title)
	require.Equal(t, "Plain Name", meta.Author.Name)
}

func TestExtractToleratesMalformedJSONLD(t *testing.T) {
	raw := `<html><head>
<script type="application/ld+json">{not valid json</script>
<title>Still Works</title>
</head><body></body></html>`

	doc := parseDoc(t, raw)
	var e MetaExtractor
	meta := e.Extract(doc, "")
	require.Equal(t, "Still Works", meta.Title)
}
