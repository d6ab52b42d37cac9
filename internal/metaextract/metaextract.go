package metaextract

/*
Responsibilities
- Fuse JSON-LD, <meta>, Open Graph, and byline-regex signals into a single
  DocumentMetadata, applying the documented precedence chain per field
  (first non-empty source wins).
- Attach bio/job-title/image/url/organization to the resolved author when
  a JSON-LD Person node's name matches.
- Drop empty strings/arrays before returning.

Works over the already-parsed *html.Node tree via
goquery.NewDocumentFromNode, like the content extractor does.
*/

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"golang.org/x/net/html"
)

// Extractor is the scheduler-facing port for metadata fusion.
type Extractor interface {
	Extract(documentRoot *html.Node, bodyText string) DocumentMetadata
	ExtractFromDocument(documentRoot *html.Node) DocumentMetadata
}

type MetaExtractor struct {
	metadataSink metadata.MetadataSink
}

var _ Extractor = (*MetaExtractor)(nil)

func NewMetaExtractor(metadataSink metadata.MetadataSink) MetaExtractor {
	return MetaExtractor{metadataSink: metadataSink}
}

var bylineRegex = regexp.MustCompile(`[Bb]y\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)`)

// ExtractFromDocument derives the body text itself before delegating to
// Extract, for callers that hold only the parsed document root.
func (m *MetaExtractor) ExtractFromDocument(documentRoot *html.Node) DocumentMetadata {
	doc := goquery.NewDocumentFromNode(documentRoot)
	bodyText := strings.TrimSpace(doc.Find("body").First().Text())
	return m.Extract(documentRoot, bodyText)
}

// Extract fuses signals from the full parsed document (not just the
// extracted content subtree, since metadata lives in <head> and
// structured-data blocks the content extractor discards).
func (m *MetaExtractor) Extract(documentRoot *html.Node, bodyText string) DocumentMetadata {
	doc := goquery.NewDocumentFromNode(documentRoot)

	jsonldNodes := parseJSONLDBlocks(extractJSONLDBlocks(doc))
	primary := firstArticleNode(jsonldNodes)

	meta := DocumentMetadata{
		Title:         resolveTitle(doc, primary),
		Description:   resolveDescription(doc, primary),
		DatePublished: resolveDate(doc, primary, "datePublished", "article:published_time"),
		DateModified:  resolveDate(doc, primary, "dateModified", "article:modified_time"),
		CanonicalURL:  metaAttr(doc, `link[rel="canonical"]`, "href"),
		Language:      resolveLanguage(doc),
		Image:         resolveImage(doc, primary),
		Section:       resolveMetaContent(doc, "article:section", "section"),
		License:       resolveLicense(doc),
		AudioDuration: resolveAudioDuration(doc, primary),
		Keywords:      resolveKeywords(doc, primary),
	}

	authorName := resolveAuthorName(doc, primary, bodyText)
	// A Person nested under the article's "author" is searched alongside
	// the top-level JSON-LD nodes.
	candidates := jsonldNodes
	if primary != nil {
		candidates = append(flattenJSONLD(primary["author"]), jsonldNodes...)
	}
	meta.Author = resolveAuthorDetail(authorName, candidates)
	meta.Publisher = resolvePublisher(doc, primary)

	return dropEmpty(meta)
}

func extractJSONLDBlocks(doc *goquery.Document) []string {
	var blocks []string
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text != "" {
			blocks = append(blocks, text)
		}
	})
	return blocks
}

// firstArticleNode prefers an Article/NewsArticle/BlogPosting node, since
// a page's JSON-LD often also carries an unrelated Organization/WebSite
// node for the site itself.
func firstArticleNode(nodes []jsonldNode) jsonldNode {
	for _, n := range nodes {
		if n.typeIs("Article") || n.typeIs("NewsArticle") || n.typeIs("BlogPosting") {
			return n
		}
	}
	if len(nodes) > 0 {
		return nodes[0]
	}
	return nil
}

func resolveTitle(doc *goquery.Document, primary jsonldNode) string {
	if primary != nil {
		if v := primary.str("headline"); v != "" {
			return v
		}
		if v := primary.str("name"); v != "" {
			return v
		}
	}
	if v := strings.TrimSpace(doc.Find("title").First().Text()); v != "" {
		return v
	}
	return metaAttr(doc, `meta[property="og:title"]`, "content")
}

func resolveDescription(doc *goquery.Document, primary jsonldNode) string {
	if v := metaAttr(doc, `meta[name="description"]`, "content"); v != "" {
		return v
	}
	if v := metaAttr(doc, `meta[property="og:description"]`, "content"); v != "" {
		return v
	}
	if primary != nil {
		return primary.str("description")
	}
	return ""
}

func resolveDate(doc *goquery.Document, primary jsonldNode, jsonldKey, metaProperty string) string {
	if primary != nil {
		if v := primary.str(jsonldKey); v != "" {
			return v
		}
	}
	return metaAttr(doc, `meta[property="`+metaProperty+`"]`, "content")
}

func resolveImage(doc *goquery.Document, primary jsonldNode) string {
	if primary != nil {
		if v := personName(primary["image"]); v != "" {
			return v
		}
	}
	if v := metaAttr(doc, `meta[property="og:image"]`, "content"); v != "" {
		return v
	}
	return metaAttr(doc, `meta[name="twitter:image"]`, "content")
}

func resolveLicense(doc *goquery.Document) string {
	if v := metaAttr(doc, `link[rel="license"]`, "href"); v != "" {
		return v
	}
	return metaAttr(doc, `meta[name="license"]`, "content")
}

func resolveAudioDuration(doc *goquery.Document, primary jsonldNode) string {
	if primary != nil {
		if v := primary.str("duration"); v != "" {
			return v
		}
	}
	return metaAttr(doc, `meta[property="music:duration"]`, "content")
}

func resolveMetaContent(doc *goquery.Document, property, fallbackName string) string {
	if v := metaAttr(doc, `meta[property="`+property+`"]`, "content"); v != "" {
		return v
	}
	return metaAttr(doc, `meta[name="`+fallbackName+`"]`, "content")
}

func resolveLanguage(doc *goquery.Document) string {
	if lang, ok := doc.Find("html").First().Attr("lang"); ok && lang != "" {
		return lang
	}
	if v := metaAttr(doc, `meta[property="og:locale"]`, "content"); v != "" {
		return v
	}
	return ""
}

// resolveKeywords merges meta keywords, JSON-LD keywords, article:tag,
// and DC.subject into a deduped ordered set.
func resolveKeywords(doc *goquery.Document, primary jsonldNode) []string {
	var all []string
	if v := metaAttr(doc, `meta[name="keywords"]`, "content"); v != "" {
		all = append(all, splitAndTrim(v, ",")...)
	}
	if primary != nil {
		all = append(all, stringList(primary["keywords"])...)
	}
	doc.Find(`meta[property="article:tag"]`).Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr("content"); ok && v != "" {
			all = append(all, v)
		}
	})
	if v := metaAttr(doc, `meta[name="DC.subject"]`, "content"); v != "" {
		all = append(all, splitAndTrim(v, ",")...)
	}
	return dedupOrdered(all)
}

// resolveAuthorName walks the author precedence chain, falling back to
// the byline regex over the first 500 chars of body text when every
// metadata source is absent. The regex fallback is English-biased by
// construction; non-Latin bylines fall through to no author.
func resolveAuthorName(doc *goquery.Document, primary jsonldNode, bodyText string) string {
	if primary != nil {
		if name := personName(primary["author"]); name != "" {
			return name
		}
	}
	if v := metaAttr(doc, `meta[name="author"]`, "content"); v != "" {
		return v
	}
	if v := metaAttr(doc, `meta[property="article:author"]`, "content"); v != "" {
		return v
	}
	if v := metaAttr(doc, `meta[name="DC.creator"]`, "content"); v != "" {
		return v
	}
	if v := metaAttr(doc, `link[rel="author"]`, "title"); v != "" {
		return v
	}

	sample := bodyText
	if len(sample) > 500 {
		sample = sample[:500]
	}
	if match := bylineRegex.FindStringSubmatch(sample); match != nil {
		return match[1]
	}
	return ""
}

// resolveAuthorDetail attaches bio/job title/image/url/organization when
// a JSON-LD Person node's name matches the resolved author.
func resolveAuthorDetail(authorName string, nodes []jsonldNode) Person {
	person := Person{Name: authorName}
	if authorName == "" {
		return person
	}
	for _, n := range nodes {
		if !n.typeIs("Person") {
			continue
		}
		if n.str("name") != authorName {
			continue
		}
		person.Bio = n.str("description")
		person.JobTitle = n.str("jobTitle")
		person.Image = personName(n["image"])
		person.URL = n.str("url")
		person.Organization = personName(n["worksFor"])
		break
	}
	return person
}

func resolvePublisher(doc *goquery.Document, primary jsonldNode) Publisher {
	publisher := Publisher{}
	if primary != nil {
		if pub, ok := primary["publisher"].(map[string]any); ok {
			publisher.Name = personName(pub["name"])
			if logo, ok := pub["logo"].(map[string]any); ok {
				publisher.Logo = personName(logo["url"])
			}
		} else if name := personName(primary["publisher"]); name != "" {
			publisher.Name = name
		}
	}
	if publisher.Name == "" {
		publisher.Name = metaAttr(doc, `meta[property="og:site_name"]`, "content")
	}
	return publisher
}

func metaAttr(doc *goquery.Document, selector, attr string) string {
	v, _ := doc.Find(selector).First().Attr(attr)
	return strings.TrimSpace(v)
}

func splitAndTrim(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func dedupOrdered(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, v := range in {
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

// dropEmpty clears empty fields before returning.
func dropEmpty(m DocumentMetadata) DocumentMetadata {
	if len(m.Keywords) == 0 {
		m.Keywords = nil
	}
	if m.Author.Name == "" {
		m.Author = Person{}
	}
	return m
}
