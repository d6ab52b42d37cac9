package normalize

import (
	"bytes"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// frontmatterDoc is the serialization shape of the YAML front-matter
// block. Field order here is emission order; empty optional fields are
// omitted entirely rather than emitted blank.
type frontmatterDoc struct {
	Title              string   `yaml:"title"`
	URL                string   `yaml:"url"`
	CrawledAt          string   `yaml:"crawled_at"`
	Description        string   `yaml:"description,omitempty"`
	Keywords           []string `yaml:"keywords,omitempty"`
	Author             string   `yaml:"author,omitempty"`
	AuthorDescription  string   `yaml:"authorDescription,omitempty"`
	AuthorJobTitle     string   `yaml:"authorJobTitle,omitempty"`
	AuthorImage        string   `yaml:"authorImage,omitempty"`
	AuthorURL          string   `yaml:"authorUrl,omitempty"`
	AuthorOrganization string   `yaml:"authorOrganization,omitempty"`
	Publisher          string   `yaml:"publisher,omitempty"`
	PublisherLogo      string   `yaml:"publisherLogo,omitempty"`
	DatePublished      string   `yaml:"datePublished,omitempty"`
	DateModified       string   `yaml:"dateModified,omitempty"`
	Language           string   `yaml:"language,omitempty"`
	Image              string   `yaml:"image,omitempty"`
	Section            string   `yaml:"section,omitempty"`
	License            string   `yaml:"license,omitempty"`
	AudioDuration      string   `yaml:"audioDuration,omitempty"`
	Canonical          string   `yaml:"canonical,omitempty"`
	DocID              string   `yaml:"doc_id,omitempty"`
	ContentHash        string   `yaml:"content_hash,omitempty"`
	CrawlDepth         int      `yaml:"crawl_depth"`
	CrawlerVersion     string   `yaml:"crawler_version,omitempty"`
}

// Render serializes the front-matter between "---" fences, ready to be
// prepended to the Markdown content. yaml.v3 owns quoting: values with
// YAML-significant characters come out quoted, plain strings stay bare.
func (f Frontmatter) Render() ([]byte, error) {
	meta := f.docMeta
	// A page-declared <link rel=canonical> wins over the crawler's own
	// canonicalization of the fetch URL.
	canonical := meta.CanonicalURL
	if canonical == "" {
		canonical = f.canonicalURL
	}
	doc := frontmatterDoc{
		Title:              f.title,
		URL:                f.sourceURL,
		CrawledAt:          f.fetchedAt.UTC().Format(time.RFC3339),
		Description:        meta.Description,
		Keywords:           meta.Keywords,
		Author:             meta.Author.Name,
		AuthorDescription:  meta.Author.Bio,
		AuthorJobTitle:     meta.Author.JobTitle,
		AuthorImage:        meta.Author.Image,
		AuthorURL:          meta.Author.URL,
		AuthorOrganization: meta.Author.Organization,
		Publisher:          meta.Publisher.Name,
		PublisherLogo:      meta.Publisher.Logo,
		DatePublished:      meta.DatePublished,
		DateModified:       meta.DateModified,
		Language:           meta.Language,
		Image:              meta.Image,
		Section:            f.section,
		License:            meta.License,
		AudioDuration:      meta.AudioDuration,
		Canonical:          canonical,
		DocID:              f.docID,
		ContentHash:        f.contentHash,
		CrawlDepth:         f.crawlDepth,
		CrawlerVersion:     f.crawlerVersion,
	}

	body, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshaling front-matter: %w", err)
	}

	var b bytes.Buffer
	b.WriteString("---\n")
	b.Write(body)
	b.WriteString("---\n\n")
	return b.Bytes(), nil
}
