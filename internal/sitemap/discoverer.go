package sitemap

/*
Responsibilities
- Resolve the set of candidate sitemap URLs for a base URL: robots.txt
  "Sitemap:" declarations, plus a fixed list of common paths probed via
  HEAD.
- Recursively parse sitemapindex/urlset XML, extracting language from
  hreflang self-references, xhtml:link self-references, or URL-segment
  heuristics (defaulting to "en").
- Cap total discovered URLs at 50 000 and reject bodies over 50 MB.

The robots.txt fetch reuses internal/robots (RobotsResponse.Sitemaps
already carries the "Sitemap:" lines), with the same tolerate-failures
posture: discovery never aborts a run.
*/

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/internal/robots"
	"github.com/rohmanhakim/docs-crawler/internal/robots/cache"
)

const (
	maxSitemapBodyBytes = 50 * 1024 * 1024
	maxDiscoveredURLs   = 50000
	maxRecursionDepth   = 10
)

// EntryHandler receives discovered entries as sitemaps are parsed,
// allowing a caller to pipe them straight to persistence.
type EntryHandler func(entries []Entry) error

// Discoverer is the scheduler-facing port for sitemap discovery.
type Discoverer interface {
	Discover(ctx context.Context, base url.URL, handler EntryHandler) ([]Entry, *SitemapError)
}

// HTTPDiscoverer is the default Discoverer.
type HTTPDiscoverer struct {
	httpClient   *http.Client
	userAgent    string
	probePaths   []string
	metadataSink metadata.MetadataSink
}

var _ Discoverer = (*HTTPDiscoverer)(nil)

func NewHTTPDiscoverer(userAgent string, probePaths []string, metadataSink metadata.MetadataSink) *HTTPDiscoverer {
	return &HTTPDiscoverer{
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		userAgent:    userAgent,
		probePaths:   probePaths,
		metadataSink: metadataSink,
	}
}

// Discover runs the full discovery order: robots.txt
// declarations, then common-path probing, deduped, then recursive XML
// parsing. Entries are both returned and streamed to handler (if
// non-nil) as each sitemap document is parsed.
func (d *HTTPDiscoverer) Discover(ctx context.Context, base url.URL, handler EntryHandler) ([]Entry, *SitemapError) {
	candidates := d.candidateSitemapURLs(ctx, base)

	var all []Entry
	seen := make(map[string]struct{})
	budget := maxDiscoveredURLs

	for _, candidate := range candidates {
		entries, err := d.parseRecursive(ctx, candidate, budget, 0)
		if err != nil {
			// A single bad sitemap does not abort
			// discovery; tolerate it and continue with the rest, the
			// same way robots.txt fetch failures are tolerated.
			continue
		}
		fresh := make([]Entry, 0, len(entries))
		for _, e := range entries {
			if _, dup := seen[e.URL]; dup {
				continue
			}
			seen[e.URL] = struct{}{}
			fresh = append(fresh, e)
		}
		if len(fresh) == 0 {
			continue
		}
		if handler != nil {
			if err := handler(fresh); err != nil {
				return all, &SitemapError{Message: err.Error(), Retryable: false, Cause: ErrCauseParseFailed}
			}
		}
		all = append(all, fresh...)
		budget -= len(fresh)
		if budget <= 0 {
			break
		}
	}
	return all, nil
}

// candidateSitemapURLs resolves robots.txt declarations plus common-path
// probes, deduped, preserving discovery order.
func (d *HTTPDiscoverer) candidateSitemapURLs(ctx context.Context, base url.URL) []string {
	seen := make(map[string]struct{})
	var candidates []string

	add := func(raw string) {
		resolved, err := resolveAgainst(base, raw)
		if err != nil {
			return
		}
		if _, ok := seen[resolved]; ok {
			return
		}
		seen[resolved] = struct{}{}
		candidates = append(candidates, resolved)
	}

	scheme := base.Scheme
	if scheme == "" {
		scheme = "https"
	}
	fetcher := robots.NewRobotsFetcherWithClient(d.metadataSink, d.userAgent, d.httpClient, cache.NewMemoryCache())
	if result, err := fetcher.Fetch(ctx, scheme, base.Host); err == nil {
		for _, sm := range result.Response.Sitemaps {
			add(sm)
		}
	}

	for _, path := range d.probePaths {
		probeURL := base
		probeURL.Path = path
		probeURL.RawQuery = ""
		if d.probeIsSitemap(ctx, probeURL) {
			add(probeURL.String())
		}
	}

	return candidates
}

// probeIsSitemap accepts a path ending in .xml as a sitemap candidate
// without any request; any other path is accepted when a HEAD request
// returns 200 with an XML content-type.
func (d *HTTPDiscoverer) probeIsSitemap(ctx context.Context, u url.URL) bool {
	if strings.HasSuffix(u.Path, ".xml") {
		return true
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u.String(), nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", d.userAgent)
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}
	ct := resp.Header.Get("Content-Type")
	return strings.Contains(ct, "xml")
}

// parseRecursive fetches and parses one sitemap document, recursing into
// child sitemaps when it's a sitemapindex.
func (d *HTTPDiscoverer) parseRecursive(ctx context.Context, sitemapURL string, budget, depth int) ([]Entry, *SitemapError) {
	if depth > maxRecursionDepth {
		return nil, &SitemapError{Message: "recursion depth exceeded", Retryable: false, Cause: ErrCauseTooManyHosts}
	}
	if budget <= 0 {
		return nil, nil
	}

	body, err := d.fetchBody(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}

	if looksLikeSitemapIndex(body) {
		var index xmlSitemapIndex
		if err := xml.Unmarshal(body, &index); err != nil {
			return nil, &SitemapError{Message: err.Error(), Retryable: false, Cause: ErrCauseParseFailed}
		}
		var entries []Entry
		for _, sm := range index.Sitemaps {
			if budget <= 0 {
				break
			}
			loc := sm.Loc
			if parent, perr := url.Parse(sitemapURL); perr == nil {
				if resolved, rerr := resolveAgainst(*parent, sm.Loc); rerr == nil {
					loc = resolved
				}
			}
			child, err := d.parseRecursive(ctx, loc, budget, depth+1)
			if err != nil {
				continue
			}
			entries = append(entries, child...)
			budget -= len(child)
		}
		return entries, nil
	}

	var set xmlURLSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, &SitemapError{Message: err.Error(), Retryable: false, Cause: ErrCauseParseFailed}
	}

	entries := make([]Entry, 0, len(set.URLs))
	for _, u := range set.URLs {
		if len(entries) >= budget {
			break
		}
		if u.Loc == "" {
			continue
		}
		priority, _ := strconv.ParseFloat(u.Priority, 64)
		entries = append(entries, Entry{
			URL:            u.Loc,
			DiscoveredFrom: sitemapURL,
			Language:       resolveLanguage(u),
			Priority:       priority,
			LastMod:        u.LastMod,
			ChangeFreq:     u.ChangeFreq,
		})
	}
	return entries, nil
}

func (d *HTTPDiscoverer) fetchBody(ctx context.Context, sitemapURL string) ([]byte, *SitemapError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil, &SitemapError{Message: err.Error(), Retryable: false, Cause: ErrCauseFetchFailed}
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, &SitemapError{Message: err.Error(), Retryable: true, Cause: ErrCauseFetchFailed}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &SitemapError{Message: fmt.Sprintf("unexpected status %d", resp.StatusCode), Retryable: true, Cause: ErrCauseFetchFailed}
	}

	limited := io.LimitReader(resp.Body, maxSitemapBodyBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, &SitemapError{Message: err.Error(), Retryable: true, Cause: ErrCauseFetchFailed}
	}
	if len(body) > maxSitemapBodyBytes {
		return nil, &SitemapError{Message: "sitemap body exceeds 50MB", Retryable: false, Cause: ErrCauseOversize}
	}
	return body, nil
}

func looksLikeSitemapIndex(body []byte) bool {
	return strings.Contains(string(body), "<sitemapindex")
}

// resolveLanguage applies the language precedence: hreflang
// self-reference, xhtml:link self-reference, URL-segment heuristic,
// defaulting to "en" for canonical-looking paths.
func resolveLanguage(u xmlURL) string {
	for _, link := range u.Links {
		if link.Rel == "alternate" && link.Hreflang != "" && link.Href == u.Loc {
			return link.Hreflang
		}
	}
	for _, link := range u.Links {
		if link.Rel == "alternate" && link.Hreflang != "" {
			return link.Hreflang
		}
	}
	if lang := languageFromURLSegment(u.Loc); lang != "" {
		return lang
	}
	return "en"
}

// languageFromURLSegment looks for a two-letter locale segment
// immediately after the host (e.g. "/fr/docs/...") as a URL heuristic.
func languageFromURLSegment(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(segments) == 0 {
		return ""
	}
	first := segments[0]
	if len(first) == 2 && strings.ToLower(first) == first {
		return first
	}
	return ""
}

func resolveAgainst(base url.URL, raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if parsed.IsAbs() {
		return parsed.String(), nil
	}
	resolved := base.ResolveReference(parsed)
	return resolved.String(), nil
}
