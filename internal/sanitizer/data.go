package sanitizer

import (
	"net/url"

	"golang.org/x/net/html"
)

type SanitizedHTMLDoc struct {
	contentNode    *html.Node
	discoveredUrls []url.URL
}

// NewSanitizedHTMLDoc constructs a SanitizedHTMLDoc directly. Callers
// outside the sanitization pipeline (conversion-rule tests, mainly) use
// it to hand a pre-sanitized subtree to downstream stages.
func NewSanitizedHTMLDoc(contentNode *html.Node, discoveredUrls []url.URL) SanitizedHTMLDoc {
	return SanitizedHTMLDoc{
		contentNode:    contentNode,
		discoveredUrls: discoveredUrls,
	}
}

func (s *SanitizedHTMLDoc) GetDiscoveredURLs() []url.URL {
	return s.discoveredUrls
}

// GetContentNode returns the sanitized content subtree.
func (s *SanitizedHTMLDoc) GetContentNode() *html.Node {
	return s.contentNode
}

// RepairableResult is the outcome of a structural repairability check.
type RepairableResult struct {
	Repairable bool
	Reason     UnrepairabilityReason
}

// headingInfo captures a single heading node alongside its level and text,
// used by the repairability checks to reason about document hierarchy.
type headingInfo struct {
	level int
	node  *html.Node
	text  string
}
