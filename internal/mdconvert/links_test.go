package mdconvert

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestResolveLinkReferences covers the link rule in isolation,
// independent of the HTML-to-Markdown fixture pipeline: percent-decoding,
// base-URL resolution, absolute passthrough, and relative .pdf/.docx
// preservation.
func TestResolveLinkReferences(t *testing.T) {
	base := url.URL{Scheme: "https", Host: "example.com", Path: "/docs/guide/intro"}

	tests := []struct {
		name string
		raw  string
		kind LinkKind
		want string
	}{
		{
			name: "relative navigation link resolves against base",
			raw:  "../api",
			kind: KindNavigation,
			want: "https://example.com/docs/api",
		},
		{
			name: "percent-encoded segment is decoded before resolving",
			raw:  "../api/getting%20started",
			kind: KindNavigation,
			want: "https://example.com/docs/api/getting started",
		},
		{
			name: "absolute link is left as-is",
			raw:  "https://other.example/page",
			kind: KindNavigation,
			want: "https://other.example/page",
		},
		{
			name: "fragment-only anchor resolves against the page URL",
			raw:  "#section-two",
			kind: KindAnchor,
			want: "https://example.com/docs/guide/intro#section-two",
		},
		{
			name: "relative pdf target is preserved, not resolved",
			raw:  "../files/report.pdf",
			kind: KindNavigation,
			want: "../files/report.pdf",
		},
		{
			name: "relative docx target is preserved, not resolved",
			raw:  "./handout.docx",
			kind: KindNavigation,
			want: "./handout.docx",
		},
		{
			name: "image refs are never touched by the link rule",
			raw:  "../img/logo.png",
			kind: KindImage,
			want: "../img/logo.png",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			markdown := []byte("[text](" + tc.raw + ")")
			refs := []LinkRef{NewLinkRef(tc.raw, tc.kind)}

			resolvedMarkdown, resolvedRefs := resolveLinkReferences(markdown, refs, base)

			require.Len(t, resolvedRefs, 1)
			assert.Equal(t, tc.want, resolvedRefs[0].GetRaw())
			assert.Equal(t, tc.kind, resolvedRefs[0].GetKind())
			assert.Contains(t, string(resolvedMarkdown), "]("+tc.want+")")
		})
	}
}
