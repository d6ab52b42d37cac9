package mdconvert

import (
	"net/url"
	"strings"
)

// resolveLinkReferences implements the link rule's resolution step:
// percent-decode raw hrefs where decodeable, resolve relative
// navigation/anchor links against baseURL, and leave relative .pdf/.docx
// targets alone so sibling documents keep working as relative paths.
// Image refs are returned unchanged; the asset resolver rewrites those to
// local paths once the asset itself has been fetched.
func resolveLinkReferences(markdown []byte, linkRefs []LinkRef, baseURL url.URL) ([]byte, []LinkRef) {
	content := string(markdown)
	resolved := make([]LinkRef, len(linkRefs))
	for i, ref := range linkRefs {
		if ref.GetKind() == KindImage {
			resolved[i] = ref
			continue
		}

		raw := ref.GetRaw()
		newRaw := resolveLinkURL(raw, baseURL)
		if newRaw != raw {
			content = strings.ReplaceAll(content, "]("+raw+")", "]("+newRaw+")")
		}
		resolved[i] = NewLinkRef(newRaw, ref.GetKind())
	}
	return []byte(content), resolved
}

// resolveLinkURL applies the link rule to a single raw href:
// percent-decode where decodeable, resolve relative references against
// base, and preserve relative .pdf/.docx paths untouched.
func resolveLinkURL(raw string, base url.URL) string {
	decoded := raw
	if d, err := url.PathUnescape(raw); err == nil {
		decoded = d
	}

	parsed, err := url.Parse(decoded)
	if err != nil {
		return decoded
	}

	var out string
	if parsed.IsAbs() {
		out = parsed.String()
	} else {
		if hasBinaryDocExtension(parsed.Path) {
			return decoded
		}
		out = base.ResolveReference(parsed).String()
	}
	if d, err := url.PathUnescape(out); err == nil {
		return d
	}
	return out
}

// hasBinaryDocExtension reports whether path ends in .pdf or .docx, the
// two extensions whose relative paths are preserved.
func hasBinaryDocExtension(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".pdf") || strings.HasSuffix(lower, ".docx")
}
