package urlutil

import (
	"net/url"
	"strings"
)

// Canonicalize applies a deterministic normalization to a URL, producing a canonical form.
// It maps equivalent URL spellings to a single canonical representation.
//
// The normalization follows these rules:
//   - Scheme and host are lowercased
//   - Path is cleaned (trailing slashes removed, except for root "/")
//   - Fragments are removed
//   - Query parameters are removed
//   - Default ports are omitted (e.g., :80 for http, :443 for https)
//
// Properties:
//   - Pure: no state, no memory
//   - Deterministic: same input always produces same output
//   - Idempotent: Canonicalize(Canonicalize(url)) == Canonicalize(url)
//   - Context-free: does not depend on crawl history
func Canonicalize(sourceUrl url.URL) url.URL {
	// Create a copy to avoid mutating the original
	canonical := sourceUrl

	// Lowercase scheme and host
	canonical.Scheme = lowerASCII(canonical.Scheme)
	canonical.Host = lowerASCII(canonical.Host)

	// Remove default port if present
	if host, port := canonical.Hostname(), canonical.Port(); port != "" {
		if (canonical.Scheme == "http" && port == "80") ||
			(canonical.Scheme == "https" && port == "443") {
			canonical.Host = host
		}
	}

	// Clean the path: collapse repeated slashes, then remove trailing
	// slashes (except root)
	if len(canonical.Path) > 1 {
		canonical.Path = stripTrailingSlash(collapseSlashes(canonical.Path))
	}

	// Remove fragment (anchor)
	canonical.Fragment = ""
	canonical.RawFragment = ""

	// Remove query parameters
	canonical.RawQuery = ""
	canonical.ForceQuery = false

	return canonical
}

// Resolve turns a (possibly relative) URL discovered on a page into an
// absolute URL, using scheme/host as the base authority. Path-relative
// references (e.g. "../guide") are resolved against the authority root,
// since callers only carry the seed's scheme and host, not the referring
// page's full path.
func Resolve(discovered url.URL, scheme, host string) url.URL {
	base := url.URL{Scheme: scheme, Host: host, Path: "/"}
	resolved := base.ResolveReference(&discovered)
	return *resolved
}

// FilterByHost keeps only the URLs whose host matches host exactly
// (case-insensitive), dropping cross-domain links discovered on a page.
func FilterByHost(host string, urls []url.URL) []url.URL {
	target := lowerASCII(host)
	filtered := make([]url.URL, 0, len(urls))
	for _, u := range urls {
		if lowerASCII(u.Host) == target {
			filtered = append(filtered, u)
		}
	}
	return filtered
}

// FilterBySameDomain keeps only the URLs on base's registered domain
// (exact host or a subdomain of it), dropping cross-domain links
// discovered on a page.
func FilterBySameDomain(base url.URL, urls []url.URL) []url.URL {
	filtered := make([]url.URL, 0, len(urls))
	for _, u := range urls {
		if IsSameDomain(u, base) {
			filtered = append(filtered, u)
		}
	}
	return filtered
}

// IsSameDomain reports whether candidate's host is base's host or a
// subdomain of it (exact match or host ends with "."+base), ignoring
// case. An empty candidate host is never same-domain.
func IsSameDomain(candidate url.URL, base url.URL) bool {
	candidateHost := hostnameOnly(lowerASCII(candidate.Host))
	baseHost := hostnameOnly(lowerASCII(base.Host))
	if candidateHost == "" || baseHost == "" {
		return false
	}
	return candidateHost == baseHost || strings.HasSuffix(candidateHost, "."+baseHost)
}

// MatchesPatterns applies include/exclude glob patterns to the URL's
// path: "*" matches within one path segment, "**" matches across
// segments, and a leading "!" marks an exclude. A URL is admitted when
// it matches at least one include (or no includes exist) and no exclude;
// excludes always beat includes. An empty pattern list allows everything.
func MatchesPatterns(u url.URL, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}

	hasInclude := false
	included := false
	for _, pattern := range patterns {
		if excluded := strings.HasPrefix(pattern, "!"); excluded {
			if matchGlob(pattern[1:], u.Path) {
				return false
			}
			continue
		}
		hasInclude = true
		if matchGlob(pattern, u.Path) {
			included = true
		}
	}
	return !hasInclude || included
}

// matchGlob matches a path against a glob where "*" stops at "/" and
// "**" crosses it. Implemented as a backtracking walk over both wildcard
// kinds, the same way path.Match backtracks over "*".
func matchGlob(pattern, name string) bool {
	return matchGlobAt(pattern, name)
}

func matchGlobAt(pattern, name string) bool {
	for len(pattern) > 0 {
		switch {
		case strings.HasPrefix(pattern, "**"):
			rest := pattern[2:]
			for i := 0; i <= len(name); i++ {
				if matchGlobAt(rest, name[i:]) {
					return true
				}
			}
			return false
		case pattern[0] == '*':
			rest := pattern[1:]
			for i := 0; i <= len(name); i++ {
				if i > 0 && name[i-1] == '/' {
					break
				}
				if matchGlobAt(rest, name[i:]) {
					return true
				}
			}
			return false
		default:
			if len(name) == 0 || name[0] != pattern[0] {
				return false
			}
			pattern = pattern[1:]
			name = name[1:]
		}
	}
	return len(name) == 0
}

// SafeFilename converts a URL into a filesystem-safe, path-preserving
// relative name: percent-decoded, control characters stripped, unicode
// letters preserved, and the last segment's extension removed. An
// unusable path degrades to the literal "page".
func SafeFilename(u url.URL) string {
	raw := strings.Trim(u.Path, "/")
	if raw == "" {
		return "index"
	}
	if decoded, err := url.PathUnescape(raw); err == nil {
		raw = decoded
	}

	segments := strings.Split(raw, "/")
	cleaned := make([]string, 0, len(segments))
	for _, segment := range segments {
		s := stripUnsafeRunes(segment)
		if s == "" || s == "." || s == ".." {
			continue
		}
		cleaned = append(cleaned, s)
	}
	if len(cleaned) == 0 {
		return "page"
	}

	last := cleaned[len(cleaned)-1]
	if dot := strings.LastIndex(last, "."); dot > 0 {
		cleaned[len(cleaned)-1] = last[:dot]
	}
	return strings.Join(cleaned, "/")
}

// stripUnsafeRunes drops control characters and the characters that are
// unsafe in filenames, keeping unicode letters and digits intact.
func stripUnsafeRunes(segment string) string {
	var b strings.Builder
	for _, r := range segment {
		switch {
		case r < 0x20 || r == 0x7f:
			// control characters
		case strings.ContainsRune(`<>:"\|?*`, r):
			// filesystem-reserved
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// hostnameOnly strips a :port suffix if present.
func hostnameOnly(host string) string {
	if i := strings.LastIndex(host, ":"); i >= 0 && !strings.Contains(host[i:], "]") {
		return host[:i]
	}
	return host
}

// collapseSlashes reduces any run of consecutive slashes in a path to a
// single slash.
func collapseSlashes(path string) string {
	for strings.Contains(path, "//") {
		path = strings.ReplaceAll(path, "//", "/")
	}
	return path
}

// lowerASCII converts ASCII characters to lowercase without allocating.
// This is faster than strings.ToLower for ASCII-only strings.
func lowerASCII(s string) string {
	var needsLower bool
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			needsLower = true
			break
		}
	}
	if !needsLower {
		return s
	}
	b := make([]byte, len(s))
	copy(b, s)
	for i := 0; i < len(b); i++ {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

// stripTrailingSlash removes trailing slashes from a path.
func stripTrailingSlash(path string) string {
	for len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}
	return path
}
