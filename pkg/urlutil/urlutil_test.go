package urlutil

import (
	"net/url"
	"testing"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "trailing slash removed",
			input:    "https://docs.example.com/guide/",
			expected: "https://docs.example.com/guide",
		},
		{
			name:     "no trailing slash stays same",
			input:    "https://docs.example.com/guide",
			expected: "https://docs.example.com/guide",
		},
		{
			name:     "fragment removed",
			input:    "https://docs.example.com/guide#index",
			expected: "https://docs.example.com/guide",
		},
		{
			name:     "query parameters removed",
			input:    "https://docs.example.com/guide?utm_source=twitter",
			expected: "https://docs.example.com/guide",
		},
		{
			name:     "both fragment and query removed",
			input:    "https://docs.example.com/guide?utm_source=twitter#index",
			expected: "https://docs.example.com/guide",
		},
		{
			name:     "scheme lowercased",
			input:    "HTTPS://docs.example.com/guide",
			expected: "https://docs.example.com/guide",
		},
		{
			name:     "host lowercased",
			input:    "https://DOCS.EXAMPLE.COM/guide",
			expected: "https://docs.example.com/guide",
		},
		{
			name:     "scheme and host lowercased",
			input:    "HTTPS://DOCS.EXAMPLE.COM/GUIDE",
			expected: "https://docs.example.com/GUIDE",
		},
		{
			name:     "default http port removed",
			input:    "http://docs.example.com:80/guide",
			expected: "http://docs.example.com/guide",
		},
		{
			name:     "default https port removed",
			input:    "https://docs.example.com:443/guide",
			expected: "https://docs.example.com/guide",
		},
		{
			name:     "non-default port preserved",
			input:    "https://docs.example.com:8080/guide",
			expected: "https://docs.example.com:8080/guide",
		},
		{
			name:     "multiple trailing slashes removed",
			input:    "https://docs.example.com/guide///",
			expected: "https://docs.example.com/guide",
		},
		{
			name:     "interior repeated slashes collapsed",
			input:    "HTTPS://Example.com:443/a//b/?x=1#f",
			expected: "https://example.com/a/b",
		},
		{
			name:     "root path preserved",
			input:    "https://docs.example.com/",
			expected: "https://docs.example.com/",
		},
		{
			name:     "root path without slash",
			input:    "https://docs.example.com",
			expected: "https://docs.example.com",
		},
		{
			name:     "complex path with fragment and query",
			input:    "https://docs.example.com/api/v1/users?id=123#section",
			expected: "https://docs.example.com/api/v1/users",
		},
		{
			name:     "path with uppercase preserved",
			input:    "https://docs.example.com/API/v1/Users",
			expected: "https://docs.example.com/API/v1/Users",
		},
		{
			name:     "http with non-standard port",
			input:    "http://docs.example.com:8080/path",
			expected: "http://docs.example.com:8080/path",
		},
		{
			name:     "empty query removed",
			input:    "https://docs.example.com/guide?",
			expected: "https://docs.example.com/guide",
		},
		{
			name:     "empty fragment removed",
			input:    "https://docs.example.com/guide#",
			expected: "https://docs.example.com/guide",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inputURL, err := url.Parse(tt.input)
			if err != nil {
				t.Fatalf("failed to parse input URL %q: %v", tt.input, err)
			}

			result := Canonicalize(*inputURL)
			resultStr := result.String()

			if resultStr != tt.expected {
				t.Errorf("Canonicalize(%q) = %q, want %q", tt.input, resultStr, tt.expected)
			}
		})
	}
}

func TestCanonicalizeIdempotent(t *testing.T) {
	// Test that Canonicalize is idempotent: Canonicalize(Canonicalize(url)) == Canonicalize(url)
	testURLs := []string{
		"https://docs.example.com/guide/",
		"https://docs.example.com/guide?utm_source=twitter",
		"https://docs.example.com/guide#index",
		"HTTPS://DOCS.EXAMPLE.COM:443/GUIDE/?#",
		"http://example.com:80/path///",
	}

	for _, urlStr := range testURLs {
		t.Run(urlStr, func(t *testing.T) {
			inputURL, err := url.Parse(urlStr)
			if err != nil {
				t.Fatalf("failed to parse URL %q: %v", urlStr, err)
			}

			first := Canonicalize(*inputURL)
			second := Canonicalize(first)

			firstStr := first.String()
			secondStr := second.String()

			if firstStr != secondStr {
				t.Errorf("Canonicalize is not idempotent: first=%q, second=%q", firstStr, secondStr)
			}
		})
	}
}

func TestCanonicalizeDoesNotMutateInput(t *testing.T) {
	// Ensure the original URL is not modified
	input, _ := url.Parse("https://example.com/path/?query=1#frag")
	original := *input

	_ = Canonicalize(*input)

	if input.String() != original.String() {
		t.Error("Canonicalize mutated the input URL")
	}
}

func TestLowerASCII(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello", "hello"},
		{"HELLO", "hello"},
		{"hello", "hello"},
		{"HTTPS", "https"},
		{"MixedCASE", "mixedcase"},
		{"already-lower", "already-lower"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := lowerASCII(tt.input)
			if result != tt.expected {
				t.Errorf("lowerASCII(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestStripTrailingSlash(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"/path/", "/path"},
		{"/path//", "/path"},
		{"/path///", "/path"},
		{"/path", "/path"},
		{"/", "/"},
		{"///", "/"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := stripTrailingSlash(tt.input)
			if result != tt.expected {
				t.Errorf("stripTrailingSlash(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestIsSameDomain(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		base      string
		expected  bool
	}{
		{"exact host", "https://example.com/a", "https://example.com", true},
		{"case-insensitive", "https://EXAMPLE.com/a", "https://example.COM", true},
		{"subdomain", "https://docs.example.com/a", "https://example.com", true},
		{"nested subdomain", "https://a.b.example.com", "https://example.com", true},
		{"different domain", "https://example.org/a", "https://example.com", false},
		{"suffix but not subdomain", "https://notexample.com", "https://example.com", false},
		{"port ignored", "https://example.com:8080/a", "https://example.com", true},
		{"empty candidate host", "/relative/only", "https://example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidate, err := url.Parse(tt.candidate)
			if err != nil {
				t.Fatalf("failed to parse candidate %q: %v", tt.candidate, err)
			}
			base, err := url.Parse(tt.base)
			if err != nil {
				t.Fatalf("failed to parse base %q: %v", tt.base, err)
			}
			if got := IsSameDomain(*candidate, *base); got != tt.expected {
				t.Errorf("IsSameDomain(%q, %q) = %v, want %v", tt.candidate, tt.base, got, tt.expected)
			}
		})
	}
}

func TestMatchesPatterns(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		patterns []string
		expected bool
	}{
		{"empty list allows all", "/anything", nil, true},
		{"double star crosses segments", "/blog/2024/post", []string{"/blog/**"}, true},
		{"single star stays in segment", "/a/b.html", []string{"/*.html"}, false},
		{"single star matches within segment", "/b.html", []string{"/*.html"}, true},
		{"exclude beats include", "/blog/drafts/x", []string{"/blog/**", "!/blog/drafts/**"}, false},
		{"exclude only, non-matching path passes", "/docs/x", []string{"!/blog/**"}, true},
		{"include miss", "/about", []string{"/blog/**"}, false},
		{"double star mid-pattern", "/docs/v2/api/ref", []string{"/docs/**/ref"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := url.URL{Scheme: "https", Host: "example.com", Path: tt.path}
			if got := MatchesPatterns(u, tt.patterns); got != tt.expected {
				t.Errorf("MatchesPatterns(%q, %v) = %v, want %v", tt.path, tt.patterns, got, tt.expected)
			}
		})
	}
}

func TestSafeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"root is index", "https://example.com/", "index"},
		{"extension stripped", "https://example.com/guide/intro.html", "guide/intro"},
		{"percent-decoded", "https://example.com/caf%C3%A9", "café"},
		{"unicode preserved", "https://example.com/документы/файл", "документы/файл"},
		{"reserved characters stripped", `https://example.com/a%3Cb%3E/c`, "ab/c"},
		{"dot segments dropped", "https://example.com/a/../b", "a/b"},
		{"hidden file keeps name", "https://example.com/docs/.well-known", "docs/.well-known"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse(tt.input)
			if err != nil {
				t.Fatalf("failed to parse %q: %v", tt.input, err)
			}
			if got := SafeFilename(*u); got != tt.expected {
				t.Errorf("SafeFilename(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFilterBySameDomain(t *testing.T) {
	base, _ := url.Parse("https://example.com")
	mustParse := func(s string) url.URL {
		u, err := url.Parse(s)
		if err != nil {
			t.Fatalf("failed to parse %q: %v", s, err)
		}
		return *u
	}

	input := []url.URL{
		mustParse("https://example.com/a"),
		mustParse("https://docs.example.com/b"),
		mustParse("https://other.org/c"),
	}
	filtered := FilterBySameDomain(*base, input)
	if len(filtered) != 2 {
		t.Fatalf("expected 2 same-domain URLs, got %d", len(filtered))
	}
	if filtered[0].Host != "example.com" || filtered[1].Host != "docs.example.com" {
		t.Errorf("unexpected filtered hosts: %v, %v", filtered[0].Host, filtered[1].Host)
	}
}
