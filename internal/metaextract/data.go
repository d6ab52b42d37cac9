package metaextract

// Person carries the fields attached to a resolved author when
// a JSON-LD Person object matches the author name.
type Person struct {
	Name         string
	Bio          string
	JobTitle     string
	Image        string
	URL          string
	Organization string
}

// Publisher carries a publisher name plus its logo URL.
type Publisher struct {
	Name string
	Logo string
}

// DocumentMetadata is the fused result of JSON-LD + meta + Open Graph +
// byline-regex extraction.
// Empty strings/slices are dropped before this is returned, so every field already reflects precedence resolution.
type DocumentMetadata struct {
	Title         string
	Description   string
	Author        Person
	Publisher     Publisher
	DatePublished string
	DateModified  string
	Keywords      []string
	CanonicalURL  string
	Language      string
	Image         string
	Section       string
	License       string
	AudioDuration string
}
