package extractor

import "golang.org/x/net/html"

// Removal is one entry of the removed-block trace: which element was
// dropped, what was decided about it, and why.
type Removal struct {
	Selector string
	Decision string
	Reason   string
}

// ExtractionResult holds the extraction outcome.
// DocumentRoot is the original parsed HTML document.
// ContentNode is the extracted meaningful content node (semantic container).
// Removals traces every block dropped on the way to ContentNode.
type ExtractionResult struct {
	DocumentRoot *html.Node
	ContentNode  *html.Node
	Removals     []Removal
}

// ContentScoreMultiplier weighs the structural signals used by the
// text-density scoring layer (findBestContentContainer).
type ContentScoreMultiplier struct {
	NonWhitespaceDivisor float64
	Paragraphs           float64
	Headings             float64
	CodeBlocks           float64
	ListItems            float64
}

// MeaningfulThreshold gates whether a candidate container is substantial
// enough to accept, rather than falling through to the next heuristic layer.
type MeaningfulThreshold struct {
	MinNonWhitespace    int
	MinHeadings         int
	MinParagraphsOrCode int
	MaxLinkDensity      float64
}

// ExtractParam tunes the heuristic layers of content extraction.
// BodySpecificityBias favors a more specific child container over a
// broad <body> match when both score within this fraction of each other.
type ExtractParam struct {
	BodySpecificityBias float64
	LinkDensityThreshold float64
	ScoreMultiplier      ContentScoreMultiplier
	Threshold            MeaningfulThreshold
}

// DefaultExtractParam returns the extraction tuning used when a caller
// hasn't configured one explicitly (mirrors the previous hardcoded constants).
func DefaultExtractParam() ExtractParam {
	return ExtractParam{
		BodySpecificityBias: 0.1,
		LinkDensityThreshold: 0.5,
		ScoreMultiplier: ContentScoreMultiplier{
			NonWhitespaceDivisor: 50.0,
			Paragraphs:           5.0,
			Headings:             10.0,
			CodeBlocks:           15.0,
			ListItems:            2.0,
		},
		Threshold: MeaningfulThreshold{
			MinNonWhitespace:    50,
			MinHeadings:         0,
			MinParagraphsOrCode: 1,
			MaxLinkDensity:      0.8,
		},
	}
}
