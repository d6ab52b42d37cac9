package enrich

// Paragraph is an empty-line-delimited block of the Markdown body,
// addressed by its position in the document.
type Paragraph struct {
	Index int
	Text  string
}

// Window is a contiguous slice of paragraphs covering ~windowSize words
// of the document's word stream, with 50% overlap with its neighbor.
type Window struct {
	Paragraphs []Paragraph
}

// Batch is a contiguous run of paragraphs within one window, accumulated
// up to a word-count target; batches never span window boundaries.
type Batch struct {
	Paragraphs []Paragraph
}

// WindowPlan is what the LLM call layer hands back for a given model.
type WindowPlan struct {
	WindowSize   int // words
	OverlapSize  int // words
	BatchSize    int // words
}

// configSource is the subset of internal/config.Config the window plan
// is derived from; kept narrow so this package does not import the
// config package's full surface for two integer getters.
type configSource interface {
	EnrichWindowTokenSize() int
	EnrichBatchSize() int
}

// NewWindowPlanFromConfig derives a WindowPlan from the configured
// model's window/batch sizes. Overlap is fixed at
// 50% of the window, matching the step size buildWindows already uses.
func NewWindowPlanFromConfig(cfg configSource) WindowPlan {
	windowSize := cfg.EnrichWindowTokenSize()
	if windowSize <= 0 {
		windowSize = defaultWindowWordSize
	}
	batchSize := cfg.EnrichBatchSize()
	if batchSize <= 0 {
		batchSize = defaultBatchWordTarget
	}
	return WindowPlan{
		WindowSize:  windowSize,
		OverlapSize: windowSize / 2,
		BatchSize:   batchSize,
	}
}

// EnhancedParagraph is one entry of the LLM's strict JSON response.
type EnhancedParagraph struct {
	Index   int
	Text    string
	Summary string
}

// DocumentOutcome summarizes a single document's enrichment pass.
type DocumentOutcome struct {
	URL              string
	ParagraphsTotal  int
	ParagraphsEnhanced int
	FailedBatches    int
	FinalStatus      string
}
