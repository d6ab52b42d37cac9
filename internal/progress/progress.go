package progress

/*
Progress service (stub)

The progress service is a callback interface consumed by
orchestrators, not a rendering surface; terminal progress rendering is
an external collaborator. Reporter is the seam: the
crawl scheduler and the enrichment orchestrator each report through it,
and the default implementation here just folds updates into in-memory
counters and a structured log line, the way internal/metadata.Recorder
observes fetches and errors without influencing control flow.
*/

import (
	"sync"

	"github.com/rs/zerolog"
)

// Reporter is the callback interface orchestrators are constructed
// with. Every method is observational: nothing a Reporter does may
// influence retry, continuation, or abort decisions.
type Reporter interface {
	CrawlProgress(urlsFetched, urlsQueued int)
	DocumentStarted(url string, totalParagraphs int)
	DocumentBatchCompleted(url string, batchesDone, batchesTotal int)
	DocumentFinished(url string, finalStatus string)
}

// NoopReporter discards every update. Useful as the default collaborator
// in tests and one-shot CLI invocations that don't want log noise.
type NoopReporter struct{}

func (NoopReporter) CrawlProgress(urlsFetched, urlsQueued int)          {}
func (NoopReporter) DocumentStarted(url string, totalParagraphs int)    {}
func (NoopReporter) DocumentBatchCompleted(url string, done, total int) {}
func (NoopReporter) DocumentFinished(url string, finalStatus string)    {}

var _ Reporter = NoopReporter{}

// LogReporter is the default Reporter, backed by zerolog like
// internal/metadata.Recorder. It keeps a running count of documents
// started/finished so a caller can ask for a point-in-time snapshot
// without re-deriving it from the log stream.
type LogReporter struct {
	logger zerolog.Logger

	mu              sync.Mutex
	documentsStarted  int
	documentsFinished int
}

func NewLogReporter(logger zerolog.Logger) *LogReporter {
	return &LogReporter{logger: logger.With().Str("component", "progress").Logger()}
}

func (r *LogReporter) CrawlProgress(urlsFetched, urlsQueued int) {
	r.logger.Info().
		Int("fetched", urlsFetched).
		Int("queued", urlsQueued).
		Msg("crawl progress")
}

func (r *LogReporter) DocumentStarted(url string, totalParagraphs int) {
	r.mu.Lock()
	r.documentsStarted++
	r.mu.Unlock()

	r.logger.Info().
		Str("url", url).
		Int("paragraphs", totalParagraphs).
		Msg("enrichment started")
}

func (r *LogReporter) DocumentBatchCompleted(url string, batchesDone, batchesTotal int) {
	r.logger.Debug().
		Str("url", url).
		Int("done", batchesDone).
		Int("total", batchesTotal).
		Msg("enrichment batch complete")
}

func (r *LogReporter) DocumentFinished(url string, finalStatus string) {
	r.mu.Lock()
	r.documentsFinished++
	r.mu.Unlock()

	r.logger.Info().
		Str("url", url).
		Str("status", finalStatus).
		Msg("enrichment finished")
}

// Snapshot is a point-in-time read of the running counters.
type Snapshot struct {
	DocumentsStarted  int
	DocumentsFinished int
}

func (r *LogReporter) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{DocumentsStarted: r.documentsStarted, DocumentsFinished: r.documentsFinished}
}

var _ Reporter = (*LogReporter)(nil)
