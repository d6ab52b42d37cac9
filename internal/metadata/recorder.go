package metadata

/*
Metadata Collected
- Fetch timestamps
- HTTP status codes
- Content hashes
- Crawl depth

Logging Goals
- Debuggable crawl behavior
- Post-run auditability
- Failure diagnostics

Structured logging is preferred. Recorder is backed by zerolog: every
RecordX call emits one structured log line and folds the event into the
in-memory aggregate counters CrawlFinalizer reports at the end of a run.

Allowed:
- Primitive values
- Timestamps
- URLs (as values, not objects with behavior)
- Hashes
- Status codes
- Durations
- Identifiers (page ID, crawl ID)
*/

import (
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// MetadataSink is the observational-only recording port every pipeline
// stage is constructed with. Nothing it records may influence retry,
// continuation, or abort decisions (see ErrorCause docs above).
type MetadataSink interface {
	RecordFetch(
		fetchUrl string,
		httpStatus int,
		duration time.Duration,
		contentType string,
		retryCount int,
		crawlDepth int,
	)
	RecordError(
		observedAt time.Time,
		packageName string,
		action string,
		cause ErrorCause,
		errorString string,
		attrs []Attribute,
	)
	RecordArtifact(kind ArtifactKind, path string, attrs []Attribute)
	RecordAssetFetch(
		assetUrl string,
		httpStatus int,
		duration time.Duration,
		retryCount int,
	)
}

// CrawlFinalizer is called exactly once, after crawl termination, to
// persist the terminal summary of a run. It must be constructed purely
// from counters accumulated during the run, never by re-reading metadata.
type CrawlFinalizer interface {
	RecordFinalCrawlStats(
		totalPages int,
		totalErrors int,
		totalAssets int,
		duration time.Duration,
	)
}

// NoopSink is a MetadataSink that records nothing. Tests embed it to
// spy on a single RecordX method without stubbing the whole interface.
type NoopSink struct{}

var _ MetadataSink = NoopSink{}

func (NoopSink) RecordFetch(string, int, time.Duration, string, int, int) {}

func (NoopSink) RecordError(time.Time, string, string, ErrorCause, string, []Attribute) {}

func (NoopSink) RecordArtifact(ArtifactKind, string, []Attribute) {}

func (NoopSink) RecordAssetFetch(string, int, time.Duration, int) {}

// Recorder is the default MetadataSink/CrawlFinalizer: a zerolog-backed
// structured logger plus a small set of mutex-guarded aggregate counters
// used for the single end-of-phase summary line.
type Recorder struct {
	workerID string
	logger   zerolog.Logger

	mu          sync.Mutex
	fetchCount  int
	errorCount  int
	artifactCnt int
}

// NewRecorder creates a Recorder that tags every log line with workerID,
// writing structured JSON to stderr via zerolog.
func NewRecorder(workerID string) Recorder {
	logger := zerolog.New(os.Stderr).With().
		Timestamp().
		Str("worker_id", workerID).
		Logger()
	return Recorder{
		workerID: workerID,
		logger:   logger,
	}
}

func (r *Recorder) RecordFetch(
	fetchUrl string,
	httpStatus int,
	duration time.Duration,
	contentType string,
	retryCount int,
	crawlDepth int,
) {
	r.mu.Lock()
	r.fetchCount++
	r.mu.Unlock()

	r.logger.Info().
		Str("url", fetchUrl).
		Int("status", httpStatus).
		Dur("duration", duration).
		Str("content_type", contentType).
		Int("retry_count", retryCount).
		Int("depth", crawlDepth).
		Msg("fetch")
}

func (r *Recorder) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause ErrorCause,
	errorString string,
	attrs []Attribute,
) {
	r.mu.Lock()
	r.errorCount++
	r.mu.Unlock()

	event := r.logger.Warn().
		Time("observed_at", observedAt).
		Str("package", packageName).
		Str("action", action).
		Int("cause", int(cause)).
		Str("error", errorString)
	for _, attr := range attrs {
		event = event.Str(string(attr.Key), attr.Value)
	}
	event.Msg("error")
}

func (r *Recorder) RecordArtifact(kind ArtifactKind, path string, attrs []Attribute) {
	r.mu.Lock()
	r.artifactCnt++
	r.mu.Unlock()

	event := r.logger.Info().
		Int("artifact_kind", int(kind)).
		Str("path", path)
	for _, attr := range attrs {
		event = event.Str(string(attr.Key), attr.Value)
	}
	event.Msg("artifact")
}

func (r *Recorder) RecordAssetFetch(
	assetUrl string,
	httpStatus int,
	duration time.Duration,
	retryCount int,
) {
	r.logger.Info().
		Str("asset_url", assetUrl).
		Int("status", httpStatus).
		Dur("duration", duration).
		Int("retry_count", retryCount).
		Msg("asset_fetch")
}

func (r *Recorder) RecordFinalCrawlStats(
	totalPages int,
	totalErrors int,
	totalAssets int,
	duration time.Duration,
) {
	r.logger.Info().
		Int("total_pages", totalPages).
		Int("total_errors", totalErrors).
		Int("total_assets", totalAssets).
		Dur("duration", duration).
		Msg("crawl_summary")
}

var (
	_ MetadataSink   = (*Recorder)(nil)
	_ CrawlFinalizer = (*Recorder)(nil)
)
