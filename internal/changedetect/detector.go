package changedetect

/*
Responsibilities
- Decide, for each URL about to be (re-)fetched, whether its body needs
  reprocessing at all, using four tiers in order (fastest first): page
  age, ETag, Last-Modified, and a cheap rolling hash over the newly
  extracted content. Any tier short-circuits to "unchanged".
- Build the If-None-Match / If-Modified-Since headers a caller attaches
  to the next conditional fetch.
- Track counts of decisions per tier for the end-of-phase summary.

This package has no genuine failure mode of its own: every comparison
here is pure string/byte equality, so there is nothing to wrap in a
ClassifiedError.
*/

import (
	"fmt"
	"sync"
	"time"
)

// Detector is the scheduler-facing port for change detection.
type Detector interface {
	// DecideBeforeFetch runs tiers 1 (age); callers that pass this tier
	// still need to fetch and then call DecideAfterFetch with the
	// response headers and extracted content to run tiers 2-4.
	DecideBeforeFetch(in AgeInput) (Decision, bool)
	DecideAfterFetch(in Input) Decision
	ConditionalHeaders(priorETag, priorLastModified string) map[string]string
	Stats() Stats
}

// AgeInput carries the fields tier 1 needs.
type AgeInput struct {
	Found           bool
	LastCrawled     time.Time
	LastUpdated     time.Time
	MinAge          time.Duration
	FastRecheck     time.Duration
	Now             time.Time
}

// TieredDetector is the default Detector.
type TieredDetector struct {
	mu    sync.Mutex
	stats Stats
}

var _ Detector = (*TieredDetector)(nil)

func NewTieredDetector() *TieredDetector {
	return &TieredDetector{}
}

// DecideBeforeFetch applies tier 1, the age filter. The second return
// value reports whether this tier fired; if
// false, the caller must still fetch and defer to DecideAfterFetch.
func (d *TieredDetector) DecideBeforeFetch(in AgeInput) (Decision, bool) {
	if !in.Found {
		return Decision{}, false
	}
	if in.MinAge <= 0 {
		return Decision{}, false
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	age := now.Sub(in.LastCrawled)
	recentlyUpdated := in.FastRecheck > 0 && now.Sub(in.LastUpdated) < in.FastRecheck

	if age < in.MinAge && !recentlyUpdated {
		d.mu.Lock()
		d.stats.SkippedByAge++
		d.mu.Unlock()
		return Decision{Unchanged: true, Tier: TierAge}, true
	}
	return Decision{}, false
}

// DecideAfterFetch applies tiers 2-4 in order once a fresh response
// (and, when reached, freshly extracted content) is available.
func (d *TieredDetector) DecideAfterFetch(in Input) Decision {
	if !in.Found {
		d.mu.Lock()
		d.stats.New++
		d.mu.Unlock()
		return Decision{New: true, Tier: TierChanged}
	}

	if in.PriorETag != "" && in.ResponseETag != "" && in.PriorETag == in.ResponseETag {
		d.mu.Lock()
		d.stats.SkippedByETag++
		d.mu.Unlock()
		return Decision{Unchanged: true, Tier: TierETag}
	}

	if in.PriorLastModified != "" && in.ResponseLastModified != "" && in.PriorLastModified == in.ResponseLastModified {
		d.mu.Lock()
		d.stats.SkippedByLastModified++
		d.mu.Unlock()
		return Decision{Unchanged: true, Tier: TierLastModified}
	}

	if in.ExtractedContent != nil {
		hash := FormatHash(RollingHash32(in.ExtractedContent))
		if in.PriorContentHash != "" && in.PriorContentHash == hash {
			d.mu.Lock()
			d.stats.SkippedByHash++
			d.mu.Unlock()
			return Decision{Unchanged: true, Tier: TierHash}
		}
	}

	d.mu.Lock()
	d.stats.Updated++
	d.mu.Unlock()
	return Decision{Tier: TierChanged}
}

// ConditionalHeaders builds the revalidation headers a Fetcher attaches
// to the next request for a previously-seen URL.
func (d *TieredDetector) ConditionalHeaders(priorETag, priorLastModified string) map[string]string {
	headers := make(map[string]string)
	if priorETag != "" {
		headers["If-None-Match"] = priorETag
	}
	if priorLastModified != "" {
		headers["If-Modified-Since"] = priorLastModified
	}
	return headers
}

func (d *TieredDetector) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// FormatHash renders a rolling hash as the string stored in Page.ContentHash
// for tier-4 comparisons, namespaced so it's never confused with the
// blake3/sha256 hashes storage/hashutil compute for filenames.
func FormatHash(h uint32) string {
	return fmt.Sprintf("rh32:%08x", h)
}
