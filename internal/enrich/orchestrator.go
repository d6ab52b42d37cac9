package enrich

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rohmanhakim/docs-crawler/internal/changedetect"
	"github.com/rohmanhakim/docs-crawler/internal/llm"
	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/internal/progress"
	"github.com/rohmanhakim/docs-crawler/internal/store"
	"github.com/rohmanhakim/docs-crawler/pkg/failure"
	"github.com/rohmanhakim/docs-crawler/pkg/hashutil"
	"golang.org/x/sync/errgroup"
)

/*
Enrichment orchestrator

Selects Pages whose URL is in the current session's crawled set and
whose content_status is raw/failed/processing, and for each: plans
sliding windows, opens an LLM session carrying cached document-level
instructions, dispatches each window's batches, validates the
preservation invariant per paragraph, merges by original index, writes
the file back, and transitions content_status.

The shape mirrors the crawl scheduler's pipeline: plan -> dispatch ->
validate -> merge -> write, reapplied to a per-document rather than
per-URL loop.
*/

const (
	maxBatchRetries = 3
	cleanupRetryGap = 2 * time.Second
)

// Caller is the subset of internal/llm.LLMClient this package depends
// on: one call plus the session lifecycle around each document. The
// returned llm.CallOutcome is what lets a batch's 429/timeout failures
// reach enrichDocument instead of collapsing into a generic failure.
type Caller interface {
	Call(ctx context.Context, sessionID string, prompt string, schema map[string]any) (map[string]any, llm.CallOutcome)
	OpenSession(id, cachedContext string)
	CloseSession(id string)
}

type Orchestrator struct {
	store           store.Store
	caller          Caller
	metadataSink    metadata.MetadataSink
	reporter        progress.Reporter
	hashAlgo        hashutil.HashAlgo
	batchWordTarget int
}

// NewOrchestrator wires the default no-op progress reporter; use
// NewOrchestratorWithDeps to supply one.
func NewOrchestrator(
	s store.Store,
	caller Caller,
	metadataSink metadata.MetadataSink,
	hashAlgo hashutil.HashAlgo,
) *Orchestrator {
	return NewOrchestratorWithDeps(s, caller, metadataSink, progress.NoopReporter{}, hashAlgo)
}

func NewOrchestratorWithDeps(
	s store.Store,
	caller Caller,
	metadataSink metadata.MetadataSink,
	reporter progress.Reporter,
	hashAlgo hashutil.HashAlgo,
) *Orchestrator {
	return &Orchestrator{
		store:           s,
		caller:          caller,
		metadataSink:    metadataSink,
		reporter:        reporter,
		hashAlgo:        hashAlgo,
		batchWordTarget: defaultBatchWordTarget,
	}
}

// EnrichSession enriches every eligible Page among crawledURLs.
func (o *Orchestrator) EnrichSession(ctx context.Context, crawledURLs []string, windowPlan WindowPlan) []DocumentOutcome {
	eligible, err := o.store.PagesMatching(ctx, crawledURLs, []store.ContentStatus{
		store.StatusRaw, store.StatusFailed, store.StatusProcessing,
	})
	if err != nil {
		o.recordErr("EnrichSession", err, "")
		return nil
	}

	outcomes := make([]DocumentOutcome, 0, len(eligible))
	for _, page := range eligible {
		outcomes = append(outcomes, o.enrichDocument(ctx, page, windowPlan))
	}
	return outcomes
}

// CleanupRetry re-attempts Pages left in a failure state or in
// processing, with a gap between each retry.
func (o *Orchestrator) CleanupRetry(ctx context.Context, crawledURLs []string, windowPlan WindowPlan) []DocumentOutcome {
	failing, err := o.store.PagesMatching(ctx, crawledURLs, []store.ContentStatus{
		store.StatusRateLimited, store.StatusTimeout, store.StatusFailed, store.StatusProcessing,
	})
	if err != nil {
		o.recordErr("CleanupRetry", err, "")
		return nil
	}

	outcomes := make([]DocumentOutcome, 0, len(failing))
	for i, page := range failing {
		if i > 0 {
			time.Sleep(cleanupRetryGap)
		}
		outcomes = append(outcomes, o.enrichDocument(ctx, page, windowPlan))
	}
	return outcomes
}

func (o *Orchestrator) enrichDocument(ctx context.Context, page store.Page, plan WindowPlan) DocumentOutcome {
	outcome := DocumentOutcome{URL: page.URL}

	body, readErr := os.ReadFile(page.FilePath)
	if readErr != nil {
		o.recordErr("enrichDocument", &EnrichError{Message: readErr.Error(), Retryable: true, Cause: ErrCauseReadFailed}, page.URL)
		o.transitionStatus(ctx, page.URL, store.StatusFailed)
		outcome.FinalStatus = string(store.StatusFailed)
		o.reporter.DocumentFinished(page.URL, outcome.FinalStatus)
		return outcome
	}

	// The YAML front-matter block is not content: it is split off before
	// paragraph planning and reattached verbatim on write, so annotations
	// can never land inside it.
	frontMatter, markdownBody := splitFrontMatter(string(body))
	paragraphs := splitParagraphs(markdownBody)
	outcome.ParagraphsTotal = len(paragraphs)
	windows := buildWindows(paragraphs, plan.WindowSize)
	o.reporter.DocumentStarted(page.URL, len(paragraphs))

	sessionID := page.URL
	o.caller.OpenSession(sessionID, buildCachedInstructions(page.Title, page.URL, ""))
	defer o.caller.CloseSession(sessionID)

	type job struct {
		window Window
		batch  Batch
	}
	var jobs []job
	batchWordTarget := plan.BatchSize
	if batchWordTarget <= 0 {
		batchWordTarget = o.batchWordTarget
	}
	for _, window := range windows {
		for _, batch := range buildBatches(window, batchWordTarget) {
			jobs = append(jobs, job{window: window, batch: batch})
		}
	}

	var mu sync.Mutex
	enhanced := make(map[int]EnhancedParagraph, len(paragraphs))
	anyBatchFailed := false
	worstOutcome := llm.OutcomeSuccess
	batchesDone := 0

	group, groupCtx := errgroup.WithContext(ctx)
	for _, j := range jobs {
		j := j
		group.Go(func() error {
			results, ok, batchOutcome := o.dispatchBatchWithRetry(groupCtx, sessionID, j.window, j.batch)
			mu.Lock()
			defer mu.Unlock()
			if !ok {
				anyBatchFailed = true
				if outcomeSeverity(batchOutcome) > outcomeSeverity(worstOutcome) {
					worstOutcome = batchOutcome
				}
				for _, p := range j.batch.Paragraphs {
					enhanced[p.Index] = EnhancedParagraph{Index: p.Index, Text: p.Text}
				}
			} else {
				for _, r := range results {
					enhanced[r.Index] = r
				}
			}
			batchesDone++
			o.reporter.DocumentBatchCompleted(page.URL, batchesDone, len(jobs))
			return nil
		})
	}
	_ = group.Wait()

	merged := mergeEnhanced(paragraphs, enhanced)
	newBody := frontMatter + strings.Join(merged, "\n\n")

	// Same rolling-hash representation the crawl orchestrator stores, so
	// the change detector's tier-4 comparison stays meaningful after
	// enrichment.
	contentHash := changedetect.FormatHash(changedetect.RollingHash32([]byte(newBody)))

	if writeErr := os.WriteFile(page.FilePath, []byte(newBody), 0o644); writeErr != nil {
		o.recordErr("enrichDocument", &EnrichError{Message: writeErr.Error(), Retryable: true, Cause: ErrCauseWriteFailed}, page.URL)
		o.transitionStatus(ctx, page.URL, store.StatusFailed)
		outcome.FinalStatus = string(store.StatusFailed)
		o.reporter.DocumentFinished(page.URL, outcome.FinalStatus)
		return outcome
	}

	finalStatus := store.StatusContexted
	if anyBatchFailed {
		finalStatus = contentStatusForOutcome(worstOutcome)
		outcome.FailedBatches++
	}

	o.store.UpsertPage(ctx, page.URL, store.PageFields{
		ContentStatus: store.ContentStatusField(finalStatus),
		ContentHash:   store.StringField(contentHash),
	})

	outcome.ParagraphsEnhanced = len(merged) - outcome.FailedBatches
	outcome.FinalStatus = string(finalStatus)
	o.reporter.DocumentFinished(page.URL, outcome.FinalStatus)
	return outcome
}

// dispatchBatchWithRetry sends one batch through the LLM call layer, up
// to maxBatchRetries attempts, validating each returned paragraph against
// the preservation invariant. The returned outcome is
// the last attempt's classification, used by enrichDocument to route a
// persistently failing batch to rate_limited/timeout/failed.
func (o *Orchestrator) dispatchBatchWithRetry(ctx context.Context, sessionID string, window Window, batch Batch) ([]EnhancedParagraph, bool, llm.CallOutcome) {
	lastOutcome := llm.OutcomeFailed
	for attempt := 0; attempt < maxBatchRetries; attempt++ {
		prompt := buildWindowPrompt(window, batch)
		parsed, callOutcome := o.caller.Call(ctx, sessionID, prompt, windowResponseSchema())
		lastOutcome = callOutcome
		if parsed == nil {
			continue
		}

		rawList, ok := parsed["enhanced_paragraphs"].([]any)
		if !ok || len(rawList) != len(batch.Paragraphs) {
			lastOutcome = llm.OutcomeFailed
			continue
		}

		results := make([]EnhancedParagraph, 0, len(batch.Paragraphs))
		valid := true
		for i, item := range rawList {
			entry, ok := item.(map[string]any)
			if !ok {
				valid = false
				break
			}
			text, _ := entry["text"].(string)
			summary, _ := entry["summary"].(string)
			original := batch.Paragraphs[i]

			if !isValidEnhancement(original.Text, text) {
				valid = false
				break
			}
			results = append(results, EnhancedParagraph{Index: original.Index, Text: text, Summary: summary})
		}
		if valid {
			return results, true, llm.OutcomeSuccess
		}
		lastOutcome = llm.OutcomeFailed
	}
	return nil, false, lastOutcome
}

// outcomeSeverity ranks outcomes so a document with mixed batch failures
// reports its most specific one: rate_limited over timeout over a plain
// failure.
func outcomeSeverity(o llm.CallOutcome) int {
	switch o {
	case llm.OutcomeRateLimited:
		return 2
	case llm.OutcomeTimeout:
		return 1
	default:
		return 0
	}
}

func contentStatusForOutcome(o llm.CallOutcome) store.ContentStatus {
	switch o {
	case llm.OutcomeRateLimited:
		return store.StatusRateLimited
	case llm.OutcomeTimeout:
		return store.StatusTimeout
	default:
		return store.StatusFailed
	}
}

func mergeEnhanced(paragraphs []Paragraph, enhanced map[int]EnhancedParagraph) []string {
	out := make([]string, len(paragraphs))
	for i, p := range paragraphs {
		if e, ok := enhanced[p.Index]; ok {
			out[i] = e.Text
		} else {
			out[i] = p.Text
		}
	}
	return out
}

func (o *Orchestrator) transitionStatus(ctx context.Context, url string, status store.ContentStatus) {
	o.store.UpsertPage(ctx, url, store.PageFields{ContentStatus: store.ContentStatusField(status)})
}

func (o *Orchestrator) recordErr(method string, err failure.ClassifiedError, url string) {
	if o.metadataSink == nil {
		return
	}
	cause := metadata.CauseUnknown
	if ee, ok := err.(*EnrichError); ok {
		cause = mapEnrichErrorToMetadataCause(ee)
	}
	o.metadataSink.RecordError(
		time.Now(),
		"enrich",
		method,
		cause,
		err.Error(),
		[]metadata.Attribute{metadata.NewAttr(metadata.AttrURL, url)},
	)
}
