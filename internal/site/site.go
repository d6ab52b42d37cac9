// Package site is the assembly glue: it owns process lifecycle, builds every component from a
// single config.Config, and runs the crawl-then-enrich pipeline.
//
// The composition-root idiom lives here rather than in the CLI package
// so cmd/docs-crawler/main.go stays thin and the process lock / store
// lifetime is owned by one place.
package site

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rohmanhakim/docs-crawler/internal/changedetect"
	"github.com/rohmanhakim/docs-crawler/internal/config"
	"github.com/rohmanhakim/docs-crawler/internal/enrich"
	"github.com/rohmanhakim/docs-crawler/internal/llm"
	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/internal/progress"
	"github.com/rohmanhakim/docs-crawler/internal/scheduler"
	"github.com/rohmanhakim/docs-crawler/internal/sitemap"
	"github.com/rohmanhakim/docs-crawler/internal/store"
	"github.com/rohmanhakim/docs-crawler/pkg/fileutil"
)

// stateDirName is the state directory kept under outputDir.
const stateDirName = ".site2rag"

// Summary is the single end-of-run report.
type Summary struct {
	PagesCrawled      int
	PagesWritten      int
	SitemapURLsFound  int
	DocumentsEnriched int
	PromptTokens      int64
	OutputTokens      int64
	EstimatedCost     float64
}

// Processor wires the Store, Fetcher/Scheduler, Sitemap discoverer, and
// Enrichment orchestrator for one crawl-then-enrich run and owns the
// process lock and the Store's lifetime.
type Processor struct {
	cfg    config.Config
	logger zerolog.Logger
}

func NewProcessor(cfg config.Config, logger zerolog.Logger) *Processor {
	return &Processor{cfg: cfg, logger: logger.With().Str("component", "site").Logger()}
}

// Run executes one full pipeline pass: acquire the process lock, open
// the Store, discover sitemaps, crawl, then enrich every page the crawl
// left in content_status=raw. It returns a non-nil error for an invalid
// seed URL, for "process lock held by another instance", and when the
// output or state directory cannot be created or the Store cannot be
// opened; everything else is routed to a terminal Page state and folded
// into Summary.
func (p *Processor) Run(ctx context.Context) (Summary, error) {
	if len(p.cfg.SeedURLs()) == 0 {
		return Summary{}, fmt.Errorf("invalid seed URL: no seed URLs configured")
	}

	if err := fileutil.EnsureDir(p.cfg.OutputDir()); err != nil {
		return Summary{}, fmt.Errorf("preparing output directory: %w", err)
	}
	stateDir := filepath.Join(p.cfg.OutputDir(), stateDirName)
	if err := fileutil.EnsureDir(stateDir); err != nil {
		return Summary{}, fmt.Errorf("preparing state directory: %w", err)
	}

	lock, lockErr := acquireProcessLock(filepath.Join(stateDir, "lock"))
	if lockErr != nil {
		return Summary{}, lockErr
	}
	defer lock.release()

	recorder := metadata.NewRecorder(uuid.NewString())

	storePath := p.cfg.StorePath()
	if !filepath.IsAbs(storePath) {
		storePath = filepath.Join(stateDir, filepath.Base(storePath))
	}
	pageStore, storeErr := store.Open(storePath, &recorder)
	if storeErr != nil {
		return Summary{}, fmt.Errorf("opening store: %w", storeErr)
	}
	defer pageStore.Close()

	var summary Summary

	seed := p.cfg.SeedURLs()[0]
	discoverer := sitemap.NewHTTPDiscoverer(p.cfg.UserAgent(), p.cfg.SitemapProbePaths(), &recorder)
	sitemapCtx, sitemapCancel := context.WithTimeout(ctx, 30*time.Second)
	entries, sitemapErr := discoverer.Discover(sitemapCtx, seed, func(batch []sitemap.Entry) error {
		return pageStore.InsertSitemapURLs(ctx, toSitemapRecords(batch))
	})
	sitemapCancel()
	if sitemapErr != nil {
		p.logger.Warn().Err(sitemapErr).Msg("sitemap discovery failed, continuing with seed URL only")
	}
	summary.SitemapURLsFound = len(entries)

	sched := scheduler.NewScheduler()
	sched.SetPageStore(pageStore)
	sched.SetChangeDetector(changedetect.NewTieredDetector())

	init, initErr := sched.InitializeCrawlingWithConfig(p.cfg)
	if initErr != nil {
		return summary, fmt.Errorf("invalid seed URL: %w", initErr)
	}

	sched.SubmitSeedSitemapURLs(sitemapEntryURLs(entries))

	execution, execErr := sched.ExecuteCrawlingWithState(init)
	if execErr != nil {
		p.logger.Error().Err(execErr).Msg("crawl terminated with an error")
	}
	summary.PagesCrawled = len(execution.CrawledURLs())
	summary.PagesWritten = len(execution.WriteResults())

	if p.cfg.DryRun() {
		p.logSummary(summary)
		return summary, nil
	}

	caller := llm.NewLLMClient(p.cfg.EnrichOllamaHost(), p.cfg.EnrichModel(), &recorder)
	orchestrator := enrich.NewOrchestratorWithDeps(
		pageStore,
		&caller,
		&recorder,
		progress.NewLogReporter(p.logger),
		p.cfg.HashAlgo(),
	)
	windowPlan := enrich.NewWindowPlanFromConfig(p.cfg)

	outcomes := orchestrator.EnrichSession(ctx, execution.CrawledURLs(), windowPlan)
	outcomes = append(outcomes, orchestrator.CleanupRetry(ctx, execution.CrawledURLs(), windowPlan)...)
	summary.DocumentsEnriched = countEnriched(outcomes)

	trackerSnapshot := llm.DefaultTracker().Snapshot()
	summary.PromptTokens = trackerSnapshot.PromptTokens
	summary.OutputTokens = trackerSnapshot.OutputTokens
	summary.EstimatedCost = trackerSnapshot.EstimatedCost

	p.logSummary(summary)
	return summary, nil
}

func (p *Processor) logSummary(s Summary) {
	p.logger.Info().
		Int("pages_crawled", s.PagesCrawled).
		Int("pages_written", s.PagesWritten).
		Int("sitemap_urls_found", s.SitemapURLsFound).
		Int("documents_enriched", s.DocumentsEnriched).
		Int64("prompt_tokens", s.PromptTokens).
		Int64("output_tokens", s.OutputTokens).
		Float64("estimated_cost", s.EstimatedCost).
		Msg("run summary")
}

func countEnriched(outcomes []enrich.DocumentOutcome) int {
	n := 0
	for _, o := range outcomes {
		if o.FinalStatus == string(store.StatusContexted) {
			n++
		}
	}
	return n
}

func sitemapEntryURLs(entries []sitemap.Entry) []url.URL {
	urls := make([]url.URL, 0, len(entries))
	for _, e := range entries {
		parsed, err := url.Parse(e.URL)
		if err != nil {
			continue
		}
		urls = append(urls, *parsed)
	}
	return urls
}

func toSitemapRecords(entries []sitemap.Entry) []store.SitemapURLRecord {
	records := make([]store.SitemapURLRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, store.SitemapURLRecord{
			URL:            e.URL,
			DiscoveredFrom: e.DiscoveredFrom,
			Language:       e.Language,
			Priority:       e.Priority,
			LastMod:        e.LastMod,
			ChangeFreq:     e.ChangeFreq,
		})
	}
	return records
}
