package scheduler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/rohmanhakim/docs-crawler/internal/assets"
	"github.com/rohmanhakim/docs-crawler/internal/build"
	"github.com/rohmanhakim/docs-crawler/internal/changedetect"
	"github.com/rohmanhakim/docs-crawler/internal/config"
	"github.com/rohmanhakim/docs-crawler/internal/documents"
	"github.com/rohmanhakim/docs-crawler/internal/extractor"
	"github.com/rohmanhakim/docs-crawler/internal/fetcher"
	"github.com/rohmanhakim/docs-crawler/internal/frontier"
	"github.com/rohmanhakim/docs-crawler/internal/mdconvert"
	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/internal/metaextract"
	"github.com/rohmanhakim/docs-crawler/internal/normalize"
	"github.com/rohmanhakim/docs-crawler/internal/robots"
	"github.com/rohmanhakim/docs-crawler/internal/sanitizer"
	"github.com/rohmanhakim/docs-crawler/internal/storage"
	"github.com/rohmanhakim/docs-crawler/internal/store"
	"github.com/rohmanhakim/docs-crawler/pkg/failure"
	"github.com/rohmanhakim/docs-crawler/pkg/limiter"
	"github.com/rohmanhakim/docs-crawler/pkg/retry"
	"github.com/rohmanhakim/docs-crawler/pkg/timeutil"
	"github.com/rohmanhakim/docs-crawler/pkg/urlutil"
)

/*
 Scheduler is the sole control-plane authority of the crawl.

 Determinism and admission guarantees:
 - Scheduler is the ONLY component allowed to decide whether a URL
   may enter the crawl frontier.
 - All semantic admission checks (robots.txt, scope, depth, limits)
   MUST be completed before submitting a URL to the frontier.
 - No other component may enqueue, reject, or reorder URLs.
 - The frontier should only accept already-admitted URLs.
 - Pipeline stages may detect and classify failure, but must never decide retry, continuation, or abortion.

 The scheduler coordinates pipeline execution but does not delegate
 control-flow decisions to downstream stages.

 Metadata emission is observational only and MUST NOT influence
 scheduling, retries, or crawl termination.

 Scheduler Responsibilities:
 - Coordinate crawl lifecycle
 - Enforce global limits (pages, depth)
 - Manage graceful shutdown
 - Aggregate crawl statistics
 - Decide whether a robots outcome proceeds to the frontier.
 - The sole authority on:
	- retry
	- continue
	- abort

 The crawl lifecycle is split into two phases so callers (and tests) can
 observe admission of the seed URL independently from the fetch loop:
 InitializeCrawling resolves config, robots, and the seed admission;
 ExecuteCrawlingWithState drains the frontier. ExecuteCrawling composes
 both for the common case.

 ExecuteCrawlingWithState runs up to cfg.Concurrency() fetch workers
 against the frontier at once. The frontier, rate limiter, robots cache and
 metadata sink are all safe for concurrent use; writeResults/crawledURLs
 and the error/asset counters are guarded by resultsMu below.
*/

type Scheduler struct {
	ctx                    context.Context
	cfg                    config.Config
	metadataSink           metadata.MetadataSink
	crawlFinalizer         metadata.CrawlFinalizer
	robot                  robots.Robot
	frontier               frontier.Queue
	htmlFetcher            fetcher.Fetcher
	domExtractor           extractor.Extractor
	htmlSanitizer          sanitizer.Sanitizer
	markdownConversionRule mdconvert.ConvertRule
	assetResolver          assets.Resolver
	markdownConstraint     normalize.MarkdownConstraint
	storageSink            storage.Sink
	documentWriter         documents.Writer
	metaExtractor          metaextract.Extractor
	resultsMu              *sync.Mutex
	writeResults           []storage.WriteResult
	crawledURLs            []string
	currentHost            string
	seedURL                url.URL
	pathPatterns           []string
	rateLimiter            limiter.RateLimiter
	sleeper                timeutil.Sleeper
	pageStore              store.Store
	changeDetector         changedetect.Detector
}

// errCrawlLimitReached is the orderly-termination sentinel: a worker raises it once the page budget is spent, the
// errgroup context unwinds every other in-flight worker, and
// ExecuteCrawlingWithState converts it to a clean return.
var errCrawlLimitReached = &CrawlLimitError{}

// CrawlLimitError marks the crawl-limit unwind; it is never surfaced to
// callers as a failure.
type CrawlLimitError struct{}

func (e *CrawlLimitError) Error() string { return "crawl limit reached" }

func (e *CrawlLimitError) Severity() failure.Severity { return failure.SeverityRecoverable }

// SetDocumentWriter overrides the binary-document writer. Scheduler.NewScheduler/NewSchedulerWithDeps already
// install a documents.LocalWriter by default; this exists for tests that
// need to observe or stub document writes.
func (s *Scheduler) SetDocumentWriter(w documents.Writer) {
	s.documentWriter = w
}

// SetPageStore wires the persistence (Store) layer into the
// scheduler so every fetched page's Page row is upserted after a
// successful write, and so change detection has prior state to compare
// against. A nil store (the default) disables both: the scheduler then
// behaves exactly as it did before the Store existed, writing Markdown
// only, which keeps existing callers and tests working unchanged.
func (s *Scheduler) SetPageStore(st store.Store) {
	s.pageStore = st
}

// SetChangeDetector wires the four-tier freshness decision
// into the fetch loop. A nil detector (the default) disables
// conditional revalidation entirely.
func (s *Scheduler) SetChangeDetector(d changedetect.Detector) {
	s.changeDetector = d
}

func NewScheduler() Scheduler {
	recorder := metadata.NewRecorder("sample-single-sync-worker")
	cachedRobot := robots.NewCachedRobot(&recorder)
	newFrontier := frontier.NewFrontier()
	fetcher := fetcher.NewHtmlFetcher(&recorder)
	ext := extractor.NewDomExtractor(&recorder)
	sanitizer := sanitizer.NewHTMLSanitizer(&recorder)
	conversionRule := mdconvert.NewRule(&recorder)
	resolver := assets.NewLocalResolver(&recorder, &http.Client{}, "docs-crawler/1.0")
	markdownConstraint := normalize.NewMarkdownConstraint(&recorder)
	storageSink := storage.NewLocalSink(&recorder)
	documentWriter := documents.NewLocalWriter(&recorder)
	metaExtractor := metaextract.NewMetaExtractor(&recorder)
	rateLimiter := limiter.NewConcurrentRateLimiter()
	sleeper := timeutil.NewRealSleeper()
	return Scheduler{
		metadataSink:           &recorder,
		crawlFinalizer:         &recorder,
		robot:                  &cachedRobot,
		frontier:               &newFrontier,
		htmlFetcher:            &fetcher,
		domExtractor:           &ext,
		htmlSanitizer:          &sanitizer,
		markdownConversionRule: conversionRule,
		assetResolver:          &resolver,
		markdownConstraint:     markdownConstraint,
		storageSink:            &storageSink,
		documentWriter:         &documentWriter,
		metaExtractor:          &metaExtractor,
		rateLimiter:            rateLimiter,
		sleeper:                &sleeper,
		resultsMu:              &sync.Mutex{},
	}
}

// SetMetaExtractor overrides the metadata extractor feeding the YAML
// front-matter. NewScheduler installs a MetaExtractor by
// default; a nil extractor leaves the front-matter with URL-derived
// fields only.
func (s *Scheduler) SetMetaExtractor(m metaextract.Extractor) {
	s.metaExtractor = m
}

// NewSchedulerWithDeps creates a Scheduler with injected dependencies for testing.
// This constructor allows tests to provide mock implementations of metadata interfaces
// to verify behavior without relying on real infrastructure.
func NewSchedulerWithDeps(
	ctx context.Context,
	crawlFinalizer metadata.CrawlFinalizer,
	metadataSink metadata.MetadataSink,
	rateLimiter limiter.RateLimiter,
	frontierQueue frontier.Queue,
	robot robots.Robot,
	fetcher fetcher.Fetcher,
	domExtractor extractor.Extractor,
	sanitizer sanitizer.Sanitizer,
	rule mdconvert.ConvertRule,
	resolver assets.Resolver,
	markdownConstraint normalize.MarkdownConstraint,
	storageSink storage.Sink,
	sleeper timeutil.Sleeper,
) Scheduler {
	documentWriter := documents.NewLocalWriter(metadataSink)
	return Scheduler{
		ctx:                    ctx,
		metadataSink:           metadataSink,
		crawlFinalizer:         crawlFinalizer,
		robot:                  robot,
		frontier:               frontierQueue,
		htmlFetcher:            fetcher,
		domExtractor:           domExtractor,
		htmlSanitizer:          sanitizer,
		markdownConversionRule: rule,
		assetResolver:          resolver,
		markdownConstraint:     markdownConstraint,
		storageSink:            storageSink,
		documentWriter:         &documentWriter,
		rateLimiter:            rateLimiter,
		sleeper:                sleeper,
		resultsMu:              &sync.Mutex{},
	}
}

// SubmitUrlForAdmission performs all semantic checks required for a URL
// to enter the crawl frontier.
//
// This function is the single admission choke point for the system.
// If this function returns nil, the URL is guaranteed to be admissible
// and safe to submit to the frontier.
//
// No other code path may call Frontier.Submit.
// - Only the scheduler imports frontier
// - Only the scheduler constructs CrawlAdmissionCandidate
// - Pipeline stages never see frontier types
func (s *Scheduler) SubmitUrlForAdmission(
	url url.URL,
	sourceContext frontier.SourceContext,
	depth int,
) failure.ClassifiedError {
	// Fetch robots.txt
	robotsDecision, robotsError := s.robot.Decide(url)
	// Robots infrastructure failure → scheduler-level error
	if robotsError != nil {
		return robotsError
	}

	// Reset backoff after successful robots request
	if s.rateLimiter != nil {
		s.rateLimiter.ResetBackoff(url.Host)
	}

	if robotsDecision.CrawlDelay > 0 && s.rateLimiter != nil {
		s.rateLimiter.SetCrawlDelay(s.currentHost, robotsDecision.CrawlDelay)
	}

	// Robots explicitly disallowed → normal, terminal outcome
	if !robotsDecision.Allowed {
		// Important:
		// - metadata already emitted by robots
		// - NO retry
		// - NO abort
		// - NO frontier submission
		return nil
	}

	// Only submit to frontier if robots allowed
	candidate := frontier.NewCrawlAdmissionCandidate(
		robotsDecision.Url,
		sourceContext,
		frontier.NewDiscoveryMetadata(depth, nil),
	)

	// Submit Allowed URL for Admission by Frontier
	s.frontier.Submit(candidate)
	return nil
}

func (s *Scheduler) recordInitFailure(err error, field string, startTime time.Time) {
	s.metadataSink.RecordError(
		time.Now(),
		"config",
		"InitializeCrawling",
		metadata.CauseContentInvalid,
		err.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrField, field),
		},
	)
	totalPages := 0
	if s.frontier != nil {
		totalPages = s.frontier.VisitedCount()
	}
	s.crawlFinalizer.RecordFinalCrawlStats(totalPages, 0, 0, time.Since(startTime))
}

// InitializeCrawling resolves the config file, primes the rate limiter and
// robots cache, and admits the first seed URL into the frontier. On any
// failure it records a zero-progress final stats line (so a run that never
// reaches the fetch loop still produces a summary) and returns a nil
// initialization.
func (s *Scheduler) InitializeCrawling(configPath string) (*CrawlInitialization, error) {
	cfg, err := config.WithConfigFile(configPath)
	if err != nil {
		s.recordInitFailure(err, "configPath", time.Now())
		return nil, err
	}
	return s.InitializeCrawlingWithConfig(cfg)
}

// InitializeCrawlingWithConfig is InitializeCrawling's config-path-free
// core: it accepts an already-built config.Config (the site processor
// builds one programmatically from CLI flags rather than a config file)
// and otherwise does exactly what InitializeCrawling does: primes the
// rate limiter and robots cache, and admits the seed URL.
func (s *Scheduler) InitializeCrawlingWithConfig(cfg config.Config) (*CrawlInitialization, error) {
	startTime := time.Now()

	fail := func(err error, field string) (*CrawlInitialization, error) {
		s.recordInitFailure(err, field, startTime)
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout())
	if s.ctx == nil {
		s.ctx = ctx
	}

	if len(cfg.SeedURLs()) == 0 {
		cancel()
		return fail(fmt.Errorf("no seed URLs configured"), "seedUrls")
	}

	s.rateLimiter.SetBaseDelay(cfg.BaseDelay())
	s.rateLimiter.SetJitter(cfg.Jitter())
	s.rateLimiter.SetRandomSeed(cfg.RandomSeed())

	s.robot.Init(cfg.UserAgent())
	s.frontier.Init(cfg)

	extractParam := extractor.ExtractParam{
		BodySpecificityBias:  cfg.BodySpecificityBias(),
		LinkDensityThreshold: cfg.LinkDensityThreshold(),
		ScoreMultiplier: extractor.ContentScoreMultiplier{
			NonWhitespaceDivisor: cfg.ScoreMultiplierNonWhitespaceDivisor(),
			Paragraphs:           cfg.ScoreMultiplierParagraphs(),
			Headings:             cfg.ScoreMultiplierHeadings(),
			CodeBlocks:           cfg.ScoreMultiplierCodeBlocks(),
			ListItems:            cfg.ScoreMultiplierListItems(),
		},
		Threshold: extractor.MeaningfulThreshold{
			MinNonWhitespace:    cfg.ThresholdMinNonWhitespace(),
			MinHeadings:         cfg.ThresholdMinHeadings(),
			MinParagraphsOrCode: cfg.ThresholdMinParagraphsOrCode(),
			MaxLinkDensity:      cfg.ThresholdMaxLinkDensity(),
		},
	}
	s.domExtractor.SetExtractParam(extractParam)

	s.currentHost = cfg.SeedURLs()[0].Host
	s.seedURL = cfg.SeedURLs()[0]
	s.pathPatterns = cfg.PathPatterns()
	seedScheme := cfg.SeedURLs()[0].Scheme

	if err := s.SubmitUrlForAdmission(cfg.SeedURLs()[0], frontier.SourceSeed, 0); err != nil {
		if robotsErr, ok := err.(*robots.RobotsError); ok {
			s.recordRobotsErrorAndBackoff(robotsErr, cfg.SeedURLs()[0])
		}
		cancel()
		return fail(err, "seedAdmission")
	}

	delay := s.rateLimiter.ResolveDelay(s.currentHost)
	s.sleeper.Sleep(delay)

	s.cfg = cfg

	return &CrawlInitialization{
		ctx:                 ctx,
		cancel:              cancel,
		currentHost:         s.currentHost,
		seedScheme:          seedScheme,
		initialDelayApplied: true,
	}, nil
}

// ExecuteCrawlingWithState drains the frontier produced by InitializeCrawling,
// running every page through fetch → extract → sanitize → convert →
// resolve-assets → normalize → write. Up to cfg.Concurrency() pages are
// in flight at once; it always records the final crawl
// stats exactly once, regardless of outcome.
func (s *Scheduler) ExecuteCrawlingWithState(init *CrawlInitialization) (CrawlingExecution, error) {
	crawlStartTime := time.Now()
	cfg := s.cfg
	if s.resultsMu == nil {
		s.resultsMu = &sync.Mutex{}
	}
	if s.documentWriter == nil {
		defaultWriter := documents.NewLocalWriter(s.metadataSink)
		s.documentWriter = &defaultWriter
	}

	var totalErrors int64
	var totalAssets int64

	defer func() {
		if init.cancel != nil {
			init.cancel()
		}
		crawlDuration := time.Since(crawlStartTime)
		totalPages := s.frontier.VisitedCount()
		s.crawlFinalizer.RecordFinalCrawlStats(
			totalPages,
			int(atomic.LoadInt64(&totalErrors)),
			int(atomic.LoadInt64(&totalAssets)),
			crawlDuration,
		)
	}()

	concurrency := int64(cfg.Concurrency())
	if concurrency < 1 {
		concurrency = 1
	}

	group, groupCtx := errgroup.WithContext(s.ctx)
	sem := semaphore.NewWeighted(concurrency)
	var inFlight int64

	for {
		nextCrawlToken, ok := s.frontier.Dequeue()
		if !ok {
			// The frontier only grows from within in-flight workers
			// (discovered links get submitted as pages are processed),
			// so an empty frontier with workers still running is not
			// yet terminal: poll again once a worker has had a chance
			// to submit more URLs.
			if atomic.LoadInt64(&inFlight) == 0 {
				break
			}
			time.Sleep(5 * time.Millisecond)
			continue
		}

		if acquireErr := sem.Acquire(groupCtx, 1); acquireErr != nil {
			break
		}
		atomic.AddInt64(&inFlight, 1)
		token := nextCrawlToken

		group.Go(func() error {
			defer sem.Release(1)
			defer atomic.AddInt64(&inFlight, -1)
			return s.processCrawlToken(groupCtx, init, cfg, token, &totalErrors, &totalAssets)
		})
	}

	// The crawl-limit sentinel unwinds in-flight workers through the
	// errgroup but terminates the run cleanly.
	if err := group.Wait(); err != nil {
		var limitErr *CrawlLimitError
		if !errors.As(err, &limitErr) {
			return CrawlingExecution{}, err
		}
	}

	s.resultsMu.Lock()
	defer s.resultsMu.Unlock()
	return NewCrawlingExecutionWithURLs(s.writeResults, s.crawledURLs), nil
}

// processCrawlToken runs one URL through fetch → extract → sanitize →
// convert → resolve-assets → normalize → write. It returns a non-nil
// error only for fatal failures (which cancel every other in-flight
// worker via the errgroup's shared context); recoverable failures are
// tallied into totalErrors and swallowed so the rest of the crawl
// continues.
func (s *Scheduler) processCrawlToken(
	ctx context.Context,
	init *CrawlInitialization,
	cfg config.Config,
	nextCrawlToken frontier.CrawlToken,
	totalErrors *int64,
	totalAssets *int64,
) error {
	canonicalURL := urlutil.Canonicalize(nextCrawlToken.URL())
	urlKey := canonicalURL.String()
	var priorPage store.Page
	var priorFound bool
	if s.pageStore != nil {
		priorPage, priorFound, _ = s.pageStore.GetPage(ctx, urlKey)
	}

	// Change-detection tier 1: a recently crawled page is skipped without a
	// network round trip at all; only last_crawled is bumped.
	if priorFound && s.changeDetector != nil {
		if _, fired := s.changeDetector.DecideBeforeFetch(changedetect.AgeInput{
			Found:       true,
			LastCrawled: priorPage.LastCrawled,
			LastUpdated: priorPage.LastUpdated,
			MinAge:      cfg.ChangeDetectMinAge(),
			FastRecheck: cfg.ChangeDetectFastRecheck(),
		}); fired {
			s.pageStore.UpsertPage(ctx, urlKey, store.PageFields{LastCrawled: store.TimeField(time.Now())})
			return nil
		}
	}

	fetchParam := fetcher.NewFetchParam(
		nextCrawlToken.URL(),
		cfg.UserAgent(),
	)
	if priorFound && s.changeDetector != nil {
		fetchParam = fetchParam.WithConditionalHeaders(
			s.changeDetector.ConditionalHeaders(priorPage.ETag, priorPage.LastModified),
		)
	}

	delay := s.rateLimiter.ResolveDelay(s.currentHost)
	s.sleeper.Sleep(delay)

	fetchResult, err := s.htmlFetcher.Fetch(ctx, nextCrawlToken.Depth(), fetchParam, RetryParam(cfg))
	s.rateLimiter.MarkLastFetchAsNow(s.currentHost)
	if err != nil {
		if err.Severity() == failure.SeverityFatal {
			return err
		}
		atomic.AddInt64(totalErrors, 1)
		return nil
	}

	// A 304 bumps only last_crawled; content_status and
	// every other field are left intact so previously enriched
	// content is never re-enriched.
	if fetchResult.NotModified() {
		if s.pageStore != nil {
			now := time.Now()
			s.pageStore.UpsertPage(ctx, urlKey, store.PageFields{LastCrawled: store.TimeField(now)})
		}
		return nil
	}

	// DECIDE -> BINARY: content-type prefix routes non-HTML
	// bodies straight to documents/, bypassing extraction entirely.
	if documents.IsBinaryContentType(fetchResult.ContentType()) {
		docResult, docErr := s.documentWriter.Write(cfg.OutputDir(), fetchResult.URL(), fetchResult.Body(), cfg.HashAlgo())
		if docErr != nil {
			atomic.AddInt64(totalErrors, 1)
			return nil
		}
		if s.pageStore != nil {
			now := time.Now()
			s.pageStore.UpsertPage(ctx, urlKey, store.PageFields{
				Status:        store.IntField(fetchResult.Code()),
				LastCrawled:   store.TimeField(now),
				LastUpdated:   store.TimeField(now),
				FilePath:      store.StringField(docResult.Path()),
				ContentHash:   store.StringField(docResult.ContentHash()),
				ContentStatus: store.ContentStatusField(store.StatusRaw),
			})
		}
		return nil
	}

	extractionResult, err := s.domExtractor.Extract(fetchResult.URL(), fetchResult.Body())
	if err != nil {
		if err.Severity() == failure.SeverityFatal {
			return err
		}
		atomic.AddInt64(totalErrors, 1)
		return nil
	}

	sanitizedHtml, err := s.htmlSanitizer.Sanitize(extractionResult.ContentNode)
	if err != nil {
		if err.Severity() == failure.SeverityFatal {
			return err
		}
		atomic.AddInt64(totalErrors, 1)
		return nil
	}

	discoveredURLs := sanitizedHtml.GetDiscoveredURLs()

	resolvedURLs := make([]url.URL, 0, len(discoveredURLs))
	for _, u := range discoveredURLs {
		resolved := urlutil.Resolve(u, init.seedScheme, s.currentHost)
		resolvedURLs = append(resolvedURLs, resolved)
	}

	filteredURLs := s.admissibleURLs(cfg, resolvedURLs)

	for _, discoveredurl := range filteredURLs {
		submissionErr := s.SubmitUrlForAdmission(discoveredurl, frontier.SourceCrawl, nextCrawlToken.Depth()+1)
		if submissionErr != nil {
			if robotsErr, ok := submissionErr.(*robots.RobotsError); ok {
				s.recordRobotsErrorAndBackoff(robotsErr, discoveredurl)
			}
			atomic.AddInt64(totalErrors, 1)
		}

		// A `?resource=` value with a binary extension names
		// a document directly fetchable at its own URL; queue it
		// alongside the page that links to it.
		if resourceURL, ok := resourceParamURL(discoveredurl); ok {
			if resourceErr := s.SubmitUrlForAdmission(resourceURL, frontier.SourceCrawl, nextCrawlToken.Depth()+1); resourceErr != nil {
				atomic.AddInt64(totalErrors, 1)
			}
		}
	}

	markdownDoc, err := s.markdownConversionRule.Convert(sanitizedHtml, fetchResult.URL())
	if err != nil {
		if err.Severity() == failure.SeverityFatal {
			return err
		}
		atomic.AddInt64(totalErrors, 1)
		return nil
	}

	// Change-detection tiers 2-4: ETag / Last-Modified / extracted-content
	// hash. Any tier saying "unchanged" short-circuits to bumping
	// last_crawled only, content_status untouched.
	if s.changeDetector != nil {
		decision := s.changeDetector.DecideAfterFetch(changedetect.Input{
			Found:                priorFound,
			PriorETag:            priorPage.ETag,
			PriorLastModified:    priorPage.LastModified,
			PriorContentHash:     priorPage.ContentHash,
			PriorLastCrawled:     priorPage.LastCrawled,
			PriorLastUpdated:     priorPage.LastUpdated,
			ResponseETag:         fetchResult.Headers()["ETag"],
			ResponseLastModified: fetchResult.Headers()["Last-Modified"],
			ExtractedContent:     markdownDoc.GetMarkdownContent(),
		})
		if decision.Unchanged {
			if s.pageStore != nil {
				now := time.Now()
				s.pageStore.UpsertPage(ctx, urlKey, store.PageFields{LastCrawled: store.TimeField(now)})
			}
			return nil
		}
	}

	resolveParam := assets.NewResolveParam(cfg.OutputDir(), cfg.MaxAssetSize(), cfg.HashAlgo())
	assetfulMarkdown, err := s.assetResolver.Resolve(
		ctx,
		fetchResult.URL(),
		markdownDoc,
		resolveParam,
		RetryParam(cfg),
	)
	if err != nil {
		if err.Severity() == failure.SeverityFatal {
			return err
		}
		atomic.AddInt64(totalErrors, 1)
	}
	atomic.AddInt64(totalAssets, int64(len(assetfulMarkdown.LocalAssets())))

	// Fuse JSON-LD/meta/OG/byline signals from the full
	// document (metadata lives in <head>, which extraction discards)
	// into the front-matter.
	var docMeta metaextract.DocumentMetadata
	if s.metaExtractor != nil && extractionResult.DocumentRoot != nil {
		docMeta = s.metaExtractor.ExtractFromDocument(extractionResult.DocumentRoot)
	}

	normalizeParam := normalize.NewNormalizeParam(
		build.FullVersion(),
		fetchResult.FetchedAt(),
		cfg.HashAlgo(),
		nextCrawlToken.Depth(),
		cfg.AllowedPathPrefix(),
	).WithDocumentMetadata(docMeta)
	normalizedMarkdown, err := s.markdownConstraint.Normalize(fetchResult.URL(), assetfulMarkdown, normalizeParam)
	if err != nil {
		if err.Severity() == failure.SeverityFatal {
			return err
		}
		atomic.AddInt64(totalErrors, 1)
		return nil
	}

	writeResult, err := s.storageSink.Write(cfg.OutputDir(), normalizedMarkdown, cfg.HashAlgo())
	if err != nil {
		if err.Severity() == failure.SeverityFatal {
			return err
		}
		atomic.AddInt64(totalErrors, 1)
		return nil
	}

	s.resultsMu.Lock()
	s.writeResults = append(s.writeResults, writeResult)
	s.crawledURLs = append(s.crawledURLs, urlKey)
	limitReached := cfg.MaxPages() > 0 && len(s.crawledURLs) >= cfg.MaxPages()
	s.resultsMu.Unlock()

	if s.pageStore != nil {
		now := time.Now()
		// Tier-4 comparisons read this back, so the stored value must
		// be the rolling hash over the same bytes DecideAfterFetch
		// hashes: the converted Markdown before asset resolution.
		rollingHash := changedetect.FormatHash(changedetect.RollingHash32(markdownDoc.GetMarkdownContent()))
		s.pageStore.UpsertPage(ctx, urlKey, store.PageFields{
			ETag:          store.StringField(fetchResult.Headers()["ETag"]),
			LastModified:  store.StringField(fetchResult.Headers()["Last-Modified"]),
			ContentHash:   store.StringField(rollingHash),
			Status:        store.IntField(fetchResult.Code()),
			LastCrawled:   store.TimeField(now),
			LastUpdated:   store.TimeField(now),
			Title:         store.StringField(normalizedMarkdown.Frontmatter().Title()),
			FilePath:      store.StringField(writeResult.Path()),
			ContentStatus: store.ContentStatusField(store.StatusRaw),
		})
	}

	if limitReached {
		return errCrawlLimitReached
	}
	return nil
}

// admissibleURLs applies the same-domain and include/exclude pattern
// gates.
// Hosts explicitly allowed by config bypass the same-domain check.
func (s *Scheduler) admissibleURLs(cfg config.Config, urls []url.URL) []url.URL {
	allowedHosts := cfg.AllowedHosts()
	base := s.seedURL
	if base.Host == "" {
		base = url.URL{Host: s.currentHost}
	}
	out := make([]url.URL, 0, len(urls))
	for _, u := range urls {
		_, hostAllowed := allowedHosts[u.Host]
		if !hostAllowed && !urlutil.IsSameDomain(u, base) {
			continue
		}
		if !urlutil.MatchesPatterns(u, s.pathPatterns) {
			continue
		}
		out = append(out, u)
	}
	return out
}

// ExecuteCrawling composes InitializeCrawling and ExecuteCrawlingWithState
// for callers that don't need to observe the intermediate admission state.
func (s *Scheduler) ExecuteCrawling(configPath string) (CrawlingExecution, error) {
	init, err := s.InitializeCrawling(configPath)
	if err != nil {
		return CrawlingExecution{}, err
	}
	return s.ExecuteCrawlingWithState(init)
}

// ExecuteCrawlingWithConfig composes InitializeCrawlingWithConfig and
// ExecuteCrawlingWithState, mirroring ExecuteCrawling for callers that
// already hold a built config.Config (the site processor).
func (s *Scheduler) ExecuteCrawlingWithConfig(cfg config.Config) (CrawlingExecution, error) {
	init, err := s.InitializeCrawlingWithConfig(cfg)
	if err != nil {
		return CrawlingExecution{}, err
	}
	return s.ExecuteCrawlingWithState(init)
}

// SubmitSeedSitemapURLs admits sitemap-discovered URLs into
// the frontier at depth 0, after InitializeCrawlingWithConfig has primed
// robots/rate-limiter state for the current host. Each admission still
// runs through the same robots/scope checks as any other URL; no other
// component may enqueue, reject, or reorder URLs.
func (s *Scheduler) SubmitSeedSitemapURLs(urls []url.URL) {
	for _, u := range urls {
		if err := s.SubmitUrlForAdmission(u, frontier.SourceSitemap, 0); err != nil {
			if robotsErr, ok := err.(*robots.RobotsError); ok {
				s.recordRobotsErrorAndBackoff(robotsErr, u)
			}
		}
	}
}

// resourceParamURL extracts the `resource` query parameter's value as a
// standalone URL when it names a binary-looking target, resolved against
// the page it was found on.
func resourceParamURL(pageURL url.URL) (url.URL, bool) {
	resourceVal := pageURL.Query().Get("resource")
	if resourceVal == "" || !documents.HasBinaryExtension(resourceVal) {
		return url.URL{}, false
	}
	resolved, err := pageURL.Parse(resourceVal)
	if err != nil {
		return url.URL{}, false
	}
	return *resolved, true
}

// recordRobotsErrorAndBackoff records a robots error using metadataSink and
// triggers exponential backoff on the rate limiter if the error cause warrants it.
// This method handles ErrCauseHttpTooManyRequests (429) and ErrCauseHttpServerError (5xx)
// by recording the error and applying backoff to the current host.
func (s *Scheduler) recordRobotsErrorAndBackoff(robotsErr *robots.RobotsError, targetURL url.URL) {
	// Only record and backoff for specific HTTP error causes
	if robotsErr.Cause == robots.ErrCauseHttpTooManyRequests ||
		robotsErr.Cause == robots.ErrCauseHttpServerError {
		s.metadataSink.RecordError(
			time.Now(),
			"scheduler",
			"SubmitUrlForAdmission",
			metadata.CauseNetworkFailure,
			robotsErr.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, targetURL.String()),
				metadata.NewAttr(metadata.AttrHost, targetURL.Host),
				metadata.NewAttr(metadata.AttrPath, targetURL.Path),
			},
		)
		if s.rateLimiter != nil {
			s.rateLimiter.Backoff(targetURL.Host)
		}
	}
}

func RetryParam(cfg config.Config) retry.RetryParam {
	return retry.NewRetryParam(
		cfg.BaseDelay(),
		cfg.Jitter(),
		cfg.RandomSeed(),
		cfg.MaxAttempt(),
		timeutil.NewBackoffParam(
			cfg.BackoffInitialDuration(),
			cfg.BackoffMultiplier(),
			cfg.BackoffMaxDuration(),
		),
	)
}

// ---------------------------------------------------------------------------
// Test Helper Methods
// These methods are exported to enable testing of SubmitUrlForAdmission()
// and other scheduler internals. They are not part of the public API.
// ---------------------------------------------------------------------------

// InitWith initializes the dependencies with the given data.
// This is a test helper method.
func (s *Scheduler) InitWith(userAgent string, baseDelay time.Duration, jitter time.Duration, randomSeed int64) {
	s.robot.Init(userAgent)
	s.rateLimiter.SetBaseDelay(baseDelay)
	s.rateLimiter.SetJitter(jitter)
	s.rateLimiter.SetRandomSeed(randomSeed)
}

// SetCurrentHost sets the current host.
// This is a test helper method to simulate the host context.
func (s *Scheduler) SetCurrentHost(host string) {
	s.currentHost = host
}

// FrontierVisitedCount returns the number of URLs in the frontier's visited set.
// This is a test helper method to verify frontier state.
func (s *Scheduler) FrontierVisitedCount() int {
	if s.frontier == nil {
		return 0
	}
	return s.frontier.VisitedCount()
}

// DequeueFromFrontier dequeues a token from the frontier.
// This is a test helper method to verify frontier contents.
func (s *Scheduler) DequeueFromFrontier() (frontier.CrawlToken, bool) {
	if s.frontier == nil {
		return frontier.CrawlToken{}, false
	}
	return s.frontier.Dequeue()
}

// SetConvertRule sets the markdown conversion rule for testing.
// This is a test helper method to inject mock conversion rules.
func (s *Scheduler) SetConvertRule(rule mdconvert.ConvertRule) {
	s.markdownConversionRule = rule
}
