package scheduler

import (
	"context"

	"github.com/rohmanhakim/docs-crawler/internal/storage"
)

// CrawlInitialization is the result of the admission/setup phase: robots
// fetched for the seed host, the seed URL admitted into the frontier, and
// the initial politeness delay applied. It carries everything the
// execution phase needs without re-deriving it from the config file.
type CrawlInitialization struct {
	ctx                 context.Context
	cancel              context.CancelFunc
	currentHost         string
	seedScheme          string
	initialDelayApplied bool
}

func (c *CrawlInitialization) CurrentHost() string {
	return c.currentHost
}

func (c *CrawlInitialization) SeedScheme() string {
	return c.seedScheme
}

func (c *CrawlInitialization) InitialDelayApplied() bool {
	return c.initialDelayApplied
}

// CrawlingExecution is the terminal result of a completed crawl loop.
type CrawlingExecution struct {
	writeResults []storage.WriteResult
	crawledURLs  []string
}

func NewCrawlingExecution(writeResults []storage.WriteResult) CrawlingExecution {
	return CrawlingExecution{writeResults: writeResults}
}

// NewCrawlingExecutionWithURLs additionally carries the canonical URL of
// every page written, so a caller (the site processor) can scope
// enrichment to exactly the pages this run touched.
func NewCrawlingExecutionWithURLs(writeResults []storage.WriteResult, crawledURLs []string) CrawlingExecution {
	return CrawlingExecution{writeResults: writeResults, crawledURLs: crawledURLs}
}

func (c CrawlingExecution) WriteResults() []storage.WriteResult {
	return c.writeResults
}

func (c CrawlingExecution) CrawledURLs() []string {
	return c.crawledURLs
}

type PipelineOutcome struct {
	Continue bool
	Retry    bool
	Abort    bool
}
