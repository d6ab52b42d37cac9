package frontier

import (
	"sync"

	"github.com/rohmanhakim/docs-crawler/internal/config"
	"github.com/rohmanhakim/docs-crawler/pkg/urlutil"
)

/*
Frontier Responsibilities
- Maintain BFS ordering
- Deduplicate URLs
- Track crawl depth
- Prevent infinite traversal
- Knows nothing about:
	- fetching
	- extraction
	- markdown
	- storage

It is a data structure + policy module, not a pipeline executor.

BFS ordering is enforced by keeping one FIFOQueue per depth level and
always draining the lowest non-empty depth first: Submit never reorders
within a depth, and Dequeue never returns a deeper URL while a shallower
one is still pending.
*/

// Queue is the admission/BFS-draining port the scheduler depends on.
// Implemented by *Frontier; test doubles satisfy it for scheduler tests.
type Queue interface {
	Init(cfg config.Config)
	Submit(candidate CrawlAdmissionCandidate)
	Enqueue(token CrawlToken)
	Dequeue() (CrawlToken, bool)
	VisitedCount() int
	IsDepthExhausted(depth int) bool
	CurrentMinDepth() int
}

type Frontier struct {
	mu sync.Mutex

	visited      Set[string]
	queuesByDept map[int]*FIFOQueue[CrawlToken]
	minDepth     int
	maxDepth     int

	cfgMaxDepth int
	cfgMaxPages int
	admitted    int
}

// NewFrontier creates an empty Frontier. Init must be called once with the
// run's config before Submit/Dequeue are used.
func NewFrontier() Frontier {
	return Frontier{
		visited:      NewSet[string](),
		queuesByDept: make(map[int]*FIFOQueue[CrawlToken]),
		cfgMaxDepth:  -1,
	}
}

// NewCrawlFrontier is an alias of NewFrontier kept for call-site clarity in
// the scheduler ("crawl frontier" reads better than a bare "frontier").
func NewCrawlFrontier() Frontier {
	return NewFrontier()
}

// Init configures depth/page limits from the given config. Safe to call
// more than once (e.g. test helpers reconfiguring limits mid-suite).
func (f *Frontier) Init(cfg config.Config) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfgMaxDepth = cfg.MaxDepth()
	f.cfgMaxPages = cfg.MaxPages()
}

// Submit admits an already-policy-checked candidate into the frontier.
// It enforces depth/page limits, deduplicates by normalized URL, and
// places the token in its depth's queue. Candidates that fail any of
// these checks are silently dropped: only the scheduler decides whether
// a drop should be logged, since Frontier has no metadata sink.
func (f *Frontier) Submit(candidate CrawlAdmissionCandidate) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.queuesByDept == nil {
		f.queuesByDept = make(map[int]*FIFOQueue[CrawlToken])
	}
	if f.visited == nil {
		f.visited = NewSet[string]()
	}

	depth := candidate.DiscoveryMetadata().Depth()

	if f.cfgMaxDepth >= 0 && depth > f.cfgMaxDepth {
		return
	}
	if f.cfgMaxPages > 0 && f.admitted >= f.cfgMaxPages {
		return
	}

	target := candidate.TargetURL()
	canonical := urlutil.Canonicalize(target)
	key := canonical.String()
	if f.visited.Contains(key) {
		return
	}
	f.visited.Add(key)
	f.admitted++

	queue, ok := f.queuesByDept[depth]
	if !ok {
		queue = NewFIFOQueue[CrawlToken]()
		f.queuesByDept[depth] = queue
	}
	queue.Enqueue(NewCrawlToken(target, depth))

	if depth > f.maxDepth {
		f.maxDepth = depth
	}
}

// Dequeue returns the next token in strict BFS order: the lowest depth
// with a non-empty queue is always drained completely before any deeper
// depth is considered, even if shallower depths were empty when a deeper
// URL was submitted and only later received new entries.
func (f *Frontier) Dequeue() (CrawlToken, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for depth := 0; depth <= f.maxDepth; depth++ {
		queue, ok := f.queuesByDept[depth]
		if !ok || queue.Size() == 0 {
			if depth == f.minDepth {
				f.minDepth++
			}
			continue
		}
		token, ok := queue.Dequeue()
		if !ok {
			continue
		}
		if depth < f.minDepth {
			f.minDepth = depth
		}
		return token, true
	}
	return CrawlToken{}, false
}

// VisitedCount returns the number of distinct normalized URLs ever
// admitted into the frontier.
func (f *Frontier) VisitedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.visited == nil {
		return 0
	}
	return f.visited.Size()
}

// Enqueue places an already-constructed token directly into its depth's
// queue, bypassing dedup/limit checks. Used by callers that already hold
// an admitted CrawlToken (e.g. the seed token on startup).
func (f *Frontier) Enqueue(token CrawlToken) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.queuesByDept == nil {
		f.queuesByDept = make(map[int]*FIFOQueue[CrawlToken])
	}

	depth := token.Depth()
	queue, ok := f.queuesByDept[depth]
	if !ok {
		queue = NewFIFOQueue[CrawlToken]()
		f.queuesByDept[depth] = queue
	}
	queue.Enqueue(token)

	if depth > f.maxDepth {
		f.maxDepth = depth
	}
}

// IsDepthExhausted reports whether the given depth's queue has been fully
// drained (exists but is empty, or was never populated below the current
// minimum depth).
func (f *Frontier) IsDepthExhausted(depth int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if depth < f.minDepth {
		return true
	}
	queue, ok := f.queuesByDept[depth]
	if !ok {
		return true
	}
	return queue.Size() == 0
}

// CurrentMinDepth returns the shallowest depth still being drained.
func (f *Frontier) CurrentMinDepth() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.minDepth
}

var _ Queue = (*Frontier)(nil)
