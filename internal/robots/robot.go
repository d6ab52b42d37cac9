package robots

import (
	"context"
	"net/url"
	"sync"

	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/internal/robots/cache"
)

/*
Responsibilities

- Fetch robots.txt per host
- Cache rules for crawl duration
- Enforce allow/disallow rules before enqueue

Robots checks occur before a URL enters the frontier.
*/

// Robot is the scheduler-facing port for robots.txt admission decisions.
// Implementations own fetching, parsing, and per-host rule caching; the
// scheduler only ever calls Init once and Decide per candidate URL.
type Robot interface {
	Init(userAgent string)
	Decide(u url.URL) (Decision, *RobotsError)
}

// CachedRobot is the default Robot implementation. It fetches robots.txt
// on first sight of a host, memoizes the parsed ruleSet for the lifetime
// of the crawl, and evaluates allow/disallow precedence locally on every
// subsequent Decide call without refetching.
type CachedRobot struct {
	metadataSink metadata.MetadataSink
	fetcher      *RobotsFetcher
	userAgent    string

	mu       sync.Mutex
	ruleSets map[string]ruleSet
}

// NewCachedRobot wires a CachedRobot against an in-memory robots.txt cache.
// The memory cache lives only for the duration of the crawl.
func NewCachedRobot(metadataSink metadata.MetadataSink) CachedRobot {
	return CachedRobot{
		metadataSink: metadataSink,
		ruleSets:     make(map[string]ruleSet),
	}
}

func (r *CachedRobot) Init(userAgent string) {
	r.userAgent = userAgent
	r.fetcher = NewRobotsFetcher(r.metadataSink, userAgent, cache.NewMemoryCache())
}

// Decide fetches (or reuses the cached) robots.txt for the URL's host and
// returns whether the URL may be crawled, along with any crawl-delay
// directive that applies to the host.
func (r *CachedRobot) Decide(u url.URL) (Decision, *RobotsError) {
	rs, err := r.ruleSetFor(u)
	if err != nil {
		return Decision{}, err
	}

	allowed, reason := decidePermission(rs, u.Path)

	decision := Decision{
		Url:     u,
		Allowed: allowed,
		Reason:  reason,
	}
	if delay := rs.CrawlDelay(); delay != nil {
		decision.CrawlDelay = *delay
	}
	return decision, nil
}

func (r *CachedRobot) ruleSetFor(u url.URL) (ruleSet, *RobotsError) {
	r.mu.Lock()
	if rs, ok := r.ruleSets[u.Host]; ok {
		r.mu.Unlock()
		return rs, nil
	}
	r.mu.Unlock()

	scheme := u.Scheme
	if scheme == "" {
		scheme = "https"
	}

	result, fetchErr := r.fetcher.Fetch(context.Background(), scheme, u.Host)
	if fetchErr != nil {
		return ruleSet{}, fetchErr
	}

	rs := MapResponseToRuleSet(result.Response, r.userAgent, result.FetchedAt)

	r.mu.Lock()
	r.ruleSets[u.Host] = rs
	r.mu.Unlock()

	return rs, nil
}

// decidePermission evaluates allow/disallow precedence for path against rs.
// Per RFC 9309: the longest matching path rule wins; a tie between an allow
// and a disallow rule of equal length favors allow.
func decidePermission(rs ruleSet, path string) (bool, DecisionReason) {
	if !rs.hasGroups {
		return true, EmptyRuleSet
	}
	if !rs.matchedGroup {
		return true, UserAgentNotMatched
	}

	bestAllow := longestMatch(rs.allowRules, path)
	bestDisallow := longestMatch(rs.disallowRules, path)

	if bestAllow == -1 && bestDisallow == -1 {
		return true, NoMatchingRules
	}
	if bestDisallow > bestAllow {
		return false, DisallowedByRobots
	}
	return true, AllowedByRobots
}

// longestMatch returns the length of the longest rule prefix matching path,
// or -1 if no rule matches.
func longestMatch(rules []pathRule, path string) int {
	best := -1
	for _, rule := range rules {
		if matchesPath(rule.prefix, path) && len(rule.prefix) > best {
			best = len(rule.prefix)
		}
	}
	return best
}

func matchesPath(prefix, path string) bool {
	if prefix == "/" {
		return true
	}
	if len(path) < len(prefix) {
		return false
	}
	return path[:len(prefix)] == prefix
}
