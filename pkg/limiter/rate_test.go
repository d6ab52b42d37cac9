package limiter_test

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rohmanhakim/docs-crawler/pkg/limiter"
	"github.com/rohmanhakim/docs-crawler/pkg/timeutil"
)

func newTunedLimiter(baseDelay, jitter time.Duration) *limiter.ConcurrentRateLimiter {
	r := limiter.NewConcurrentRateLimiter()
	r.SetBaseDelay(baseDelay)
	r.SetJitter(jitter)
	r.SetRandomSeed(42)
	return r
}

func TestSettersAndAccessors(t *testing.T) {
	r := limiter.NewConcurrentRateLimiter()

	r.SetBaseDelay(time.Second)
	r.SetJitter(100 * time.Millisecond)
	r.SetRNG(rand.New(rand.NewSource(7)))

	require.Equal(t, time.Second, r.BaseDelay())
	require.Equal(t, 100*time.Millisecond, r.Jitter())
	require.NotNil(t, r.RNG())
	require.Empty(t, r.HostTimings())
}

// A host that was never fetched gets no delay: the first request to a
// new host must go out immediately.
func TestResolveDelayUnknownHostIsZero(t *testing.T) {
	r := newTunedLimiter(time.Second, 0)

	require.Equal(t, time.Duration(0), r.ResolveDelay("example.com"))
}

// After a fetch is marked, the base delay paces the next request to the
// same host.
func TestResolveDelayEnforcesBaseDelayAfterFetch(t *testing.T) {
	r := newTunedLimiter(200*time.Millisecond, 0)

	r.MarkLastFetchAsNow("example.com")
	delay := r.ResolveDelay("example.com")

	require.Greater(t, delay, time.Duration(0))
	require.LessOrEqual(t, delay, 200*time.Millisecond)
}

// Once the base delay has elapsed since the last fetch, no further delay
// is imposed.
func TestResolveDelayZeroAfterSpacingElapsed(t *testing.T) {
	r := newTunedLimiter(5*time.Millisecond, 0)

	r.MarkLastFetchAsNow("example.com")
	time.Sleep(20 * time.Millisecond)

	// The lazily created per-host token bucket may still owe a fraction
	// of the base delay; anything beyond base is a bug.
	require.LessOrEqual(t, r.ResolveDelay("example.com"), 5*time.Millisecond)
}

// A robots Crawl-delay larger than the base delay wins the max().
func TestResolveDelayHonorsCrawlDelayOverride(t *testing.T) {
	r := newTunedLimiter(10*time.Millisecond, 0)

	r.SetCrawlDelay("example.com", 300*time.Millisecond)
	r.MarkLastFetchAsNow("example.com")

	delay := r.ResolveDelay("example.com")
	require.Greater(t, delay, 10*time.Millisecond)
	require.LessOrEqual(t, delay, 300*time.Millisecond)

	timing := r.HostTimings()["example.com"]
	require.Equal(t, 300*time.Millisecond, timing.CrawlDelay())
}

func TestBackoffGrowsAndResets(t *testing.T) {
	r := newTunedLimiter(time.Millisecond, 0)
	r.SetBackoffParam(timeutil.NewBackoffParam(50*time.Millisecond, 2.0, time.Second))

	r.Backoff("example.com")
	first := r.HostTimings()["example.com"]
	require.Equal(t, 1, first.BackoffCount())
	require.Greater(t, first.BackOffDelay(), time.Duration(0))

	r.Backoff("example.com")
	second := r.HostTimings()["example.com"]
	require.Equal(t, 2, second.BackoffCount())
	require.GreaterOrEqual(t, second.BackOffDelay(), first.BackOffDelay())

	r.ResetBackoff("example.com")
	cleared := r.HostTimings()["example.com"]
	require.Equal(t, 0, cleared.BackoffCount())
	require.Equal(t, time.Duration(0), cleared.BackOffDelay())
}

// ResetBackoff on a host that never backed off must not create state.
func TestResetBackoffUnknownHostIsNoop(t *testing.T) {
	r := newTunedLimiter(time.Millisecond, 0)

	r.ResetBackoff("example.com")
	require.Empty(t, r.HostTimings())
}

// A host under backoff is delayed by the backoff term even when the base
// delay alone has already elapsed.
func TestResolveDelayIncludesBackoffTerm(t *testing.T) {
	r := newTunedLimiter(time.Millisecond, 0)
	r.SetBackoffParam(timeutil.NewBackoffParam(250*time.Millisecond, 2.0, time.Second))

	r.MarkLastFetchAsNow("example.com")
	r.Backoff("example.com")

	delay := r.ResolveDelay("example.com")
	require.Greater(t, delay, time.Millisecond)
}

// HostTimings returns a copy: callers mutating the returned map must not
// affect the limiter's own bookkeeping.
func TestHostTimingsReturnsCopy(t *testing.T) {
	r := newTunedLimiter(time.Millisecond, 0)
	r.MarkLastFetchAsNow("example.com")

	timings := r.HostTimings()
	delete(timings, "example.com")

	require.Contains(t, r.HostTimings(), "example.com")
}

func TestJitterIsBoundedAndSeedDeterministic(t *testing.T) {
	r1 := newTunedLimiter(10*time.Millisecond, 50*time.Millisecond)
	r2 := newTunedLimiter(10*time.Millisecond, 50*time.Millisecond)

	r1.MarkLastFetchAsNow("example.com")
	r2.MarkLastFetchAsNow("example.com")

	d1 := r1.ResolveDelay("example.com")
	d2 := r2.ResolveDelay("example.com")

	require.LessOrEqual(t, d1, 10*time.Millisecond+50*time.Millisecond)
	// Same seed, same sequence: the jittered delays of two identically
	// seeded limiters track each other to within scheduling noise.
	require.InDelta(t, float64(d1), float64(d2), float64(5*time.Millisecond))
}

// Concurrent mixed operations across several hosts must not race or
// corrupt per-host state.
func TestConcurrentRateLimiterParallelUse(t *testing.T) {
	r := newTunedLimiter(time.Millisecond, time.Millisecond)
	r.SetBackoffParam(timeutil.NewBackoffParam(time.Millisecond, 2.0, 10*time.Millisecond))

	hosts := []string{"a.example.com", "b.example.com", "c.example.com"}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			host := hosts[w%len(hosts)]
			for i := 0; i < 50; i++ {
				switch i % 5 {
				case 0:
					r.MarkLastFetchAsNow(host)
				case 1:
					r.Backoff(host)
				case 2:
					r.ResetBackoff(host)
				case 3:
					r.SetCrawlDelay(host, time.Duration(i)*time.Millisecond)
				default:
					_ = r.ResolveDelay(host)
				}
			}
		}()
	}
	wg.Wait()

	for _, host := range hosts {
		require.Contains(t, r.HostTimings(), host)
	}
}
