package frontier_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rohmanhakim/docs-crawler/internal/frontier"
)

func TestCrawlTokenAccessors(t *testing.T) {
	u := mustURL(t, "https://example.com/docs/a")
	token := frontier.NewCrawlToken(u, 3)

	require.Equal(t, u, token.URL())
	require.Equal(t, 3, token.Depth())
}

func TestCrawlAdmissionCandidateAccessors(t *testing.T) {
	u := mustURL(t, "https://example.com/docs/a")
	delay := 2 * time.Second
	meta := frontier.NewDiscoveryMetadata(2, &delay)
	candidate := frontier.NewCrawlAdmissionCandidate(u, frontier.SourceSitemap, meta)

	require.Equal(t, u, candidate.TargetURL())
	require.Equal(t, frontier.SourceContext(frontier.SourceSitemap), candidate.SourceContext())
	require.Equal(t, 2, candidate.DiscoveryMetadata().Depth())
	require.Equal(t, delay, *candidate.DiscoveryMetadata().DelayOverride())
}

func TestDiscoveryMetadataNilDelayOverride(t *testing.T) {
	meta := frontier.NewDiscoveryMetadata(0, nil)
	require.Nil(t, meta.DelayOverride())
}

func TestSetAddContainsRemove(t *testing.T) {
	s := frontier.NewSet[string]()

	require.Equal(t, 0, s.Size())
	require.False(t, s.Contains("a"))

	s.Add("a")
	s.Add("a")
	s.Add("b")
	require.Equal(t, 2, s.Size())
	require.True(t, s.Contains("a"))
	require.True(t, s.Contains("b"))

	s.Remove("a")
	require.False(t, s.Contains("a"))
	require.Equal(t, 1, s.Size())

	s.Clear()
	require.Equal(t, 0, s.Size())
}

func TestFIFOQueueOrdering(t *testing.T) {
	q := frontier.NewFIFOQueue[int]()

	_, ok := q.Dequeue()
	require.False(t, ok, "empty queue must report no item")

	q.Enqueue(1)
	q.Enqueue(2)
	q.Enqueue(3)
	require.Equal(t, 3, q.Size())

	for want := 1; want <= 3; want++ {
		got, ok := q.Dequeue()
		require.True(t, ok)
		require.Equal(t, want, got)
	}
	require.Equal(t, 0, q.Size())
}
