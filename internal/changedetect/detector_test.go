package changedetect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDecideBeforeFetchSkipsWhenYoungerThanMinAge(t *testing.T) {
	d := NewTieredDetector()
	now := time.Now()

	decision, fired := d.DecideBeforeFetch(AgeInput{
		Found:       true,
		LastCrawled: now.Add(-10 * time.Minute),
		MinAge:      time.Hour,
		Now:         now,
	})
	require.True(t, fired)
	require.True(t, decision.Unchanged)
	require.Equal(t, TierAge, decision.Tier)
}

func TestDecideBeforeFetchDoesNotFireWhenFastRecheckOverridesAge(t *testing.T) {
	d := NewTieredDetector()
	now := time.Now()

	_, fired := d.DecideBeforeFetch(AgeInput{
		Found:       true,
		LastCrawled: now.Add(-10 * time.Minute),
		LastUpdated: now.Add(-1 * time.Minute),
		MinAge:      time.Hour,
		FastRecheck: 5 * time.Minute,
		Now:         now,
	})
	require.False(t, fired)
}

func TestDecideAfterFetchNewPage(t *testing.T) {
	d := NewTieredDetector()
	decision := d.DecideAfterFetch(Input{Found: false})
	require.True(t, decision.New)
	require.False(t, decision.Unchanged)
}

func TestDecideAfterFetchETagMatchIsUnchanged(t *testing.T) {
	d := NewTieredDetector()
	decision := d.DecideAfterFetch(Input{
		Found:        true,
		PriorETag:    `"abc"`,
		ResponseETag: `"abc"`,
	})
	require.True(t, decision.Unchanged)
	require.Equal(t, TierETag, decision.Tier)
}

func TestDecideAfterFetchLastModifiedMatchIsUnchanged(t *testing.T) {
	d := NewTieredDetector()
	decision := d.DecideAfterFetch(Input{
		Found:                true,
		PriorLastModified:    "Wed, 21 Oct 2015 07:28:00 GMT",
		ResponseLastModified: "Wed, 21 Oct 2015 07:28:00 GMT",
	})
	require.True(t, decision.Unchanged)
	require.Equal(t, TierLastModified, decision.Tier)
}

func TestDecideAfterFetchHashMatchIsUnchanged(t *testing.T) {
	d := NewTieredDetector()
	content := []byte("# Title\n\nSame body.\n")
	hash := FormatHash(RollingHash32(content))

	decision := d.DecideAfterFetch(Input{
		Found:            true,
		PriorContentHash: hash,
		ExtractedContent: content,
	})
	require.True(t, decision.Unchanged)
	require.Equal(t, TierHash, decision.Tier)
}

func TestDecideAfterFetchChangedWhenNothingMatches(t *testing.T) {
	d := NewTieredDetector()
	decision := d.DecideAfterFetch(Input{
		Found:            true,
		PriorContentHash: FormatHash(RollingHash32([]byte("old"))),
		ExtractedContent: []byte("new"),
	})
	require.False(t, decision.Unchanged)
	require.Equal(t, TierChanged, decision.Tier)
}

func TestChangeDetectorMonotonicity(t *testing.T) {
	// If none of ETag, Last-Modified, or hash change between two
	// fetches of the same URL, the detector returns unchanged the second
	// time.
	d := NewTieredDetector()
	content := []byte("stable content")
	in := Input{
		Found:                true,
		PriorETag:            `"v1"`,
		ResponseETag:         `"v1"`,
		PriorLastModified:    "Mon",
		ResponseLastModified: "Mon",
		PriorContentHash:     FormatHash(RollingHash32(content)),
		ExtractedContent:     content,
	}
	first := d.DecideAfterFetch(in)
	second := d.DecideAfterFetch(in)
	require.True(t, first.Unchanged)
	require.True(t, second.Unchanged)
}

func TestConditionalHeadersBuildsBothHeaders(t *testing.T) {
	d := NewTieredDetector()
	headers := d.ConditionalHeaders(`"abc"`, "Mon, 01 Jan 2024 00:00:00 GMT")
	require.Equal(t, `"abc"`, headers["If-None-Match"])
	require.Equal(t, "Mon, 01 Jan 2024 00:00:00 GMT", headers["If-Modified-Since"])
}

func TestStatsAccumulatePerTier(t *testing.T) {
	d := NewTieredDetector()
	d.DecideAfterFetch(Input{Found: false})
	d.DecideAfterFetch(Input{Found: true, PriorETag: `"a"`, ResponseETag: `"a"`})

	stats := d.Stats()
	require.Equal(t, 1, stats.New)
	require.Equal(t, 1, stats.SkippedByETag)
}
