package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crawl.db")
	recorder := metadata.NewRecorder("store-test")
	s, err := Open(path, &recorder)
	require.Nil(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertPageInsertsNewRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.UpsertPage(ctx, "https://example.com/a", PageFields{
		ETag:          StringField(`"abc"`),
		Status:        IntField(200),
		Title:         StringField("A"),
		ContentStatus: ContentStatusField(StatusRaw),
	})
	require.Nil(t, err)

	page, found, err := s.GetPage(ctx, "https://example.com/a")
	require.Nil(t, err)
	require.True(t, found)
	require.Equal(t, `"abc"`, page.ETag)
	require.Equal(t, StatusRaw, page.ContentStatus)
}

func TestUpsertPagePreservesUnspecifiedFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.Nil(t, s.UpsertPage(ctx, "https://example.com/a", PageFields{
		ETag:          StringField(`"abc"`),
		Title:         StringField("A"),
		ContentStatus: ContentStatusField(StatusRaw),
	}))

	// Second upsert only bumps last_crawled; ETag/Title/ContentStatus must
	// survive unchanged.
	now := time.Now()
	require.Nil(t, s.UpsertPage(ctx, "https://example.com/a", PageFields{
		LastCrawled: TimeField(now),
	}))

	page, found, err := s.GetPage(ctx, "https://example.com/a")
	require.Nil(t, err)
	require.True(t, found)
	require.Equal(t, `"abc"`, page.ETag)
	require.Equal(t, "A", page.Title)
	require.Equal(t, StatusRaw, page.ContentStatus)
}

func TestPagesByStatusAndCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.Nil(t, s.UpsertPage(ctx, "https://example.com/a", PageFields{ContentStatus: ContentStatusField(StatusRaw)}))
	require.Nil(t, s.UpsertPage(ctx, "https://example.com/b", PageFields{ContentStatus: ContentStatusField(StatusRaw)}))
	require.Nil(t, s.UpsertPage(ctx, "https://example.com/c", PageFields{ContentStatus: ContentStatusField(StatusContexted)}))

	pages, err := s.PagesByStatus(ctx, StatusRaw)
	require.Nil(t, err)
	require.Len(t, pages, 2)

	count, err := s.CountPagesByStatus(ctx, StatusContexted)
	require.Nil(t, err)
	require.Equal(t, 1, count)
}

func TestPagesMatchingScopesToSessionURLsAndStatuses(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.Nil(t, s.UpsertPage(ctx, "https://example.com/a", PageFields{ContentStatus: ContentStatusField(StatusRaw)}))
	require.Nil(t, s.UpsertPage(ctx, "https://example.com/b", PageFields{ContentStatus: ContentStatusField(StatusFailed)}))
	require.Nil(t, s.UpsertPage(ctx, "https://example.com/c", PageFields{ContentStatus: ContentStatusField(StatusRaw)}))

	pages, err := s.PagesMatching(ctx,
		[]string{"https://example.com/a", "https://example.com/b"},
		[]ContentStatus{StatusRaw, StatusFailed, StatusProcessing},
	)
	require.Nil(t, err)
	require.Len(t, pages, 2)
}

func TestInsertSitemapURLsBatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.InsertSitemapURLs(ctx, []SitemapURLRecord{
		{URL: "https://example.com/a", Language: "en", Priority: 0.8},
		{URL: "https://example.com/b", Language: "fr", Priority: 0.5},
	})
	require.Nil(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.Nil(t, s.Close())
	require.Nil(t, s.Close())
}
