package store

/*
Responsibilities
- Own the embedded relational store of Page and Sitemap URL rows.
- Single-writer: callers may read concurrently, writes are serialized by
  the *sql.DB connection pool (capped to one open connection) the same
  way a single-writer SQLite file must be used.
- Merge semantics on UpsertPage: fields left nil in PageFields preserve
  the previously stored value.

modernc.org/sqlite keeps the store pure Go (no cgo); the schema is a
literal CREATE TABLE IF NOT EXISTS run at open. StoreError wraps every
driver-level failure before it reaches a caller, the same translation
idiom the storage sink uses.
*/

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/pkg/failure"

	_ "modernc.org/sqlite"
)

// Store is the scheduler- and enrichment-orchestrator-facing persistence
// port.
type Store interface {
	GetPage(ctx context.Context, url string) (Page, bool, failure.ClassifiedError)
	UpsertPage(ctx context.Context, url string, fields PageFields) failure.ClassifiedError
	PagesByStatus(ctx context.Context, status ContentStatus) ([]Page, failure.ClassifiedError)
	CountPagesByStatus(ctx context.Context, status ContentStatus) (int, failure.ClassifiedError)
	PagesMatching(ctx context.Context, urls []string, statuses []ContentStatus) ([]Page, failure.ClassifiedError)
	InsertSitemapURLs(ctx context.Context, records []SitemapURLRecord) failure.ClassifiedError
	Close() failure.ClassifiedError
}

// SQLiteStore is the default Store, backed by modernc.org/sqlite (pure
// Go, no cgo) so the store stays embedded in the binary.
type SQLiteStore struct {
	db           *sql.DB
	metadataSink metadata.MetadataSink
}

var _ Store = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS pages (
	url TEXT PRIMARY KEY,
	etag TEXT,
	last_modified TEXT,
	content_hash TEXT,
	status INTEGER,
	last_crawled TIMESTAMP,
	last_updated TIMESTAMP,
	title TEXT,
	file_path TEXT,
	content_status TEXT
);
CREATE INDEX IF NOT EXISTS idx_pages_content_status ON pages(content_status);

CREATE TABLE IF NOT EXISTS sitemap_urls (
	url TEXT PRIMARY KEY,
	discovered_from TEXT,
	language TEXT,
	priority REAL,
	lastmod TEXT,
	changefreq TEXT,
	processed INTEGER DEFAULT 0
);
`

// Open opens (creating if absent) the embedded store at path and runs the
// schema migration. A single connection is kept open so writes are
// naturally serialized.
func Open(path string, metadataSink metadata.MetadataSink) (*SQLiteStore, failure.ClassifiedError) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &StoreError{Message: err.Error(), Retryable: false, Cause: ErrCauseOpenFailed}
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, &StoreError{Message: err.Error(), Retryable: false, Cause: ErrCauseMigrationFailed}
	}

	return &SQLiteStore{db: db, metadataSink: metadataSink}, nil
}

func (s *SQLiteStore) recordErr(action string, err *StoreError, url string) {
	if s.metadataSink == nil {
		return
	}
	s.metadataSink.RecordError(
		time.Now(),
		"store",
		action,
		mapStoreErrorToMetadataCause(err),
		err.Error(),
		[]metadata.Attribute{metadata.NewAttr(metadata.AttrURL, url)},
	)
}

func (s *SQLiteStore) GetPage(ctx context.Context, url string) (Page, bool, failure.ClassifiedError) {
	row := s.db.QueryRowContext(ctx, `
		SELECT url, etag, last_modified, content_hash, status, last_crawled,
		       last_updated, title, file_path, content_status
		FROM pages WHERE url = ?`, url)

	var p Page
	var lastCrawled, lastUpdated sql.NullTime
	var contentStatus sql.NullString
	err := row.Scan(&p.URL, &p.ETag, &p.LastModified, &p.ContentHash, &p.Status,
		&lastCrawled, &lastUpdated, &p.Title, &p.FilePath, &contentStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return Page{}, false, nil
	}
	if err != nil {
		storeErr := &StoreError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailed}
		s.recordErr("GetPage", storeErr, url)
		return Page{}, false, storeErr
	}
	p.LastCrawled = lastCrawled.Time
	p.LastUpdated = lastUpdated.Time
	p.ContentStatus = ContentStatus(contentStatus.String)
	return p, true, nil
}

// UpsertPage inserts a new Page row, or merges fields into an existing
// one.
func (s *SQLiteStore) UpsertPage(ctx context.Context, url string, fields PageFields) failure.ClassifiedError {
	existing, found, err := s.GetPage(ctx, url)
	if err != nil {
		return err
	}
	if !found {
		existing = Page{URL: url, ContentStatus: StatusRaw}
	}

	merged := mergeFields(existing, fields)

	_, execErr := s.db.ExecContext(ctx, `
		INSERT INTO pages (url, etag, last_modified, content_hash, status,
			last_crawled, last_updated, title, file_path, content_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			etag=excluded.etag, last_modified=excluded.last_modified,
			content_hash=excluded.content_hash, status=excluded.status,
			last_crawled=excluded.last_crawled, last_updated=excluded.last_updated,
			title=excluded.title, file_path=excluded.file_path,
			content_status=excluded.content_status`,
		merged.URL, merged.ETag, merged.LastModified, merged.ContentHash, merged.Status,
		merged.LastCrawled, merged.LastUpdated, merged.Title, merged.FilePath, string(merged.ContentStatus),
	)
	if execErr != nil {
		storeErr := &StoreError{Message: execErr.Error(), Retryable: true, Cause: ErrCauseQueryFailed}
		s.recordErr("UpsertPage", storeErr, url)
		return storeErr
	}
	return nil
}

func mergeFields(existing Page, fields PageFields) Page {
	merged := existing
	if fields.ETag != nil {
		merged.ETag = *fields.ETag
	}
	if fields.LastModified != nil {
		merged.LastModified = *fields.LastModified
	}
	if fields.ContentHash != nil {
		merged.ContentHash = *fields.ContentHash
	}
	if fields.Status != nil {
		merged.Status = *fields.Status
	}
	if fields.LastCrawled != nil {
		merged.LastCrawled = *fields.LastCrawled
	}
	if fields.LastUpdated != nil {
		merged.LastUpdated = *fields.LastUpdated
	}
	if fields.Title != nil {
		merged.Title = *fields.Title
	}
	if fields.FilePath != nil {
		merged.FilePath = *fields.FilePath
	}
	if fields.ContentStatus != nil {
		merged.ContentStatus = *fields.ContentStatus
	}
	return merged
}

func (s *SQLiteStore) PagesByStatus(ctx context.Context, status ContentStatus) ([]Page, failure.ClassifiedError) {
	return s.queryPages(ctx, `SELECT url, etag, last_modified, content_hash, status, last_crawled,
		last_updated, title, file_path, content_status FROM pages WHERE content_status = ?`, status)
}

func (s *SQLiteStore) CountPagesByStatus(ctx context.Context, status ContentStatus) (int, failure.ClassifiedError) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pages WHERE content_status = ?`, string(status)).Scan(&count)
	if err != nil {
		storeErr := &StoreError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailed}
		s.recordErr("CountPagesByStatus", storeErr, "")
		return 0, storeErr
	}
	return count, nil
}

// PagesMatching scopes enrichment to the current session: Pages whose URL
// is in urls and whose content_status is one of statuses.
func (s *SQLiteStore) PagesMatching(ctx context.Context, urls []string, statuses []ContentStatus) ([]Page, failure.ClassifiedError) {
	if len(urls) == 0 || len(statuses) == 0 {
		return nil, nil
	}
	query := `SELECT url, etag, last_modified, content_hash, status, last_crawled,
		last_updated, title, file_path, content_status FROM pages WHERE url IN (` +
		placeholders(len(urls)) + `) AND content_status IN (` + placeholders(len(statuses)) + `)`

	args := make([]any, 0, len(urls)+len(statuses))
	for _, u := range urls {
		args = append(args, u)
	}
	for _, st := range statuses {
		args = append(args, string(st))
	}
	return s.queryPages(ctx, query, args...)
}

func (s *SQLiteStore) queryPages(ctx context.Context, query string, args ...any) ([]Page, failure.ClassifiedError) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		storeErr := &StoreError{Message: err.Error(), Retryable: true, Cause: ErrCauseQueryFailed}
		s.recordErr("queryPages", storeErr, "")
		return nil, storeErr
	}
	defer rows.Close()

	var pages []Page
	for rows.Next() {
		var p Page
		var lastCrawled, lastUpdated sql.NullTime
		var contentStatus sql.NullString
		if err := rows.Scan(&p.URL, &p.ETag, &p.LastModified, &p.ContentHash, &p.Status,
			&lastCrawled, &lastUpdated, &p.Title, &p.FilePath, &contentStatus); err != nil {
			storeErr := &StoreError{Message: err.Error(), Retryable: false, Cause: ErrCauseScanFailed}
			s.recordErr("queryPages", storeErr, "")
			return nil, storeErr
		}
		p.LastCrawled = lastCrawled.Time
		p.LastUpdated = lastUpdated.Time
		p.ContentStatus = ContentStatus(contentStatus.String)
		pages = append(pages, p)
	}
	return pages, nil
}

func placeholders(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			s += ","
		}
		s += "?"
	}
	return s
}

// InsertSitemapURLs inserts the discovered batch in a single transaction.
func (s *SQLiteStore) InsertSitemapURLs(ctx context.Context, records []SitemapURLRecord) failure.ClassifiedError {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &StoreError{Message: err.Error(), Retryable: true, Cause: ErrCauseTxFailed}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sitemap_urls (url, discovered_from, language, priority, lastmod, changefreq, processed)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			discovered_from=excluded.discovered_from, language=excluded.language,
			priority=excluded.priority, lastmod=excluded.lastmod, changefreq=excluded.changefreq`)
	if err != nil {
		tx.Rollback()
		return &StoreError{Message: err.Error(), Retryable: false, Cause: ErrCauseTxFailed}
	}
	defer stmt.Close()

	for _, r := range records {
		processed := 0
		if r.Processed {
			processed = 1
		}
		if _, err := stmt.ExecContext(ctx, r.URL, r.DiscoveredFrom, r.Language, r.Priority, r.LastMod, r.ChangeFreq, processed); err != nil {
			tx.Rollback()
			storeErr := &StoreError{Message: err.Error(), Retryable: true, Cause: ErrCauseTxFailed}
			s.recordErr("InsertSitemapURLs", storeErr, r.URL)
			return storeErr
		}
	}

	if err := tx.Commit(); err != nil {
		return &StoreError{Message: err.Error(), Retryable: true, Cause: ErrCauseTxFailed}
	}
	return nil
}

// Close is idempotent: a second call on an already-closed store returns
// nil rather than erroring.
func (s *SQLiteStore) Close() failure.ClassifiedError {
	if s.db == nil {
		return nil
	}
	db := s.db
	s.db = nil
	if err := db.Close(); err != nil {
		return &StoreError{Message: err.Error(), Retryable: false, Cause: ErrCauseOpenFailed}
	}
	return nil
}
