package store

import "time"

// ContentStatus is the enrichment lifecycle field gating enrichment
// eligibility.
type ContentStatus string

const (
	StatusRaw         ContentStatus = "raw"
	StatusContexted   ContentStatus = "contexted"
	StatusRateLimited ContentStatus = "rate_limited"
	StatusTimeout     ContentStatus = "timeout"
	StatusFailed      ContentStatus = "failed"
	StatusProcessing  ContentStatus = "processing"
)

// Page is a crawled URL's durable record. URL is the
// canonical (normalized) identity.
type Page struct {
	URL           string
	ETag          string
	LastModified  string
	ContentHash   string
	Status        int
	LastCrawled   time.Time
	LastUpdated   time.Time
	Title         string
	FilePath      string
	ContentStatus ContentStatus
}

// PageFields carries a partial update for UpsertPage. Nil pointers mean
// "leave the stored value unchanged"; the
// ContentStatus pointer is the only field the enrichment orchestrator is
// allowed to set; the crawl orchestrator owns every other column.
type PageFields struct {
	ETag          *string
	LastModified  *string
	ContentHash   *string
	Status        *int
	LastCrawled   *time.Time
	LastUpdated   *time.Time
	Title         *string
	FilePath      *string
	ContentStatus *ContentStatus
}

func StringField(v string) *string             { return &v }
func IntField(v int) *int                       { return &v }
func TimeField(v time.Time) *time.Time          { return &v }
func ContentStatusField(v ContentStatus) *ContentStatus { return &v }

// SitemapURLRecord is a discovered sitemap URL row.
type SitemapURLRecord struct {
	URL             string
	DiscoveredFrom  string
	Language        string
	Priority        float64
	LastMod         string
	ChangeFreq      string
	Processed       bool
}
