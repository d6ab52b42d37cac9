package sitemap

import (
	"fmt"

	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/pkg/failure"
)

type SitemapErrorCause string

const (
	ErrCauseFetchFailed  SitemapErrorCause = "fetch failed"
	ErrCauseOversize     SitemapErrorCause = "body exceeds size cap"
	ErrCauseParseFailed  SitemapErrorCause = "xml parse failed"
	ErrCauseTooManyHosts SitemapErrorCause = "too many recursive sitemap hops"
)

type SitemapError struct {
	Message   string
	Retryable bool
	Cause     SitemapErrorCause
}

func (e *SitemapError) Error() string {
	return fmt.Sprintf("sitemap error: %s: %s", e.Cause, e.Message)
}

func (e *SitemapError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *SitemapError) IsRetryable() bool {
	return e.Retryable
}

func mapSitemapErrorToMetadataCause(err *SitemapError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseFetchFailed:
		return metadata.CauseNetworkFailure
	case ErrCauseOversize, ErrCauseParseFailed:
		return metadata.CauseContentInvalid
	default:
		return metadata.CauseUnknown
	}
}
