package enrich

import (
	"fmt"

	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/pkg/failure"
)

type EnrichErrorCause string

const (
	ErrCauseReadFailed       EnrichErrorCause = "failed to read markdown file"
	ErrCauseWriteFailed      EnrichErrorCause = "failed to write markdown file"
	ErrCauseBatchExhausted   EnrichErrorCause = "batch exhausted retries"
	ErrCauseStoreUpdateFailed EnrichErrorCause = "failed to update page row"
)

type EnrichError struct {
	Message   string
	Retryable bool
	Cause     EnrichErrorCause
}

func (e *EnrichError) Error() string {
	return fmt.Sprintf("enrich error: %s: %s", e.Cause, e.Message)
}

func (e *EnrichError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *EnrichError) IsRetryable() bool {
	return e.Retryable
}

func mapEnrichErrorToMetadataCause(err *EnrichError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseReadFailed, ErrCauseWriteFailed:
		return metadata.CauseStorageFailure
	case ErrCauseBatchExhausted:
		return metadata.CauseRetryFailure
	default:
		return metadata.CauseUnknown
	}
}
