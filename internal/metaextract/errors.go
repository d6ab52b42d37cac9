package metaextract

import (
	"fmt"

	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/pkg/failure"
)

type MetaExtractErrorCause string

const (
	ErrCauseJSONLDParseFailed MetaExtractErrorCause = "json-ld parse failed"
)

// MetaExtractError is non-fatal by construction: a broken JSON-LD block
// just means that source drops out of the precedence chain, it never
// aborts extraction.
type MetaExtractError struct {
	Message string
	Cause   MetaExtractErrorCause
}

func (e *MetaExtractError) Error() string {
	return fmt.Sprintf("metaextract error: %s: %s", e.Cause, e.Message)
}

func (e *MetaExtractError) Severity() failure.Severity {
	return failure.SeverityRecoverable
}

func (e *MetaExtractError) IsRetryable() bool {
	return false
}

func mapMetaExtractErrorToMetadataCause(err *MetaExtractError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseJSONLDParseFailed:
		return metadata.CauseContentInvalid
	default:
		return metadata.CauseUnknown
	}
}
