package documents

import (
	"fmt"

	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/pkg/failure"
)

type DocumentErrorCause string

const (
	ErrCauseOversize        DocumentErrorCause = "document oversize"
	ErrCauseHashComputation DocumentErrorCause = "hash computation failed"
	ErrCausePathError       DocumentErrorCause = "path error"
	ErrCauseWriteFailure    DocumentErrorCause = "write failed"
	ErrCauseDiskFull        DocumentErrorCause = "disk is full"
)

// DocumentError classifies failures while saving a binary document.
// Every cause here is non-retryable: an oversize body or a path error
// will not resolve itself on a second attempt within the same run.
type DocumentError struct {
	Message string
	Cause   DocumentErrorCause
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("documents error: %s", e.Cause)
}

func (e *DocumentError) Severity() failure.Severity {
	return failure.SeverityFatal
}

func (e *DocumentError) IsRetryable() bool {
	return false
}

// mapDocumentErrorToMetadataCause maps documents-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapDocumentErrorToMetadataCause(err *DocumentError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseOversize:
		return metadata.CauseContentInvalid
	case ErrCauseDiskFull, ErrCauseWriteFailure, ErrCausePathError:
		return metadata.CauseStorageFailure
	case ErrCauseHashComputation:
		return metadata.CauseInvariantViolation
	default:
		return metadata.CauseUnknown
	}
}
