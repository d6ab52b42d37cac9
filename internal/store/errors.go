package store

import (
	"fmt"

	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/pkg/failure"
)

type StoreErrorCause string

const (
	ErrCauseOpenFailed     StoreErrorCause = "open failed"
	ErrCauseMigrationFailed StoreErrorCause = "migration failed"
	ErrCauseQueryFailed    StoreErrorCause = "query failed"
	ErrCauseScanFailed     StoreErrorCause = "scan failed"
	ErrCauseTxFailed       StoreErrorCause = "transaction failed"
)

type StoreError struct {
	Message   string
	Retryable bool
	Cause     StoreErrorCause
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error: %s: %s", e.Cause, e.Message)
}

func (e *StoreError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *StoreError) IsRetryable() bool {
	return e.Retryable
}

// mapStoreErrorToMetadataCause maps store-local error semantics to the
// canonical metadata.ErrorCause table. Observational only.
func mapStoreErrorToMetadataCause(err *StoreError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseOpenFailed, ErrCauseMigrationFailed:
		return metadata.CauseStorageFailure
	case ErrCauseQueryFailed, ErrCauseTxFailed:
		return metadata.CauseStorageFailure
	case ErrCauseScanFailed:
		return metadata.CauseInvariantViolation
	default:
		return metadata.CauseUnknown
	}
}
