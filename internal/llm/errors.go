package llm

import (
	"fmt"

	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/pkg/failure"
)

type LLMErrorCause string

const (
	ErrCauseTimeout            LLMErrorCause = "timeout"
	ErrCauseRateLimited        LLMErrorCause = "rate limited"
	ErrCauseNetworkFailure     LLMErrorCause = "network issues"
	ErrCauseNonOKStatus        LLMErrorCause = "non-ok status"
	ErrCauseJSONExtractFailed  LLMErrorCause = "failed to extract json from response"
	ErrCauseJSONParseFailed    LLMErrorCause = "failed to parse extracted json"
	ErrCauseSchemaInvalid      LLMErrorCause = "response failed schema validation"
)

// LLMError is the canonical error for the call layer. Retryable is set
// where each error is created: timeouts, rate limits, transport and read
// failures, 5xx statuses, and responses whose JSON cannot be extracted,
// parsed or validated are retryable; other non-OK statuses and failures to
// marshal or build the request are not.
type LLMError struct {
	Message   string
	Retryable bool
	Cause     LLMErrorCause
}

func (e *LLMError) Error() string {
	return fmt.Sprintf("llm error: %s: %s", e.Cause, e.Message)
}

func (e *LLMError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *LLMError) IsRetryable() bool {
	return e.Retryable
}

// mapLLMErrorToMetadataCause is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapLLMErrorToMetadataCause(err *LLMError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseTimeout, ErrCauseRateLimited, ErrCauseNetworkFailure:
		return metadata.CauseNetworkFailure
	case ErrCauseJSONExtractFailed, ErrCauseJSONParseFailed, ErrCauseSchemaInvalid:
		return metadata.CauseContentInvalid
	default:
		return metadata.CauseUnknown
	}
}
