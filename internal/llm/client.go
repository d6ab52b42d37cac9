package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/pkg/failure"
	"github.com/rohmanhakim/docs-crawler/pkg/retry"
	"github.com/rohmanhakim/docs-crawler/pkg/timeutil"
	"golang.org/x/sync/semaphore"
)

/*
LLM call layer

Single entry point: call(prompt, schema) -> parsed | null, guarded by a
global semaphore capped at 3 concurrent calls. Ollama is the only wired
provider;
this package's Provider seam is where those would be added later, but no
unused SDK is imported for them ahead of need.

The request/retry/error-classification shape matches the fetcher's:
context timeouts, classified errors, pkg/retry.Retry around the whole
attempt.
*/

const (
	ollamaTimeout    = 60 * time.Second
	callSemaphoreCap = 3
	smoothingDelay   = 300 * time.Millisecond
)

// Provider dispatches a single prompt to a model backend and returns the
// raw model output string plus token usage it reported.
type Provider interface {
	Generate(ctx context.Context, prompt string) (text string, promptTokens int, outputTokens int, err failure.ClassifiedError)
}

// CallOutcome classifies why Call returned a nil result, so that callers
// can route HTTP 429s and request timeouts to their own content_status
// values instead of a generic failure.
type CallOutcome string

const (
	OutcomeSuccess     CallOutcome = "success"
	OutcomeRateLimited CallOutcome = "rate_limited"
	OutcomeTimeout     CallOutcome = "timeout"
	OutcomeFailed      CallOutcome = "failed"
)

// Caller is the scheduler/enrichment-facing port: one call, one parsed
// result or nil on exhaustion,
// plus the outcome the last attempt ended on.
type Caller interface {
	Call(ctx context.Context, sessionID string, prompt string, schema map[string]any) (map[string]any, CallOutcome)
}

type LLMClient struct {
	provider     Provider
	sem          *semaphore.Weighted
	retryParam   retry.RetryParam
	tracker      *Tracker
	sessions     *SessionManager
	metadataSink metadata.MetadataSink
	sleeper      timeutil.Sleeper
}

var _ Caller = (*LLMClient)(nil)

type realSleeper struct{}

func (realSleeper) Sleep(d time.Duration) { time.Sleep(d) }

// NewLLMClient wires the default Ollama provider against host/model,
// the process-wide token tracker, and a fresh session manager.
func NewLLMClient(host, model string, metadataSink metadata.MetadataSink) LLMClient {
	return NewLLMClientWithDeps(
		NewOllamaProvider(host, model),
		semaphore.NewWeighted(callSemaphoreCap),
		defaultLLMRetryParam(),
		DefaultTracker(),
		NewSessionManager(),
		metadataSink,
		realSleeper{},
	)
}

func defaultLLMRetryParam() retry.RetryParam {
	return retry.NewRetryParam(
		1*time.Second,
		0,
		1,
		3,
		timeutil.NewBackoffParam(1*time.Second, 2.0, 2*time.Second),
	)
}

func NewLLMClientWithDeps(
	provider Provider,
	sem *semaphore.Weighted,
	retryParam retry.RetryParam,
	tracker *Tracker,
	sessions *SessionManager,
	metadataSink metadata.MetadataSink,
	sleeper timeutil.Sleeper,
) LLMClient {
	return LLMClient{
		provider:     provider,
		sem:          sem,
		retryParam:   retryParam,
		tracker:      tracker,
		sessions:     sessions,
		metadataSink: metadataSink,
		sleeper:      sleeper,
	}
}

// OpenSession pushes cached document-level instructions.
func (c *LLMClient) OpenSession(id, cachedContext string) {
	c.sessions.Open(id, cachedContext)
}

func (c *LLMClient) CloseSession(id string) {
	c.sessions.Close(id)
}

// Call executes the full pipeline: acquire the global semaphore, apply
// the session's cached prefix, dispatch with retry + 300ms smoothing
// delay per attempt, extract and validate JSON. Returns nil plus the
// outcome the final attempt ended on when every attempt was exhausted.
func (c *LLMClient) Call(ctx context.Context, sessionID string, prompt string, schema map[string]any) (map[string]any, CallOutcome) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, OutcomeFailed
	}
	defer c.sem.Release(1)

	fullPrompt := prompt
	if sessionID != "" {
		fullPrompt = c.sessions.Prepend(sessionID, prompt)
	}

	// retry.Retry's exhaustion path wraps whatever task() last returned
	// into a generic *RetryError, losing the original LLMError.Cause; we
	// keep our own reference to it so the outcome can still be classified
	// after exhaustion.
	var lastErr *LLMError
	task := func() (map[string]any, failure.ClassifiedError) {
		c.sleeper.Sleep(smoothingDelay)

		text, promptTokens, outputTokens, err := c.provider.Generate(ctx, fullPrompt)
		if err != nil {
			if llmErr, ok := err.(*LLMError); ok {
				lastErr = llmErr
			}
			return nil, err
		}

		span, ok := extractJSONSpan(text)
		if !ok {
			lastErr = &LLMError{
				Message:   "no json object found in model response",
				Retryable: true,
				Cause:     ErrCauseJSONExtractFailed,
			}
			return nil, lastErr
		}

		parsed, parseErr := parseJSONObject(span)
		if parseErr != nil {
			lastErr = &LLMError{
				Message:   fmt.Sprintf("failed to parse json: %v", parseErr),
				Retryable: true,
				Cause:     ErrCauseJSONParseFailed,
			}
			return nil, lastErr
		}

		if !validateAgainstSchema(parsed, schema) {
			lastErr = &LLMError{
				Message:   "response failed schema validation",
				Retryable: true,
				Cause:     ErrCauseSchemaInvalid,
			}
			return nil, lastErr
		}

		lastErr = nil
		c.tracker.Add(promptTokens, outputTokens)
		return parsed, nil
	}

	result := retry.Retry(c.retryParam, task)
	if !result.IsSuccess() {
		c.recordExhaustion(result.Err())
		return nil, classifyOutcome(lastErr)
	}
	return result.Value(), OutcomeSuccess
}

// classifyOutcome maps the last attempt's LLMError to the content_status
// family the enrichment orchestrator routes failures into.
func classifyOutcome(err *LLMError) CallOutcome {
	if err == nil {
		return OutcomeFailed
	}
	switch err.Cause {
	case ErrCauseRateLimited:
		return OutcomeRateLimited
	case ErrCauseTimeout:
		return OutcomeTimeout
	default:
		return OutcomeFailed
	}
}

func (c *LLMClient) recordExhaustion(err failure.ClassifiedError) {
	if c.metadataSink == nil || err == nil {
		return
	}
	c.metadataSink.RecordError(
		time.Now(),
		"llm",
		"LLMClient.Call",
		metadata.CauseRetryFailure,
		err.Error(),
		nil,
	)
}

// --- Ollama provider ---

type ollamaRequestOptions struct {
	Temperature   float64 `json:"temperature"`
	TopP          float64 `json:"top_p"`
	RepeatPenalty float64 `json:"repeat_penalty"`
}

type ollamaRequest struct {
	Model   string                `json:"model"`
	Prompt  string                `json:"prompt"`
	Stream  bool                  `json:"stream"`
	Format  string                `json:"format"`
	Options ollamaRequestOptions  `json:"options"`
}

type ollamaResponse struct {
	Response       string `json:"response"`
	PromptEvalCount int   `json:"prompt_eval_count"`
	EvalCount       int   `json:"eval_count"`
}

type OllamaProvider struct {
	host       string
	model      string
	httpClient *http.Client
}

var _ Provider = (*OllamaProvider)(nil)

func NewOllamaProvider(host, model string) *OllamaProvider {
	return &OllamaProvider{host: host, model: model, httpClient: &http.Client{}}
}

func NewOllamaProviderWithClient(host, model string, httpClient *http.Client) *OllamaProvider {
	return &OllamaProvider{host: host, model: model, httpClient: httpClient}
}

func (p *OllamaProvider) Generate(ctx context.Context, prompt string) (string, int, int, failure.ClassifiedError) {
	reqCtx, cancel := context.WithTimeout(ctx, ollamaTimeout)
	defer cancel()

	body, marshalErr := json.Marshal(ollamaRequest{
		Model:  p.model,
		Prompt: prompt,
		Stream: false,
		Format: "json",
		Options: ollamaRequestOptions{
			Temperature:   0.1,
			TopP:          0.9,
			RepeatPenalty: 1.1,
		},
	})
	if marshalErr != nil {
		return "", 0, 0, &LLMError{
			Message:   fmt.Sprintf("failed to marshal request: %v", marshalErr),
			Retryable: false,
			Cause:     ErrCauseJSONParseFailed,
		}
	}

	req, reqErr := http.NewRequestWithContext(reqCtx, http.MethodPost, p.host+"/api/generate", bytes.NewReader(body))
	if reqErr != nil {
		return "", 0, 0, &LLMError{
			Message:   fmt.Sprintf("failed to create request: %v", reqErr),
			Retryable: false,
			Cause:     ErrCauseNetworkFailure,
		}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, doErr := p.httpClient.Do(req)
	if doErr != nil {
		if reqCtx.Err() != nil {
			return "", 0, 0, &LLMError{
				Message:   fmt.Sprintf("ollama request timed out: %v", doErr),
				Retryable: true,
				Cause:     ErrCauseTimeout,
			}
		}
		return "", 0, 0, &LLMError{
			Message:   fmt.Sprintf("ollama request failed: %v", doErr),
			Retryable: true,
			Cause:     ErrCauseNetworkFailure,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", 0, 0, &LLMError{
			Message:   "ollama returned status 429",
			Retryable: true,
			Cause:     ErrCauseRateLimited,
		}
	}

	if resp.StatusCode != http.StatusOK {
		return "", 0, 0, &LLMError{
			Message:   fmt.Sprintf("ollama returned status %d", resp.StatusCode),
			Retryable: resp.StatusCode >= 500,
			Cause:     ErrCauseNonOKStatus,
		}
	}

	raw, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return "", 0, 0, &LLMError{
			Message:   fmt.Sprintf("failed to read ollama response: %v", readErr),
			Retryable: true,
			Cause:     ErrCauseNetworkFailure,
		}
	}

	var parsed ollamaResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", 0, 0, &LLMError{
			Message:   fmt.Sprintf("failed to decode ollama envelope: %v", err),
			Retryable: true,
			Cause:     ErrCauseJSONParseFailed,
		}
	}

	return parsed.Response, parsed.PromptEvalCount, parsed.EvalCount, nil
}
