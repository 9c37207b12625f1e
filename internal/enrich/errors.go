// Error classification for LLM API calls.
// Classifies provider errors into retry, fallback, or fail actions so the
// tagging chain knows whether to retry a model, move to the next one, or
// give up.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorAction defines what to do after an error.
type ErrorAction int

const (
	// ActionRetry means the same model should be retried (transient error).
	ActionRetry ErrorAction = iota
	// ActionFallback means the next model/provider should be tried (quota/billing).
	ActionFallback
	// ActionFail means the request should fail immediately (permanent error).
	ActionFail
)

// String returns a human-readable name for the action.
func (a ErrorAction) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionFallback:
		return "fallback"
	case ActionFail:
		return "fail"
	default:
		return "unknown"
	}
}

// LLMError wraps provider errors with classification metadata.
type LLMError struct {
	// Err is the underlying error.
	Err error
	// StatusCode is the HTTP status code (0 if not applicable).
	StatusCode int
	// Provider identifies which provider produced the error.
	Provider Provider
}

// Error implements the error interface.
func (e *LLMError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s API error (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s API error: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *LLMError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with provider context and classification.
func WrapError(err error, provider Provider, statusCode int) error {
	if err == nil {
		return nil
	}
	return &LLMError{
		Err:        err,
		StatusCode: statusCode,
		Provider:   provider,
	}
}

// ClassifyError determines the action to take for an error.
//
// Classification rules:
//   - Context canceled: fail (caller gave up)
//   - Context deadline: retry (timeout may be transient)
//   - HTTP 429, 5xx: retry (rate limit, server error)
//   - Quota/billing keywords: fallback (this key is exhausted, another provider may work)
//   - HTTP 4xx (except 408/409/429): fail (bad request, auth)
//   - Unknown: retry (safe default for transient network issues)
func ClassifyError(err error) ErrorAction {
	if err == nil {
		return ActionFail
	}

	// Context cancellation is not retryable.
	if errors.Is(err, context.Canceled) {
		return ActionFail
	}
	// Deadline exceeded may succeed with retry.
	if errors.Is(err, context.DeadlineExceeded) {
		return ActionRetry
	}

	// Check for structured LLM errors first.
	var llmErr *LLMError
	if errors.As(err, &llmErr) && llmErr.StatusCode > 0 {
		return classifyStatusCode(llmErr.StatusCode)
	}

	// Fall back to string matching for SDK errors.
	errStr := strings.ToLower(err.Error())

	// Quota and billing issues: fallback to another provider.
	if containsAny(errStr, "quota", "billing", "insufficient_quota", "exceeded your current quota") {
		return ActionFallback
	}

	// Rate limits and server errors: retry with backoff.
	if containsAny(errStr, "rate limit", "rate_limit", "429", "too many requests",
		"500", "502", "503", "504", "internal server", "bad gateway",
		"service unavailable", "gateway timeout", "overloaded",
		"timeout", "deadline", "connection reset", "connection refused", "eof") {
		return ActionRetry
	}

	// Permanent client errors: fail immediately.
	if containsAny(errStr, "400", "401", "403", "404", "422",
		"invalid api key", "unauthorized", "forbidden", "permission denied",
		"not found", "invalid request", "unprocessable") {
		return ActionFail
	}

	// Unknown errors default to retry (likely transient network issues).
	return ActionRetry
}

// classifyStatusCode maps HTTP status codes to actions.
func classifyStatusCode(code int) ErrorAction {
	switch {
	case code == 429, code == 408, code == 409:
		return ActionRetry
	case code >= 500:
		return ActionRetry
	case code >= 400:
		return ActionFail
	default:
		return ActionRetry
	}
}

// IsRetryable reports whether the error should be retried on the same model.
func IsRetryable(err error) bool {
	return ClassifyError(err) == ActionRetry
}

// ShouldFallback reports whether the error means the credential or account
// behind it is spent, so another provider (or a later pass) is the only cure.
func ShouldFallback(err error) bool {
	return ClassifyError(err) == ActionFallback
}

// containsAny checks if s contains any of the substrings.
func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
