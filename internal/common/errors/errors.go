// Package errors provides standardized error handling for the research pipeline.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeSearchProviderFailed ErrorCode = "SEARCH_PROVIDER_FAILED"
	ErrCodeSearchTimeout        ErrorCode = "SEARCH_TIMEOUT"
	ErrCodeAllProvidersFailed   ErrorCode = "ALL_PROVIDERS_FAILED"

	ErrCodePlannerFailed  ErrorCode = "PLANNER_FAILED"
	ErrCodePlannerTimeout ErrorCode = "PLANNER_TIMEOUT"

	ErrCodeInvalidURL    ErrorCode = "INVALID_URL"
	ErrCodeScrapeBlocked ErrorCode = "SCRAPE_BLOCKED"
	ErrCodeScrapeFailed  ErrorCode = "SCRAPE_FAILED"

	ErrCodeGenerationFailed  ErrorCode = "GENERATION_FAILED"
	ErrCodeGenerationTimeout ErrorCode = "GENERATION_TIMEOUT"

	ErrCodeSignatureInvalid ErrorCode = "SIGNATURE_INVALID"
	ErrCodeStreamClosed     ErrorCode = "STREAM_CLOSED"
	ErrCodeRateLimited      ErrorCode = "RATE_LIMITED"

	ErrCodeRequestInvalid ErrorCode = "REQUEST_INVALID"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// NewSearchProviderFailedError creates a recoverable provider error; the chain
// advances to the next provider rather than surfacing it.
func NewSearchProviderFailedError(provider string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchProviderFailed,
		Message:   fmt.Sprintf("Search provider '%s' failed", provider),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSearchTimeoutError creates a provider timeout error, treated the same
// as any other provider failure by the chain.
func NewSearchTimeoutError(provider string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchTimeout,
		Message:   fmt.Sprintf("Search provider '%s' timed out", provider),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewAllProvidersFailedError records total provider exhaustion. The chain
// recovers with the synthetic fallback result set.
func NewAllProvidersFailedError(query string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAllProvidersFailed,
		Message:   "All search providers failed or are unconfigured",
		Details:   fmt.Sprintf("query: %s", query),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPlannerFailedError creates a retryable planner error.
func NewPlannerFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePlannerFailed,
		Message:   "Search planning failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPlannerTimeoutError creates a retryable planner timeout error.
func NewPlannerTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodePlannerTimeout,
		Message:   "Search planning timed out",
		Details:   "classification call exceeded timeout threshold",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidURLError creates a non-retryable URL validation error.
func NewInvalidURLError(rawURL, reason string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidURL,
		Message:   "URL failed normalization",
		Details:   fmt.Sprintf("url: %s, reason: %s", rawURL, reason),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewScrapeBlockedError creates a non-retryable SSRF-guard rejection.
func NewScrapeBlockedError(rawURL, reason string) *StandardError {
	return &StandardError{
		Code:      ErrCodeScrapeBlocked,
		Message:   "Scrape target rejected by SSRF guard",
		Details:   fmt.Sprintf("url: %s, reason: %s", rawURL, reason),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewScrapeFailedError creates a retryable page fetch error.
func NewScrapeFailedError(rawURL string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeScrapeFailed,
		Message:   "Page scrape failed",
		Details:   fmt.Sprintf("url: %s, error: %s", rawURL, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewGenerationFailedError creates a stream-terminating generation error.
func NewGenerationFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeGenerationFailed,
		Message:   "Answer generation failed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewGenerationTimeoutError creates a stream-terminating generation timeout.
func NewGenerationTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeGenerationTimeout,
		Message:   "Answer generation timed out",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSignatureInvalidError records a signature verification failure.
// This is logged as a security event; the persisted event is dropped.
func NewSignatureInvalidError(workflowID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSignatureInvalid,
		Message:   "Persisted payload signature verification failed",
		Details:   fmt.Sprintf("workflowId: %s", workflowID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStreamClosedError records a client disconnect mid-workflow.
func NewStreamClosedError(workflowID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeStreamClosed,
		Message:   "Client disconnected before workflow completion",
		Details:   fmt.Sprintf("workflowId: %s", workflowID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRateLimitedError creates a non-retryable rate limit rejection.
func NewRateLimitedError(key string, resetAt time.Time) *StandardError {
	return &StandardError{
		Code:      ErrCodeRateLimited,
		Message:   "Too many requests",
		Details:   fmt.Sprintf("key: %s, resetAt: %s", key, resetAt.Format(time.RFC3339)),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRequestInvalidError creates a non-retryable request validation error.
func NewRequestInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRequestInvalid,
		Message:   "Request body validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	switch code {
	case ErrCodeSearchProviderFailed,
		ErrCodeSearchTimeout,
		ErrCodePlannerFailed,
		ErrCodePlannerTimeout,
		ErrCodeScrapeFailed:
		return true
	default:
		return false
	}
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "SEARCH") || strings.Contains(codeStr, "PROVIDERS"):
		return "SEARCH"
	case strings.Contains(codeStr, "PLANNER"):
		return "PLANNER"
	case strings.Contains(codeStr, "URL") || strings.Contains(codeStr, "SCRAPE"):
		return "SOURCES"
	case strings.Contains(codeStr, "GENERATION"):
		return "GENERATION"
	case strings.Contains(codeStr, "SIGNATURE"):
		return "SECURITY"
	case strings.Contains(codeStr, "STREAM") || strings.Contains(codeStr, "RATE") || strings.Contains(codeStr, "REQUEST"):
		return "TRANSPORT"
	default:
		return "OTHER"
	}
}
