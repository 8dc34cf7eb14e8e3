// Package errors provides the matcher's error taxonomy and its mapping onto
// HTTP statuses and BPMN workflow errors.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// User-visible failures.
	ErrCodeCatalogUnavailable ErrorCode = "CATALOG_UNAVAILABLE"
	ErrCodeInvalidProfile     ErrorCode = "INVALID_PROFILE"
	ErrCodeMatchTimeout       ErrorCode = "MATCH_TIMEOUT"

	// Recovered locally; never surfaced as a top-level failure.
	ErrCodeCategoryQueryFailed  ErrorCode = "CATEGORY_QUERY_FAILED"
	ErrCodeNarrationUnavailable ErrorCode = "NARRATION_UNAVAILABLE"
	ErrCodeCacheUnavailable     ErrorCode = "CACHE_UNAVAILABLE"
	ErrCodeEventPublishFailed   ErrorCode = "EVENT_PUBLISH_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error { return e.cause }

// Is matches any StandardError carrying the same code, so callers can test
// against the sentinel values below with errors.Is.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithMetadata attaches a key to the error's metadata and returns the error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// Sentinels for errors.Is comparisons.
var (
	ErrCatalogUnavailable   = &StandardError{Code: ErrCodeCatalogUnavailable}
	ErrInvalidProfile       = &StandardError{Code: ErrCodeInvalidProfile}
	ErrMatchTimeout         = &StandardError{Code: ErrCodeMatchTimeout}
	ErrCategoryQueryFailed  = &StandardError{Code: ErrCodeCategoryQueryFailed}
	ErrNarrationUnavailable = &StandardError{Code: ErrCodeNarrationUnavailable}
)

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewCatalogUnavailableError reports that the listing store could not be reached.
func NewCatalogUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCatalogUnavailable,
		Message:   "Resource catalog is unavailable",
		Details:   errDetails(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewInvalidProfileError rejects a malformed match request.
func NewInvalidProfileError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidProfile,
		Message:   "Invalid match request",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewMatchTimeoutError reports that the request deadline expired mid-match.
func NewMatchTimeoutError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeMatchTimeout,
		Message:   "Match request timed out",
		Details:   errDetails(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewCategoryQueryFailedError wraps a single category's gateway failure.
func NewCategoryQueryFailedError(category string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCategoryQueryFailed,
		Message:   "Category query failed",
		Details:   fmt.Sprintf("category: %s, error: %s", category, errDetails(err)),
		Retryable: true,
		Metadata:  map[string]interface{}{"category": category},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewNarrationUnavailableError wraps a text-generation failure.
func NewNarrationUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNarrationUnavailable,
		Message:   "Narration service unavailable",
		Details:   errDetails(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewCacheUnavailableError wraps a response cache failure.
func NewCacheUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCacheUnavailable,
		Message:   "Match cache unavailable",
		Details:   errDetails(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewEventPublishFailedError wraps an event bus failure.
func NewEventPublishFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEventPublishFailed,
		Message:   "Match event publish failed",
		Details:   errDetails(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewInternalError wraps anything unexpected.
func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   errDetails(err),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func errDetails(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ==========================
// 4. Error Conversion
// ==========================

// AsStandardError finds a StandardError in err's chain, or wraps err as internal.
func AsStandardError(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// HTTPStatus returns the response status for an error.
func HTTPStatus(err error) int {
	switch AsStandardError(err).Code {
	case ErrCodeInvalidProfile:
		return http.StatusBadRequest
	case ErrCodeCatalogUnavailable:
		return http.StatusServiceUnavailable
	case ErrCodeMatchTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// IsUserVisible reports whether an error kind may surface to the caller.
// Everything else degrades to a best-effort result.
func IsUserVisible(code ErrorCode) bool {
	switch code {
	case ErrCodeCatalogUnavailable, ErrCodeInvalidProfile, ErrCodeMatchTimeout, ErrCodeInternal:
		return true
	default:
		return false
	}
}

// GetRetryCount returns the recommended job retry count per error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeCatalogUnavailable:
		return 3
	case ErrCodeMatchTimeout:
		return 2
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// GetErrorCategory groups error codes for dashboards and logs.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "CATALOG") || strings.Contains(codeStr, "CATEGORY"):
		return "CATALOG"
	case strings.Contains(codeStr, "NARRATION"):
		return "AI"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	case strings.Contains(codeStr, "TIMEOUT"):
		return "TIMEOUT"
	case strings.Contains(codeStr, "CACHE") || strings.Contains(codeStr, "EVENT"):
		return "INFRASTRUCTURE"
	default:
		return "OTHER"
	}
}
