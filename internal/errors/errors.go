// Package errors provides categorized errors for the follow scanner.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/follow-scanner/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryValidation represents malformed caller input (4xx)
	CategoryValidation ErrorCategory = "validation"
	// CategoryNotFound represents a missing upstream resource
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryUpstream represents failures reported by the social-graph API
	CategoryUpstream ErrorCategory = "upstream"
	// CategoryNetwork represents transport failures talking to the upstream
	CategoryNetwork ErrorCategory = "network"
	// CategoryCache represents key-value store failures
	CategoryCache ErrorCategory = "cache"
	// CategoryRateLimit represents inbound rate limiting
	CategoryRateLimit ErrorCategory = "rate_limit"
	// CategorySystem represents everything else (5xx)
	CategorySystem ErrorCategory = "system"
)

// Error codes shared with the HTTP layer
const (
	CodeInvalidParameter  = "INVALID_PARAMETER"
	CodeNotFound          = "NOT_FOUND"
	CodeUpstreamError     = "UPSTREAM_ERROR"
	CodeNetworkError      = "UPSTREAM_UNREACHABLE"
	CodeCacheError        = "CACHE_ERROR"
	CodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	CodeInternalError     = "INTERNAL_ERROR"
	CodeConflict          = "CONFLICT"
	CodeUnauthorized      = "UNAUTHORIZED"
)

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// WithDetail returns a copy of the error with an extra detail attached
func (e *CategorizedError) WithDetail(key string, value interface{}) *CategorizedError {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value

	clone := *e
	clone.Details = details
	return &clone
}

// ToServiceError converts to the wire representation
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// NewInvalidParameterError creates a validation error naming the parameter
func NewInvalidParameterError(param string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       CodeInvalidParameter,
		Message:    fmt.Sprintf("invalid parameter '%s': %s", param, reason),
		Details: map[string]interface{}{
			"parameter": param,
			"reason":    reason,
		},
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string, id string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found: %s", resource, id),
		Details: map[string]interface{}{
			"resource": resource,
			"id":       id,
		},
	}
}

// NewUpstreamError creates an error for a non-success upstream response.
// Upstream 4xx statuses are passed through so callers see why the upstream
// refused the request; anything else becomes 502.
func NewUpstreamError(collection types.Collection, status int, body string) *CategorizedError {
	statusCode := http.StatusBadGateway
	if status >= 400 && status < 500 && status != http.StatusTooManyRequests {
		statusCode = status
	}
	return &CategorizedError{
		Category:   CategoryUpstream,
		StatusCode: statusCode,
		Code:       CodeUpstreamError,
		Message:    fmt.Sprintf("upstream error fetching %s: status %d", collection, status),
		Details: map[string]interface{}{
			"collection":     string(collection),
			"upstreamStatus": status,
			"upstreamBody":   body,
		},
	}
}

// NewNetworkError creates an error for a transport-level upstream failure
func NewNetworkError(collection types.Collection, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNetwork,
		StatusCode: http.StatusBadGateway,
		Code:       CodeNetworkError,
		Message:    fmt.Sprintf("could not reach upstream for %s", collection),
		Cause:      cause,
		Details: map[string]interface{}{
			"collection": string(collection),
		},
	}
}

// NewCacheError creates a cache error
func NewCacheError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryCache,
		StatusCode: http.StatusInternalServerError,
		Code:       CodeCacheError,
		Message:    fmt.Sprintf("cache error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewRateLimitError creates a rate limit error
func NewRateLimitError(tier types.UserTier, limit float64) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryRateLimit,
		StatusCode: http.StatusTooManyRequests,
		Code:       CodeRateLimitExceeded,
		Message:    "rate limit exceeded, please try again later",
		Details: map[string]interface{}{
			"tier":  string(tier),
			"limit": limit,
		},
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       CodeInternalError,
		Message:    message,
		Cause:      cause,
	}
}

// Categorize categorizes an existing error
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	var catErr *CategorizedError
	if stderrors.As(err, &catErr) {
		return catErr
	}

	var svcErr *types.ServiceError
	if stderrors.As(err, &svcErr) {
		return &CategorizedError{
			Category:   CategorySystem,
			StatusCode: http.StatusInternalServerError,
			Code:       svcErr.Code,
			Message:    svcErr.Message,
			Details:    svcErr.Details,
		}
	}

	return NewInternalError("unexpected error", err)
}

// GetHTTPStatusCode returns the HTTP status code for an error
func GetHTTPStatusCode(err error) int {
	if catErr := Categorize(err); catErr != nil {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsUpstream reports whether the error came from the upstream or the path to it
func IsUpstream(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}
	return catErr.Category == CategoryUpstream || catErr.Category == CategoryNetwork
}

// IsUserError determines if an error is a user error (4xx)
func IsUserError(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	return catErr.StatusCode >= 400 && catErr.StatusCode < 500
}

// IsSystemError determines if an error is a system error (5xx)
func IsSystemError(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	return catErr.StatusCode >= 500
}

// NewConflictError creates an error for a request that clashes with current state
func NewConflictError(resource string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusConflict,
		Code:       CodeConflict,
		Message:    fmt.Sprintf("%s: %s", resource, reason),
		Details: map[string]interface{}{
			"resource": resource,
			"reason":   reason,
		},
	}
}

// NewUnauthorizedError creates an error for a caller that failed authentication
func NewUnauthorizedError(reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusUnauthorized,
		Code:       CodeUnauthorized,
		Message:    reason,
	}
}
