package provider

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error codes shared by every remote service client.
const (
	CodeNotFound        = "NOT_FOUND"
	CodeRateLimited     = "RATE_LIMITED"
	CodeAuthFailed      = "AUTH_FAILED"
	CodeUnavailable     = "UNAVAILABLE"
	CodeResolverMiss    = "RESOLVER_MISS"
	CodeCacheFailed     = "CACHE_FAILED"
	CodeCatalogMismatch = "CATALOG_MISMATCH"
	CodeUnknown         = "UNKNOWN"
)

// ProviderError represents an error from a remote service.
type ProviderError struct {
	Provider   string
	Code       string
	Message    string
	Retry      bool
	RetryAfter int // Seconds to wait before retry

	// Suggestions holds alternate queries when a search came back empty.
	Suggestions []string
}

func (e *ProviderError) Error() string {
	return e.Message
}

// IsCode reports whether err wraps a ProviderError with the given code.
func IsCode(err error, code string) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Code == code
	}
	return false
}

// CodeOf returns the ProviderError code carried by err, or CodeUnknown.
func CodeOf(err error) string {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Code
	}
	return CodeUnknown
}

// NotFound builds a NOT_FOUND error.
func NotFound(provider, format string, args ...any) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Code:     CodeNotFound,
		Message:  fmt.Sprintf(format, args...),
	}
}

// StatusError maps an HTTP status to a ProviderError. body is included in the
// message when present.
func StatusError(provider string, status int, body string) *ProviderError {
	label := strings.ToUpper(provider)
	detail := strings.TrimSpace(body)
	if len(detail) > 200 {
		detail = detail[:200]
	}
	msg := fmt.Sprintf("%s returned %d %s", label, status, http.StatusText(status))
	if detail != "" {
		msg += ": " + detail
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &ProviderError{Provider: provider, Code: CodeAuthFailed, Message: label + " authentication failed: " + msg}
	case status == http.StatusNotFound:
		return &ProviderError{Provider: provider, Code: CodeNotFound, Message: msg}
	case status == http.StatusTooManyRequests:
		return &ProviderError{Provider: provider, Code: CodeRateLimited, Message: label + " rate limit exceeded", Retry: true, RetryAfter: 10}
	case status >= 500:
		return &ProviderError{Provider: provider, Code: CodeUnavailable, Message: label + " service unavailable: " + msg, Retry: true, RetryAfter: 5}
	default:
		return &ProviderError{Provider: provider, Code: CodeUnknown, Message: msg}
	}
}
