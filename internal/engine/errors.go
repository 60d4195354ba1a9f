// internal/engine/errors.go
package engine

import (
	"errors"
	"fmt"
)

// ErrorCode represents a specific failure class in the pipeline
type ErrorCode string

const (
	ErrCodeNavigation ErrorCode = "NAVIGATION"
	ErrCodeExtraction ErrorCode = "EXTRACTION"
	ErrCodeStore      ErrorCode = "STORE"
	ErrCodeConfig     ErrorCode = "CONFIG"
)

// Sentinels for errors.Is; matching is by code.
var (
	ErrNavigation = &CrawlError{Code: ErrCodeNavigation}
	ErrExtraction = &CrawlError{Code: ErrCodeExtraction}
	ErrStore      = &CrawlError{Code: ErrCodeStore}
	ErrConfig     = &CrawlError{Code: ErrCodeConfig}
)

// CrawlError wraps errors with the URL they concern and whether the caller
// may try again.
type CrawlError struct {
	Code       ErrorCode
	Message    string
	URL        string
	Underlying error
	Retry      bool
}

// Error implements the error interface
func (e *CrawlError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.URL != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.URL)
	}
	if e.Underlying != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Underlying)
	}
	return msg
}

// Unwrap returns the underlying error
func (e *CrawlError) Unwrap() error {
	return e.Underlying
}

// Is checks if the error matches the target
func (e *CrawlError) Is(target error) bool {
	if t, ok := target.(*CrawlError); ok {
		return e.Code == t.Code
	}
	return errors.Is(e.Underlying, target)
}

// NewNavigationError reports a page that could not be loaded (network failure
// or timeout). Navigation errors are retryable at the page level.
func NewNavigationError(url string, err error) *CrawlError {
	return &CrawlError{
		Code:       ErrCodeNavigation,
		Message:    "navigation failed",
		URL:        url,
		Underlying: err,
		Retry:      true,
	}
}

// NewExtractionError reports a rendered page that lacks a required field.
func NewExtractionError(url, message string, err error) *CrawlError {
	return &CrawlError{
		Code:       ErrCodeExtraction,
		Message:    message,
		URL:        url,
		Underlying: err,
	}
}

// NewStoreError reports a failed or rolled back write.
func NewStoreError(message string, err error) *CrawlError {
	return &CrawlError{
		Code:       ErrCodeStore,
		Message:    message,
		Underlying: err,
	}
}

// NewConfigError reports invalid configuration detected at startup.
func NewConfigError(message string, err error) *CrawlError {
	return &CrawlError{
		Code:       ErrCodeConfig,
		Message:    message,
		Underlying: err,
	}
}

// IsRetryable reports whether err is a CrawlError marked for retry.
func IsRetryable(err error) bool {
	var ce *CrawlError
	if errors.As(err, &ce) {
		return ce.Retry
	}
	return false
}
