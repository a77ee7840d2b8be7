package models

import (
	"errors"
	"fmt"
)

// Error codes used in output records and internal error handling.
const (
	// Fatal for the whole run.
	ErrCodeEngineStart     = "ENGINE_START_FAILED"
	ErrCodeEngineLifecycle = "ENGINE_LIFECYCLE"

	// Per-URL render failures. The run continues.
	ErrCodeTimeout     = "SCRAPE_TIMEOUT"
	ErrCodeNavigation  = "NAVIGATION_FAILED"
	ErrCodeReadability = "CONTENT_EXTRACTION_FAILED"

	// Best-effort cleanup, logged only.
	ErrCodeEngineStop = "ENGINE_STOP_FAILED"

	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error carried by failed output records.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ScrapeError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ScrapeError struct {
	Code    string
	Message string
	URL     string // set for render errors
	Err     error  // wrapped original error
}

func (e *ScrapeError) Error() string {
	prefix := e.Code
	if e.URL != "" {
		prefix = fmt.Sprintf("%s [%s]", e.Code, e.URL)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}

// NewRenderError creates a per-URL ScrapeError.
func NewRenderError(code, url, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, URL: url, Err: err}
}

// ToDetail converts an internal error to an output-facing ErrorDetail.
func (e *ScrapeError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// CodeOf returns the code of the first ScrapeError in err's chain,
// or ErrCodeInternal if there is none.
func CodeOf(err error) string {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrCodeInternal
}

// IsFatal reports whether err must abort the whole run.
func IsFatal(err error) bool {
	switch CodeOf(err) {
	case ErrCodeEngineStart, ErrCodeEngineLifecycle:
		return true
	}
	return false
}

// IsRenderError reports whether err is a recoverable per-URL failure.
func IsRenderError(err error) bool {
	switch CodeOf(err) {
	case ErrCodeTimeout, ErrCodeNavigation, ErrCodeReadability:
		return true
	}
	return false
}
