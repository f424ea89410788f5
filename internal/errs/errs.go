// Package errs defines the error taxonomy shared across the scraper:
// navigation failures are transient and retried, extraction failures are
// contained to one target, setup failures abort the run.
package errs

import (
	"errors"
	"fmt"
)

// Type classifies a scrape error.
type Type string

const (
	// TypeNavigation is a transient network or page-load failure.
	TypeNavigation Type = "navigation"
	// TypeExtraction is a parse-level failure on a rendered page.
	TypeExtraction Type = "extraction"
	// TypeSetup is a fatal configuration or browser-engine failure.
	TypeSetup Type = "setup"
)

// ScrapeError carries the failure class and the target it occurred on.
type ScrapeError struct {
	Type   Type
	Target string
	Msg    string
	Err    error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		if e.Target != "" {
			return fmt.Sprintf("[%s] %s: %s: %v", e.Type, e.Target, e.Msg, e.Err)
		}
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Msg, e.Err)
	}
	if e.Target != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Type, e.Target, e.Msg)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Msg)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewNavigation creates a navigation error for a target.
func NewNavigation(target, msg string, err error) *ScrapeError {
	return &ScrapeError{Type: TypeNavigation, Target: target, Msg: msg, Err: err}
}

// NewExtraction creates an extraction error for a target.
func NewExtraction(target, msg string, err error) *ScrapeError {
	return &ScrapeError{Type: TypeExtraction, Target: target, Msg: msg, Err: err}
}

// NewSetup creates a fatal setup error.
func NewSetup(msg string, err error) *ScrapeError {
	return &ScrapeError{Type: TypeSetup, Msg: msg, Err: err}
}

// IsRetryable reports whether the error class is worth another attempt.
func IsRetryable(err error) bool {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Type == TypeNavigation
	}
	return false
}
