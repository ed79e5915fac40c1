package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNoBillTexts means the bill has no text versions to analyze yet
	ErrNoBillTexts = errors.New("no bill texts found")
	// ErrNoTextExtracted means every document attempt came back empty
	ErrNoTextExtracted = errors.New("failed to extract any text from bill documents")
	// ErrBillNotFound means the bill is not stored locally
	ErrBillNotFound = errors.New("bill not found")
)

// UpstreamError covers every way a provider call can fail: unreachable host,
// non-OK HTTP status, a provider status other than "OK", or a malformed payload.
type UpstreamError struct {
	Op      string
	Target  string
	Status  string
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("upstream %s %s failed", e.Op, e.Target)
	if e.Status != "" {
		msg += fmt.Sprintf(" (status %s)", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// DateParseError is a date that is neither empty nor YYYY-MM-DD
type DateParseError struct {
	Field string
	Value string
	Err   error
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("parse %s date %q: %v", e.Field, e.Value, e.Err)
}

func (e *DateParseError) Unwrap() error { return e.Err }

// ParseFailure is model output that does not decode into the analysis schema.
// Raw holds the unwrapped text for diagnostics.
type ParseFailure struct {
	Raw string
	Err error
}

func (e *ParseFailure) Error() string {
	return fmt.Sprintf("failed to parse AI response: %v", e.Err)
}

func (e *ParseFailure) Unwrap() error { return e.Err }

// TransportFailure is a failed exchange with the AI provider
type TransportFailure struct {
	StatusCode int
	Err        error
}

func (e *TransportFailure) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("AI provider returned HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("AI provider request failed: %v", e.Err)
}

func (e *TransportFailure) Unwrap() error { return e.Err }
