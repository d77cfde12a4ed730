package lexicache

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyTerm is returned when a lookup request has no term.
	ErrEmptyTerm = errors.New("lookup term is empty")
	// ErrNoSource is returned when the Dictionary has no source for the requested mode.
	ErrNoSource = errors.New("no lookup source configured")
)

// LookupError indicates a malformed lookup request.
type LookupError struct {
	Message string
	Cause   error
}

func (e *LookupError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *LookupError) Unwrap() error {
	return e.Cause
}

// SourceError indicates a lookup source failure (API error, rate limit, etc.).
type SourceError struct {
	Message   string
	Cause     error
	Retryable bool // Whether the operation can be retried
}

func (e *SourceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("source error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("source error: %s", e.Message)
}

func (e *SourceError) Unwrap() error {
	return e.Cause
}

// StreamError indicates a streamed lookup that ended before completing.
// Nothing is committed when a stream fails.
type StreamError struct {
	TermKey   string
	Fragments int // fragments received before the failure
	Cause     error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream for %q failed after %d fragments: %v", e.TermKey, e.Fragments, e.Cause)
}

func (e *StreamError) Unwrap() error {
	return e.Cause
}
