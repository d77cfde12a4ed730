package lexicache

import (
	"context"
	"errors"
	"testing"
)

func TestLookupError(t *testing.T) {
	err := &LookupError{Message: "invalid lookup request", Cause: ErrEmptyTerm}

	if err.Error() != "invalid lookup request: lookup term is empty" {
		t.Errorf("unexpected error message: %s", err.Error())
	}

	if !errors.Is(err, ErrEmptyTerm) {
		t.Error("LookupError should unwrap to its cause")
	}
}

func TestLookupError_NoCause(t *testing.T) {
	err := &LookupError{Message: "language is required"}

	if err.Error() != "language is required" {
		t.Errorf("unexpected error message: %s", err.Error())
	}
}

func TestSourceError(t *testing.T) {
	cause := errors.New("connection refused")
	err := &SourceError{Message: "API call failed", Cause: cause, Retryable: true}

	expected := "source error: API call failed: connection refused"
	if err.Error() != expected {
		t.Errorf("unexpected error message: %s, want %s", err.Error(), expected)
	}

	if !errors.Is(err, cause) {
		t.Error("SourceError should unwrap to its cause")
	}

	if !err.Retryable {
		t.Error("SourceError should be retryable")
	}
}

func TestSourceError_NoCause(t *testing.T) {
	err := &SourceError{Message: "empty response"}

	if err.Error() != "source error: empty response" {
		t.Errorf("unexpected error message: %s", err.Error())
	}
}

func TestStreamError(t *testing.T) {
	err := &StreamError{TermKey: "hello|en|mono", Fragments: 2, Cause: context.Canceled}

	expected := `stream for "hello|en|mono" failed after 2 fragments: context canceled`
	if err.Error() != expected {
		t.Errorf("unexpected error message: %s, want %s", err.Error(), expected)
	}

	if !errors.Is(err, context.Canceled) {
		t.Error("StreamError should unwrap to its cause")
	}
}
