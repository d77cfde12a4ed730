// Package storage provides the key-value backends persisted stores write to,
// and the Resolver that picks a durable backend or falls back to memory.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// Logical store names. Each is persisted and resolved independently.
const (
	StoreSession   = "lexicache-session"
	StoreWordCache = "lexicache-word-cache"
	StoreVoice     = "lexicache-voice"
	StoreHistory   = "lexicache-history"
	StoreFavorites = "lexicache-favorites"
)

// StoreNames lists every logical store in a stable order.
var StoreNames = []string{
	StoreSession,
	StoreWordCache,
	StoreVoice,
	StoreHistory,
	StoreFavorites,
}

// ErrNotFound is returned by Backend.Get when the key has no value.
var ErrNotFound = errors.New("storage: key not found")

// Backend is the interface for key-value persistence.
type Backend interface {
	// Get returns the stored value, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}

// Error indicates a backend operation failure.
type Error struct {
	Op    string // get, set, remove, open
	Key   string
	Cause error
}

func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Cause)
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
