package storage

import (
	"context"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"
)

// FailoverBackend serves from a durable primary until the primary fails once,
// then serves from the fallback for the rest of the process. Writes are
// mirrored to the fallback so it holds the latest values when it takes over.
type FailoverBackend struct {
	name     string
	primary  Backend
	fallback Backend
	failed   atomic.Bool
	logger   *zap.Logger
}

// NewFailoverBackend pairs a durable primary with an ephemeral fallback.
func NewFailoverBackend(name string, primary, fallback Backend, logger *zap.Logger) *FailoverBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FailoverBackend{
		name:     name,
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// Get reads from the primary, or the fallback once the primary has failed.
func (b *FailoverBackend) Get(ctx context.Context, key string) (string, error) {
	if !b.failed.Load() {
		val, err := b.primary.Get(ctx, key)
		if err == nil || errors.Is(err, ErrNotFound) {
			return val, err
		}
		b.trip("get", err)
	}
	return b.fallback.Get(ctx, key)
}

// Set writes to the fallback and, while healthy, to the primary.
func (b *FailoverBackend) Set(ctx context.Context, key, value string) error {
	if err := b.fallback.Set(ctx, key, value); err != nil {
		return err
	}
	if !b.failed.Load() {
		if err := b.primary.Set(ctx, key, value); err != nil {
			b.trip("set", err)
		}
	}
	return nil
}

// Remove deletes from the fallback and, while healthy, from the primary.
func (b *FailoverBackend) Remove(ctx context.Context, key string) error {
	if err := b.fallback.Remove(ctx, key); err != nil {
		return err
	}
	if !b.failed.Load() {
		if err := b.primary.Remove(ctx, key); err != nil {
			b.trip("remove", err)
		}
	}
	return nil
}

// Failed reports whether the primary has been abandoned.
func (b *FailoverBackend) Failed() bool {
	return b.failed.Load()
}

func (b *FailoverBackend) trip(op string, err error) {
	if b.failed.CompareAndSwap(false, true) {
		b.logger.Warn("durable storage failed, using memory",
			zap.String("store", b.name),
			zap.String("op", op),
			zap.Error(err))
	}
}

// Verify FailoverBackend implements Backend
var _ Backend = (*FailoverBackend)(nil)
