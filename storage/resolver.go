package storage

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
)

// ErrNoDurableBackend is reported when a Resolver has no opener configured.
var ErrNoDurableBackend = errors.New("no durable backend configured")

// Opener acquires the durable backend for a store name. It must not perform
// I/O; connection and schema work happen on the first backend operation.
type Opener func(storeName string) (Backend, error)

// Result is the outcome of resolving a store name.
type Result struct {
	Backend Backend // never nil
	Durable bool    // false when Backend is the in-memory fallback
	Err     error   // why the durable backend could not be used
}

// Resolver hands out backends per logical store name.
type Resolver struct {
	open   Opener
	logger *zap.Logger

	mu      sync.Mutex
	memory  map[string]*MemoryBackend
	closers []io.Closer
}

// ResolverOption is a functional option for configuring the Resolver.
type ResolverOption func(*Resolver)

// WithResolverLogger sets the logger used for fallback reports.
func WithResolverLogger(logger *zap.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// NewResolver creates a Resolver. A nil opener resolves every store to memory.
func NewResolver(open Opener, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		open:   open,
		logger: zap.NewNop(),
		memory: make(map[string]*MemoryBackend),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the backend for storeName. When the durable backend cannot
// be opened, the Result carries the process-scoped memory backend for that
// name along with the reason.
func (r *Resolver) Resolve(storeName string) Result {
	mem := r.memoryFor(storeName)

	if r.open == nil {
		return Result{Backend: mem, Err: ErrNoDurableBackend}
	}

	backend, err := r.safeOpen(storeName)
	if err == nil && backend == nil {
		err = ErrNoDurableBackend
	}
	if err != nil {
		r.logger.Warn("durable storage unavailable, using memory",
			zap.String("store", storeName),
			zap.Error(err))
		return Result{Backend: mem, Err: &Error{Op: "open", Key: storeName, Cause: err}}
	}

	r.track(backend)
	return Result{
		Backend: NewFailoverBackend(storeName, backend, mem, r.logger),
		Durable: true,
	}
}

// Close closes every durable backend handed out that implements io.Closer.
// Backends shared between store names are closed once.
func (r *Resolver) Close() error {
	r.mu.Lock()
	closers := r.closers
	r.closers = nil
	r.mu.Unlock()

	var errs []error
	for _, c := range closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Resolver) track(backend Backend) {
	c, ok := backend.(io.Closer)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.closers {
		if existing == c {
			return
		}
	}
	r.closers = append(r.closers, c)
}

// safeOpen runs the opener, converting a panic into an error.
func (r *Resolver) safeOpen(storeName string) (backend Backend, err error) {
	defer func() {
		if p := recover(); p != nil {
			backend, err = nil, fmt.Errorf("opener panicked: %v", p)
		}
	}()
	return r.open(storeName)
}

func (r *Resolver) memoryFor(storeName string) *MemoryBackend {
	r.mu.Lock()
	defer r.mu.Unlock()

	mem, ok := r.memory[storeName]
	if !ok {
		mem = NewMemoryBackend()
		r.memory[storeName] = mem
	}
	return mem
}

// SQLiteOpener returns an opener sharing one SQLite database across stores.
func SQLiteOpener(path string) Opener {
	var (
		once    sync.Once
		backend *SQLiteBackend
		openErr error
	)
	return func(string) (Backend, error) {
		once.Do(func() {
			backend, openErr = OpenSQLite(path)
		})
		if openErr != nil {
			return nil, openErr
		}
		return backend, nil
	}
}

// RedisOpener returns an opener sharing one Redis client across stores.
func RedisOpener(cfg RedisConfig) Opener {
	var (
		once    sync.Once
		backend *RedisBackend
		openErr error
	)
	return func(string) (Backend, error) {
		once.Do(func() {
			backend, openErr = NewRedisBackend(cfg)
		})
		if openErr != nil {
			return nil, openErr
		}
		return backend, nil
	}
}
