// Package store wraps application state in a container that persists a
// selected subset of that state on every mutation and rehydrates it at
// construction.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ZaguanLabs/lexicache/storage"
)

// DefaultOpTimeout bounds each backend read or write.
const DefaultOpTimeout = 5 * time.Second

// Envelope is the persisted snapshot shape.
type Envelope struct {
	State   json.RawMessage `json:"state"`
	Version int             `json:"version"`
}

// Listener is notified after every state change with the new and previous state.
type Listener[S any] func(state, prev S)

// Partialize selects what gets persisted. The returned value must marshal to
// JSON with the same field names S uses, so it can be merged back into S.
type Partialize[S any] func(S) any

// Migrate upgrades a persisted state written under an older schema version.
type Migrate func(state json.RawMessage, fromVersion int) (json.RawMessage, error)

// Store holds one piece of application state and mirrors it to a backend.
type Store[S any] struct {
	name       string
	version    int
	init       func() S
	partialize Partialize[S]
	migrate    Migrate
	opTimeout  time.Duration
	logger     *zap.Logger

	backend storage.Backend
	durable bool

	mu          sync.Mutex // serializes SetState and persistence
	state       S
	lastWritten string

	listenersMu sync.Mutex
	listeners   map[int]Listener[S]
	nextID      int
}

// Option is a functional option for configuring a Store.
type Option[S any] func(*Store[S])

// WithPartialize sets the function selecting the persisted subset of state.
// Without it the full state is persisted.
func WithPartialize[S any](fn Partialize[S]) Option[S] {
	return func(s *Store[S]) {
		s.partialize = fn
	}
}

// WithVersion sets the schema version written with every snapshot.
func WithVersion[S any](version int) Option[S] {
	return func(s *Store[S]) {
		s.version = version
	}
}

// WithMigrate sets the function upgrading snapshots with an older version.
func WithMigrate[S any](fn Migrate) Option[S] {
	return func(s *Store[S]) {
		s.migrate = fn
	}
}

// WithLogger sets the logger used for recovered storage failures.
func WithLogger[S any](logger *zap.Logger) Option[S] {
	return func(s *Store[S]) {
		s.logger = logger
	}
}

// WithOpTimeout bounds each backend operation. Non-positive values keep
// DefaultOpTimeout.
func WithOpTimeout[S any](d time.Duration) Option[S] {
	return func(s *Store[S]) {
		if d > 0 {
			s.opTimeout = d
		}
	}
}

// New creates a store named name. init produces the default state; it is
// called again whenever a fresh default is needed, so it must not share
// mutable values between calls. Any snapshot previously persisted under name
// is merged onto the defaults before New returns.
func New[S any](name string, resolver *storage.Resolver, init func() S, opts ...Option[S]) *Store[S] {
	s := &Store[S]{
		name:      name,
		version:   1,
		init:      init,
		opTimeout: DefaultOpTimeout,
		logger:    zap.NewNop(),
		listeners: make(map[int]Listener[S]),
	}
	for _, opt := range opts {
		opt(s)
	}

	res := resolver.Resolve(name)
	s.backend = res.Backend
	s.durable = res.Durable
	if res.Err != nil {
		s.logger.Debug("store is not durable", zap.String("store", name), zap.Error(res.Err))
	}

	s.state = s.load()
	return s
}

// Name returns the logical store name.
func (s *Store[S]) Name() string {
	return s.name
}

// Durable reports whether the store resolved a durable backend.
func (s *Store[S]) Durable() bool {
	return s.durable
}

// GetState returns the current state.
func (s *Store[S]) GetState() S {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetState applies update to the current state, persists the result and
// notifies subscribers. Persistence failures are logged, never returned.
// Updates are applied in call order.
func (s *Store[S]) SetState(update func(S) S) {
	s.mu.Lock()
	prev := s.state
	next := update(prev)
	s.state = next
	s.persist(next)
	s.mu.Unlock()

	s.notify(next, prev)
}

// Subscribe registers fn for state changes and returns a function that
// removes it.
func (s *Store[S]) Subscribe(fn Listener[S]) (unsubscribe func()) {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

// Rehydrate replaces the in-memory state with defaults merged with the
// persisted snapshot, and notifies subscribers.
func (s *Store[S]) Rehydrate() {
	s.mu.Lock()
	prev := s.state
	s.state = s.load()
	next := s.state
	s.mu.Unlock()

	s.notify(next, prev)
}

// ClearStorage removes the persisted snapshot. In-memory state is unchanged.
func (s *Store[S]) ClearStorage() {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()

	if err := s.backend.Remove(ctx, s.name); err != nil {
		s.logger.Warn("clearing persisted state failed", zap.String("store", s.name), zap.Error(err))
	}
	s.lastWritten = ""
}

// load returns defaults merged with the persisted snapshot. Any read,
// decode or migration failure yields plain defaults.
func (s *Store[S]) load() S {
	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()

	raw, err := s.backend.Get(ctx, s.name)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("reading persisted state failed", zap.String("store", s.name), zap.Error(err))
		}
		return s.init()
	}

	state, err := s.decode(raw)
	if err != nil {
		s.logger.Warn("discarding unreadable persisted state", zap.String("store", s.name), zap.Error(err))
		return s.init()
	}
	s.lastWritten = raw
	return state
}

func (s *Store[S]) decode(raw string) (S, error) {
	var zero S

	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return zero, fmt.Errorf("decoding envelope: %w", err)
	}
	if len(env.State) == 0 || string(env.State) == "null" {
		return zero, errors.New("snapshot has no state")
	}

	payload := env.State
	if env.Version != s.version && s.migrate != nil {
		migrated, err := s.migrate(payload, env.Version)
		if err != nil {
			return zero, fmt.Errorf("migrating from version %d: %w", env.Version, err)
		}
		payload = migrated
	}

	// Unmarshalling onto the defaults keeps every field the snapshot lacks.
	state := s.init()
	if err := json.Unmarshal(payload, &state); err != nil {
		return zero, fmt.Errorf("decoding state: %w", err)
	}
	return state, nil
}

// persist writes the persisted subset of state. Must be called with mu held.
func (s *Store[S]) persist(state S) {
	var subset any = state
	if s.partialize != nil {
		subset = s.partialize(state)
	}

	payload, err := json.Marshal(subset)
	if err != nil {
		s.logger.Warn("encoding state failed", zap.String("store", s.name), zap.Error(err))
		return
	}
	data, err := json.Marshal(Envelope{State: payload, Version: s.version})
	if err != nil {
		s.logger.Warn("encoding snapshot failed", zap.String("store", s.name), zap.Error(err))
		return
	}

	raw := string(data)
	if raw == s.lastWritten {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()

	if err := s.backend.Set(ctx, s.name, raw); err != nil {
		s.logger.Warn("writing persisted state failed", zap.String("store", s.name), zap.Error(err))
		return
	}
	s.lastWritten = raw
}

func (s *Store[S]) notify(state, prev S) {
	s.listenersMu.Lock()
	listeners := make([]Listener[S], 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.listenersMu.Unlock()

	for _, fn := range listeners {
		fn(state, prev)
	}
}
