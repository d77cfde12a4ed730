package history

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/ZaguanLabs/lexicache"
	"github.com/ZaguanLabs/lexicache/storage"
	"github.com/ZaguanLabs/lexicache/store"
)

const stateVersion = 1

// ErrNoSource is returned by Load when the Store has no history source.
var ErrNoSource = errors.New("no history source configured")

// State is the state held by the history store. Items and RetentionPolicy
// are persisted; the paging fields are not.
type State struct {
	Items           []Item `json:"items"`
	RetentionPolicy string `json:"retentionPolicy"`

	Loading    bool   `json:"loading,omitempty"`
	NextCursor string `json:"nextCursor,omitempty"`
	LoadError  string `json:"loadError,omitempty"`
}

// Store manages the persisted history list.
type Store struct {
	state         *store.Store[State]
	source        Source
	logger        *zap.Logger
	now           func() time.Time
	defaultPolicy string
}

// Option is a functional option for configuring the Store.
type Option func(*Store)

// WithSource sets the history source used by Load.
func WithSource(src Source) Option {
	return func(s *Store) {
		s.source = src
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithDefaultPolicy sets the retention policy used until one is persisted.
func WithDefaultPolicy(policyID string) Option {
	return func(s *Store) {
		s.defaultPolicy = policyID
	}
}

// WithClock sets the clock used for retention and local records.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates the history store and rehydrates it from the resolver's
// backend. The persisted list is pruned with the persisted policy on open.
func NewStore(resolver *storage.Resolver, opts ...Option) *Store {
	s := &Store{
		logger:        zap.NewNop(),
		now:           time.Now,
		defaultPolicy: PolicyForever,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.state = store.New(storage.StoreHistory, resolver, s.newState,
		store.WithPartialize[State](partialize),
		store.WithVersion[State](stateVersion),
		store.WithLogger[State](s.logger),
	)
	s.Prune()
	return s
}

func (s *Store) newState() State {
	return State{Items: []Item{}, RetentionPolicy: s.defaultPolicy}
}

func partialize(s State) any {
	return struct {
		Items           []Item `json:"items"`
		RetentionPolicy string `json:"retentionPolicy"`
	}{s.Items, s.RetentionPolicy}
}

// State returns the current history state.
func (s *Store) State() State {
	return s.state.GetState()
}

// Items returns the retained history items.
func (s *Store) Items() []Item {
	return s.state.GetState().Items
}

// Subscribe registers fn for history changes.
func (s *Store) Subscribe(fn store.Listener[State]) (unsubscribe func()) {
	return s.state.Subscribe(fn)
}

// Load fetches one page from the source. An empty cursor replaces the list;
// any other cursor appends to it. Items already present are replaced, keyed
// by RecordID or, for local entries, TermKey. The retention policy is applied
// to the result.
func (s *Store) Load(ctx context.Context, cursor string) error {
	if s.source == nil {
		return ErrNoSource
	}

	s.state.SetState(func(st State) State {
		st.Loading = true
		st.LoadError = ""
		return st
	})

	page, err := s.source.History(ctx, cursor)
	if err != nil {
		s.logger.Warn("loading history failed", zap.String("cursor", cursor), zap.Error(err))
		s.state.SetState(func(st State) State {
			st.Loading = false
			st.LoadError = err.Error()
			return st
		})
		return err
	}

	now := s.now()
	s.state.SetState(func(st State) State {
		var base []Item
		if cursor != "" {
			base = st.Items
		}
		merged := merge(base, page.Items)
		st.Items = ApplyRetentionPolicy(merged, st.RetentionPolicy, now)
		st.NextCursor = page.NextCursor
		st.Loading = false
		return st
	})
	return nil
}

// SetSource replaces the history source used by Load.
func (s *Store) SetSource(src Source) {
	s.source = src
}

// LoadAll loads the first page and keeps following NextCursor until the
// source reports the last page. It returns the number of pages loaded.
func (s *Store) LoadAll(ctx context.Context) (int, error) {
	seen := map[string]bool{}
	cursor := ""
	pages := 0
	for {
		if err := s.Load(ctx, cursor); err != nil {
			return pages, err
		}
		pages++
		cursor = s.State().NextCursor
		if cursor == "" {
			return pages, nil
		}
		if seen[cursor] {
			return pages, fmt.Errorf("history source repeated cursor %q", cursor)
		}
		seen[cursor] = true
	}
}

// Record adds a local entry for a lookup, or folds version into the existing
// entry for the same termKey and moves it to the front.
func (s *Store) Record(req lexicache.LookupRequest, version lexicache.WordVersion) {
	now := lexicache.FormatTimestamp(s.now())
	item := Item{Term: req.Term, Language: lexicache.NormalizeLanguage(req.Language), Flavor: req.Flavor, CreatedAt: now}.normalize()

	s.state.SetState(func(st State) State {
		items := slices.Clone(st.Items)
		if i := slices.IndexFunc(items, func(it Item) bool { return it.TermKey == item.TermKey }); i >= 0 {
			item = items[i]
			item.CreatedAt = now
			items = slices.Delete(items, i, i+1)
		}
		if id, ok := lexicache.NormalizeID(version.ID); ok {
			if !slices.ContainsFunc(item.Versions, func(v Version) bool { return v.ID == id }) {
				item.Versions = append(slices.Clone(item.Versions), Version{ID: id, CreatedAt: version.CreatedAt, Favorite: version.Favorite})
			}
			item.LatestVersionID = id
		}
		st.Items = append([]Item{item}, items...)
		return st
	})
}

// ToggleFavorite flips the favorite flag of the item with the given key and
// reports its new value.
func (s *Store) ToggleFavorite(key string) (favorite, ok bool) {
	s.state.SetState(func(st State) State {
		i := slices.IndexFunc(st.Items, func(it Item) bool { return it.Key() == key })
		if i < 0 {
			return st
		}
		items := slices.Clone(st.Items)
		items[i].Favorite = !items[i].Favorite
		favorite, ok = items[i].Favorite, true
		st.Items = items
		return st
	})
	return favorite, ok
}

// Remove deletes the item with the given key and reports whether it existed.
func (s *Store) Remove(key string) bool {
	var removed bool
	s.state.SetState(func(st State) State {
		items := slices.DeleteFunc(slices.Clone(st.Items), func(it Item) bool { return it.Key() == key })
		removed = len(items) != len(st.Items)
		st.Items = items
		return st
	})
	return removed
}

// Clear drops every item. The retention policy is kept.
func (s *Store) Clear() {
	s.state.SetState(func(st State) State {
		st.Items = []Item{}
		st.NextCursor = ""
		return st
	})
}

// SetRetentionPolicy stores policyID and prunes the list with it. Unknown ids
// are stored as given and retain everything.
func (s *Store) SetRetentionPolicy(policyID string) {
	now := s.now()
	s.state.SetState(func(st State) State {
		st.RetentionPolicy = policyID
		st.Items = ApplyRetentionPolicy(st.Items, policyID, now)
		return st
	})
}

// Prune applies the current retention policy and returns how many items it
// removed.
func (s *Store) Prune() int {
	now := s.now()
	var removed int
	s.state.SetState(func(st State) State {
		kept := ApplyRetentionPolicy(st.Items, st.RetentionPolicy, now)
		removed = len(st.Items) - len(kept)
		st.Items = kept
		return st
	})
	if removed > 0 {
		s.logger.Info("history pruned", zap.Int("removed", removed))
	}
	return removed
}

// merge appends incoming to base, replacing items with the same key in place.
func merge(base, incoming []Item) []Item {
	out := slices.Clone(base)
	index := make(map[string]int, len(out)+len(incoming))
	for i, it := range out {
		index[it.Key()] = i
	}
	for _, it := range incoming {
		it = it.normalize()
		if i, ok := index[it.Key()]; ok {
			out[i] = it
			continue
		}
		index[it.Key()] = len(out)
		out = append(out, it)
	}
	if out == nil {
		out = []Item{}
	}
	return out
}
