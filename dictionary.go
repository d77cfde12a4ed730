package lexicache

import (
	"context"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
)

// LookupRequest identifies one lookup.
type LookupRequest struct {
	Term     string
	Language string
	Flavor   Flavor
	Refresh  bool // fetch from the source even when a cached version exists
}

// TermKey returns the cache key for the request.
func (r LookupRequest) TermKey() string {
	return TermKey(r.Term, r.Language, r.Flavor)
}

func (r LookupRequest) validate() error {
	if strings.TrimSpace(r.Term) == "" {
		return &LookupError{Message: "invalid lookup request", Cause: ErrEmptyTerm}
	}
	if strings.TrimSpace(r.Language) == "" {
		return &LookupError{Message: "invalid lookup request: language is required"}
	}
	return nil
}

// LookupResult is a complete answer from a LookupSource.
type LookupResult struct {
	Versions []WordVersion
	Metadata RecordMetadata
}

// LookupSource is the interface for backends answering a lookup in one piece.
type LookupSource interface {
	Lookup(ctx context.Context, req LookupRequest) (*LookupResult, error)
}

// Dictionary serves lookups from the word-cache store and fills it from its
// sources.
type Dictionary struct {
	words  *WordCacheStore
	lookup LookupSource
	stream StreamSource
	logger *zap.Logger
	now    func() time.Time
}

// DictionaryOption is a functional option for configuring the Dictionary.
type DictionaryOption func(*Dictionary)

// WithLookupSource sets the source used for complete lookups.
func WithLookupSource(src LookupSource) DictionaryOption {
	return func(d *Dictionary) {
		d.lookup = src
	}
}

// WithStreamSource sets the source used for streamed lookups.
func WithStreamSource(src StreamSource) DictionaryOption {
	return func(d *Dictionary) {
		d.stream = src
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) DictionaryOption {
	return func(d *Dictionary) {
		d.logger = logger
	}
}

// WithClock sets the clock used to stamp streamed versions.
func WithClock(now func() time.Time) DictionaryOption {
	return func(d *Dictionary) {
		d.now = now
	}
}

// NewDictionary creates a Dictionary over the given word-cache store.
func NewDictionary(words *WordCacheStore, opts ...DictionaryOption) *Dictionary {
	d := &Dictionary{
		words:  words,
		logger: zap.NewNop(),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Lookup returns the active cached version for req, fetching from the
// LookupSource on a miss or when req.Refresh is set.
func (d *Dictionary) Lookup(ctx context.Context, req LookupRequest) (WordVersion, error) {
	if err := req.validate(); err != nil {
		return WordVersion{}, err
	}
	key := req.TermKey()

	if !req.Refresh {
		if v, ok := GetEntry(d.words.GetState().Entries, key, ""); ok {
			d.logger.Debug("cache hit", zap.String("term_key", key), zap.String("version", v.ID))
			return v, nil
		}
	}

	if d.lookup == nil {
		return WordVersion{}, ErrNoSource
	}

	d.begin(key)
	defer d.end(key)

	result, err := d.lookup.Lookup(ctx, req)
	if err != nil {
		d.logger.Warn("lookup failed", zap.String("term_key", key), zap.Error(err))
		return WordVersion{}, err
	}
	if result == nil {
		return WordVersion{}, &SourceError{Message: "source returned no result"}
	}

	meta := result.Metadata
	record := d.commit(key, result.Versions, SetOptions{Metadata: &meta})

	v, ok := record.Version(record.ActiveVersionID)
	if !ok {
		return WordVersion{}, &SourceError{Message: "source returned no usable versions"}
	}
	return v, nil
}

// Entry returns a cached version without contacting any source. An empty
// versionID selects the active version.
func (d *Dictionary) Entry(termKey, versionID string) (WordVersion, bool) {
	return GetEntry(d.words.GetState().Entries, termKey, versionID)
}

// Record returns the full cache record for termKey.
func (d *Dictionary) Record(termKey string) (WordCacheRecord, bool) {
	record, ok := d.words.GetState().Entries[termKey]
	return record, ok
}

// Keys returns the cached termKeys in sorted order.
func (d *Dictionary) Keys() []string {
	entries := d.words.GetState().Entries
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// SetActiveVersion makes versionID the active version of termKey when it
// exists, and returns the resulting active id.
func (d *Dictionary) SetActiveVersion(termKey, versionID string) (string, bool) {
	var record WordCacheRecord
	var ok bool
	d.words.SetState(func(s WordCacheState) WordCacheState {
		s.Entries = SetActiveVersion(s.Entries, termKey, versionID)
		record, ok = s.Entries[termKey]
		return s
	})
	return record.ActiveVersionID, ok
}

// RemoveVersions deletes versions of termKey. It reports whether the record
// still exists afterwards.
func (d *Dictionary) RemoveVersions(termKey string, versionIDs ...string) bool {
	var ok bool
	d.words.SetState(func(s WordCacheState) WordCacheState {
		s.Entries = RemoveVersions(s.Entries, termKey, versionIDs)
		_, ok = s.Entries[termKey]
		return s
	})
	return ok
}

// Clear drops every cached record.
func (d *Dictionary) Clear() {
	d.words.SetState(func(s WordCacheState) WordCacheState {
		s.Entries = Clear(s.Entries)
		return s
	})
	d.logger.Info("word cache cleared")
}

// Loading reports whether a lookup for termKey is in progress.
func (d *Dictionary) Loading(termKey string) bool {
	return d.words.GetState().Inflight[termKey] > 0
}

// commit merges versions into the store and returns the resulting record.
func (d *Dictionary) commit(termKey string, versions []WordVersion, opts SetOptions) WordCacheRecord {
	var before, after WordCacheRecord
	d.words.SetState(func(s WordCacheState) WordCacheState {
		before = s.Entries[termKey]
		s.Entries = SetVersions(s.Entries, termKey, versions, opts)
		after = s.Entries[termKey]
		return s
	})

	diff := DiffRecords(before, after)
	d.logger.Debug("versions committed",
		zap.String("term_key", termKey),
		zap.Int("added", len(diff.Added)),
		zap.Int("replaced", len(diff.Replaced)),
		zap.String("active", after.ActiveVersionID))
	return after
}

func (d *Dictionary) begin(termKey string) {
	d.words.SetState(func(s WordCacheState) WordCacheState {
		inflight := make(map[string]int, len(s.Inflight)+1)
		for k, n := range s.Inflight {
			inflight[k] = n
		}
		inflight[termKey]++
		s.Inflight = inflight
		return s
	})
}

func (d *Dictionary) end(termKey string) {
	d.words.SetState(func(s WordCacheState) WordCacheState {
		inflight := make(map[string]int, len(s.Inflight))
		for k, n := range s.Inflight {
			inflight[k] = n
		}
		if inflight[termKey] <= 1 {
			delete(inflight, termKey)
		} else {
			inflight[termKey]--
		}
		s.Inflight = inflight
		return s
	})
}
