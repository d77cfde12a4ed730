package lexicache

import (
	"go.uber.org/zap"

	"github.com/ZaguanLabs/lexicache/storage"
	"github.com/ZaguanLabs/lexicache/store"
)

// wordCacheVersion is the schema version of persisted word-cache snapshots.
const wordCacheVersion = 1

// WordCacheState is the state held by the word-cache store. Only Entries is
// persisted.
type WordCacheState struct {
	Entries CacheState `json:"entries"`

	// Inflight counts lookups currently running per termKey.
	Inflight map[string]int `json:"inflight,omitempty"`
}

// WordCacheStore is the persisted container for WordCacheState.
type WordCacheStore = store.Store[WordCacheState]

// NewWordCacheStore creates the word-cache store and rehydrates it from the
// resolver's backend. Extra options are applied after the defaults.
func NewWordCacheStore(resolver *storage.Resolver, logger *zap.Logger, opts ...store.Option[WordCacheState]) *WordCacheStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return store.New(storage.StoreWordCache, resolver, newWordCacheState,
		append([]store.Option[WordCacheState]{
			store.WithPartialize[WordCacheState](partializeWordCache),
			store.WithVersion[WordCacheState](wordCacheVersion),
			store.WithLogger[WordCacheState](logger),
		}, opts...)...,
	)
}

func newWordCacheState() WordCacheState {
	return WordCacheState{
		Entries:  CacheState{},
		Inflight: map[string]int{},
	}
}

func partializeWordCache(s WordCacheState) any {
	return struct {
		Entries CacheState `json:"entries"`
	}{s.Entries}
}
