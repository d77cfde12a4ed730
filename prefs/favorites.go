package prefs

import (
	"maps"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/ZaguanLabs/lexicache"
	"github.com/ZaguanLabs/lexicache/storage"
	"github.com/ZaguanLabs/lexicache/store"
)

// Favorite is one starred term.
type Favorite struct {
	Term      string           `json:"term"`
	Language  string           `json:"language"`
	Flavor    lexicache.Flavor `json:"flavor"`
	VersionID string           `json:"versionId,omitempty"`
	AddedAt   string           `json:"addedAt"`
}

// Favorites maps termKey to its favorite.
type Favorites struct {
	Items map[string]Favorite `json:"items"`
}

// FavoritesStore is the persisted container for Favorites.
type FavoritesStore = store.Store[Favorites]

// NewFavoritesStore creates the favorites store.
func NewFavoritesStore(resolver *storage.Resolver, logger *zap.Logger) *FavoritesStore {
	return store.New(storage.StoreFavorites, resolver, func() Favorites {
		return Favorites{Items: map[string]Favorite{}}
	}, store.WithLogger[Favorites](orNop(logger)))
}

// ToggleFavorite stars the term for req, or unstars it when already starred.
// It returns whether the term is starred afterwards.
func ToggleFavorite(s *FavoritesStore, req lexicache.LookupRequest, versionID string, now time.Time) bool {
	key := req.TermKey()
	var starred bool
	s.SetState(func(f Favorites) Favorites {
		items := maps.Clone(f.Items)
		if items == nil {
			items = map[string]Favorite{}
		}
		if _, ok := items[key]; ok {
			delete(items, key)
		} else {
			term, lang, flavor, ok := lexicache.SplitTermKey(key)
			if !ok {
				term, lang, flavor = req.Term, req.Language, req.Flavor
			}
			items[key] = Favorite{
				Term:      term,
				Language:  lang,
				Flavor:    flavor,
				VersionID: versionID,
				AddedAt:   lexicache.FormatTimestamp(now),
			}
			starred = true
		}
		f.Items = items
		return f
	})
	return starred
}

// IsFavorite reports whether termKey is starred.
func IsFavorite(s *FavoritesStore, termKey string) bool {
	_, ok := s.GetState().Items[termKey]
	return ok
}

// FavoriteKeys returns the starred termKeys in sorted order.
func FavoriteKeys(s *FavoritesStore) []string {
	return slices.Sorted(maps.Keys(s.GetState().Items))
}
