// Package history keeps the list of past lookups and prunes it according to
// a retention policy.
package history

import (
	"context"
	"time"

	"github.com/ZaguanLabs/lexicache"
)

// Version is the lightweight form of a WordVersion kept in history.
type Version struct {
	ID        string `json:"id"`
	CreatedAt string `json:"createdAt,omitempty"`
	Favorite  bool   `json:"favorite,omitempty"`
}

// Item is one historical lookup.
type Item struct {
	// RecordID is assigned by the history source. It is empty for entries
	// recorded locally.
	RecordID string `json:"recordId,omitempty"`

	Term            string           `json:"term"`
	Language        string           `json:"language"`
	Flavor          lexicache.Flavor `json:"flavor"`
	TermKey         string           `json:"termKey"`
	CreatedAt       string           `json:"createdAt,omitempty"`
	Favorite        bool             `json:"favorite,omitempty"`
	Versions        []Version        `json:"versions,omitempty"`
	LatestVersionID string           `json:"latestVersionId,omitempty"`
}

// Key identifies the item: its RecordID when known, otherwise its TermKey.
func (it Item) Key() string {
	if it.RecordID != "" {
		return it.RecordID
	}
	return it.TermKey
}

// Timestamp resolves CreatedAt.
func (it Item) Timestamp() (time.Time, bool) {
	return lexicache.ParseTimestamp(it.CreatedAt)
}

// normalize fills the derived fields.
func (it Item) normalize() Item {
	it.RecordID, _ = lexicache.NormalizeID(it.RecordID)
	if it.Flavor == "" {
		it.Flavor = lexicache.FlavorMonolingual
	}
	if it.TermKey == "" {
		it.TermKey = lexicache.TermKey(it.Term, it.Language, it.Flavor)
	}
	versions := it.Versions[:0:0]
	for _, v := range it.Versions {
		if id, ok := lexicache.NormalizeID(v.ID); ok {
			v.ID = id
			versions = append(versions, v)
		}
	}
	it.Versions = versions
	return it
}

// Page is one page of history returned by a Source.
type Page struct {
	Items      []Item `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"` // empty on the last page
}

// Source returns pages of history. An empty cursor requests the first page.
type Source interface {
	History(ctx context.Context, cursor string) (Page, error)
}
