package lexicache

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Flavor is a variant tag on a lookup, independent of its language.
type Flavor string

const (
	// FlavorMonolingual explains the term in the term's own language.
	FlavorMonolingual Flavor = "mono"
	// FlavorBilingual explains the term in the reader's language.
	FlavorBilingual Flavor = "bi"
	// FlavorKids uses simplified explanations and examples.
	FlavorKids Flavor = "kids"
)

// WordVersion is one immutable content snapshot for a term.
type WordVersion struct {
	ID        string          `json:"id"`
	CreatedAt string          `json:"createdAt,omitempty"` // raw timestamp; empty when unknown
	Favorite  bool            `json:"favorite,omitempty"`
	Content   string          `json:"content,omitempty"` // rendered content
	Data      json.RawMessage `json:"data,omitempty"`    // opaque source payload
}

// UnmarshalJSON accepts string, numeric and null ids.
func (v *WordVersion) UnmarshalJSON(data []byte) error {
	type plain WordVersion
	var aux struct {
		plain
		ID any `json:"id"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&aux); err != nil {
		return err
	}
	*v = WordVersion(aux.plain)
	v.ID, _ = NormalizeID(aux.ID)
	return nil
}

// Timestamp resolves CreatedAt. The second return is false when the value is
// empty or unparseable.
func (v WordVersion) Timestamp() (time.Time, bool) {
	return ParseTimestamp(v.CreatedAt)
}

// RecordMetadata carries hints from the originating source. It is a
// selection signal only.
type RecordMetadata struct {
	LatestVersionID string `json:"latestVersionId,omitempty"`
	ActiveVersionID string `json:"activeVersionId,omitempty"`
}

// WordCacheRecord holds every known version for one termKey.
type WordCacheRecord struct {
	Versions        []WordVersion  `json:"versions"`
	ActiveVersionID string         `json:"activeVersionId,omitempty"`
	Metadata        RecordMetadata `json:"metadata"`
}

// Version returns the version with the given id.
func (r WordCacheRecord) Version(id string) (WordVersion, bool) {
	for _, v := range r.Versions {
		if v.ID == id {
			return v, true
		}
	}
	return WordVersion{}, false
}

// CacheState maps termKey to its record. Registry functions never mutate a
// CacheState in place.
type CacheState map[string]WordCacheRecord

// timestampLayouts are tried in order by ParseTimestamp.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// ParseTimestamp resolves a timestamp string. Unix seconds and milliseconds
// are accepted as well as the layouts above.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		// Anything past year 33658 in seconds is treated as milliseconds.
		if n > 1e12 {
			return time.UnixMilli(n).UTC(), true
		}
		return time.Unix(n, 0).UTC(), true
	}
	return time.Time{}, false
}

// FormatTimestamp renders t the way versions created locally are stamped.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
