package lexicache

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// SetOptions controls how SetVersions chooses the active version.
type SetOptions struct {
	// PreferredID becomes the active version when it matches a merged version.
	PreferredID string

	// Metadata replaces the record's source hints when non-nil. If PreferredID
	// is empty, Metadata.ActiveVersionID is used as the preferred candidate.
	Metadata *RecordMetadata
}

// NormalizeID coerces a raw identifier into its canonical form: a trimmed,
// non-empty string. Strings, integers, finite floats, json.Number and
// fmt.Stringer values are accepted; anything else reports false.
func NormalizeID(value any) (string, bool) {
	var s string
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		s = v
	case *string:
		if v == nil {
			return "", false
		}
		s = *v
	case json.Number:
		s = v.String()
	case int:
		s = strconv.Itoa(v)
	case int32:
		s = strconv.FormatInt(int64(v), 10)
	case int64:
		s = strconv.FormatInt(v, 10)
	case uint:
		s = strconv.FormatUint(uint64(v), 10)
	case uint32:
		s = strconv.FormatUint(uint64(v), 10)
	case uint64:
		s = strconv.FormatUint(v, 10)
	case float32:
		return NormalizeID(float64(v))
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "", false
		}
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case fmt.Stringer:
		s = v.String()
	default:
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	return s, true
}

// SetVersions merges incoming versions into the record for termKey and
// returns the resulting state. Versions whose id does not normalize are
// dropped. A known id is replaced in place; a new id is appended.
//
// The current active version only survives as a candidate when the merge
// added no new ids.
func SetVersions(state CacheState, termKey string, incoming []WordVersion, opts SetOptions) CacheState {
	existing := state[termKey]
	versions := slices.Clone(existing.Versions)

	index := make(map[string]int, len(versions)+len(incoming))
	for i, v := range versions {
		index[v.ID] = i
	}

	added := false
	for _, v := range incoming {
		id, ok := NormalizeID(v.ID)
		if !ok {
			continue
		}
		v.ID = id
		if i, found := index[id]; found {
			versions[i] = v
			continue
		}
		index[id] = len(versions)
		versions = append(versions, v)
		added = true
	}

	if len(versions) == 0 {
		return state
	}

	metadata := existing.Metadata
	preferred := opts.PreferredID
	if opts.Metadata != nil {
		metadata = normalizeMetadata(*opts.Metadata)
		if strings.TrimSpace(preferred) == "" {
			preferred = metadata.ActiveVersionID
		}
	}

	current := ""
	if !added {
		current = existing.ActiveVersionID
	}

	next := cloneState(state)
	next[termKey] = WordCacheRecord{
		Versions:        versions,
		ActiveVersionID: selectActive(versions, preferred, current),
		Metadata:        metadata,
	}
	return next
}

// SetActiveVersion re-runs the selection strategy for termKey with versionID
// as the preferred candidate. Unknown keys are a no-op.
func SetActiveVersion(state CacheState, termKey string, versionID string) CacheState {
	record, ok := state[termKey]
	if !ok {
		return state
	}

	active := selectActive(record.Versions, versionID, record.ActiveVersionID)
	if active == record.ActiveVersionID {
		return state
	}

	record.ActiveVersionID = active
	next := cloneState(state)
	next[termKey] = record
	return next
}

// RemoveVersions deletes the named versions from the record for termKey. The
// record itself is deleted once no versions remain.
func RemoveVersions(state CacheState, termKey string, versionIDs []string) CacheState {
	record, ok := state[termKey]
	if !ok {
		return state
	}

	remove := make(map[string]bool, len(versionIDs))
	for _, raw := range versionIDs {
		if id, ok := NormalizeID(raw); ok {
			remove[id] = true
		}
	}

	remaining := make([]WordVersion, 0, len(record.Versions))
	for _, v := range record.Versions {
		if !remove[v.ID] {
			remaining = append(remaining, v)
		}
	}
	if len(remaining) == len(record.Versions) {
		return state
	}

	next := cloneState(state)
	if len(remaining) == 0 {
		delete(next, termKey)
		return next
	}

	active := record.ActiveVersionID
	if remove[active] {
		active = selectActive(remaining, "", "")
	}
	next[termKey] = WordCacheRecord{
		Versions:        remaining,
		ActiveVersionID: active,
		Metadata:        record.Metadata,
	}
	return next
}

// GetEntry returns the version matching versionID when it is given and
// present, and the record's active version otherwise.
func GetEntry(state CacheState, termKey string, versionID string) (WordVersion, bool) {
	record, ok := state[termKey]
	if !ok {
		return WordVersion{}, false
	}
	if id, ok := NormalizeID(versionID); ok {
		if v, found := record.Version(id); found {
			return v, true
		}
	}
	return record.Version(record.ActiveVersionID)
}

// Clear returns an empty CacheState.
func Clear(CacheState) CacheState {
	return CacheState{}
}

// selectActive picks the active version id:
//  1. preferred, if it matches a version
//  2. current, if it still matches a version
//  3. the latest resolvable CreatedAt, later positions winning ties
//  4. the first version
func selectActive(versions []WordVersion, preferred, current string) string {
	if len(versions) == 0 {
		return ""
	}

	has := func(id string) bool {
		return slices.ContainsFunc(versions, func(v WordVersion) bool { return v.ID == id })
	}

	if id, ok := NormalizeID(preferred); ok && has(id) {
		return id
	}
	if id, ok := NormalizeID(current); ok && has(id) {
		return id
	}

	latest := -1
	var latestTS time.Time
	for i, v := range versions {
		ts, ok := v.Timestamp()
		if !ok {
			continue
		}
		if latest < 0 || !ts.Before(latestTS) {
			latest, latestTS = i, ts
		}
	}
	if latest >= 0 {
		return versions[latest].ID
	}
	return versions[0].ID
}

func normalizeMetadata(m RecordMetadata) RecordMetadata {
	m.LatestVersionID, _ = NormalizeID(m.LatestVersionID)
	m.ActiveVersionID, _ = NormalizeID(m.ActiveVersionID)
	return m
}

func cloneState(state CacheState) CacheState {
	if state == nil {
		return CacheState{}
	}
	return maps.Clone(state)
}
