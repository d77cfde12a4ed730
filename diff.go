package lexicache

import "bytes"

// DiffResult describes how a cache record changed, by version id.
type DiffResult struct {
	// Added contains ids present only in the new record.
	Added []string

	// Removed contains ids present only in the old record.
	Removed []string

	// Replaced contains ids present in both whose content differs.
	Replaced []string

	// Unchanged contains ids present in both with identical content.
	Unchanged []string

	// ActiveChanged is true when the active version id differs.
	ActiveChanged bool
}

// Stats returns summary statistics for the diff.
func (d *DiffResult) Stats() DiffStats {
	return DiffStats{
		Added:     len(d.Added),
		Removed:   len(d.Removed),
		Replaced:  len(d.Replaced),
		Unchanged: len(d.Unchanged),
	}
}

// DiffStats contains summary statistics for a diff.
type DiffStats struct {
	Added     int
	Removed   int
	Replaced  int
	Unchanged int
}

// HasChanges returns true if there are any differences.
func (d *DiffResult) HasChanges() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0 || len(d.Replaced) > 0 || d.ActiveChanged
}

// DiffRecords compares two records of the same termKey. Ids are reported in
// sequence order of the record they come from.
func DiffRecords(before, after WordCacheRecord) *DiffResult {
	result := &DiffResult{
		ActiveChanged: before.ActiveVersionID != after.ActiveVersionID,
	}

	beforeByID := make(map[string]WordVersion, len(before.Versions))
	for _, v := range before.Versions {
		beforeByID[v.ID] = v
	}
	afterIDs := make(map[string]bool, len(after.Versions))

	for _, v := range after.Versions {
		afterIDs[v.ID] = true
		prev, exists := beforeByID[v.ID]
		switch {
		case !exists:
			result.Added = append(result.Added, v.ID)
		case sameVersion(prev, v):
			result.Unchanged = append(result.Unchanged, v.ID)
		default:
			result.Replaced = append(result.Replaced, v.ID)
		}
	}

	for _, v := range before.Versions {
		if !afterIDs[v.ID] {
			result.Removed = append(result.Removed, v.ID)
		}
	}

	return result
}

func sameVersion(a, b WordVersion) bool {
	return a.ID == b.ID &&
		a.CreatedAt == b.CreatedAt &&
		a.Favorite == b.Favorite &&
		a.Content == b.Content &&
		bytes.Equal(a.Data, b.Data)
}
