package lexicache

import (
	"strings"
)

// termKeySep separates the components of a termKey.
const termKeySep = "|"

// Components are escaped so a separator inside a term or language never
// splits the key. "%" is escaped first so escaped text stays unambiguous.
var (
	termKeyEscaper   = strings.NewReplacer("%", "%25", termKeySep, "%7C")
	termKeyUnescaper = strings.NewReplacer("%7C", termKeySep, "%25", "%")
)

// TermKey derives the cache key for a lookup. Two lookups with the same
// term, language and flavor always map to the same key, and different ones
// never do.
func TermKey(term, language string, flavor Flavor) string {
	t := strings.ToLower(strings.Join(strings.Fields(term), " "))
	f := strings.ToLower(strings.TrimSpace(string(flavor)))
	if f == "" {
		f = string(FlavorMonolingual)
	}
	return termKeyEscaper.Replace(t) + termKeySep +
		termKeyEscaper.Replace(NormalizeLanguage(language)) + termKeySep +
		termKeyEscaper.Replace(f)
}

// SplitTermKey returns the components of a key built by TermKey.
func SplitTermKey(key string) (term, language string, flavor Flavor, ok bool) {
	parts := strings.Split(key, termKeySep)
	if len(parts) != 3 {
		return "", "", "", false
	}
	return termKeyUnescaper.Replace(parts[0]),
		termKeyUnescaper.Replace(parts[1]),
		Flavor(termKeyUnescaper.Replace(parts[2])), true
}
