package availability

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var worldIDs = map[string]int{
	"watopia":        1,
	"richmond":       2,
	"london":         3,
	"new york":       4,
	"nyc":            4,
	"innsbruck":      5,
	"bologna":        6,
	"yorkshire":      7,
	"crit city":      8,
	"makuri islands": 9,
	"makuri island":  9,
	"makuri":         9,
	"france":         10,
	"paris":          11,
	"scotland":       13,
}

// NormalizeWorldName trims a world name and collapses inner whitespace.
func NormalizeWorldName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// NormalizeWorldKey folds a world name into its lookup key: accents removed,
// whitespace collapsed, lowercased, and anything outside [a-z0-9 ] dropped.
func NormalizeWorldKey(name string) string {
	// transformers carry state, so build one per call
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, name)
	if err != nil {
		folded = name
	}

	folded = strings.ToLower(NormalizeWorldName(folded))
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == ' ' {
			return r
		}
		return -1
	}, folded)
}

// WorldID looks up the numeric world id for a display name.
func WorldID(name string) (int, bool) {
	id, ok := worldIDs[NormalizeWorldKey(name)]
	return id, ok
}

// ResolveWorldIDs maps world names to ids in input order. Unknown names are
// skipped and each id appears once.
func ResolveWorldIDs(names []string) []int {
	ids := make([]int, 0, len(names))
	seen := make(map[int]struct{}, len(names))
	for _, name := range names {
		id, ok := WorldID(name)
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
