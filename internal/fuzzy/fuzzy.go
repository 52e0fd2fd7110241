// Package fuzzy scores similarity between name strings on a 0-100 scale.
//
// No single metric covers typos, substring queries and reordered multi-word
// names at once, so Score runs three metrics and takes the maximum. The bias
// is deliberate: it is cheaper to show the user one extra candidate than to
// miss the person they meant.
package fuzzy

import (
	"math"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Ratio returns the normalized Levenshtein similarity of a and b scaled to
// 0-100. Distances are computed over runes, so multi-byte names (diacritics,
// CJK) are measured per character, not per byte.
func Ratio(a, b string) int {
	if a == b {
		return 100
	}
	maxLen := len([]rune(a))
	if lb := len([]rune(b)); lb > maxLen {
		maxLen = lb
	}
	if maxLen == 0 {
		return 100
	}
	dist := levenshtein.ComputeDistance(a, b)
	sim := 1 - float64(dist)/float64(maxLen)
	if sim < 0 {
		sim = 0
	}
	return int(math.Round(sim * 100))
}

// PartialRatio returns the best Ratio of the shorter string against every
// contiguous window of the same length in the longer one. This rewards
// substring queries, e.g. "tun" against "tuan".
func PartialRatio(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	shorter, longer := ra, rb
	if len(ra) > len(rb) {
		shorter, longer = rb, ra
	}
	if len(shorter) == 0 {
		if len(longer) == 0 {
			return 100
		}
		return 0
	}
	if len(shorter) == len(longer) {
		return Ratio(string(shorter), string(longer))
	}
	best := 0
	for i := 0; i+len(shorter) <= len(longer); i++ {
		score := Ratio(string(shorter), string(longer[i:i+len(shorter)]))
		if score > best {
			best = score
		}
		if best == 100 {
			break
		}
	}
	return best
}

// TokenSortRatio sorts the whitespace-delimited tokens of each string before
// comparing, so reorderings like "Duy Khanh" vs "Khanh Duy" score 100.
func TokenSortRatio(a, b string) int {
	return Ratio(sortTokens(a), sortTokens(b))
}

// Score returns the maximum of Ratio, PartialRatio and TokenSortRatio over
// the lower-cased pair. Pure and deterministic; 100 means a semantically
// exact match.
func Score(query, candidate string) int {
	q := strings.ToLower(query)
	c := strings.ToLower(candidate)

	best := Ratio(q, c)
	if s := PartialRatio(q, c); s > best {
		best = s
	}
	if s := TokenSortRatio(q, c); s > best {
		best = s
	}
	return best
}

// Normalize lowercases, trims and collapses internal whitespace. Exact-match
// lookups and alias storage both go through this.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func sortTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}
