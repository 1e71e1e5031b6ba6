// Package similarity provides normalized string similarity scores in [0, 1]
// built on Levenshtein edit distance. The token-sort, token-set and partial
// variants make the scores robust to word order, subset titles and extra
// packaging noise.
package similarity

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Ratio returns 1 - dist/maxLen over the raw strings. Identical strings
// score 1, fully different strings approach 0.
func Ratio(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := len([]rune(a)), len([]rune(b))
	if la == 0 || lb == 0 {
		return 0
	}
	longest := la
	if lb > longest {
		longest = lb
	}
	d := levenshtein.ComputeDistance(a, b)
	return 1 - float64(d)/float64(longest)
}

// PartialRatio slides the shorter string over the longer one and returns the
// best windowed Ratio. "vitamin d" against "solgar vitamin d 1000iu caps"
// scores near 1.
func PartialRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	short, long := ra, rb
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == len(long) {
		return Ratio(string(short), string(long))
	}
	best := 0.0
	for i := 0; i+len(short) <= len(long); i++ {
		r := Ratio(string(short), string(long[i:i+len(short)]))
		if r > best {
			best = r
		}
		if best == 1 {
			break
		}
	}
	return best
}

// TokenSortRatio compares the two strings with their words sorted, so word
// order never matters.
func TokenSortRatio(a, b string) float64 {
	return Ratio(sortedTokens(a), sortedTokens(b))
}

// TokenSetRatio compares intersection-anchored reconstructions of the two
// token sets. Strings that share a common core but differ in extra tokens
// still score high.
func TokenSetRatio(a, b string) float64 {
	sa := tokenSet(a)
	sb := tokenSet(b)
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}

	var common, onlyA, onlyB []string
	for t := range sa {
		if _, ok := sb[t]; ok {
			common = append(common, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range sb {
		if _, ok := sa[t]; !ok {
			onlyB = append(onlyB, t)
		}
	}
	sort.Strings(common)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	base := strings.Join(common, " ")
	withA := strings.TrimSpace(base + " " + strings.Join(onlyA, " "))
	withB := strings.TrimSpace(base + " " + strings.Join(onlyB, " "))

	best := Ratio(base, withA)
	if r := Ratio(base, withB); r > best {
		best = r
	}
	if r := Ratio(withA, withB); r > best {
		best = r
	}
	return best
}

// Best is the score used for fuzzy matching decisions: the max over the
// plain, token-sort, token-set and partial ratios. Taking the max instead of
// an average keeps a single strong signal decisive.
func Best(a, b string) float64 {
	best := Ratio(a, b)
	if r := TokenSortRatio(a, b); r > best {
		best = r
	}
	if r := TokenSetRatio(a, b); r > best {
		best = r
	}
	if r := PartialRatio(a, b); r > best {
		best = r
	}
	return best
}

func sortedTokens(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	sort.Strings(fields)
	return strings.Join(fields, " ")
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, f := range strings.Fields(strings.ToLower(s)) {
		set[f] = struct{}{}
	}
	return set
}
