// Package similarity is the numeric kernel shared by conflict detection and
// resolution: progress deltas, timestamp deltas, string similarity, and
// tag-set difference. All functions are pure, so severity derived from them
// is reproducible for identical inputs.
package similarity

import (
	"strings"
	"time"
	"unicode"
)

// ProgressDelta returns the absolute difference between two progress
// percentages.
func ProgressDelta(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}

// TimestampDelta returns the absolute duration between two timestamps.
func TimestampDelta(a, b time.Time) time.Duration {
	d := a.Sub(b)
	if d < 0 {
		return -d
	}
	return d
}

// StringSimilarity returns the Dice coefficient over character bigrams of
// the two strings, in [0,1]. Comparison is case-insensitive and ignores
// surrounding whitespace. Identical strings score 1, disjoint strings 0.
func StringSimilarity(a, b string) float64 {
	a = normalize(a)
	b = normalize(b)
	if a == b {
		return 1.0
	}
	runesA := []rune(a)
	runesB := []rune(b)
	if len(runesA) < 2 || len(runesB) < 2 {
		return 0.0
	}

	bigramsA := bigrams(runesA)
	bigramsB := bigrams(runesB)

	overlap := 0
	for gram, count := range bigramsA {
		if other, ok := bigramsB[gram]; ok {
			if other < count {
				overlap += other
			} else {
				overlap += count
			}
		}
	}

	// The denominator counts rune pairs, same as the bigram maps, so
	// multi-byte titles are not deflated.
	total := (len(runesA) - 1) + (len(runesB) - 1)
	return float64(2*overlap) / float64(total)
}

// TagDifferenceRatio returns the Jaccard distance between two tag sets:
// 1 - |intersection| / |union|, in [0,1]. Two empty sets are identical (0).
func TagDifferenceRatio(a, b []string) float64 {
	setA := tagSet(a)
	setB := tagSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 0.0
	}

	intersection := 0
	for tag := range setA {
		if setB[tag] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return 1.0 - float64(intersection)/float64(union)
}

// TagUnion returns the union of two tag sets, normalized and deduplicated.
// Order is not defined; callers sort when order matters.
func TagUnion(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, tags := range [][]string{a, b} {
		for _, tag := range tags {
			key := normalize(tag)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, strings.TrimSpace(tag))
		}
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// bigrams counts character bigrams, skipping pairs that are all whitespace.
func bigrams(runes []rune) map[string]int {
	grams := make(map[string]int, len(runes))
	for i := 0; i < len(runes)-1; i++ {
		if unicode.IsSpace(runes[i]) && unicode.IsSpace(runes[i+1]) {
			continue
		}
		grams[string(runes[i:i+2])]++
	}
	return grams
}

func tagSet(tags []string) map[string]bool {
	set := make(map[string]bool, len(tags))
	for _, tag := range tags {
		key := normalize(tag)
		if key != "" {
			set[key] = true
		}
	}
	return set
}
