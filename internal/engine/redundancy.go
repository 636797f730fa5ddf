package engine

import (
	"sort"
	"strings"
)

// The redundancy filter is purely lexical. It runs on every candidate fact
// during a merge, so it must stay cheap and deterministic; semantic
// near-duplicates that slip through are cleaned up by later archival, which
// is a better failure mode than silently dropping genuinely new facts.

// minLengthRatio is the min/max length ratio above which a substring
// containment counts as a duplicate rather than an elaboration.
const minLengthRatio = 0.85

// minWordJaccard is the significant-word overlap above which two facts
// sharing the same numeric tokens count as restatements of one measurement.
const minWordJaccard = 0.5

// IsRedundant reports whether newFact restates any fact in existing.
// entityName is excluded from word comparison: the subject's own name
// appears in most facts about it and would inflate every overlap.
func IsRedundant(newFact string, existing []string, entityName string) bool {
	for _, prior := range existing {
		if factsEquivalent(newFact, prior, entityName) {
			return true
		}
	}
	return false
}

func factsEquivalent(a, b, entityName string) bool {
	an := strings.ToLower(strings.TrimSpace(a))
	bn := strings.ToLower(strings.TrimSpace(b))
	if an == "" || bn == "" {
		return false
	}
	if an == bn {
		return true
	}

	// Substring containment only counts when the lengths are close; a short
	// fact contained in a much longer one is an elaboration, not a duplicate.
	if strings.Contains(an, bn) || strings.Contains(bn, an) {
		shorter, longer := len(an), len(bn)
		if shorter > longer {
			shorter, longer = longer, shorter
		}
		if float64(shorter)/float64(longer) > minLengthRatio {
			return true
		}
	}

	// Same numbers, mostly the same words: the same measurement phrased
	// differently ("Clicks: 1,234 in January" / "Got 1,234 clicks in January").
	aNums := numericTokens(an)
	bNums := numericTokens(bn)
	if len(aNums) > 0 && len(bNums) > 0 && sameTokenSet(aNums, bNums) {
		if wordJaccard(an, bn, entityName) > minWordJaccard {
			return true
		}
	}

	return false
}

// numericTokens extracts the digit-bearing tokens of a fact with grouping
// punctuation stripped, so "1,234" and "1234" compare equal. Returned sorted
// and deduplicated.
func numericTokens(fact string) []string {
	seen := make(map[string]struct{})
	for _, raw := range strings.Fields(fact) {
		var digits strings.Builder
		hasDigit := false
		for _, r := range raw {
			if r >= '0' && r <= '9' {
				digits.WriteRune(r)
				hasDigit = true
			} else if r == '.' && hasDigit {
				digits.WriteRune(r)
			}
		}
		if hasDigit {
			seen[strings.TrimRight(digits.String(), ".")] = struct{}{}
		}
	}
	tokens := make([]string, 0, len(seen))
	for t := range seen {
		tokens = append(tokens, t)
	}
	sort.Strings(tokens)
	return tokens
}

func sameTokenSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// wordJaccard computes Jaccard overlap of the significant words (length > 3,
// non-numeric) of two facts, with the entity's own name words excluded.
func wordJaccard(a, b, entityName string) float64 {
	nameWords := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(entityName)) {
		nameWords[w] = struct{}{}
	}

	aWords := significantWords(a, nameWords)
	bWords := significantWords(b, nameWords)
	if len(aWords) == 0 || len(bWords) == 0 {
		return 0
	}

	intersection := 0
	for w := range aWords {
		if _, ok := bWords[w]; ok {
			intersection++
		}
	}
	union := len(aWords) + len(bWords) - intersection
	return float64(intersection) / float64(union)
}

func significantWords(fact string, exclude map[string]struct{}) map[string]struct{} {
	words := make(map[string]struct{})
	for _, raw := range strings.Fields(fact) {
		w := strings.TrimFunc(raw, isTokenPunct)
		if len(w) <= 3 || containsDigit(w) {
			continue
		}
		if _, skip := exclude[w]; skip {
			continue
		}
		words[w] = struct{}{}
	}
	return words
}
