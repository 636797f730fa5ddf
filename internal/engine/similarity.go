package engine

import (
	"math"
	"strings"
	"time"
)

// Similarity scoring is deliberately pure: no I/O, no clock reads. The caller
// supplies "now" so the same pool scores identically within one batch.

// Combined-score weights. Name identity dominates; shared vocabulary helps;
// recency is a mild tiebreaker only.
const (
	weightName    = 0.5
	weightContext = 0.35
	weightRecency = 0.15
)

// stopWords are dropped before context comparison. Tokens this common carry
// no discriminating signal between entities.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "that": {}, "this": {},
	"from": {}, "have": {}, "has": {}, "was": {}, "were": {}, "are": {},
	"not": {}, "but": {}, "they": {}, "their": {}, "his": {}, "her": {},
	"our": {}, "your": {}, "will": {}, "would": {}, "about": {}, "into": {},
	"over": {}, "after": {}, "before": {}, "been": {}, "being": {},
	"than": {}, "then": {}, "them": {}, "there": {}, "what": {},
	"when": {}, "which": {}, "who": {}, "how": {}, "all": {}, "also": {},
	"can": {}, "could": {}, "had": {}, "does": {}, "did": {}, "just": {},
	"more": {}, "most": {}, "other": {}, "some": {}, "such": {},
	"only": {}, "same": {}, "very": {}, "you": {}, "out": {}, "get": {},
	"got": {},
}

// NameSimilarity scores how well a mentioned name matches an entity's display
// name, in [0,1]. Comparison is case-insensitive. The bands, strongest first:
// exact match, mention-is-prefix of a longer full name ("Adam" vs
// "Adam Watson"), shared whitespace tokens, raw substring containment.
func NameSimilarity(mention, entityName string) float64 {
	m := strings.ToLower(strings.TrimSpace(mention))
	e := strings.ToLower(strings.TrimSpace(entityName))
	if m == "" || e == "" {
		return 0
	}
	if m == e {
		return 1.0
	}

	// First-name style prefix: the mention is the leading word(s) of the
	// entity's full name. Longer prefixes score closer to 0.9.
	if strings.HasPrefix(e, m+" ") {
		return 0.7 + 0.2*float64(len(m))/float64(len(e))
	}

	entityTokens := strings.Fields(e)
	entitySet := make(map[string]struct{}, len(entityTokens))
	for _, t := range entityTokens {
		entitySet[t] = struct{}{}
	}
	matching := 0
	for _, t := range strings.Fields(m) {
		if _, ok := entitySet[t]; ok {
			matching++
		}
	}
	if matching > 0 {
		return 0.5 + 0.3*float64(matching)/float64(len(entityTokens))
	}

	if strings.Contains(e, m) {
		return 0.3
	}
	return 0
}

// RecencyScore maps a last-access timestamp to [0.1, 1.0] relative to now.
// Never-accessed entities get the floor rather than zero so that a strong
// name match alone can still clear the resolution thresholds.
func RecencyScore(lastAccessed *time.Time, now time.Time) float64 {
	if lastAccessed == nil || lastAccessed.IsZero() {
		return 0.1
	}
	hours := now.Sub(*lastAccessed).Hours()
	if hours < 0 {
		hours = 0
	}
	switch {
	case hours < 1:
		return 1.0
	case hours < 24:
		return 0.8 + 0.2*(1-hours/24)
	case hours < 168:
		return 0.5 + 0.3*(1-hours/168)
	default:
		return math.Max(0.1, 0.5*math.Exp(-hours/720))
	}
}

// ContextScore measures vocabulary overlap between a mention's candidate
// facts and an entity's stored facts, in [0,1]. Overlap is normalized by the
// square root of the entity's token count so fact-heavy entities aren't
// penalized. Zero when either side has no usable tokens.
func ContextScore(mentionFacts, entityFacts []string) float64 {
	mentionTokens := contextTokens(mentionFacts)
	entityTokens := contextTokens(entityFacts)
	if len(mentionTokens) == 0 || len(entityTokens) == 0 {
		return 0
	}

	overlap := 0
	for t := range mentionTokens {
		if _, ok := entityTokens[t]; ok {
			overlap++
		}
	}
	score := float64(overlap) / math.Sqrt(float64(len(entityTokens)))
	if score > 1 {
		return 1
	}
	return score
}

// contextTokens lowercases and tokenizes fact strings into a set, dropping
// stop words and short tokens. Short tokens that contain a digit are kept:
// identifiers like "Q3" are exactly the high-signal context worth matching.
func contextTokens(facts []string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, fact := range facts {
		for _, raw := range strings.Fields(strings.ToLower(fact)) {
			t := strings.TrimFunc(raw, isTokenPunct)
			if t == "" {
				continue
			}
			if len(t) <= 2 && !containsDigit(t) {
				continue
			}
			if _, stop := stopWords[t]; stop {
				continue
			}
			tokens[t] = struct{}{}
		}
	}
	return tokens
}

// CombinedScore blends the three signals with fixed weights.
func CombinedScore(name, context, recency float64) float64 {
	return weightName*name + weightContext*context + weightRecency*recency
}

func isTokenPunct(r rune) bool {
	return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
}

func containsDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}
