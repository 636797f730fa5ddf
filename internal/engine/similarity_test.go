package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNameSimilarityIdentity(t *testing.T) {
	assert.Equal(t, 1.0, NameSimilarity("Adam Watson", "Adam Watson"))
	assert.Equal(t, 1.0, NameSimilarity("adam watson", "Adam Watson"))
	assert.Equal(t, 1.0, NameSimilarity("  Atlas  ", "Atlas"))
}

func TestNameSimilarityPrefixBand(t *testing.T) {
	s := NameSimilarity("Adam", "Adam Watson")
	assert.Greater(t, s, 0.7)
	assert.Less(t, s, 0.9)

	// A longer prefix of the same full name scores higher.
	short := NameSimilarity("Adam", "Adam Watson Jr")
	long := NameSimilarity("Adam Watson", "Adam Watson Jr")
	assert.Greater(t, long, short)
}

func TestNameSimilarityTokenOverlap(t *testing.T) {
	// "Watson" is not a prefix of "Adam Watson" but shares a token.
	s := NameSimilarity("Watson", "Adam Watson")
	assert.InDelta(t, 0.5+0.3*0.5, s, 1e-9)

	// All tokens matching in different order.
	s = NameSimilarity("Watson Adam", "Adam Watson")
	assert.InDelta(t, 0.8, s, 1e-9)
}

func TestNameSimilaritySubstring(t *testing.T) {
	assert.Equal(t, 0.3, NameSimilarity("tla", "Atlas"))
}

func TestNameSimilarityNoMatch(t *testing.T) {
	assert.Equal(t, 0.0, NameSimilarity("Zoe", "Adam Watson"))
	assert.Equal(t, 0.0, NameSimilarity("", "Adam Watson"))
	assert.Equal(t, 0.0, NameSimilarity("Adam", ""))
}

func TestRecencyScoreBands(t *testing.T) {
	now := time.Now()
	at := func(d time.Duration) *time.Time {
		ts := now.Add(-d)
		return &ts
	}

	assert.Equal(t, 1.0, RecencyScore(at(30*time.Minute), now))
	assert.InDelta(t, 0.8+0.2*(1-12.0/24), RecencyScore(at(12*time.Hour), now), 1e-9)
	assert.InDelta(t, 0.5+0.3*(1-72.0/168), RecencyScore(at(72*time.Hour), now), 1e-9)
	assert.Less(t, RecencyScore(at(30*24*time.Hour), now), 0.4)
	assert.Equal(t, 0.1, RecencyScore(nil, now))

	// Very old access bottoms out at the floor.
	assert.Equal(t, 0.1, RecencyScore(at(365*24*time.Hour), now))
}

func TestRecencyScoreMonotonic(t *testing.T) {
	now := time.Now()
	durations := []time.Duration{
		0, 30 * time.Minute, 2 * time.Hour, 12 * time.Hour, 23 * time.Hour,
		25 * time.Hour, 4 * 24 * time.Hour, 6 * 24 * time.Hour,
		8 * 24 * time.Hour, 30 * 24 * time.Hour, 120 * 24 * time.Hour,
	}
	prev := 1.1
	for _, d := range durations {
		ts := now.Add(-d)
		score := RecencyScore(&ts, now)
		assert.LessOrEqual(t, score, prev, "recency must not increase with age (at %v)", d)
		assert.GreaterOrEqual(t, score, 0.1)
		assert.LessOrEqual(t, score, 1.0)
		prev = score
	}
}

func TestContextScoreOverlap(t *testing.T) {
	mention := []string{"works on Q3 planning"}
	entity := []string{"leads Q3 planning", "prefers async communication"}

	score := ContextScore(mention, entity)
	assert.Greater(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
}

func TestContextScoreEmptySides(t *testing.T) {
	assert.Equal(t, 0.0, ContextScore(nil, []string{"leads Q3 planning"}))
	assert.Equal(t, 0.0, ContextScore([]string{"works on Q3 planning"}, nil))
	// Stop words and short tokens only.
	assert.Equal(t, 0.0, ContextScore([]string{"is at the"}, []string{"leads Q3 planning"}))
}

func TestContextScoreKeepsShortNumericTokens(t *testing.T) {
	// "Q3" survives tokenization even though it is only two characters.
	score := ContextScore([]string{"Q3"}, []string{"Q3 roadmap"})
	assert.Greater(t, score, 0.0)
}

func TestContextScoreClamped(t *testing.T) {
	// Full overlap against a tiny entity vocabulary would exceed 1 before
	// clamping.
	score := ContextScore(
		[]string{"kubernetes migration deadline pressure"},
		[]string{"kubernetes migration"},
	)
	assert.Equal(t, 1.0, score)
}

func TestCombinedScoreWeights(t *testing.T) {
	assert.InDelta(t, 1.0, CombinedScore(1, 1, 1), 1e-9)
	assert.InDelta(t, 0.5, CombinedScore(1, 0, 0), 1e-9)
	assert.InDelta(t, 0.35, CombinedScore(0, 1, 0), 1e-9)
	assert.InDelta(t, 0.15, CombinedScore(0, 0, 1), 1e-9)
}

func TestAdamWatsonScenario(t *testing.T) {
	now := time.Now()
	recent := now.Add(-30 * time.Minute)

	name := NameSimilarity("Adam", "Adam Watson")
	context := ContextScore(
		[]string{"works on Q3 planning"},
		[]string{"leads Q3 planning", "based in Berlin"},
	)
	recency := RecencyScore(&recent, now)

	score := CombinedScore(name, context, recency)
	assert.Greater(t, score, 0.8, "recent prefix match with shared context must clear the strong-match bar")
}
