package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRedundantExactMatch(t *testing.T) {
	existing := []string{"Prefers async communication"}

	assert.True(t, IsRedundant("Prefers async communication", existing, "Adam Watson"))
	assert.True(t, IsRedundant("prefers async communication", existing, "Adam Watson"))
	assert.True(t, IsRedundant("  Prefers async communication  ", existing, "Adam Watson"))
}

func TestIsRedundantSelfProperty(t *testing.T) {
	// Any fact is redundant against a set containing itself.
	facts := []string{
		"Leads the Q3 planning effort",
		"Moved to Berlin in 2024",
		"Clicks: 1,234 in January",
	}
	for _, f := range facts {
		assert.True(t, IsRedundant(f, facts, "Adam Watson"), "fact %q must be redundant against itself", f)
	}
}

func TestIsRedundantNearIdenticalSubstring(t *testing.T) {
	existing := []string{"Leads the Q3 planning effort."}

	// Trailing punctuation dropped: contained, length ratio ~0.97.
	assert.True(t, IsRedundant("Leads the Q3 planning effort", existing, "Adam Watson"))
}

func TestIsRedundantElaborationKept(t *testing.T) {
	existing := []string{"Works at Atlas"}

	// Contains the old fact but adds real information; length ratio is far
	// below the bar, so it must be kept.
	assert.False(t, IsRedundant("Works at Atlas as head of design since January", existing, "Adam Watson"))
}

func TestIsRedundantNumericRestatement(t *testing.T) {
	existing := []string{"Clicks: 1,234 in January"}

	assert.True(t, IsRedundant("Got 1,234 clicks in January", existing, "Campaign Alpha"))
}

func TestIsRedundantDifferentNumbersKept(t *testing.T) {
	existing := []string{"Clicks: 1,234 in January"}

	assert.False(t, IsRedundant("Clicks: 5,678 in January", existing, "Campaign Alpha"))
}

func TestIsRedundantSameNumberDifferentTopicKept(t *testing.T) {
	existing := []string{"Raised 1,234 support tickets in March"}

	// Same numeric token but almost no shared vocabulary.
	assert.False(t, IsRedundant("Got 1,234 clicks in January", existing, "Campaign Alpha"))
}

func TestIsRedundantUnrelatedKept(t *testing.T) {
	existing := []string{
		"Prefers async communication",
		"Leads the Q3 planning effort",
	}

	assert.False(t, IsRedundant("Moved to Berlin in 2024", existing, "Adam Watson"))
}

func TestIsRedundantEmptyInputs(t *testing.T) {
	assert.False(t, IsRedundant("Prefers async communication", nil, "Adam Watson"))
	assert.False(t, IsRedundant("", []string{"Prefers async communication"}, "Adam Watson"))
}

func TestNumericTokens(t *testing.T) {
	assert.Equal(t, []string{"1234"}, numericTokens("clicks: 1,234 in january"))
	assert.Equal(t, []string{"2024", "3"}, numericTokens("moved 3 times since 2024"))
	assert.Empty(t, numericTokens("no numbers here"))

	// Grouping commas and plain digits normalize to the same token.
	assert.Equal(t, numericTokens("1,234 clicks"), numericTokens("1234 clicks"))
}
