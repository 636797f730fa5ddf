package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArbitrationDecisionStrictJSON(t *testing.T) {
	raw := `{"match": 2, "confidence": 0.85, "reason": "facts overlap on Q3 planning"}`

	d, err := ParseArbitrationDecision(raw, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Match)
	assert.InDelta(t, 0.85, d.Confidence, 1e-9)
	assert.Equal(t, "facts overlap on Q3 planning", d.Reason)
}

func TestParseArbitrationDecisionMarkdownFences(t *testing.T) {
	raw := "Here is my decision:\n```json\n{\"match\": 1, \"confidence\": 0.9, \"reason\": \"exact name\"}\n```\nLet me know if you need anything else."

	d, err := ParseArbitrationDecision(raw, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Match)
}

func TestParseArbitrationDecisionTrailingComma(t *testing.T) {
	raw := `{"match": 0, "confidence": 0.7, "reason": "new entity",}`

	d, err := ParseArbitrationDecision(raw, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, d.Match)
	assert.InDelta(t, 0.7, d.Confidence, 1e-9)
}

func TestParseArbitrationDecisionUnquotedKeys(t *testing.T) {
	raw := `{match: 3, confidence: 0.6, reason: "recency"}`

	d, err := ParseArbitrationDecision(raw, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, d.Match)
	assert.InDelta(t, 0.6, d.Confidence, 1e-9)
}

func TestParseArbitrationDecisionPatternRecovery(t *testing.T) {
	// No valid JSON object at all — prose with embedded fields.
	raw := `I think the answer is match = 2 with confidence: 0.75 because the facts line up.`

	d, err := ParseArbitrationDecision(raw, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Match)
	assert.InDelta(t, 0.75, d.Confidence, 1e-9)
}

func TestParseArbitrationDecisionGarbage(t *testing.T) {
	_, err := ParseArbitrationDecision("I cannot decide, sorry.", 3)
	assert.Error(t, err)
}

func TestParseArbitrationDecisionOutOfRange(t *testing.T) {
	_, err := ParseArbitrationDecision(`{"match": 7, "confidence": 0.9, "reason": "x"}`, 3)
	assert.Error(t, err)

	_, err = ParseArbitrationDecision(`{"match": -1, "confidence": 0.9, "reason": "x"}`, 3)
	assert.Error(t, err)
}

func TestParseArbitrationDecisionClampsConfidence(t *testing.T) {
	d, err := ParseArbitrationDecision(`{"match": 1, "confidence": 1.7, "reason": "x"}`, 3)
	require.NoError(t, err)
	assert.Equal(t, 1.0, d.Confidence)
}

func TestExtractJSONBalancedBraces(t *testing.T) {
	raw := `prefix {"a": {"b": "}"}, "c": 1} suffix`
	assert.Equal(t, `{"a": {"b": "}"}, "c": 1}`, extractJSON(raw))
}

func TestRepairJSON(t *testing.T) {
	assert.Equal(t, `{"a": 1}`, repairJSON(`{a: 1,}`))
	assert.Equal(t, `{"a": [1, 2]}`, repairJSON(`{"a": [1, 2,],}`))
}

func TestCleanSummary(t *testing.T) {
	assert.Equal(t, "Atlas is a design agency.",
		CleanSummary("```\n\"Atlas is a design agency.\"\n```"))
}
