package llm

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticehq/lattice/pkg/types"
)

// scriptedGenerator returns a fixed completion or error.
type scriptedGenerator struct {
	response string
	err      error
	prompts  []string
}

func (g *scriptedGenerator) Complete(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	return g.response, nil
}

func (g *scriptedGenerator) GetModel() string { return "scripted" }

func TestTextArbitratorParsesDecision(t *testing.T) {
	gen := &scriptedGenerator{response: `{"match": 2, "confidence": 0.8, "reason": "shared project"}`}
	a := NewTextArbitrator(gen)

	mention := types.ExtractedMention{Name: "Adam", Type: types.EntityPerson, Facts: []string{"works on Q3 planning"}}
	candidates := []ArbitrationCandidate{
		{Name: "Adam Watson", Facts: []string{"leads Q3 planning"}},
		{Name: "Adam Womack", Facts: []string{"freelance illustrator"}},
	}

	d, err := a.Arbitrate(context.Background(), mention, candidates, "meeting notes")
	require.NoError(t, err)
	assert.Equal(t, 2, d.Match)
	assert.Equal(t, 0.8, d.Confidence)

	require.Len(t, gen.prompts, 1)
	prompt := gen.prompts[0]
	assert.Contains(t, prompt, `"Adam"`)
	assert.Contains(t, prompt, "1. Adam Watson")
	assert.Contains(t, prompt, "2. Adam Womack")
	assert.Contains(t, prompt, "0. None of the above")
	assert.Contains(t, prompt, "meeting notes")
}

func TestTextArbitratorPropagatesErrors(t *testing.T) {
	a := NewTextArbitrator(&scriptedGenerator{err: fmt.Errorf("connection refused")})

	_, err := a.Arbitrate(context.Background(), types.ExtractedMention{Name: "Adam"},
		[]ArbitrationCandidate{{Name: "Adam Watson"}}, "")
	assert.Error(t, err)
}

func TestTextArbitratorRejectsEmptyCandidates(t *testing.T) {
	a := NewTextArbitrator(&scriptedGenerator{response: "{}"})

	_, err := a.Arbitrate(context.Background(), types.ExtractedMention{Name: "Adam"}, nil, "")
	assert.Error(t, err)
}

func TestTextSummarizerCleansResponse(t *testing.T) {
	gen := &scriptedGenerator{response: "```\nAdam leads Q3 planning and lives in Berlin.\n```"}
	s := NewTextSummarizer(gen)

	out, err := s.Summarize(context.Background(), "Adam Watson", types.EntityPerson,
		[]string{"leads Q3 planning", "moved to Berlin"})
	require.NoError(t, err)
	assert.Equal(t, "Adam leads Q3 planning and lives in Berlin.", out)
}

func TestTextSummarizerRejectsEmptyFacts(t *testing.T) {
	s := NewTextSummarizer(&scriptedGenerator{response: "x"})

	_, err := s.Summarize(context.Background(), "Adam Watson", types.EntityPerson, nil)
	assert.Error(t, err)
}
