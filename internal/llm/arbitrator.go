package llm

import (
	"context"
	"fmt"

	"github.com/latticehq/lattice/pkg/types"
)

// TextArbitrator implements Arbitrator on top of any TextGenerator.
type TextArbitrator struct {
	gen TextGenerator
}

// NewTextArbitrator creates an arbitrator backed by gen.
func NewTextArbitrator(gen TextGenerator) *TextArbitrator {
	return &TextArbitrator{gen: gen}
}

// Arbitrate presents the candidates to the model and parses its decision.
// Errors (network, circuit open, unparseable response) propagate so the
// resolution engine can take its deterministic fallback path.
func (a *TextArbitrator) Arbitrate(ctx context.Context, mention types.ExtractedMention, candidates []ArbitrationCandidate, sourceText string) (*ArbitrationDecision, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no candidates to arbitrate")
	}

	prompt := ArbitrationPrompt(mention, candidates, sourceText)
	raw, err := a.gen.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("arbitration call failed: %w", err)
	}

	decision, err := ParseArbitrationDecision(raw, len(candidates))
	if err != nil {
		return nil, err
	}
	return decision, nil
}

// TextSummarizer implements Summarizer on top of any TextGenerator.
type TextSummarizer struct {
	gen TextGenerator
}

// NewTextSummarizer creates a summarizer backed by gen.
func NewTextSummarizer(gen TextGenerator) *TextSummarizer {
	return &TextSummarizer{gen: gen}
}

// Summarize asks the model for a short prose summary of the entity.
func (s *TextSummarizer) Summarize(ctx context.Context, name string, entityType types.EntityType, facts []string) (string, error) {
	if len(facts) == 0 {
		return "", fmt.Errorf("no facts to summarize")
	}

	raw, err := s.gen.Complete(ctx, SummaryPrompt(name, entityType, facts))
	if err != nil {
		return "", fmt.Errorf("summarization call failed: %w", err)
	}

	summary := CleanSummary(raw)
	if summary == "" {
		return "", fmt.Errorf("summarization returned empty response")
	}
	return summary, nil
}
