// Package llm provides the optional text-generation collaborators used by
// the resolution engine: arbitration (tie-breaking among near-equal
// candidates) and summarization (regenerating entity digests). Both degrade
// to deterministic fallbacks in the engine when unavailable; nothing in this
// package is on the correctness-critical path.
package llm

import (
	"context"
	"time"

	"github.com/latticehq/lattice/pkg/types"
)

// TextGenerator is the interface for LLM text completion.
// All prompts use single-string completion style (not chat).
type TextGenerator interface {
	Complete(ctx context.Context, prompt string) (string, error)
	GetModel() string
}

// EmbeddingGenerator is the interface for generating vector embeddings.
// Used only to embed regenerated summaries for backends that store them.
type EmbeddingGenerator interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	GetModel() string
}

// ArbitrationCandidate is one entity presented to the arbitration call:
// its name, known facts, and recency/access stats.
type ArbitrationCandidate struct {
	Name         string
	Facts        []string
	LastAccessed *time.Time
	AccessCount  int
	Score        float64
}

// ArbitrationDecision is the structured outcome parsed from an arbitration
// response. Match is 1-based into the presented candidate list; 0 means
// "none of the above".
type ArbitrationDecision struct {
	Match      int     `json:"match"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Arbitrator picks among near-equally-scored resolution candidates.
type Arbitrator interface {
	Arbitrate(ctx context.Context, mention types.ExtractedMention, candidates []ArbitrationCandidate, sourceText string) (*ArbitrationDecision, error)
}

// Summarizer produces a short prose summary of an entity from its facts.
type Summarizer interface {
	Summarize(ctx context.Context, name string, entityType types.EntityType, facts []string) (string, error)
}
