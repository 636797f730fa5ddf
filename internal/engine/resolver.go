package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/latticehq/lattice/internal/llm"
	"github.com/latticehq/lattice/pkg/types"
)

// Resolution thresholds. The ladder errs toward creating a new entity when
// evidence is thin: a spurious split is recoverable, a wrong merge corrupts
// both identities.
const (
	strongMatchThreshold = 0.8
	clearMarginThreshold = 0.5
	clearMarginGap       = 0.2
	arbitrationThreshold = 0.3
	newEntityThreshold   = 0.4
	fallbackThreshold    = 0.6
)

// maxArbitrationCandidates caps how many entities are forwarded to the LLM
// arbitration prompt.
const maxArbitrationCandidates = 3

// maxArbitrationFacts caps how many facts are quoted per candidate.
const maxArbitrationFacts = 5

// Resolver decides whether a mention refers to an existing entity or a new
// one. The arbitrator is optional; without it the ladder skips straight to
// its deterministic branches.
type Resolver struct {
	arbitrator llm.Arbitrator
	log        zerolog.Logger
	now        func() time.Time
}

// NewResolver creates a resolver. arbitrator may be nil.
func NewResolver(arbitrator llm.Arbitrator, logger zerolog.Logger) *Resolver {
	return &Resolver{
		arbitrator: arbitrator,
		log:        logger.With().Str("component", "resolver").Logger(),
		now:        time.Now,
	}
}

// ScoreCandidates scores every pool entity against the mention and returns
// the candidates with any name signal at all, sorted best first.
func (r *Resolver) ScoreCandidates(mention types.ExtractedMention, pool []*types.Entity) []types.ResolutionCandidate {
	now := r.now()
	var candidates []types.ResolutionCandidate
	for _, entity := range pool {
		name := NameSimilarity(mention.Name, entity.Name)
		if name == 0 {
			continue
		}
		context := ContextScore(mention.Facts, entity.ActiveFactContents())
		recency := RecencyScore(entity.LastAccessed(), now)
		candidates = append(candidates, types.ResolutionCandidate{
			Entity: entity,
			Score:  CombinedScore(name, context, recency),
			Reasons: []string{
				fmt.Sprintf("name similarity %.2f", name),
				fmt.Sprintf("context overlap %.2f", context),
				fmt.Sprintf("recency %.2f", recency),
			},
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}

// Resolve runs the decision ladder for one mention against the candidate
// pool of its type. sourceText is forwarded to arbitration as context.
// A new-entity result has Entity nil; the caller constructs it.
func (r *Resolver) Resolve(ctx context.Context, mention types.ExtractedMention, pool []*types.Entity, sourceText string) (*types.ResolvedEntity, error) {
	if len(pool) == 0 {
		return &types.ResolvedEntity{
			Mention:    mention,
			IsNew:      true,
			Confidence: 1.0,
			Reason:     "no existing entities of this type",
		}, nil
	}

	candidates := r.ScoreCandidates(mention, pool)
	if len(candidates) == 0 {
		return &types.ResolvedEntity{
			Mention:    mention,
			IsNew:      true,
			Confidence: 0.9,
			Reason:     "no name similarity to any existing entity",
		}, nil
	}

	top := candidates[0]
	r.log.Debug().
		Str("mention", mention.Name).
		Str("top", top.Entity.Name).
		Float64("score", top.Score).
		Int("candidates", len(candidates)).
		Msg("scored candidates")

	if top.Score > strongMatchThreshold {
		return r.match(mention, top, "strong match: "+top.Reasons[0]), nil
	}

	gap := top.Score
	if len(candidates) > 1 {
		gap = top.Score - candidates[1].Score
	}
	if top.Score > clearMarginThreshold && gap > clearMarginGap {
		return r.match(mention, top, fmt.Sprintf("clear margin over next candidate (%.2f)", gap)), nil
	}

	if r.arbitrator != nil && top.Score > arbitrationThreshold {
		return r.arbitrate(ctx, mention, candidates, sourceText)
	}

	if top.Score < newEntityThreshold {
		return &types.ResolvedEntity{
			Mention:    mention,
			IsNew:      true,
			Confidence: 0.6,
			Reason:     fmt.Sprintf("best candidate %q scored only %.2f", top.Entity.Name, top.Score),
		}, nil
	}

	return r.match(mention, top, "best available candidate"), nil
}

func (r *Resolver) match(mention types.ExtractedMention, c types.ResolutionCandidate, reason string) *types.ResolvedEntity {
	confidence := c.Score
	if confidence > 1 {
		confidence = 1
	}
	return &types.ResolvedEntity{
		Mention:    mention,
		Entity:     c.Entity,
		Confidence: confidence,
		Reason:     reason,
	}
}

// arbitrate forwards the top candidates to the LLM and maps its decision
// back onto the pool. Arbitration failures fall back deterministically:
// accept the top candidate when its score clears the fallback threshold,
// otherwise create a new entity at low confidence.
func (r *Resolver) arbitrate(ctx context.Context, mention types.ExtractedMention, candidates []types.ResolutionCandidate, sourceText string) (*types.ResolvedEntity, error) {
	presented := candidates
	if len(presented) > maxArbitrationCandidates {
		presented = presented[:maxArbitrationCandidates]
	}

	arbCandidates := make([]llm.ArbitrationCandidate, len(presented))
	for i, c := range presented {
		facts := c.Entity.ActiveFactContents()
		if len(facts) > maxArbitrationFacts {
			facts = facts[:maxArbitrationFacts]
		}
		arbCandidates[i] = llm.ArbitrationCandidate{
			Name:         c.Entity.Name,
			Facts:        facts,
			LastAccessed: c.Entity.LastAccessed(),
			AccessCount:  c.Entity.AccessCount(),
			Score:        c.Score,
		}
	}

	decision, err := r.arbitrator.Arbitrate(ctx, mention, arbCandidates, sourceText)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.log.Warn().Err(err).Str("mention", mention.Name).Msg("arbitration failed, using deterministic fallback")
		top := presented[0]
		if top.Score > fallbackThreshold {
			return r.match(mention, top, "arbitration unavailable, top score accepted"), nil
		}
		return &types.ResolvedEntity{
			Mention:    mention,
			IsNew:      true,
			Confidence: 0.3,
			Reason:     "arbitration unavailable and no confident match",
		}, nil
	}

	if decision.Match == 0 {
		return &types.ResolvedEntity{
			Mention:    mention,
			IsNew:      true,
			Confidence: decision.Confidence,
			Reason:     "arbitration: " + decision.Reason,
		}, nil
	}

	chosen := presented[decision.Match-1]
	res := r.match(mention, chosen, "arbitration: "+decision.Reason)
	res.Confidence = decision.Confidence
	return res, nil
}
