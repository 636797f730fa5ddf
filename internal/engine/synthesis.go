package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/latticehq/lattice/internal/llm"
	"github.com/latticehq/lattice/internal/storage"
	"github.com/latticehq/lattice/pkg/types"
)

// Decay tier boundaries, in days since last access (or creation, for facts
// never accessed).
const (
	hotDays  = 7
	warmDays = 30
)

// relaxedAccessCount is the access count at which a fact earns the relaxed
// decay curve: heavily referenced knowledge stays hot and warm twice as long.
const relaxedAccessCount = 10

// archivedPlaceholder is the summary for entities left with no active facts.
const archivedPlaceholder = "knowledge archived"

// maxFallbackFacts caps how many facts the deterministic summary fallback
// concatenates.
const maxFallbackFacts = 3

// SynthesisReport is the outcome of one full-graph sweep.
type SynthesisReport struct {
	Started     time.Time        `json:"started"`
	Finished    time.Time        `json:"finished"`
	Processed   int              `json:"processed"`
	Archived    int              `json:"archived"`
	Regenerated int              `json:"regenerated"`
	Errors      []SynthesisError `json:"errors,omitempty"`
}

// SynthesisError records a failure isolated to one entity or one type scan.
type SynthesisError struct {
	EntityID string `json:"entity_id,omitempty"`
	Error    string `json:"error"`
}

// Synthesizer runs the decay sweep: retier facts by access recency, archive
// what has gone cold, and regenerate summaries. Summarizer and embedder are
// optional; without them the sweep uses the deterministic fallback and skips
// embeddings.
type Synthesizer struct {
	store      storage.EntityStore
	summarizer llm.Summarizer
	embedder   llm.EmbeddingGenerator
	events     *EventBuffer
	log        zerolog.Logger
	now        func() time.Time
}

// NewSynthesizer creates a synthesizer. summarizer, embedder, and events may
// each be nil.
func NewSynthesizer(store storage.EntityStore, summarizer llm.Summarizer, embedder llm.EmbeddingGenerator, events *EventBuffer, logger zerolog.Logger) *Synthesizer {
	return &Synthesizer{
		store:      store,
		summarizer: summarizer,
		embedder:   embedder,
		events:     events,
		log:        logger.With().Str("component", "synthesis").Logger(),
		now:        time.Now,
	}
}

// Run sweeps every entity of every type. Each entity is processed
// independently: a failure is recorded in the report and the sweep moves on.
// Cancellation is honored between entities, never inside one, so a cancelled
// sweep leaves no entity partially retiered. The sweep is idempotent: a
// second run over an unchanged graph makes no further changes.
func (s *Synthesizer) Run(ctx context.Context) (*SynthesisReport, error) {
	report := &SynthesisReport{Started: s.now()}
	defer func() { report.Finished = s.now() }()

	for _, entityType := range types.AllEntityTypes {
		entities, err := s.store.ListByType(ctx, entityType)
		if err != nil {
			s.log.Error().Err(err).Str("type", string(entityType)).Msg("listing entities failed, skipping type")
			report.Errors = append(report.Errors, SynthesisError{
				Error: fmt.Sprintf("list %s entities: %v", entityType, err),
			})
			continue
		}

		for _, entity := range entities {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			archived, regenerated, err := s.processEntity(ctx, entity)
			report.Processed++
			report.Archived += archived
			if regenerated {
				report.Regenerated++
			}
			if err != nil {
				s.log.Error().Err(err).Str("entity", entity.ID).Msg("synthesis failed for entity")
				report.Errors = append(report.Errors, SynthesisError{
					EntityID: entity.ID,
					Error:    err.Error(),
				})
			}
		}
	}

	s.log.Info().Int("processed", report.Processed).Int("archived", report.Archived).
		Int("regenerated", report.Regenerated).Int("errors", len(report.Errors)).
		Msg("synthesis sweep complete")
	if s.events != nil {
		s.events.Emit(Event{
			Type:    EventSynthesis,
			Message: "synthesis sweep complete",
			Fields: map[string]interface{}{
				"processed":   report.Processed,
				"archived":    report.Archived,
				"regenerated": report.Regenerated,
				"errors":      len(report.Errors),
			},
		})
	}
	return report, nil
}

// processEntity retiers one entity's facts and regenerates its summary.
// Returns the number of newly archived facts and whether a summary was
// written.
func (s *Synthesizer) processEntity(ctx context.Context, entity *types.Entity) (int, bool, error) {
	now := s.now()

	var changes []storage.FactTierChange
	archived := 0
	var activeFacts []string

	for i := range entity.Facts {
		fact := &entity.Facts[i]
		if fact.Status != types.FactActive {
			continue
		}

		tier := factTier(fact, now)
		if tier == types.TierCold {
			changes = append(changes, storage.FactTierChange{
				FactID:  fact.ID,
				Tier:    tier,
				Archive: true,
			})
			archived++
			continue
		}

		activeFacts = append(activeFacts, fact.Content)
		if fact.Tier != tier {
			changes = append(changes, storage.FactTierChange{FactID: fact.ID, Tier: tier})
		}
	}

	if len(changes) > 0 {
		if err := s.store.RetierFacts(ctx, entity.ID, changes); err != nil {
			return 0, false, fmt.Errorf("retier: %w", err)
		}
	}

	summary, err := s.regenerateSummary(ctx, entity, activeFacts)
	if err != nil {
		return archived, false, err
	}
	if err := s.store.SetSummary(ctx, entity.ID, summary); err != nil {
		return archived, false, fmt.Errorf("set summary: %w", err)
	}
	entity.Summary = summary
	entity.SummaryStale = false

	s.storeEmbedding(ctx, entity.ID, summary)

	if archived > 0 && s.events != nil {
		s.events.Emit(Event{
			Type:     EventSynthesis,
			EntityID: entity.ID,
			Message:  fmt.Sprintf("archived %d cold facts", archived),
			Fields:   map[string]interface{}{"archived": archived},
		})
	}
	return archived, true, nil
}

// factTier classifies one active fact by days since its last access, falling
// back to its creation date for facts never surfaced by a read path. Facts
// with missing timestamps entirely count as brand new rather than ancient:
// data errors must never archive knowledge.
func factTier(fact *types.Fact, now time.Time) types.FactTier {
	ref := fact.CreatedAt
	if fact.LastAccessedAt != nil && !fact.LastAccessedAt.IsZero() {
		ref = *fact.LastAccessedAt
	}
	if ref.IsZero() {
		return types.TierHot
	}

	days := now.Sub(ref).Hours() / 24
	hot, warm := float64(hotDays), float64(warmDays)
	if fact.AccessCount >= relaxedAccessCount {
		hot, warm = hot*2, warm*2
	}

	switch {
	case days <= hot:
		return types.TierHot
	case days <= warm:
		return types.TierWarm
	default:
		return types.TierCold
	}
}

// regenerateSummary produces the entity's new digest from its remaining
// active facts. The summarizer is best-effort; any failure falls back to
// concatenating the first few facts so the sweep always completes.
func (s *Synthesizer) regenerateSummary(ctx context.Context, entity *types.Entity, activeFacts []string) (string, error) {
	if len(activeFacts) == 0 {
		return archivedPlaceholder, nil
	}

	if s.summarizer != nil {
		summary, err := s.summarizer.Summarize(ctx, entity.Name, entity.Type, activeFacts)
		if err == nil && summary != "" {
			return summary, nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			s.log.Warn().Err(err).Str("entity", entity.ID).Msg("summarization failed, using fallback")
		}
	}

	head := activeFacts
	if len(head) > maxFallbackFacts {
		head = head[:maxFallbackFacts]
	}
	return strings.Join(head, "; "), nil
}

// storeEmbedding embeds the regenerated summary when both an embedder and an
// embedding-capable store are configured. Failures are logged only.
func (s *Synthesizer) storeEmbedding(ctx context.Context, entityID, summary string) {
	if s.embedder == nil || summary == "" {
		return
	}
	embStore, ok := s.store.(storage.SummaryEmbeddingStore)
	if !ok {
		return
	}
	vec, err := s.embedder.Embed(ctx, summary)
	if err != nil {
		s.log.Warn().Err(err).Str("entity", entityID).Msg("summary embedding failed")
		return
	}
	if err := embStore.SetSummaryEmbedding(ctx, entityID, vec); err != nil {
		s.log.Warn().Err(err).Str("entity", entityID).Msg("storing summary embedding failed")
	}
}
