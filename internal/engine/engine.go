// Package engine implements the entity-resolution and memory-consolidation
// pipeline: similarity scoring, batch deduplication, redundancy-filtered
// fact merging, and the decay/synthesis sweep.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/latticehq/lattice/internal/llm"
	"github.com/latticehq/lattice/internal/storage"
	"github.com/latticehq/lattice/pkg/types"
)

// Options configures the optional collaborators of an Engine. Every field
// may be zero; the engine then runs fully deterministic.
type Options struct {
	Arbitrator      llm.Arbitrator
	Summarizer      llm.Summarizer
	Embedder        llm.EmbeddingGenerator
	Logger          zerolog.Logger
	EventBufferSize int
}

// Engine ties the pipeline together around one entity store.
type Engine struct {
	store       storage.EntityStore
	resolver    *Resolver
	dedup       *Deduplicator
	merger      *Merger
	synthesizer *Synthesizer
	events      *EventBuffer
	log         zerolog.Logger
}

// New creates an engine over store.
func New(store storage.EntityStore, opts Options) *Engine {
	events := NewEventBuffer(opts.EventBufferSize)
	log := opts.Logger.With().Str("component", "engine").Logger()
	resolver := NewResolver(opts.Arbitrator, opts.Logger)
	return &Engine{
		store:       store,
		resolver:    resolver,
		dedup:       NewDeduplicator(resolver, opts.Logger),
		merger:      NewMerger(store, events, opts.Logger),
		synthesizer: NewSynthesizer(store, opts.Summarizer, opts.Embedder, events, opts.Logger),
		events:      events,
		log:         log,
	}
}

// Events exposes the engine's telemetry buffer.
func (e *Engine) Events() *EventBuffer { return e.events }

// IngestReport summarizes one document ingestion.
type IngestReport struct {
	SourceID   string                  `json:"source_id"`
	Resolved   []*types.ResolvedEntity `json:"resolved"`
	Created    int                     `json:"created"`
	Matched    int                     `json:"matched"`
	FactsAdded int                     `json:"facts_added"`
}

// IngestDocument runs the full pipeline for one source document: load the
// candidate pools (once per type), resolve every mention with batch
// deduplication, create new entities, and merge each mention's facts into
// its resolved entity.
//
// Mentions with an empty name or an unknown type are dropped with a warning;
// extraction output is untrusted. A store failure loading pools aborts the
// whole batch, per-entity persistence failures abort the batch at that point
// and return what was completed.
func (e *Engine) IngestDocument(ctx context.Context, doc types.SourceDocument) (*IngestReport, error) {
	report := &IngestReport{SourceID: doc.SourceID}

	mentions := make([]types.ExtractedMention, 0, len(doc.Mentions))
	for _, m := range doc.Mentions {
		if m.Name == "" || !types.IsValidEntityType(m.Type) {
			e.log.Warn().Str("name", m.Name).Str("type", string(m.Type)).
				Str("source", doc.SourceID).Msg("dropping malformed mention")
			continue
		}
		mentions = append(mentions, m)
	}
	if len(mentions) == 0 {
		return report, nil
	}

	pools := make(map[types.EntityType][]*types.Entity, len(types.AllEntityTypes))
	for _, t := range types.AllEntityTypes {
		pool, err := e.store.ListByType(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("load %s pool: %w", t, err)
		}
		pools[t] = pool
	}

	resolved, err := e.dedup.ResolveBatch(ctx, mentions, pools, doc.Text)
	if err != nil {
		return report, err
	}
	report.Resolved = resolved

	for _, res := range resolved {
		entity := res.Entity

		if res.IsNew {
			if err := e.store.Create(ctx, entity); err != nil {
				if errors.Is(err, storage.ErrDuplicateSlug) {
					// Lost a race with a concurrent batch; adopt the winner.
					existing, getErr := e.store.Get(ctx, entity.ID)
					if getErr != nil {
						return report, fmt.Errorf("create %s: %w", entity.ID, err)
					}
					res.Entity = existing
					res.IsNew = false
					entity = existing
				} else {
					return report, fmt.Errorf("create %s: %w", entity.ID, err)
				}
			}
		}
		if res.IsNew {
			report.Created++
		} else {
			report.Matched++
		}

		e.emitResolution(res)

		added, err := e.merger.MergeFacts(ctx, entity, res.Mention.Facts, doc.SourceID)
		if err != nil {
			return report, err
		}
		report.FactsAdded += len(added)
	}

	e.log.Info().Str("source", doc.SourceID).Int("mentions", len(mentions)).
		Int("created", report.Created).Int("matched", report.Matched).
		Int("facts_added", report.FactsAdded).Msg("document ingested")
	return report, nil
}

// Consolidate runs the decay and synthesis sweep over the whole graph.
func (e *Engine) Consolidate(ctx context.Context) (*SynthesisReport, error) {
	return e.synthesizer.Run(ctx)
}

// Touch records a read-path access of the given facts at the current time.
func (e *Engine) Touch(ctx context.Context, factIDs []string) error {
	if len(factIDs) == 0 {
		return nil
	}
	return e.store.TouchFacts(ctx, factIDs, time.Now())
}

func (e *Engine) emitResolution(res *types.ResolvedEntity) {
	verb := "matched"
	if res.IsNew {
		verb = "created"
	}
	e.events.Emit(Event{
		Type:     EventResolution,
		EntityID: res.Entity.ID,
		Message:  fmt.Sprintf("%s %q as %s", verb, res.Mention.Name, res.Entity.ID),
		Fields: map[string]interface{}{
			"confidence": res.Confidence,
			"is_new":     res.IsNew,
			"reason":     res.Reason,
		},
	})
}
