package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/latticehq/lattice/internal/storage"
	"github.com/latticehq/lattice/pkg/types"
)

// Merger appends non-redundant candidate facts to an entity. Merging never
// triggers summarization itself; it only leaves the entity flagged stale so
// the next synthesis sweep regenerates the digest.
type Merger struct {
	store  storage.EntityStore
	events *EventBuffer
	log    zerolog.Logger
	now    func() time.Time
}

// NewMerger creates a merger writing through store. events may be nil.
func NewMerger(store storage.EntityStore, events *EventBuffer, logger zerolog.Logger) *Merger {
	return &Merger{
		store:  store,
		events: events,
		log:    logger.With().Str("component", "merger").Logger(),
		now:    time.Now,
	}
}

// MergeFacts filters candidateFacts against the entity's active facts and
// persists the survivors, tagged with source. The comparison set accumulates
// as candidates are accepted, so near-duplicates within one batch collapse
// to a single fact. The entity's in-memory fact list is updated so it keeps
// serving as an up-to-date candidate in the same batch.
//
// Returns the facts that were actually added.
func (m *Merger) MergeFacts(ctx context.Context, entity *types.Entity, candidateFacts []string, source string) ([]types.Fact, error) {
	comparison := entity.ActiveFactContents()
	now := m.now()

	var added []types.Fact
	for _, candidate := range candidateFacts {
		content := strings.TrimSpace(candidate)
		if content == "" {
			continue
		}
		if IsRedundant(content, comparison, entity.Name) {
			m.log.Debug().Str("entity", entity.ID).Str("fact", content).Msg("redundant fact dropped")
			continue
		}
		added = append(added, types.Fact{
			ID:        uuid.NewString(),
			Content:   content,
			Category:  types.CategoryContext,
			Source:    source,
			Status:    types.FactActive,
			CreatedAt: now,
		})
		comparison = append(comparison, content)
	}

	if len(added) == 0 {
		return nil, nil
	}

	if err := m.store.AppendFacts(ctx, entity.ID, added); err != nil {
		return nil, fmt.Errorf("append facts to %s: %w", entity.ID, err)
	}
	entity.Facts = append(entity.Facts, added...)
	entity.SummaryStale = true
	entity.UpdatedAt = now

	m.log.Info().Str("entity", entity.ID).Int("added", len(added)).
		Int("dropped", len(candidateFacts)-len(added)).Msg("facts merged")
	if m.events != nil {
		m.events.Emit(Event{
			Type:     EventMerge,
			EntityID: entity.ID,
			Message:  fmt.Sprintf("merged %d facts", len(added)),
			Fields: map[string]interface{}{
				"added":   len(added),
				"dropped": len(candidateFacts) - len(added),
				"source":  source,
			},
		})
	}

	return added, nil
}
