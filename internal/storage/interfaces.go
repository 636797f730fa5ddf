// Package storage defines the persistence interfaces for the Lattice
// knowledge graph. The resolution engine only needs a per-type key-value
// view of entities with their facts; backends implement these small
// interfaces independently and are composed by the caller.
package storage

import (
	"context"
	"time"

	"github.com/latticehq/lattice/pkg/types"
)

// EntityStore is the synchronous read/write interface the engine performs
// its operations against. Implementations must enforce slug uniqueness per
// entity type.
type EntityStore interface {
	// ListByType returns all entities of the given type with their facts
	// and access stats. This is the candidate-pool load for resolution.
	ListByType(ctx context.Context, entityType types.EntityType) ([]*types.Entity, error)

	// Get retrieves a single entity with its facts.
	// Returns ErrNotFound if the entity doesn't exist.
	Get(ctx context.Context, id string) (*types.Entity, error)

	// Create persists a new entity together with any initial facts.
	// Returns ErrDuplicateSlug if an entity of the same type and slug exists.
	Create(ctx context.Context, entity *types.Entity) error

	// AppendFacts adds facts to an existing entity and flags its summary
	// as stale. Returns ErrNotFound if the entity doesn't exist.
	AppendFacts(ctx context.Context, entityID string, facts []types.Fact) error

	// RetierFacts applies a synthesis sweep's tier changes for one entity
	// in a single transaction, so a cancelled sweep never leaves an entity
	// partially retiered. Archival changes set status to archived.
	RetierFacts(ctx context.Context, entityID string, changes []FactTierChange) error

	// SetSummary replaces the entity's summary and clears the stale flag.
	SetSummary(ctx context.Context, entityID string, summary string) error

	// TouchFacts bumps last_accessed_at and access_count for the given
	// facts. This is the hook read paths call when they surface facts.
	TouchFacts(ctx context.Context, factIDs []string, at time.Time) error

	// Close releases any resources held by the store.
	Close() error
}

// SummaryEmbeddingStore is an optional capability: backends that can store
// vector embeddings of entity summaries (for downstream semantic search)
// implement it in addition to EntityStore.
type SummaryEmbeddingStore interface {
	// SetSummaryEmbedding stores the embedding of the entity's current summary.
	SetSummaryEmbedding(ctx context.Context, entityID string, embedding []float32) error

	// SimilarSummaries returns up to limit entity IDs ordered by summary
	// embedding distance to the query vector.
	SimilarSummaries(ctx context.Context, query []float32, limit int) ([]string, error)
}
