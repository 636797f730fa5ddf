package storage

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/latticehq/lattice/pkg/types"
)

// CachedStore decorates an EntityStore with an LRU cache over ListByType.
// Candidate-pool loads dominate the engine's read traffic (one full pool per
// type per batch), so caching them keeps repeat batches cheap. Every write
// invalidates the affected type's pool.
//
// The cache serves each caller a fresh slice header but shares entity
// pointers. The engine mutates a pool entity only after the corresponding
// write has invalidated that type's pool, so the cache never serves an
// entity whose persisted state has drifted from its in-memory one.
type CachedStore struct {
	inner EntityStore
	pools *lru.Cache[types.EntityType, []*types.Entity]
}

// NewCachedStore wraps inner with a pool cache. size bounds the number of
// cached pools; with three entity types anything >= 3 keeps them all warm.
func NewCachedStore(inner EntityStore, size int) (*CachedStore, error) {
	if size < 1 {
		size = len(types.AllEntityTypes)
	}
	pools, err := lru.New[types.EntityType, []*types.Entity](size)
	if err != nil {
		return nil, err
	}
	return &CachedStore{inner: inner, pools: pools}, nil
}

// ListByType returns the cached pool for entityType, loading it on miss.
func (c *CachedStore) ListByType(ctx context.Context, entityType types.EntityType) ([]*types.Entity, error) {
	if pool, ok := c.pools.Get(entityType); ok {
		out := make([]*types.Entity, len(pool))
		copy(out, pool)
		return out, nil
	}

	pool, err := c.inner.ListByType(ctx, entityType)
	if err != nil {
		return nil, err
	}
	c.pools.Add(entityType, pool)

	out := make([]*types.Entity, len(pool))
	copy(out, pool)
	return out, nil
}

// Get passes through to the inner store.
func (c *CachedStore) Get(ctx context.Context, id string) (*types.Entity, error) {
	return c.inner.Get(ctx, id)
}

// Create persists the entity and invalidates its type's pool.
func (c *CachedStore) Create(ctx context.Context, entity *types.Entity) error {
	if err := c.inner.Create(ctx, entity); err != nil {
		return err
	}
	c.pools.Remove(entity.Type)
	return nil
}

// AppendFacts persists the facts and invalidates the entity's type pool.
func (c *CachedStore) AppendFacts(ctx context.Context, entityID string, facts []types.Fact) error {
	if err := c.inner.AppendFacts(ctx, entityID, facts); err != nil {
		return err
	}
	c.invalidateByID(entityID)
	return nil
}

// RetierFacts applies tier changes and invalidates the entity's type pool.
func (c *CachedStore) RetierFacts(ctx context.Context, entityID string, changes []FactTierChange) error {
	if err := c.inner.RetierFacts(ctx, entityID, changes); err != nil {
		return err
	}
	c.invalidateByID(entityID)
	return nil
}

// SetSummary updates the summary and invalidates the entity's type pool.
func (c *CachedStore) SetSummary(ctx context.Context, entityID string, summary string) error {
	if err := c.inner.SetSummary(ctx, entityID, summary); err != nil {
		return err
	}
	c.invalidateByID(entityID)
	return nil
}

// TouchFacts bumps access stats. Access stats feed recency scoring, so the
// affected pools are invalidated as well; fact IDs don't carry their entity
// type, so all pools are dropped.
func (c *CachedStore) TouchFacts(ctx context.Context, factIDs []string, at time.Time) error {
	if err := c.inner.TouchFacts(ctx, factIDs, at); err != nil {
		return err
	}
	c.pools.Purge()
	return nil
}

// Close closes the inner store.
func (c *CachedStore) Close() error {
	c.pools.Purge()
	return c.inner.Close()
}

// invalidateByID drops the pool for the type encoded in the entity ID
// prefix ("<type>:<slug>"). Unparseable IDs drop everything.
func (c *CachedStore) invalidateByID(entityID string) {
	for _, t := range types.AllEntityTypes {
		if len(entityID) > len(t) && entityID[:len(t)] == string(t) && entityID[len(t)] == ':' {
			c.pools.Remove(t)
			return
		}
	}
	c.pools.Purge()
}
