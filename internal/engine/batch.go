package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/latticehq/lattice/pkg/types"
)

// Deduplicator resolves a whole document's mentions against shared candidate
// pools, guaranteeing that one batch never creates two entities with the
// same display name, across types included.
type Deduplicator struct {
	resolver *Resolver
	log      zerolog.Logger
	now      func() time.Time
}

// NewDeduplicator creates a batch deduplicator on top of a resolver.
func NewDeduplicator(resolver *Resolver, logger zerolog.Logger) *Deduplicator {
	return &Deduplicator{
		resolver: resolver,
		log:      logger.With().Str("component", "dedup").Logger(),
		now:      time.Now,
	}
}

// ResolveBatch resolves the mentions in order against pools, one candidate
// pool per entity type. The pools are mutated in place: every new entity is
// appended to its type's pool as a synthetic candidate so later mentions in
// the same batch resolve to it instead of creating a duplicate.
//
// Repeated mentions of a name whose creation is already pending in this
// batch are dropped; output order matches input order with dropped mentions
// omitted. New-entity results carry a fully formed (unpersisted) Entity.
func (d *Deduplicator) ResolveBatch(ctx context.Context, mentions []types.ExtractedMention, pools map[types.EntityType][]*types.Entity, sourceText string) ([]*types.ResolvedEntity, error) {
	pending := make(map[string]bool)
	results := make([]*types.ResolvedEntity, 0, len(mentions))

	for _, mention := range mentions {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		slug := types.Slugify(mention.Name)
		if slug == "" {
			d.log.Warn().Str("name", mention.Name).Msg("mention name normalizes to empty slug, skipping")
			continue
		}
		if pending[slug] {
			d.log.Debug().Str("slug", slug).Msg("creation already pending in batch, skipping repeat mention")
			continue
		}

		// A name already on the graph under a different type is a typing
		// disagreement between extraction runs, not a new identity.
		if other := findSlugAcrossTypes(pools, mention.Type, slug); other != nil {
			results = append(results, &types.ResolvedEntity{
				Mention:    mention,
				Entity:     other,
				Confidence: 0.9,
				Reason:     "cross-type match: name already known as " + string(other.Type),
			})
			continue
		}

		res, err := d.resolver.Resolve(ctx, mention, pools[mention.Type], sourceText)
		if err != nil {
			return results, err
		}

		if res.IsNew {
			now := d.now()
			entity := &types.Entity{
				ID:        types.EntityID(mention.Type, mention.Name),
				Slug:      slug,
				Name:      mention.Name,
				Type:      mention.Type,
				CreatedAt: now,
				UpdatedAt: now,
			}
			res.Entity = entity
			pending[slug] = true
			pools[mention.Type] = append(pools[mention.Type], entity)
		}

		results = append(results, res)
	}

	return results, nil
}

// findSlugAcrossTypes looks for an entity with the given slug under any type
// other than claimed. Synthetic in-batch entities participate: the pools
// already contain them.
func findSlugAcrossTypes(pools map[types.EntityType][]*types.Entity, claimed types.EntityType, slug string) *types.Entity {
	for _, t := range types.AllEntityTypes {
		if t == claimed {
			continue
		}
		for _, e := range pools[t] {
			if e.Slug == slug {
				return e
			}
		}
	}
	return nil
}
