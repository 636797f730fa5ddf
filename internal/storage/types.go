package storage

import (
	"errors"

	"github.com/latticehq/lattice/pkg/types"
)

// Sentinel errors returned by EntityStore implementations.
var (
	// ErrNotFound is returned when an entity or fact doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned for nil or structurally invalid arguments.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDuplicateSlug is returned when creating an entity whose type+slug
	// already exists. Within one type, no two entities may share a slug.
	ErrDuplicateSlug = errors.New("duplicate slug for entity type")
)

// FactTierChange is one fact's outcome from a synthesis sweep.
type FactTierChange struct {
	FactID string

	// Tier is the newly computed freshness tier.
	Tier types.FactTier

	// Archive requests the active -> archived transition. Implementations
	// must ignore it for facts that are no longer active, keeping the
	// sweep idempotent.
	Archive bool
}
