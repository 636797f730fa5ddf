package types

import (
	"fmt"
	"time"
)

// FactCategory classifies what kind of observation a fact records.
type FactCategory string

const (
	CategoryPreference   FactCategory = "preference"
	CategoryRelationship FactCategory = "relationship"
	CategoryStatus       FactCategory = "status"
	CategoryContext      FactCategory = "context"
	CategoryMilestone    FactCategory = "milestone"
	CategoryMetric       FactCategory = "metric"
)

// IsValidFactCategory reports whether c is a supported fact category.
func IsValidFactCategory(c FactCategory) bool {
	switch c {
	case CategoryPreference, CategoryRelationship, CategoryStatus,
		CategoryContext, CategoryMilestone, CategoryMetric:
		return true
	}
	return false
}

// FactStatus is the lifecycle state of a fact. Transitions are forward-only:
// active -> superseded or active -> archived, never backward.
type FactStatus string

const (
	FactActive     FactStatus = "active"
	FactSuperseded FactStatus = "superseded"
	FactArchived   FactStatus = "archived"
)

// FactTier is the freshness classification assigned by the synthesis sweep.
// The empty tier means the fact has not been through a sweep yet.
type FactTier string

const (
	TierUnset FactTier = ""
	TierHot   FactTier = "hot"
	TierWarm  FactTier = "warm"
	TierCold  FactTier = "cold"
)

// Fact is an atomic, timestamped observation about one entity.
type Fact struct {
	// ID is a unique identifier (UUID).
	ID string `json:"id"`

	// Content is the observation text.
	Content string `json:"content"`

	// Category classifies the observation. Defaults to context.
	Category FactCategory `json:"category"`

	// Source identifies the originating document for traceability.
	Source string `json:"source,omitempty"`

	// Status is the lifecycle state. New facts start active.
	Status FactStatus `json:"status"`

	// SupersededBy holds the ID of the fact that replaced this one,
	// set only when Status is superseded.
	SupersededBy string `json:"superseded_by,omitempty"`

	// Tier is the freshness classification from the last synthesis sweep.
	Tier FactTier `json:"tier,omitempty"`

	CreatedAt time.Time `json:"created_at"`

	// LastAccessedAt is nil until a read path surfaces the fact.
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`

	// AccessCount is bumped together with LastAccessedAt.
	AccessCount int `json:"access_count"`
}

// CanTransition reports whether a status change from the fact's current
// status to next is allowed. Only forward transitions out of active exist.
func (f *Fact) CanTransition(next FactStatus) bool {
	if f.Status == next {
		return false
	}
	return f.Status == FactActive && (next == FactSuperseded || next == FactArchived)
}

// Validate checks the fact's structural invariants.
func (f *Fact) Validate() error {
	if f.Content == "" {
		return fmt.Errorf("fact content is required")
	}
	if f.Category != "" && !IsValidFactCategory(f.Category) {
		return fmt.Errorf("invalid fact category: %q", f.Category)
	}
	switch f.Status {
	case FactActive, FactSuperseded, FactArchived:
	default:
		return fmt.Errorf("invalid fact status: %q", f.Status)
	}
	if f.SupersededBy != "" && f.Status != FactSuperseded {
		return fmt.Errorf("superseded_by set on non-superseded fact")
	}
	return nil
}
