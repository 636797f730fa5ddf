// Package types defines the core data model for the Lattice knowledge graph:
// entities, their timestamped facts, and the transient records exchanged with
// the resolution engine.
package types

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// EntityType classifies a knowledge-graph node.
type EntityType string

const (
	EntityPerson  EntityType = "person"
	EntityCompany EntityType = "company"
	EntityProject EntityType = "project"
)

// AllEntityTypes lists every valid entity type, in a stable order.
// Used by callers that need to walk the whole graph type by type.
var AllEntityTypes = []EntityType{EntityPerson, EntityCompany, EntityProject}

// IsValidEntityType reports whether t is one of the supported entity types.
func IsValidEntityType(t EntityType) bool {
	switch t {
	case EntityPerson, EntityCompany, EntityProject:
		return true
	}
	return false
}

// Entity is an identity record for a person, company, or project.
// Entities are created by the resolution engine when no match is found and
// are never deleted by it; only their facts are archived.
type Entity struct {
	// ID is the stable identifier, format: "<type>:<slug>" (e.g. "person:adam-watson").
	ID string `json:"id"`

	// Slug is the normalized form of the display name. Unique per type.
	Slug string `json:"slug"`

	// Name is the display name as first observed.
	Name string `json:"name"`

	// Type is one of person, company, project.
	Type EntityType `json:"type"`

	// Facts holds the entity's observations, oldest first.
	Facts []Fact `json:"facts,omitempty"`

	// Summary is the natural-language digest regenerated by the synthesis sweep.
	Summary string `json:"summary,omitempty"`

	// SummaryStale is set when facts were merged since the last regeneration.
	SummaryStale bool `json:"summary_stale,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LastAccessed returns the most recent access timestamp across the entity's
// facts, or nil if no fact has ever been accessed. Malformed records with
// missing timestamps count as never accessed.
func (e *Entity) LastAccessed() *time.Time {
	var latest *time.Time
	for i := range e.Facts {
		at := e.Facts[i].LastAccessedAt
		if at == nil || at.IsZero() {
			continue
		}
		if latest == nil || at.After(*latest) {
			latest = at
		}
	}
	return latest
}

// AccessCount returns the cumulative access count across all facts.
func (e *Entity) AccessCount() int {
	total := 0
	for i := range e.Facts {
		total += e.Facts[i].AccessCount
	}
	return total
}

// ActiveFacts returns the facts still in active status, preserving order.
func (e *Entity) ActiveFacts() []Fact {
	var active []Fact
	for _, f := range e.Facts {
		if f.Status == FactActive {
			active = append(active, f)
		}
	}
	return active
}

// ActiveFactContents returns the text of every active fact, preserving order.
func (e *Entity) ActiveFactContents() []string {
	var contents []string
	for _, f := range e.Facts {
		if f.Status == FactActive {
			contents = append(contents, f.Content)
		}
	}
	return contents
}

// EntityID builds the canonical entity ID for a type and display name.
func EntityID(t EntityType, name string) string {
	return fmt.Sprintf("%s:%s", t, Slugify(name))
}

// Slugify normalizes a display name into a slug: lowercase, alphanumeric
// runs joined by single hyphens. "Adam Watson" -> "adam-watson".
func Slugify(name string) string {
	var b strings.Builder
	lastHyphen := true // suppress leading hyphen
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastHyphen = false
		} else if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// Validate checks the entity's structural invariants.
func (e *Entity) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("entity name is required")
	}
	if !IsValidEntityType(e.Type) {
		return fmt.Errorf("invalid entity type: %q", e.Type)
	}
	if e.Slug == "" {
		return fmt.Errorf("entity slug is required")
	}
	for i := range e.Facts {
		if err := e.Facts[i].Validate(); err != nil {
			return fmt.Errorf("fact %d: %w", i, err)
		}
	}
	return nil
}
