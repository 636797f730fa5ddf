package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/latticehq/lattice/internal/storage"
	"github.com/latticehq/lattice/pkg/types"
)

// memStore is an in-memory EntityStore for engine tests. It mirrors the real
// backends' semantics: slug uniqueness per type, stale flags on append,
// archive-only-active on retier.
type memStore struct {
	mu       sync.Mutex
	entities map[string]*types.Entity

	failAppend  error
	failRetier  error
	failSummary error

	retierCalls  int
	summaryCalls int
}

func newMemStore() *memStore {
	return &memStore{entities: make(map[string]*types.Entity)}
}

func (s *memStore) ListByType(_ context.Context, entityType types.EntityType) ([]*types.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.Entity
	for _, e := range s.entities {
		if e.Type == entityType {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memStore) Get(_ context.Context, id string) (*types.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return e, nil
}

func (s *memStore) Create(_ context.Context, entity *types.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entities {
		if e.Type == entity.Type && e.Slug == entity.Slug {
			return storage.ErrDuplicateSlug
		}
	}
	clone := *entity
	s.entities[entity.ID] = &clone
	return nil
}

func (s *memStore) AppendFacts(_ context.Context, entityID string, facts []types.Fact) error {
	if s.failAppend != nil {
		return s.failAppend
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[entityID]
	if !ok {
		return storage.ErrNotFound
	}
	e.Facts = append(e.Facts, facts...)
	e.SummaryStale = true
	return nil
}

func (s *memStore) RetierFacts(_ context.Context, entityID string, changes []storage.FactTierChange) error {
	if s.failRetier != nil {
		return s.failRetier
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retierCalls++
	e, ok := s.entities[entityID]
	if !ok {
		return storage.ErrNotFound
	}
	for _, ch := range changes {
		for i := range e.Facts {
			if e.Facts[i].ID != ch.FactID {
				continue
			}
			e.Facts[i].Tier = ch.Tier
			if ch.Archive && e.Facts[i].Status == types.FactActive {
				e.Facts[i].Status = types.FactArchived
			}
		}
	}
	return nil
}

func (s *memStore) SetSummary(_ context.Context, entityID string, summary string) error {
	if s.failSummary != nil {
		return s.failSummary
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaryCalls++
	e, ok := s.entities[entityID]
	if !ok {
		return storage.ErrNotFound
	}
	e.Summary = summary
	e.SummaryStale = false
	return nil
}

func (s *memStore) TouchFacts(_ context.Context, factIDs []string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entities {
		for i := range e.Facts {
			for _, id := range factIDs {
				if e.Facts[i].ID == id {
					ts := at
					e.Facts[i].LastAccessedAt = &ts
					e.Facts[i].AccessCount++
				}
			}
		}
	}
	return nil
}

func (s *memStore) Close() error { return nil }

func (s *memStore) mustAdd(e *types.Entity) *memStore {
	if err := s.Create(context.Background(), e); err != nil {
		panic(fmt.Sprintf("mustAdd %s: %v", e.ID, err))
	}
	return s
}

func (s *memStore) get(id string) *types.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entities[id]
}
