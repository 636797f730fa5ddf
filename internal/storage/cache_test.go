package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticehq/lattice/pkg/types"
)

// countingStore records how many times each method hits the backend.
type countingStore struct {
	entities  map[string][]*types.Entity
	listCalls int
}

func newCountingStore() *countingStore {
	return &countingStore{entities: make(map[string][]*types.Entity)}
}

func (s *countingStore) ListByType(_ context.Context, entityType types.EntityType) ([]*types.Entity, error) {
	s.listCalls++
	return s.entities[string(entityType)], nil
}

func (s *countingStore) Get(_ context.Context, id string) (*types.Entity, error) {
	for _, pool := range s.entities {
		for _, e := range pool {
			if e.ID == id {
				return e, nil
			}
		}
	}
	return nil, ErrNotFound
}

func (s *countingStore) Create(_ context.Context, entity *types.Entity) error {
	s.entities[string(entity.Type)] = append(s.entities[string(entity.Type)], entity)
	return nil
}

func (s *countingStore) AppendFacts(_ context.Context, _ string, _ []types.Fact) error { return nil }
func (s *countingStore) RetierFacts(_ context.Context, _ string, _ []FactTierChange) error {
	return nil
}
func (s *countingStore) SetSummary(_ context.Context, _ string, _ string) error       { return nil }
func (s *countingStore) TouchFacts(_ context.Context, _ []string, _ time.Time) error  { return nil }
func (s *countingStore) Close() error                                                 { return nil }

func TestCachedStoreListCachesPools(t *testing.T) {
	inner := newCountingStore()
	require.NoError(t, inner.Create(context.Background(), &types.Entity{
		ID: "person:adam-watson", Slug: "adam-watson", Name: "Adam Watson", Type: types.EntityPerson,
	}))
	cached, err := NewCachedStore(inner, 4)
	require.NoError(t, err)

	first, err := cached.ListByType(context.Background(), types.EntityPerson)
	require.NoError(t, err)
	second, err := cached.ListByType(context.Background(), types.EntityPerson)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.listCalls, "second list must be served from cache")
	assert.Len(t, second, 1)

	// Fresh slice headers: appending to one caller's pool must not leak
	// into another's.
	first = append(first, &types.Entity{ID: "person:ghost"})
	third, err := cached.ListByType(context.Background(), types.EntityPerson)
	require.NoError(t, err)
	assert.Len(t, third, 1)
	_ = first
}

func TestCachedStoreCreateInvalidatesTypePool(t *testing.T) {
	inner := newCountingStore()
	cached, err := NewCachedStore(inner, 4)
	require.NoError(t, err)

	_, err = cached.ListByType(context.Background(), types.EntityPerson)
	require.NoError(t, err)
	_, err = cached.ListByType(context.Background(), types.EntityCompany)
	require.NoError(t, err)
	require.Equal(t, 2, inner.listCalls)

	require.NoError(t, cached.Create(context.Background(), &types.Entity{
		ID: "person:maria-chen", Slug: "maria-chen", Name: "Maria Chen", Type: types.EntityPerson,
	}))

	pool, err := cached.ListByType(context.Background(), types.EntityPerson)
	require.NoError(t, err)
	assert.Len(t, pool, 1, "the person pool must be reloaded after the write")
	assert.Equal(t, 3, inner.listCalls)

	_, err = cached.ListByType(context.Background(), types.EntityCompany)
	require.NoError(t, err)
	assert.Equal(t, 3, inner.listCalls, "the company pool stays cached")
}

func TestCachedStoreAppendInvalidatesByIDPrefix(t *testing.T) {
	inner := newCountingStore()
	cached, err := NewCachedStore(inner, 4)
	require.NoError(t, err)

	_, _ = cached.ListByType(context.Background(), types.EntityPerson)
	_, _ = cached.ListByType(context.Background(), types.EntityCompany)
	require.Equal(t, 2, inner.listCalls)

	require.NoError(t, cached.AppendFacts(context.Background(), "company:atlas", []types.Fact{{ID: "f1", Content: "x", Status: types.FactActive}}))

	_, _ = cached.ListByType(context.Background(), types.EntityCompany)
	assert.Equal(t, 3, inner.listCalls, "company pool reloaded")
	_, _ = cached.ListByType(context.Background(), types.EntityPerson)
	assert.Equal(t, 3, inner.listCalls, "person pool untouched")
}

func TestCachedStoreTouchPurgesEverything(t *testing.T) {
	inner := newCountingStore()
	cached, err := NewCachedStore(inner, 4)
	require.NoError(t, err)

	_, _ = cached.ListByType(context.Background(), types.EntityPerson)
	_, _ = cached.ListByType(context.Background(), types.EntityCompany)
	require.Equal(t, 2, inner.listCalls)

	require.NoError(t, cached.TouchFacts(context.Background(), []string{"f1"}, time.Now()))

	_, _ = cached.ListByType(context.Background(), types.EntityPerson)
	_, _ = cached.ListByType(context.Background(), types.EntityCompany)
	assert.Equal(t, 4, inner.listCalls, "access stats feed scoring, so every pool reloads")
}
