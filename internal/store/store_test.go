package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gerrors "github.com/Aman-CERP/graphmem/internal/errors"
	"github.com/Aman-CERP/graphmem/internal/graph"
)

func sampleGraph() *Graph {
	imp := 5.0
	return &Graph{
		Entities: []graph.Entity{
			{
				Name:         "Alice",
				EntityType:   "person",
				Observations: []string{"likes go", "works remotely"},
				Tags:         []string{"python"},
				Importance:   &imp,
				CreatedAt:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
				LastModified: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
			},
			{
				Name:         "Acme",
				EntityType:   "company",
				Observations: []string{"sells anvils"},
				CreatedAt:    time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC),
				LastModified: time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC),
			},
		},
		Relations: []graph.Relation{
			{From: "Alice", To: "Acme", Type: "works_at"},
		},
	}
}

// roundTrip exercises every GraphStore implementation the same way.
func roundTrip(t *testing.T, s GraphStore) {
	t.Helper()
	ctx := context.Background()

	g, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, g.Entities)

	require.NoError(t, s.SaveSnapshot(ctx, sampleGraph()))

	g, err = s.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.Len(t, g.Entities, 2)
	require.Len(t, g.Relations, 1)

	alice := g.Entities[0]
	assert.Equal(t, "Alice", alice.Name)
	assert.Equal(t, []string{"likes go", "works remotely"}, alice.Observations)
	require.NotNil(t, alice.Importance)
	assert.Equal(t, 5.0, *alice.Importance)

	// Mutations replay over the snapshot.
	bob := graph.Entity{
		Name:         "Bob",
		EntityType:   "person",
		Observations: []string{"new hire"},
		CreatedAt:    time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		LastModified: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.Append(ctx, Mutation{Op: OpPutEntity, Entity: &bob}))
	require.NoError(t, s.Append(ctx, Mutation{Op: OpPutRelation, Relation: &graph.Relation{From: "Bob", To: "Acme", Type: "works_at"}}))
	require.NoError(t, s.Append(ctx, Mutation{Op: OpDeleteEntity, Name: "Alice"}))

	g, err = s.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.Len(t, g.Entities, 2)

	names := []string{g.Entities[0].Name, g.Entities[1].Name}
	assert.Contains(t, names, "Acme")
	assert.Contains(t, names, "Bob")

	// Alice's relation was cascade-removed; Bob's survives.
	require.Len(t, g.Relations, 1)
	assert.Equal(t, "Bob", g.Relations[0].From)

	got, err := s.EntityByName(ctx, "Bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"new hire"}, got.Observations)

	_, err = s.EntityByName(ctx, "Alice")
	assert.True(t, gerrors.IsNotFound(err))

	require.NoError(t, s.Close())
}

func TestJSONLStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.jsonl")
	s, err := NewJSONLStore(path)
	require.NoError(t, err)
	roundTrip(t, s)
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	roundTrip(t, s)
}

func TestJSONLStore_DeleteRelationMutation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.jsonl")
	s, err := NewJSONLStore(path)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.SaveSnapshot(ctx, sampleGraph()))
	require.NoError(t, s.Append(ctx, Mutation{
		Op:       OpDeleteRelation,
		Relation: &graph.Relation{From: "Alice", To: "Acme", Type: "works_at"},
	}))

	g, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, g.Relations)
}

func TestJSONLStore_PutReplacesEntity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.jsonl")
	s, err := NewJSONLStore(path)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.SaveSnapshot(ctx, sampleGraph()))

	updated := sampleGraph().Entities[0]
	updated.Observations = append(updated.Observations, "recently promoted")
	require.NoError(t, s.Append(ctx, Mutation{Op: OpPutEntity, Entity: &updated}))

	got, err := s.EntityByName(ctx, "Alice")
	require.NoError(t, err)
	assert.Len(t, got.Observations, 3)

	// Still exactly two entities after the in-place replace.
	g, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, g.Entities, 2)
}

func TestSQLiteStore_UnknownOp(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "graph.db"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	err = s.Append(context.Background(), Mutation{Op: "bogus"})
	assert.True(t, gerrors.IsValidation(err))
}
