package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/polyscan/internal/aggregator"
	"github.com/dusk-indust/polyscan/internal/model"
)

func storedEdge(source, target string, t model.RelationshipType, confidence float64) StoredRelationship {
	return StoredRelationship{
		Relationship: model.NewRelationship(source, target, t, confidence),
		Precedence:   "structural",
		SourceCount:  1,
	}
}

func TestMemStore_ComponentRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	require.NoError(t, s.InitSchema(ctx))

	c := model.Component{ID: "app|class:Counter", Name: "Counter", Type: model.ComponentClass}
	require.NoError(t, s.AddComponent(ctx, c))

	got, err := s.GetComponent(ctx, "app|class:Counter")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Counter", got.Name)

	missing, err := s.GetComponent(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemStore_QueryComponents(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	require.NoError(t, s.AddComponent(ctx, model.Component{ID: "a", Name: "UserService"}))
	require.NoError(t, s.AddComponent(ctx, model.Component{ID: "b", Name: "userRepo"}))
	require.NoError(t, s.AddComponent(ctx, model.Component{ID: "c", Name: "Parser"}))

	results, err := s.QueryComponents(ctx, "user", 0)
	require.NoError(t, err)
	assert.Len(t, results, 2, "matching is case-insensitive substring")

	limited, err := s.QueryComponents(ctx, "user", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestMemStore_AddRelationshipIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	first := storedEdge("A", "B", model.RelCalls, 0.5)
	require.NoError(t, s.AddRelationship(ctx, first))

	second := first
	second.Confidence = 0.9
	require.NoError(t, s.AddRelationship(ctx, second))

	rels, err := s.GetRelationshipsFor(ctx, "A", DirectionOut)
	require.NoError(t, err)
	require.Len(t, rels, 1, "same-id edges replace, re-indexing does not duplicate")
	assert.Equal(t, 0.9, rels[0].Confidence)
}

func TestMemStore_GetRelationshipsFor_Directions(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	require.NoError(t, s.AddRelationship(ctx, storedEdge("A", "B", model.RelCalls, 0.8)))
	require.NoError(t, s.AddRelationship(ctx, storedEdge("B", "C", model.RelCalls, 0.8)))

	in, err := s.GetRelationshipsFor(ctx, "B", DirectionIn)
	require.NoError(t, err)
	require.Len(t, in, 1)
	assert.Equal(t, "A", in[0].SourceID)

	out, err := s.GetRelationshipsFor(ctx, "B", DirectionOut)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "C", out[0].TargetID)

	both, err := s.GetRelationshipsFor(ctx, "B", DirectionBoth)
	require.NoError(t, err)
	assert.Len(t, both, 2)
}

func TestMemStore_Stats(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	require.NoError(t, s.AddComponent(ctx, model.Component{ID: "f", Name: "f.go", Type: model.ComponentFile}))
	require.NoError(t, s.AddComponent(ctx, model.Component{ID: "f|function:main", Name: "main", Type: model.ComponentFunction}))
	require.NoError(t, s.AddRelationship(ctx, storedEdge("f", "f|function:main", model.RelContains, 0.6)))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FileCount)
	assert.Equal(t, 2, stats.ComponentCount)
	assert.Equal(t, 1, stats.RelationshipCount)

	assert.NoError(t, s.Close())
}

func TestFromAggregated(t *testing.T) {
	agg := aggregator.AggregatedRelationship{
		Relationship:    model.NewRelationship("A", "B", model.RelCalls, 0.7),
		PrecedenceLevel: aggregator.LevelSemantic,
		FinalConfidence: 0.95,
		Sources: []aggregator.RelationshipSource{
			{SourceTag: "semantic:go", Confidence: 0.9},
			{SourceTag: "basic", Confidence: 0.7},
		},
	}

	stored := FromAggregated(agg)
	assert.Equal(t, 0.95, stored.Confidence, "persisted confidence is the final merged value")
	assert.Equal(t, "semantic", stored.Precedence)
	assert.Equal(t, 2, stored.SourceCount)
	assert.Equal(t, agg.ID, stored.ID)
}
