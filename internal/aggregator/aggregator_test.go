package aggregator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/polyscan/internal/model"
)

// fakeClock pins the aggregator's notion of now so decay is exact.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func newTestAggregator() (*Aggregator, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	return New(Options{Now: clock.now}), clock
}

func TestPrecedenceOf(t *testing.T) {
	assert.Equal(t, LevelSemantic, PrecedenceOf("semantic"))
	assert.Equal(t, LevelSemantic, PrecedenceOf("semantic:treesitter"))
	assert.Equal(t, LevelStructural, PrecedenceOf("structural-detectors"))
	assert.Equal(t, LevelBasic, PrecedenceOf("basic:regex"))
	assert.Equal(t, LevelInitial, PrecedenceOf("some-custom-pass"))
}

func TestAddRelationships_MergesDuplicateObservations(t *testing.T) {
	agg, _ := newTestAggregator()

	rel := model.NewRelationship("A", "B", model.RelCalls, 0.7)
	agg.AddRelationships([]model.Relationship{rel}, "basic:regex")

	rel.Confidence = 0.9
	agg.AddRelationships([]model.Relationship{rel}, "semantic:treesitter")

	all := agg.GetAllRelationships(QueryOptions{})
	require.Len(t, all, 1, "the same triple merges into one record")

	merged := all[0]
	assert.Equal(t, 2, merged.MergeCount)
	assert.Len(t, merged.Sources, 2)
	assert.Equal(t, LevelSemantic, merged.PrecedenceLevel)
	assert.Greater(t, merged.FinalConfidence, 0.7,
		"merging a stronger pass never lowers confidence")
	assert.Equal(t, 0.7, merged.MinConfidence)
	assert.Equal(t, 0.9, merged.MaxConfidence)
}

func TestAddRelationships_PrecedenceNeverDrops(t *testing.T) {
	agg, _ := newTestAggregator()
	rel := model.NewRelationship("A", "B", model.RelCalls, 0.9)

	agg.AddRelationships([]model.Relationship{rel}, "semantic")
	rel.Confidence = 0.95
	agg.AddRelationships([]model.Relationship{rel}, "basic")

	all := agg.GetAllRelationships(QueryOptions{})
	require.Len(t, all, 1)
	assert.Equal(t, LevelSemantic, all[0].PrecedenceLevel,
		"a later weaker pass cannot demote the level")
}

func TestAddRelationships_ClampsConfidence(t *testing.T) {
	agg, _ := newTestAggregator()

	rel := model.Relationship{SourceID: "A", TargetID: "B", Type: model.RelCalls, Confidence: 2.5}
	agg.AddRelationships([]model.Relationship{rel}, "initial")
	rel.Confidence = -1
	agg.AddRelationships([]model.Relationship{rel}, "initial")

	all := agg.GetAllRelationships(QueryOptions{})
	require.Len(t, all, 1)
	assert.Equal(t, 1.0, all[0].MaxConfidence)
	assert.Equal(t, 0.0, all[0].MinConfidence)
}

func TestAddRelationships_ResolutionSticks(t *testing.T) {
	agg, _ := newTestAggregator()

	unresolved := model.NewRelationship("A", "helper", model.RelCalls, 0.6)
	unresolved.NeedsResolution = true
	agg.AddRelationships([]model.Relationship{unresolved}, "basic")

	resolved := unresolved
	resolved.NeedsResolution = false
	agg.AddRelationships([]model.Relationship{resolved}, "semantic")

	all := agg.GetAllRelationships(QueryOptions{})
	require.Len(t, all, 1)
	assert.False(t, all[0].NeedsResolution,
		"one resolved observation settles the target")
}

func TestGetAllRelationships_ConfidenceThreshold(t *testing.T) {
	agg, _ := newTestAggregator()

	strong := model.NewRelationship("A", "B", model.RelCalls, 0.9)
	weak := model.NewRelationship("A", "C", model.RelReferences, 0.3)
	agg.AddRelationships([]model.Relationship{strong}, "semantic")
	agg.AddRelationships([]model.Relationship{weak}, "initial")

	all := agg.GetAllRelationships(QueryOptions{ConfidenceThreshold: 0.8})
	require.Len(t, all, 1)
	assert.Equal(t, "B", all[0].TargetID)

	all = agg.GetAllRelationships(QueryOptions{})
	assert.Len(t, all, 2)
}

func TestGetAllRelationships_RankedByFinalConfidence(t *testing.T) {
	agg, _ := newTestAggregator()

	agg.AddRelationships([]model.Relationship{
		model.NewRelationship("A", "B", model.RelCalls, 0.4),
	}, "initial")
	agg.AddRelationships([]model.Relationship{
		model.NewRelationship("A", "C", model.RelCalls, 0.9),
	}, "semantic")

	all := agg.GetAllRelationships(QueryOptions{})
	require.Len(t, all, 2)
	assert.Equal(t, "C", all[0].TargetID, "highest final confidence first")
	assert.GreaterOrEqual(t, all[0].FinalConfidence, all[1].FinalConfidence)
}

func TestRecompute_ConsensusBoostNeedsTwoSources(t *testing.T) {
	agg, _ := newTestAggregator()

	rel := model.NewRelationship("A", "B", model.RelCalls, 0.8)
	agg.AddRelationships([]model.Relationship{rel}, "basic")

	one := agg.GetAllRelationships(QueryOptions{})[0]
	assert.InDelta(t, 0.82, one.FinalConfidence, 1e-9,
		"single source gets the level boost only")

	agg.AddRelationships([]model.Relationship{rel}, "basic:second")
	two := agg.GetAllRelationships(QueryOptions{})[0]
	assert.InDelta(t, 0.92, two.FinalConfidence, 1e-9,
		"agreeing sources add the full consensus boost")
	assert.InDelta(t, 1.0, two.ConsensusScore, 1e-9)
}

func TestRecompute_TimeDecay(t *testing.T) {
	agg, clock := newTestAggregator()
	rel := model.NewRelationship("A", "B", model.RelCalls, 0.8)

	agg.AddRelationships([]model.Relationship{rel}, "basic")
	clock.t = clock.t.Add(10 * 24 * time.Hour)
	agg.AddRelationships([]model.Relationship{rel}, "basic:second")

	// Average age is five days, so the boosted score decays by 5%.
	got := agg.GetAllRelationships(QueryOptions{})[0]
	assert.InDelta(t, 0.92*0.95, got.FinalConfidence, 1e-9)
}

func TestGetRelationshipsFor_Directions(t *testing.T) {
	agg, _ := newTestAggregator()

	agg.AddRelationships([]model.Relationship{
		model.NewRelationship("A", "B", model.RelCalls, 0.8),
		model.NewRelationship("B", "C", model.RelCalls, 0.8),
		model.NewRelationship("X", "Y", model.RelCalls, 0.8),
	}, "structural")

	in := agg.GetRelationshipsFor("B", DirectionIn)
	require.Len(t, in, 1)
	assert.Equal(t, "A", in[0].SourceID)

	out := agg.GetRelationshipsFor("B", DirectionOut)
	require.Len(t, out, 1)
	assert.Equal(t, "C", out[0].TargetID)

	both := agg.GetRelationshipsFor("B", DirectionBoth)
	assert.Len(t, both, 2)
}

func TestQuery_MaxSourcesKeepsStrongest(t *testing.T) {
	agg, _ := newTestAggregator()
	rel := model.NewRelationship("A", "B", model.RelCalls, 0)

	for i, conf := range []float64{0.3, 0.9, 0.6} {
		rel.Confidence = conf
		agg.AddRelationships([]model.Relationship{rel}, "basic:"+string(rune('a'+i)))
	}

	all := agg.GetAllRelationships(QueryOptions{MaxSources: 2})
	require.Len(t, all, 1)
	require.Len(t, all[0].Sources, 2)
	assert.Equal(t, 0.9, all[0].Sources[0].Confidence)
	assert.Equal(t, 0.6, all[0].Sources[1].Confidence)
}

func TestGetStatistics(t *testing.T) {
	agg, _ := newTestAggregator()

	agg.AddRelationships([]model.Relationship{
		model.NewRelationship("A", "B", model.RelCalls, 0.9),
	}, "semantic:go")
	agg.AddRelationships([]model.Relationship{
		model.NewRelationship("A", "B", model.RelCalls, 0.7),
		model.NewRelationship("A", "C", model.RelImports, 0.3),
	}, "initial")

	stats := agg.GetStatistics()
	assert.Equal(t, 2, stats.TotalRelationships)
	assert.Equal(t, 1, stats.ByPrecedence[LevelSemantic])
	assert.Equal(t, 1, stats.ByPrecedence[LevelInitial])
	assert.Equal(t, 1, stats.BySourceTag["semantic:go"])
	assert.Equal(t, 2, stats.BySourceTag["initial"])
	assert.InDelta(t, 1.5, stats.AverageSources, 1e-9)
	assert.Equal(t, 1, stats.ByConfidenceBucket["0.2-0.4"])
}

func TestClear(t *testing.T) {
	agg, _ := newTestAggregator()
	agg.AddRelationships([]model.Relationship{
		model.NewRelationship("A", "B", model.RelCalls, 0.8),
	}, "basic")

	agg.Clear()

	assert.Empty(t, agg.GetAllRelationships(QueryOptions{}))
	assert.Equal(t, 0, agg.GetStatistics().TotalRelationships)
}
