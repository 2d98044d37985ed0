package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/graphmem/internal/config"
	"github.com/Aman-CERP/graphmem/internal/embed"
	gerrors "github.com/Aman-CERP/graphmem/internal/errors"
	"github.com/Aman-CERP/graphmem/internal/graph"
)

func newTestService(t *testing.T) (*Service, *graph.Index) {
	t.Helper()
	g := graph.NewIndex()
	svc, err := NewService(g, embed.NewStaticEmbedder(), config.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc, g
}

func addEntity(t *testing.T, g *graph.Index, name, entityType string, tags []string, observations ...string) {
	t.Helper()
	require.NoError(t, g.CreateEntity(graph.Entity{
		Name:         name,
		EntityType:   entityType,
		Tags:         tags,
		Observations: observations,
	}))
}

func TestBasic_SubstringInsertionOrder(t *testing.T) {
	svc, g := newTestService(t)
	addEntity(t, g, "Zeta", "project", nil, "travel budget planning")
	addEntity(t, g, "Alpha", "project", nil, "BUDGET review")
	addEntity(t, g, "Mid", "project", nil, "unrelated")

	res, err := svc.Basic(context.Background(), "budget", Filters{}, Page{})
	require.NoError(t, err)

	// Insertion order, not alphabetical.
	assert.Equal(t, []string{"Zeta", "Alpha"}, res.Names())
	assert.Equal(t, 2, res.Total)
}

func TestBasic_MatchesAllFields(t *testing.T) {
	svc, g := newTestService(t)
	addEntity(t, g, "Alice", "person", []string{"golang"}, "likes hiking")
	addEntity(t, g, "Widget", "tooling", nil)

	for query, want := range map[string]string{
		"alice":  "Alice",  // name
		"person": "Alice",  // type
		"hiking": "Alice",  // observation
		"golang": "Alice",  // tag
		"tool":   "Widget", // type substring
	} {
		res, err := svc.Basic(context.Background(), query, Filters{}, Page{})
		require.NoError(t, err)
		require.Len(t, res.Results, 1, "query %q", query)
		assert.Equal(t, want, res.Results[0].Entity.Name, "query %q", query)
	}
}

func TestRanked_TFIDFOrdering(t *testing.T) {
	svc, g := newTestService(t)
	addEntity(t, g, "A", "doc", nil, "budget travel hotel")
	addEntity(t, g, "B", "doc", nil, "budget travel")
	addEntity(t, g, "C", "doc", nil, "enterprise budget")

	res, err := svc.Ranked(context.Background(), "budget travel", Filters{}, Page{Limit: 3})
	require.NoError(t, err)

	require.Len(t, res.Results, 3)
	assert.Equal(t, []string{"A", "B", "C"}, res.Names())
	assert.GreaterOrEqual(t, res.Results[0].Score, res.Results[1].Score)
	assert.GreaterOrEqual(t, res.Results[1].Score, res.Results[2].Score)
	assert.Equal(t, []Layer{LayerLexical}, res.Results[0].MatchedLayers)
}

// ranked(q) includes every entity basic(q) finds when q is a single
// indexable term.
func TestRanked_SupersetOfBasic(t *testing.T) {
	svc, g := newTestService(t)
	addEntity(t, g, "A", "doc", nil, "budget travel hotel")
	addEntity(t, g, "B", "doc", nil, "cheap budget deals")
	addEntity(t, g, "C", "doc", nil, "unrelated notes")

	ctx := context.Background()
	basic, err := svc.Basic(ctx, "budget", Filters{}, Page{})
	require.NoError(t, err)
	ranked, err := svc.Ranked(ctx, "budget", Filters{}, Page{})
	require.NoError(t, err)

	rankedSet := map[string]struct{}{}
	for _, name := range ranked.Names() {
		rankedSet[name] = struct{}{}
	}
	for _, name := range basic.Names() {
		assert.Contains(t, rankedSet, name)
	}
}

func TestBM25_Search(t *testing.T) {
	svc, g := newTestService(t)
	addEntity(t, g, "A", "doc", nil, "budget travel hotel booking")
	addEntity(t, g, "B", "doc", nil, "budget")
	addEntity(t, g, "C", "doc", nil, "nothing relevant")

	res, err := svc.BM25(context.Background(), "budget", Filters{}, Page{})
	require.NoError(t, err)

	require.Len(t, res.Results, 2)
	// Length normalization favors the shorter document.
	assert.Equal(t, "B", res.Results[0].Entity.Name)
}

func TestBoolean_MixedOperators(t *testing.T) {
	svc, g := newTestService(t)
	addEntity(t, g, "Alice", "person", []string{"python"})
	addEntity(t, g, "Bob", "person", []string{"design"})
	addEntity(t, g, "Acme", "company", nil)

	ctx := context.Background()

	res, err := svc.Boolean(ctx, "type:person AND (tag:python OR tag:design)", Filters{}, Page{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Alice", "Bob"}, res.Names())

	res, err = svc.Boolean(ctx, "type:person NOT tag:python", Filters{}, Page{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob"}, res.Names())
}

func TestBoolean_ParseErrorsSurface(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Boolean(context.Background(), "(unbalanced", Filters{}, Page{})
	require.Error(t, err)
	assert.True(t, gerrors.IsValidation(err))
}

func TestFuzzy_TypoMatchesName(t *testing.T) {
	svc, g := newTestService(t)
	addEntity(t, g, "Alice", "person", nil)
	addEntity(t, g, "Alicia", "person", nil)
	addEntity(t, g, "Bob", "person", nil, "knows Alice well") // observation contains alice

	res, err := svc.FuzzyWithThreshold(context.Background(), "Alise", 0.7, Filters{}, Page{})
	require.NoError(t, err)

	require.NotEmpty(t, res.Results)
	// Alice (name match, similarity 0.8) leads; Alicia misses the 0.7 bar.
	assert.Equal(t, "Alice", res.Results[0].Entity.Name)
	for _, r := range res.Results {
		assert.NotEqual(t, "Alicia", r.Entity.Name)
	}
}

func TestFuzzy_SubstringShortCircuit(t *testing.T) {
	svc, g := newTestService(t)
	addEntity(t, g, "Alice Johnson", "person", nil)

	res, err := svc.Fuzzy(context.Background(), "alice", Filters{}, Page{})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, 1.0, res.Results[0].Score)
}

func TestFuzzy_InvalidThreshold(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.FuzzyWithThreshold(context.Background(), "x", 1.5, Filters{}, Page{})
	assert.True(t, gerrors.IsValidation(err))
}

func TestSemantic_RetrievesAfterIndexing(t *testing.T) {
	svc, g := newTestService(t)
	addEntity(t, g, "TravelDoc", "doc", nil, "cheap budget travel deals and hotel discounts")
	addEntity(t, g, "PhysicsDoc", "doc", nil, "quantum chromodynamics lattice simulations")

	ctx := context.Background()
	indexed, err := svc.IndexAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, indexed)

	res, err := svc.Semantic(ctx, "budget travel hotel", Filters{}, Page{})
	require.NoError(t, err)
	require.NotEmpty(t, res.Results)
	assert.Equal(t, "TravelDoc", res.Results[0].Entity.Name)
	assert.Equal(t, []Layer{LayerSemantic}, res.Results[0].MatchedLayers)
}

func TestSemantic_NoEmbedderYieldsEmpty(t *testing.T) {
	g := graph.NewIndex()
	svc, err := NewService(g, nil, config.Default())
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()

	addEntity(t, g, "A", "doc", nil, "text")

	res, err := svc.Semantic(context.Background(), "text", Filters{}, Page{})
	require.NoError(t, err)
	assert.Empty(t, res.Results)

	_, err = svc.IndexAll(context.Background())
	assert.Error(t, err)
}

func TestHybrid_FusesLayers(t *testing.T) {
	svc, g := newTestService(t)
	addEntity(t, g, "Budget Plan", "doc", nil, "budget travel itinerary")
	addEntity(t, g, "Other", "doc", nil, "unrelated material")

	ctx := context.Background()
	_, err := svc.IndexAll(ctx)
	require.NoError(t, err)

	res, err := svc.Hybrid(ctx, "budget travel", Filters{}, Page{Limit: 5})
	require.NoError(t, err)

	require.NotEmpty(t, res.Results)
	top := res.Results[0]
	assert.Equal(t, "Budget Plan", top.Entity.Name)
	assert.GreaterOrEqual(t, len(top.MatchedLayers), 2, "appears in several layers")
}

func TestSubgraphProjection(t *testing.T) {
	svc, g := newTestService(t)
	addEntity(t, g, "Alice", "person", nil, "budget owner")
	addEntity(t, g, "Bob", "person", nil, "budget analyst")
	addEntity(t, g, "Carol", "person", nil, "unrelated")
	require.NoError(t, g.CreateRelation(graph.Relation{From: "Alice", To: "Bob", Type: "works_with"}))
	require.NoError(t, g.CreateRelation(graph.Relation{From: "Alice", To: "Carol", Type: "knows"}))

	res, err := svc.Basic(context.Background(), "budget", Filters{}, Page{})
	require.NoError(t, err)

	// Only the edge with both endpoints in the result set is projected.
	require.Len(t, res.Relations, 1)
	assert.Equal(t, "Bob", res.Relations[0].To)
}

func TestCacheInvalidation_OnMutation(t *testing.T) {
	svc, g := newTestService(t)
	addEntity(t, g, "A", "doc", nil, "budget notes")

	ctx := context.Background()
	_, err := svc.Basic(ctx, "budget", Filters{}, Page{})
	require.NoError(t, err)
	_, err = svc.Basic(ctx, "budget", Filters{}, Page{})
	require.NoError(t, err)

	hits, _ := svc.caches[KindBasic].Stats()
	assert.EqualValues(t, 1, hits, "second identical query served from cache")

	// Any create observed before the next get forces a miss.
	addEntity(t, g, "B", "doc", nil, "budget addendum")

	res, err := svc.Basic(ctx, "budget", Filters{}, Page{})
	require.NoError(t, err)
	assert.Len(t, res.Results, 2, "fresh results after invalidation")
}

func TestPagination_Concatenation(t *testing.T) {
	svc, g := newTestService(t)
	names := []string{"E1", "E2", "E3", "E4", "E5", "E6"}
	for _, name := range names {
		addEntity(t, g, name, "doc", nil, "common token")
	}

	ctx := context.Background()
	first, err := svc.Basic(ctx, "common", Filters{}, Page{Offset: 0, Limit: 3})
	require.NoError(t, err)
	second, err := svc.Basic(ctx, "common", Filters{}, Page{Offset: 3, Limit: 3})
	require.NoError(t, err)
	all, err := svc.Basic(ctx, "common", Filters{}, Page{Offset: 0, Limit: 6})
	require.NoError(t, err)

	assert.Equal(t, all.Names(), append(first.Names(), second.Names()...))
	assert.Equal(t, 6, all.Total)
}

func TestPagination_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Basic(ctx, "x", Filters{}, Page{Offset: -1})
	assert.True(t, gerrors.IsValidation(err))

	// Limit above the hard max clamps rather than failing.
	_, err = svc.Basic(ctx, "x", Filters{}, Page{Limit: 10_000})
	assert.NoError(t, err)
}

func TestCancellation(t *testing.T) {
	svc, g := newTestService(t)
	addEntity(t, g, "A", "doc", nil, "text")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Basic(ctx, "text", Filters{}, Page{})
	assert.True(t, gerrors.IsCancelled(err))

	_, err = svc.Query(ctx, "text", Filters{}, Page{})
	assert.True(t, gerrors.IsCancelled(err))
}

func TestDeletedEntityLeavesIndexes(t *testing.T) {
	svc, g := newTestService(t)
	addEntity(t, g, "Gone", "doc", nil, "budget travel")
	addEntity(t, g, "Stays", "doc", nil, "budget hotel")

	ctx := context.Background()
	_, err := svc.IndexAll(ctx)
	require.NoError(t, err)

	require.NoError(t, g.DeleteEntity("Gone"))

	for _, search := range []func() (*Results, error){
		func() (*Results, error) { return svc.Basic(ctx, "budget", Filters{}, Page{}) },
		func() (*Results, error) { return svc.Ranked(ctx, "budget", Filters{}, Page{}) },
		func() (*Results, error) { return svc.BM25(ctx, "budget", Filters{}, Page{}) },
		func() (*Results, error) { return svc.Semantic(ctx, "budget", Filters{}, Page{}) },
	} {
		res, err := search()
		require.NoError(t, err)
		for _, r := range res.Results {
			assert.NotEqual(t, "Gone", r.Entity.Name)
		}
	}
}

func TestClearCachesAndStats(t *testing.T) {
	svc, g := newTestService(t)
	addEntity(t, g, "A", "doc", nil, "budget")

	ctx := context.Background()
	_, _ = svc.Basic(ctx, "budget", Filters{}, Page{})
	_, _ = svc.Basic(ctx, "budget", Filters{}, Page{})
	svc.Plan("who is alice")

	stats := svc.CacheStats()
	assert.EqualValues(t, 1, stats.ResultCaches[KindBasic].Hits)

	svc.ClearCaches()
	stats = svc.CacheStats()
	assert.Equal(t, 0, stats.PlanCache.Size)
}
