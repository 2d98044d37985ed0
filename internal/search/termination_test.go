package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/graphmem/internal/config"
	"github.com/Aman-CERP/graphmem/internal/embed"
	"github.com/Aman-CERP/graphmem/internal/graph"
)

func newTerminationFixture(t *testing.T, tcfg config.TerminationConfig) (*Service, *graph.Index, *TerminationManager) {
	t.Helper()
	g := graph.NewIndex()
	cfg := config.Default()
	cfg.Termination = tcfg
	svc, err := NewService(g, embed.NewStaticEmbedder(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc, g, svc.termination
}

func TestTermination_EarlyStopAfterSymbolic(t *testing.T) {
	svc, g, tm := newTerminationFixture(t, config.TerminationConfig{
		AdequacyThreshold: 0.5,
		MinResults:        3,
		MinRelevance:      0.5,
		MinDiversity:      2,
	})
	_ = svc

	// Four entities across two types, all matched by the symbolic layer.
	addEntity(t, g, "A1", "person", nil, "budget owner")
	addEntity(t, g, "A2", "person", nil, "budget analyst")
	addEntity(t, g, "A3", "project", nil, "budget planning")
	addEntity(t, g, "A4", "project", nil, "budget review")

	out, err := tm.Execute(context.Background(), "budget", &Analysis{}, 10)
	require.NoError(t, err)

	assert.Equal(t, []Layer{LayerSymbolic}, out.ExecutedLayers,
		"lexical and semantic layers must not run")
	assert.True(t, out.EarlyTerminated)
	assert.Len(t, out.Results, 4)
	assert.GreaterOrEqual(t, out.Adequacy.Score, 0.5)
	assert.GreaterOrEqual(t, out.ExecutionTimeMs, int64(0))
}

func TestTermination_RunsAllLayersWhenInadequate(t *testing.T) {
	_, g, tm := newTerminationFixture(t, config.TerminationConfig{
		AdequacyThreshold: 0.99,
		MinResults:        50, // unreachable
		MinRelevance:      1.0,
		MinDiversity:      5,
	})

	addEntity(t, g, "Solo", "doc", nil, "budget")

	out, err := tm.Execute(context.Background(), "budget", &Analysis{}, 10)
	require.NoError(t, err)

	assert.Equal(t, []Layer{LayerSymbolic, LayerLexical, LayerSemantic}, out.ExecutedLayers)
	assert.False(t, out.EarlyTerminated)
}

func TestTermination_DeduplicatesAcrossLayers(t *testing.T) {
	_, g, tm := newTerminationFixture(t, config.TerminationConfig{
		AdequacyThreshold: 0.99,
		MinResults:        50,
		MinRelevance:      1.0,
		MinDiversity:      5,
	})

	addEntity(t, g, "Dup", "doc", nil, "budget travel")

	out, err := tm.Execute(context.Background(), "budget", &Analysis{}, 10)
	require.NoError(t, err)

	require.Len(t, out.Results, 1, "one entry despite matching several layers")
	assert.GreaterOrEqual(t, len(out.Results[0].MatchedLayers), 2, "matched layers unioned")
}

func TestTermination_LayerFailureIsolated(t *testing.T) {
	g := graph.NewIndex()
	cfg := config.Default()
	cfg.Termination = config.TerminationConfig{
		AdequacyThreshold: 0.99,
		MinResults:        50,
		MinRelevance:      1,
		MinDiversity:      5,
	}
	svc, err := NewService(g, &failingEmbedder{}, cfg)
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()

	addEntity(t, g, "A", "doc", nil, "budget")
	// Force a vector so the semantic layer actually calls the embedder.
	require.NoError(t, svc.vectors.Add("A", make([]float32, 4)))

	out, err := svc.termination.Execute(context.Background(), "budget", &Analysis{}, 10)
	require.NoError(t, err)

	// Symbolic and lexical still ran and produced results.
	assert.Contains(t, out.ExecutedLayers, LayerSymbolic)
	assert.Contains(t, out.ExecutedLayers, LayerLexical)
	assert.NotContains(t, out.ExecutedLayers, LayerSemantic)
	assert.Contains(t, out.LayerErrors, LayerSemantic)
	assert.NotEmpty(t, out.Results)
}

func TestAdequacy_Components(t *testing.T) {
	_, g, tm := newTerminationFixture(t, config.TerminationConfig{
		AdequacyThreshold: 0.7,
		MinResults:        2,
		MinRelevance:      0.5,
		MinDiversity:      2,
	})
	addEntity(t, g, "P", "person", nil, "a person who leads")
	addEntity(t, g, "D", "document", nil, "a file")

	p, _ := g.GetByName("P")
	d, _ := g.GetByName("D")
	results := []*Result{
		{Entity: p, Score: 0.9, MatchedLayers: []Layer{LayerSymbolic}},
		{Entity: d, Score: 0.8, MatchedLayers: []Layer{LayerLexical}},
	}

	a := tm.Evaluate(results, &Analysis{RequiredInfoTypes: []InfoType{InfoPerson}})
	assert.Equal(t, 1.0, a.Count)
	assert.Equal(t, 1.0, a.Relevance)
	assert.Equal(t, 1.0, a.Coverage, "person info type represented")
	assert.Equal(t, 1.0, a.Diversity)
	assert.True(t, a.Adequate)
	assert.InDelta(t, 1.0, a.Score, 1e-9)

	// Temporal info is missing from these results.
	a = tm.Evaluate(results, &Analysis{RequiredInfoTypes: []InfoType{InfoPerson, InfoTemporal}})
	assert.Equal(t, 0.5, a.Coverage)
	assert.Equal(t, []InfoType{InfoTemporal}, a.MissingInfoTypes)
	assert.False(t, a.Adequate)
}

func TestAdequacy_EmptyResults(t *testing.T) {
	_, _, tm := newTerminationFixture(t, config.TerminationConfig{
		AdequacyThreshold: 0.5,
		MinResults:        3,
		MinRelevance:      0.5,
		MinDiversity:      2,
	})

	a := tm.Evaluate(nil, &Analysis{RequiredInfoTypes: []InfoType{InfoPerson}})
	assert.Zero(t, a.Count)
	assert.Zero(t, a.Relevance)
	assert.Zero(t, a.Coverage)
	assert.False(t, a.Adequate)
}

type failingEmbedder struct{}

func (f *failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, assert.AnError
}
func (f *failingEmbedder) IsAvailable(ctx context.Context) bool { return true }
func (f *failingEmbedder) Dimension() int                       { return 4 }
