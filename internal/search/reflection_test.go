package search

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/graphmem/internal/config"
	"github.com/Aman-CERP/graphmem/internal/embed"
	gerrors "github.com/Aman-CERP/graphmem/internal/errors"
	"github.com/Aman-CERP/graphmem/internal/graph"
)

func newReflectionFixture(t *testing.T, rcfg config.ReflectionConfig, tcfg config.TerminationConfig) (*Service, *graph.Index, *ReflectionManager) {
	t.Helper()
	g := graph.NewIndex()
	cfg := config.Default()
	cfg.Reflection = rcfg
	cfg.Termination = tcfg
	svc, err := NewService(g, embed.NewStaticEmbedder(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc, g, svc.reflection
}

func TestReflection_WideningAndRefinement(t *testing.T) {
	_, g, rm := newReflectionFixture(t,
		config.ReflectionConfig{
			MaxIterations:       3,
			InitialLimit:        10,
			LimitIncreaseFactor: 2.0,
			FocusMissingTypes:   true,
		},
		config.TerminationConfig{
			AdequacyThreshold: 0.9,
			MinResults:        10, // unreachable with this graph
			MinRelevance:      1,
			MinDiversity:      3,
		})

	// Non-person entities only: the person info type stays unsatisfied.
	addEntity(t, g, "Alice Report", "document", nil, "alice wrote this report")
	addEntity(t, g, "Alice Budget", "document", nil, "alice budget spreadsheet")

	an := &Analysis{
		Query:             "Who is Alice?",
		QuestionType:      QuestionFactual,
		RequiredInfoTypes: []InfoType{InfoPerson},
		Keywords:          []string{"alice"},
	}

	out, err := rm.Execute(context.Background(), "Who is Alice?", an)
	require.NoError(t, err)

	require.Len(t, out.RefinementHistory, 3)
	assert.Equal(t, 10, out.RefinementHistory[0].Limit)
	assert.Equal(t, 20, out.RefinementHistory[1].Limit)
	assert.Equal(t, 40, out.RefinementHistory[2].Limit)
	assert.Equal(t, 40, out.FinalLimit)
	assert.False(t, out.Adequate)

	// Iterations 2+ query is refined with person cue words.
	for _, step := range out.RefinementHistory[1:] {
		lower := strings.ToLower(step.Query)
		hasCue := strings.Contains(lower, "who") ||
			strings.Contains(lower, "person") ||
			strings.Contains(lower, "people")
		assert.True(t, hasCue, "refined query %q lacks person cue", step.Query)
	}

	// Limits never decrease, and the last is within the widening bound.
	for i := 1; i < len(out.RefinementHistory); i++ {
		assert.GreaterOrEqual(t, out.RefinementHistory[i].Limit, out.RefinementHistory[i-1].Limit)
	}
	assert.LessOrEqual(t, out.FinalLimit, 10*2*2*2)
}

func TestReflection_StopsWhenAdequate(t *testing.T) {
	_, g, rm := newReflectionFixture(t,
		config.ReflectionConfig{
			MaxIterations:       5,
			InitialLimit:        10,
			LimitIncreaseFactor: 1.5,
			FocusMissingTypes:   true,
		},
		config.TerminationConfig{
			AdequacyThreshold: 0.3,
			MinResults:        1,
			MinRelevance:      0.1,
			MinDiversity:      1,
		})

	addEntity(t, g, "Doc", "document", nil, "budget travel")

	out, err := rm.Execute(context.Background(), "budget", &Analysis{})
	require.NoError(t, err)

	assert.True(t, out.Adequate)
	assert.Len(t, out.RefinementHistory, 1, "adequate on the first pass")
	assert.Equal(t, 10, out.FinalLimit)
	assert.NotEmpty(t, out.Results)
}

func TestReflection_Cancellation(t *testing.T) {
	_, _, rm := newReflectionFixture(t,
		config.Default().Reflection,
		config.Default().Termination)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := rm.Execute(ctx, "anything", &Analysis{})
	assert.True(t, gerrors.IsCancelled(err))
}

func TestReflection_UnionDeduplicates(t *testing.T) {
	_, g, rm := newReflectionFixture(t,
		config.ReflectionConfig{
			MaxIterations:       3,
			InitialLimit:        5,
			LimitIncreaseFactor: 2,
			FocusMissingTypes:   false,
		},
		config.TerminationConfig{
			AdequacyThreshold: 0.99,
			MinResults:        50,
			MinRelevance:      1,
			MinDiversity:      5,
		})

	addEntity(t, g, "Only", "doc", nil, "budget")

	out, err := rm.Execute(context.Background(), "budget", &Analysis{})
	require.NoError(t, err)

	// Three iterations over the same graph still yield one entry.
	assert.Len(t, out.Results, 1)
	assert.Len(t, out.RefinementHistory, 3)
}
