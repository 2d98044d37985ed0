package vector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gerrors "github.com/Aman-CERP/graphmem/internal/errors"
)

func TestAddSearch(t *testing.T) {
	s := NewStore(3)

	require.NoError(t, s.Add("x-axis", []float32{1, 0, 0}))
	require.NoError(t, s.Add("y-axis", []float32{0, 1, 0}))
	require.NoError(t, s.Add("mostly-x", []float32{0.9, 0.1, 0}))

	results, err := s.Search([]float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "x-axis", results[0].Name)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, "mostly-x", results[1].Name)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestAdd_DimensionMismatch(t *testing.T) {
	s := NewStore(3)
	err := s.Add("bad", []float32{1, 0})
	require.Error(t, err)
	assert.ErrorIs(t, err, &gerrors.GraphError{Code: gerrors.ErrCodeDimensionMismatch})

	_, err = s.Search([]float32{1, 0}, 1)
	assert.ErrorIs(t, err, &gerrors.GraphError{Code: gerrors.ErrCodeDimensionMismatch})
}

func TestAdd_ReplacesExisting(t *testing.T) {
	s := NewStore(2)
	require.NoError(t, s.Add("a", []float32{1, 0}))
	require.NoError(t, s.Add("a", []float32{0, 1}))

	assert.Equal(t, 1, s.Len())

	results, err := s.Search([]float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].Name)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestRemove(t *testing.T) {
	s := NewStore(2)
	require.NoError(t, s.Add("a", []float32{1, 0}))
	require.NoError(t, s.Add("b", []float32{0, 1}))

	s.Remove("a")
	s.Remove("missing") // no-op

	assert.Equal(t, 1, s.Len())
	assert.False(t, s.Contains("a"))
	assert.True(t, s.Contains("b"))

	// Removed vectors never surface in search results.
	results, err := s.Search([]float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].Name)
}

func TestSearch_EmptyStore(t *testing.T) {
	s := NewStore(2)
	results, err := s.Search([]float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestNames(t *testing.T) {
	s := NewStore(2)
	require.NoError(t, s.Add("b", []float32{1, 0}))
	require.NoError(t, s.Add("a", []float32{0, 1}))
	assert.Equal(t, []string{"a", "b"}, s.Names())
}
