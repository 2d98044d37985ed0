package embed

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticEmbedder_Deterministic(t *testing.T) {
	e := NewStaticEmbedder()
	ctx := context.Background()

	a1, err := e.Embed(ctx, "budget travel hotel")
	require.NoError(t, err)
	a2, err := e.Embed(ctx, "budget travel hotel")
	require.NoError(t, err)

	assert.Equal(t, a1, a2)
	assert.Len(t, a1, StaticDimension)
	assert.True(t, e.IsAvailable(ctx))
	assert.Equal(t, StaticDimension, e.Dimension())
}

func TestStaticEmbedder_UnitNorm(t *testing.T) {
	e := NewStaticEmbedder()
	vec, err := e.Embed(context.Background(), "some interesting text")
	require.NoError(t, err)

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestStaticEmbedder_EmptyText(t *testing.T) {
	e := NewStaticEmbedder()
	vec, err := e.Embed(context.Background(), "   ")
	require.NoError(t, err)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestStaticEmbedder_SimilarTextsCloser(t *testing.T) {
	e := NewStaticEmbedder()
	ctx := context.Background()

	a, _ := e.Embed(ctx, "cheap budget travel")
	b, _ := e.Embed(ctx, "budget travel deals")
	c, _ := e.Embed(ctx, "quantum chromodynamics lattice")

	assert.Greater(t, dot(a, b), dot(a, c))
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func TestOllamaEmbedder_Embed(t *testing.T) {
	vec := make([]float64, 8)
	for i := range vec {
		vec[i] = float64(i)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/embeddings":
			var req embeddingsRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "test-model", req.Model)
			_ = json.NewEncoder(w).Encode(embeddingsResponse{Embedding: vec})
		case "/api/tags":
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(OllamaConfig{Host: srv.URL, Model: "test-model", Dimension: 8})

	got, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	require.Len(t, got, 8)
	assert.Equal(t, float32(3), got[3])
	assert.True(t, e.IsAvailable(context.Background()))
}

func TestOllamaEmbedder_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(embeddingsResponse{Embedding: []float64{1, 2}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(OllamaConfig{Host: srv.URL, Dimension: 2, MaxRetries: 5})

	_, err := e.Embed(context.Background(), "retry me")
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load())
}

func TestOllamaEmbedder_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(OllamaConfig{Host: srv.URL, Dimension: 2, MaxRetries: 5})

	_, err := e.Embed(context.Background(), "nope")
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestCachedEmbedder(t *testing.T) {
	inner := &countingEmbedder{inner: NewStaticEmbedder()}
	cached := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	v1, err := cached.Embed(ctx, "hello")
	require.NoError(t, err)
	v2, err := cached.Embed(ctx, "hello")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.EqualValues(t, 1, inner.calls.Load())

	cached.Purge()
	_, err = cached.Embed(ctx, "hello")
	require.NoError(t, err)
	assert.EqualValues(t, 2, inner.calls.Load())
}

type countingEmbedder struct {
	inner Embedder
	calls atomic.Int32
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	return c.inner.Embed(ctx, text)
}

func (c *countingEmbedder) IsAvailable(ctx context.Context) bool { return true }
func (c *countingEmbedder) Dimension() int                       { return c.inner.Dimension() }
