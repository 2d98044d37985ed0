package search

import (
	"context"
	"log/slog"
	"sort"

	"github.com/Aman-CERP/graphmem/internal/errors"
)

// Semantic runs embedding-backed retrieval. When no embedder is configured
// or the provider is unavailable, it returns an empty result set rather
// than an error: embedding absence is degradation, not failure.
func (s *Service) Semantic(ctx context.Context, query string, f Filters, p Page) (*Results, error) {
	if cerr := errors.FromContext(ctx); cerr != nil {
		return nil, cerr
	}

	scores, err := s.semanticLayer(ctx, query, 0)
	if err != nil {
		return nil, err
	}

	results := make([]*Result, 0, len(scores))
	for _, name := range rankedNames(scores) {
		if r := s.resultFor(name, scores[name], LayerSemantic, nil); r != nil {
			results = append(results, r)
		}
	}
	return s.finish(results, f, p)
}

// semanticLayer exposes vector retrieval as a hybrid layer. limit <= 0
// retrieves over the full vector population.
func (s *Service) semanticLayer(ctx context.Context, query string, limit int) (LayerScores, error) {
	if s.embedder == nil || s.vectors == nil {
		return LayerScores{}, nil
	}
	if !s.embedder.IsAvailable(ctx) {
		slog.Debug("semantic_layer_skipped", slog.String("reason", "embedder unavailable"))
		return LayerScores{}, nil
	}
	if s.vectors.Len() == 0 {
		return LayerScores{}, nil
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		if errors.IsCancelled(err) {
			return nil, err
		}
		return nil, errors.New(errors.ErrCodeEmbedderFailed, "embed query", err)
	}

	k := limit
	if k <= 0 {
		k = s.vectors.Len()
	}
	hits, err := s.vectors.Search(vec, k)
	if err != nil {
		return nil, err
	}

	scores := make(LayerScores, len(hits))
	for _, hit := range hits {
		scores[hit.Name] = hit.Score
	}
	return scores, nil
}

// rankedNames orders a layer's entities by score descending, name ascending.
func rankedNames(scores LayerScores) []string {
	names := make([]string, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if scores[names[i]] != scores[names[j]] {
			return scores[names[i]] > scores[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}
