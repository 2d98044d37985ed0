package search

import (
	"context"

	"github.com/Aman-CERP/graphmem/internal/errors"
	"github.com/Aman-CERP/graphmem/internal/index"
)

// Ranked runs TF-IDF scored retrieval. Results are sorted by score
// descending with ties broken by name ascending; matched documents are kept
// even when every matched term has zero discriminating power.
func (s *Service) Ranked(ctx context.Context, query string, f Filters, p Page) (*Results, error) {
	return s.keywordSearch(ctx, KindRanked, query, f, p, func(q string) []index.Scored {
		return s.tfidf.SearchTFIDF(q, 0)
	})
}

// BM25 runs Okapi BM25 scored retrieval through the configured keyword
// backend.
func (s *Service) BM25(ctx context.Context, query string, f Filters, p Page) (*Results, error) {
	return s.keywordSearch(ctx, KindBM25, query, f, p, func(q string) []index.Scored {
		return s.keyword.SearchBM25(q, s.graph.Len())
	})
}

func (s *Service) keywordSearch(ctx context.Context, kind Kind, query string, f Filters, p Page, run func(string) []index.Scored) (*Results, error) {
	if cerr := errors.FromContext(ctx); cerr != nil {
		return nil, cerr
	}

	key := cacheKey(kind, query, f, p, s.graph.Generation())
	if cached, ok := s.caches[kind].Get(key); ok {
		return cached, nil
	}

	scored := run(query)
	results := make([]*Result, 0, len(scored))
	for _, sc := range scored {
		if r := s.resultFor(sc.ID, sc.Score, LayerLexical, sc.MatchedTerms); r != nil {
			results = append(results, r)
		}
	}

	res, err := s.finish(results, f, p)
	if err != nil {
		return nil, err
	}
	s.caches[kind].Put(key, res)
	return res, nil
}

// lexicalLayer exposes keyword scoring as a hybrid layer: entity -> score.
func (s *Service) lexicalLayer(query string, limit int) LayerScores {
	scores := make(LayerScores)
	for _, sc := range s.keyword.SearchBM25(query, limit) {
		scores[sc.ID] = sc.Score
	}
	return scores
}
