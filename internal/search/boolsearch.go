package search

import (
	"context"

	"github.com/Aman-CERP/graphmem/internal/boolean"
	"github.com/Aman-CERP/graphmem/internal/errors"
)

// Boolean evaluates a boolean query (AND/OR/NOT, fields, phrases) against
// every entity. Parse and complexity errors surface to the caller
// unchanged. Matching entities are returned in insertion order.
func (s *Service) Boolean(ctx context.Context, query string, f Filters, p Page) (*Results, error) {
	if cerr := errors.FromContext(ctx); cerr != nil {
		return nil, cerr
	}

	key := cacheKey(KindBoolean, query, f, p, s.graph.Generation())
	if cached, ok := s.caches[KindBoolean].Get(key); ok {
		return cached, nil
	}

	ast, err := s.parseBoolean(query)
	if err != nil {
		return nil, err
	}

	var matched []*Result
	for i, name := range s.graph.Names() {
		if i%128 == 0 {
			if cerr := errors.FromContext(ctx); cerr != nil {
				return nil, cerr
			}
		}
		le, err := s.graph.GetLowered(name)
		if err != nil {
			continue
		}
		if !s.evaluator.Evaluate(ast, name, le) {
			continue
		}
		if r := s.resultFor(name, 1, LayerSymbolic, nil); r != nil {
			matched = append(matched, r)
		}
	}

	res, err := s.finish(matched, f, p)
	if err != nil {
		return nil, err
	}
	s.caches[KindBoolean].Put(key, res)
	return res, nil
}

// parseBoolean parses through the AST cache.
func (s *Service) parseBoolean(query string) (*boolean.Node, error) {
	if ast, ok := s.astCache.Get(query); ok {
		return ast, nil
	}
	ast, err := boolean.Parse(query, s.limits)
	if err != nil {
		return nil, err
	}
	s.astCache.Put(query, ast)
	return ast, nil
}

// symbolicLayer exposes boolean evaluation as a hybrid layer. Queries that
// fail to parse as boolean expressions fall back to basic substring
// matching so the symbolic layer still contributes for plain text queries.
func (s *Service) symbolicLayer(ctx context.Context, query string, limit int) (LayerScores, error) {
	scores := make(LayerScores)

	ast, err := s.parseBoolean(query)
	if err != nil {
		if errors.IsCancelled(err) {
			return nil, err
		}
		// Not a boolean expression: substring-match instead.
		res, berr := s.Basic(ctx, query, Filters{}, Page{Limit: maxLayerLimit(limit)})
		if berr != nil {
			return nil, berr
		}
		for _, r := range res.Results {
			scores[r.Entity.Name] = 1
		}
		return scores, nil
	}

	count := 0
	for _, name := range s.graph.Names() {
		if cerr := errors.FromContext(ctx); cerr != nil {
			return nil, cerr
		}
		le, err := s.graph.GetLowered(name)
		if err != nil {
			continue
		}
		if s.evaluator.Evaluate(ast, name, le) {
			scores[name] = 1
			count++
			if limit > 0 && count >= limit {
				break
			}
		}
	}
	return scores, nil
}

func maxLayerLimit(limit int) int {
	if limit <= 0 || limit > MaxPageLimit {
		return MaxPageLimit
	}
	return limit
}
