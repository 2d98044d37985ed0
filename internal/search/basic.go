package search

import (
	"context"
	"strings"

	"github.com/Aman-CERP/graphmem/internal/errors"
	"github.com/Aman-CERP/graphmem/internal/graph"
	"github.com/Aman-CERP/graphmem/internal/textutil"
)

// Basic runs case-insensitive substring search over name, type,
// observations, and tags. Ordering is entity insertion order.
func (s *Service) Basic(ctx context.Context, query string, f Filters, p Page) (*Results, error) {
	if cerr := errors.FromContext(ctx); cerr != nil {
		return nil, cerr
	}

	key := cacheKey(KindBasic, query, f, p, s.graph.Generation())
	if cached, ok := s.caches[KindBasic].Get(key); ok {
		return cached, nil
	}

	needle := textutil.FoldCase(query)

	var matched []*Result
	for _, name := range s.graph.Names() {
		le, err := s.graph.GetLowered(name)
		if err != nil {
			continue
		}
		if !basicMatch(le, needle) {
			continue
		}
		if r := s.resultFor(name, 1, "", nil); r != nil {
			matched = append(matched, r)
		}
	}

	res, err := s.finish(matched, f, p)
	if err != nil {
		return nil, err
	}
	s.caches[KindBasic].Put(key, res)
	return res, nil
}

// basicMatch checks the query substring against every text field.
// An empty needle matches everything, mirroring an unfiltered listing.
func basicMatch(le *graph.LoweredEntity, needle string) bool {
	if needle == "" {
		return true
	}
	if strings.Contains(le.Name, needle) || strings.Contains(le.EntityType, needle) {
		return true
	}
	for _, obs := range le.Observations {
		if strings.Contains(obs, needle) {
			return true
		}
	}
	for _, tag := range le.Tags {
		if strings.Contains(tag, needle) {
			return true
		}
	}
	return false
}
