package search

import (
	"context"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/graphmem/internal/errors"
	"github.com/Aman-CERP/graphmem/internal/textutil"
)

// fuzzyPoolThreshold is the entity count above which edit-distance scoring
// fans out over the worker pool.
const fuzzyPoolThreshold = 500

// fuzzyMatch is one entity's fuzzy score with its match provenance.
type fuzzyMatch struct {
	name       string
	similarity float64
	// nameMatch ranks name hits strictly above observation hits of equal
	// similarity.
	nameMatch bool
}

// Fuzzy runs edit-distance search: an entity matches when
// 1 - dist/maxLen >= threshold against its name or any observation, with a
// substring hit short-circuiting to similarity 1.
func (s *Service) Fuzzy(ctx context.Context, query string, f Filters, p Page) (*Results, error) {
	return s.fuzzyWithThreshold(ctx, query, s.cfg.Fuzzy.Threshold, f, p)
}

// FuzzyWithThreshold is Fuzzy with an explicit similarity threshold.
func (s *Service) FuzzyWithThreshold(ctx context.Context, query string, threshold float64, f Filters, p Page) (*Results, error) {
	if threshold < 0 || threshold > 1 {
		return nil, errors.Validation("fuzzy threshold must be in [0,1]")
	}
	return s.fuzzyWithThreshold(ctx, query, threshold, f, p)
}

func (s *Service) fuzzyWithThreshold(ctx context.Context, query string, threshold float64, f Filters, p Page) (*Results, error) {
	if cerr := errors.FromContext(ctx); cerr != nil {
		return nil, cerr
	}

	key := cacheKey(KindFuzzy, query, f, p, s.graph.Generation())
	if cached, ok := s.fuzzyCache.Get(key); ok {
		return cached, nil
	}

	folded := textutil.FoldCase(query)
	names := s.graph.Names()

	var matches []fuzzyMatch
	var err error
	if s.cfg.Fuzzy.UseWorkerPool && len(names) >= fuzzyPoolThreshold {
		matches, err = s.fuzzyParallel(ctx, folded, threshold, names)
	} else {
		matches, err = s.fuzzyChunk(ctx, folded, threshold, names)
	}
	if err != nil {
		return nil, err
	}

	// Name matches rank above observation matches of equal similarity;
	// remaining ties break by name.
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].similarity != matches[j].similarity {
			return matches[i].similarity > matches[j].similarity
		}
		if matches[i].nameMatch != matches[j].nameMatch {
			return matches[i].nameMatch
		}
		return matches[i].name < matches[j].name
	})

	results := make([]*Result, 0, len(matches))
	for _, m := range matches {
		if r := s.resultFor(m.name, m.similarity, "", nil); r != nil {
			results = append(results, r)
		}
	}

	res, err := s.finish(results, f, p)
	if err != nil {
		return nil, err
	}
	s.fuzzyCache.Put(key, res)
	return res, nil
}

// fuzzyChunk scores a slice of entities sequentially.
func (s *Service) fuzzyChunk(ctx context.Context, folded string, threshold float64, names []string) ([]fuzzyMatch, error) {
	var matches []fuzzyMatch
	for i, name := range names {
		if i%64 == 0 {
			if cerr := errors.FromContext(ctx); cerr != nil {
				return nil, cerr
			}
		}
		le, err := s.graph.GetLowered(name)
		if err != nil {
			continue
		}

		if sim := fuzzySimilarity(folded, le.Name); sim >= threshold {
			matches = append(matches, fuzzyMatch{name: name, similarity: sim, nameMatch: true})
			continue
		}

		best := 0.0
		for _, obs := range le.Observations {
			if sim := fuzzyObservationSimilarity(folded, obs); sim > best {
				best = sim
			}
		}
		if best >= threshold {
			matches = append(matches, fuzzyMatch{name: name, similarity: best})
		}
	}
	return matches, nil
}

// fuzzyParallel fans entity chunks out over an errgroup and merges chunk
// results in original chunk order, keeping scoring deterministic.
func (s *Service) fuzzyParallel(ctx context.Context, folded string, threshold float64, names []string) ([]fuzzyMatch, error) {
	workers := runtime.GOMAXPROCS(0)
	if workers < 2 {
		workers = 2
	}
	chunkSize := (len(names) + workers - 1) / workers

	chunks := make([][]fuzzyMatch, workers)
	eg, ctx := errgroup.WithContext(ctx)

	for w := 0; w < workers; w++ {
		start := w * chunkSize
		if start >= len(names) {
			break
		}
		end := start + chunkSize
		if end > len(names) {
			end = len(names)
		}
		eg.Go(func() error {
			part, err := s.fuzzyChunk(ctx, folded, threshold, names[start:end])
			if err != nil {
				return err
			}
			chunks[w] = part
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var merged []fuzzyMatch
	for _, part := range chunks {
		merged = append(merged, part...)
	}
	return merged, nil
}

// fuzzySimilarity compares two folded strings: a substring containment
// short-circuits to 1, otherwise normalized edit distance.
func fuzzySimilarity(query, candidate string) float64 {
	if query == "" || candidate == "" {
		return 0
	}
	if strings.Contains(candidate, query) || strings.Contains(query, candidate) {
		return 1
	}
	return textutil.Similarity(query, candidate)
}

// fuzzyObservationSimilarity scores a query against one observation: the
// whole text plus each token, taking the best.
func fuzzyObservationSimilarity(query, obs string) float64 {
	if strings.Contains(obs, query) {
		return 1
	}
	best := textutil.Similarity(query, obs)
	for _, tok := range textutil.Tokenize(obs) {
		if sim := fuzzySimilarity(query, tok); sim > best {
			best = sim
		}
	}
	return best
}
