package search

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/Aman-CERP/graphmem/internal/errors"
)

// Hybrid fuses the symbolic, lexical, and semantic layers for the query.
// A failing layer is logged and dropped; the remaining layers still
// contribute, with their weights renormalized.
func (s *Service) Hybrid(ctx context.Context, query string, f Filters, p Page) (*Results, error) {
	page, err := ValidatePage(p)
	if err != nil {
		return nil, err
	}

	results, err := s.hybridResults(ctx, query, page.Offset+page.Limit)
	if err != nil {
		return nil, err
	}
	return s.finish(results, f, p)
}

// hybridResults runs all layers and fuses them, without filtering or
// pagination. limit bounds per-layer retrieval.
func (s *Service) hybridResults(ctx context.Context, query string, limit int) ([]*Result, error) {
	layers := make(map[Layer]LayerScores)

	for _, lr := range s.layerRuns() {
		if cerr := errors.FromContext(ctx); cerr != nil {
			return nil, cerr
		}
		scores, err := lr.run(ctx, query, limit)
		if err != nil {
			if errors.IsCancelled(err) && ctx.Err() != nil {
				return nil, errors.Cancelled(ctx.Err())
			}
			slog.Warn("hybrid_layer_failed",
				slog.String("layer", string(lr.layer)),
				slog.String("error", err.Error()))
			continue
		}
		if len(scores) > 0 {
			layers[lr.layer] = scores
		}
	}

	fused := s.scorer.Fuse(layers, s.graph.Contains)
	return s.fusedResults(fused), nil
}

// Plan analyzes a query and builds its execution plan, serving repeats from
// the plan cache.
func (s *Service) Plan(query string) *PlanEntry {
	if entry, ok := s.planCache.Get(query); ok {
		return entry
	}
	an := s.analyzer.Analyze(query)
	plan := s.planner.Plan(an)
	s.planCache.Put(query, an, plan)
	entry, _ := s.planCache.Get(query)
	if entry == nil {
		// Cache disabled or evicted immediately; return a transient entry.
		entry = &PlanEntry{Analysis: an, Plan: plan, CreatedAt: time.Now(), LastAccessed: time.Now()}
	}
	return entry
}

// Query is the planner-driven entry point: it analyzes the query, picks a
// strategy, and drives the termination controller or reflection loop.
func (s *Service) Query(ctx context.Context, query string, f Filters, p Page) (*Results, error) {
	start := time.Now()
	entry := s.Plan(query)
	an, plan := entry.Analysis, entry.Plan

	var (
		results  []*Result
		executed []Layer
		adequacy *Adequacy
		err      error
	)

	switch plan.ExecutionStrategy {
	case StrategyIterative:
		var rr *ReflectionResult
		rr, err = s.reflection.Execute(ctx, query, an)
		if err == nil {
			results = rr.Results
			if n := len(rr.RefinementHistory); n > 0 {
				adequacy = &Adequacy{Score: rr.RefinementHistory[n-1].AdequacyScore, Adequate: rr.Adequate}
			}
		}
	case StrategyParallel:
		results, executed, err = s.parallelSubQueries(ctx, plan, p)
	default:
		var tr *TerminationResult
		tr, err = s.termination.Execute(ctx, query, an, p.Limit)
		if err == nil {
			results = tr.Results
			executed = tr.ExecutedLayers
			adequacy = &tr.Adequacy
		}
	}
	if err != nil {
		return nil, err
	}

	s.traces.Add(&Trace{
		Query:          query,
		Kind:           KindHybrid,
		Analysis:       an,
		Plan:           plan,
		ExecutedLayers: executed,
		Adequacy:       adequacy,
		DurationMs:     time.Since(start).Milliseconds(),
	})

	return s.finish(results, f, p)
}

// parallelSubQueries executes the plan's focused sub-queries and merges by
// deduplicated union; scores from multiple sub-queries accumulate, so
// consensus entities rise.
func (s *Service) parallelSubQueries(ctx context.Context, plan *Plan, p Page) ([]*Result, []Layer, error) {
	page, err := ValidatePage(p)
	if err != nil {
		return nil, nil, err
	}
	limit := page.Offset + page.Limit

	merged := make(map[string]*Result)
	var ordered []*Result
	layerSet := map[Layer]struct{}{}

	for _, sq := range plan.SubQueries {
		if cerr := errors.FromContext(ctx); cerr != nil {
			return nil, nil, cerr
		}
		part, err := s.hybridResults(ctx, sq.Query, limit)
		if err != nil {
			return nil, nil, err
		}
		for _, r := range part {
			for _, l := range r.MatchedLayers {
				layerSet[l] = struct{}{}
			}
			if prev, seen := merged[r.Entity.Name]; seen {
				prev.MatchedLayers = unionLayers(prev.MatchedLayers, r.MatchedLayers)
				if plan.MergeStrategy == MergeWeighted {
					prev.Score += r.Score
				} else if r.Score > prev.Score {
					prev.Score = r.Score
				}
				continue
			}
			merged[r.Entity.Name] = r
			ordered = append(ordered, r)
		}
	}

	sortResults(ordered)

	executed := make([]Layer, 0, len(layerSet))
	for _, l := range layerOrder {
		if _, ok := layerSet[l]; ok {
			executed = append(executed, l)
		}
	}
	return ordered, executed, nil
}

// Explanation details how a hybrid result set was produced.
type Explanation struct {
	Query    string        `json:"query"`
	Analysis *Analysis     `json:"analysis"`
	Plan     *Plan         `json:"plan"`
	Weights  Weights       `json:"weights"`
	Layers   map[Layer]int `json:"layerResultCounts"`
	Results  *Results      `json:"results"`
}

// Explain runs a hybrid query and reports the fusion decisions: the
// analysis, plan, effective weights, and per-layer result counts.
func (s *Service) Explain(ctx context.Context, query string, f Filters, p Page) (*Explanation, error) {
	entry := s.Plan(query)

	page, err := ValidatePage(p)
	if err != nil {
		return nil, err
	}

	layers := make(map[Layer]LayerScores)
	counts := make(map[Layer]int)
	for _, lr := range s.layerRuns() {
		scores, err := lr.run(ctx, query, page.Offset+page.Limit)
		if err != nil {
			continue
		}
		counts[lr.layer] = len(scores)
		if len(scores) > 0 {
			layers[lr.layer] = scores
		}
	}

	fused := s.scorer.Fuse(layers, s.graph.Contains)
	res, err := s.finish(s.fusedResults(fused), f, p)
	if err != nil {
		return nil, err
	}

	return &Explanation{
		Query:    query,
		Analysis: entry.Analysis,
		Plan:     entry.Plan,
		Weights:  s.scorer.Weights,
		Layers:   counts,
		Results:  res,
	}, nil
}

// sortResults orders by score descending, name ascending.
func sortResults(results []*Result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Entity.Name < results[j].Entity.Name
	})
}
