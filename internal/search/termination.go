package search

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/Aman-CERP/graphmem/internal/config"
	"github.com/Aman-CERP/graphmem/internal/errors"
	"github.com/Aman-CERP/graphmem/internal/textutil"
)

// Adequacy component weights. They sum to 1.
const (
	adequacyCountWeight     = 0.3
	adequacyRelevanceWeight = 0.3
	adequacyCoverageWeight  = 0.25
	adequacyDiversityWeight = 0.15
)

// Adequacy describes whether a result set is good enough to stop searching.
type Adequacy struct {
	// Component scores in [0,1].
	Count     float64 `json:"count"`
	Relevance float64 `json:"relevance"`
	Coverage  float64 `json:"coverage"`
	Diversity float64 `json:"diversity"`

	// Score is the weighted combination of the components.
	Score float64 `json:"score"`

	// Adequate reports whether every hard condition holds.
	Adequate bool `json:"adequate"`

	// MissingInfoTypes lists required info types no result represents.
	MissingInfoTypes []InfoType `json:"missingInfoTypes,omitempty"`
}

// TerminationResult is the outcome of ordered multi-layer execution.
type TerminationResult struct {
	Results         []*Result        `json:"results"`
	ExecutedLayers  []Layer          `json:"executedLayers"`
	EarlyTerminated bool             `json:"earlyTerminated"`
	ExecutionTimeMs int64            `json:"executionTimeMs"`
	Adequacy        Adequacy         `json:"adequacy"`
	LayerErrors     map[Layer]string `json:"layerErrors,omitempty"`
}

// layerRun couples a layer with its executor.
type layerRun struct {
	layer Layer
	run   func(ctx context.Context, query string, limit int) (LayerScores, error)
}

// layerRuns returns the layers ordered by ascending estimated cost:
// symbolic < lexical < semantic.
func (s *Service) layerRuns() []layerRun {
	return []layerRun{
		{LayerSymbolic, s.symbolicLayer},
		{LayerLexical, func(_ context.Context, query string, limit int) (LayerScores, error) {
			return s.lexicalLayer(query, limit), nil
		}},
		{LayerSemantic, s.semanticLayer},
	}
}

// TerminationManager executes layers cheapest-first and stops as soon as
// the accumulated result set is adequate.
type TerminationManager struct {
	svc *Service
	cfg config.TerminationConfig
}

// NewTerminationManager creates a termination manager.
func NewTerminationManager(svc *Service, cfg config.TerminationConfig) *TerminationManager {
	return &TerminationManager{svc: svc, cfg: cfg}
}

// Execute runs the layers for the query. A failing layer is recorded and
// skipped; remaining layers still run. Cancellation of ctx aborts the call.
func (tm *TerminationManager) Execute(ctx context.Context, query string, an *Analysis, limit int) (*TerminationResult, error) {
	start := time.Now()
	if limit <= 0 {
		limit = tm.svc.cfg.Pagination.DefaultLimit
	}

	out := &TerminationResult{LayerErrors: map[Layer]string{}}
	layers := make(map[Layer]LayerScores)
	runs := tm.svc.layerRuns()

	for i, lr := range runs {
		if cerr := errors.FromContext(ctx); cerr != nil {
			return nil, cerr
		}

		scores, err := tm.runLayer(ctx, lr, query, limit)
		if err != nil {
			if errors.IsCancelled(err) && ctx.Err() != nil {
				// The parent call was cancelled, not just the layer budget.
				return nil, errors.Cancelled(ctx.Err())
			}
			slog.Warn("search_layer_failed",
				slog.String("layer", string(lr.layer)),
				slog.String("error", err.Error()))
			out.LayerErrors[lr.layer] = err.Error()
			continue
		}

		out.ExecutedLayers = append(out.ExecutedLayers, lr.layer)
		if len(scores) > 0 {
			layers[lr.layer] = scores
		}

		fused := tm.svc.scorer.Fuse(layers, tm.svc.graph.Contains)
		out.Results = tm.svc.fusedResults(fused)
		out.Adequacy = tm.Evaluate(out.Results, an)

		if out.Adequacy.Score >= tm.cfg.AdequacyThreshold {
			out.EarlyTerminated = i < len(runs)-1
			break
		}
	}

	if len(out.LayerErrors) == 0 {
		out.LayerErrors = nil
	}
	out.ExecutionTimeMs = time.Since(start).Milliseconds()
	return out, nil
}

// runLayer applies the per-layer timeout. A timed-out layer returns
// Cancelled; the caller proceeds with what it has.
func (tm *TerminationManager) runLayer(ctx context.Context, lr layerRun, query string, limit int) (LayerScores, error) {
	if tm.cfg.LayerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, tm.cfg.LayerTimeout)
		defer cancel()
	}
	return lr.run(ctx, query, limit)
}

// Evaluate computes the adequacy of a result set against the analysis.
func (tm *TerminationManager) Evaluate(results []*Result, an *Analysis) Adequacy {
	a := Adequacy{}

	// Count: enough results.
	if tm.cfg.MinResults <= 0 {
		a.Count = 1
	} else {
		a.Count = ratio(float64(len(results)), float64(tm.cfg.MinResults))
	}

	// Relevance: mean of the top-k combined scores.
	k := tm.cfg.MinResults
	if k <= 0 || k > len(results) {
		k = len(results)
	}
	meanTop := 0.0
	if k > 0 {
		for _, r := range results[:k] {
			meanTop += r.Score
		}
		meanTop /= float64(k)
	}
	if tm.cfg.MinRelevance <= 0 {
		a.Relevance = 1
	} else {
		a.Relevance = ratio(meanTop, tm.cfg.MinRelevance)
	}

	// Coverage: required info types represented in some result.
	var required []InfoType
	if an != nil {
		required = an.RequiredInfoTypes
	}
	if len(required) == 0 {
		a.Coverage = 1
	} else {
		satisfied := 0
		for _, it := range required {
			if infoTypeSatisfied(results, it) {
				satisfied++
			} else {
				a.MissingInfoTypes = append(a.MissingInfoTypes, it)
			}
		}
		a.Coverage = float64(satisfied) / float64(len(required))
	}

	// Diversity: distinct entity types and distinct contributing layers.
	types := map[string]struct{}{}
	layerSet := map[Layer]struct{}{}
	for _, r := range results {
		types[r.Entity.EntityType] = struct{}{}
		for _, l := range r.MatchedLayers {
			layerSet[l] = struct{}{}
		}
	}
	distinct := len(types)
	if len(layerSet) > distinct {
		distinct = len(layerSet)
	}
	if tm.cfg.MinDiversity <= 0 {
		a.Diversity = 1
	} else {
		a.Diversity = ratio(float64(distinct), float64(tm.cfg.MinDiversity))
	}

	a.Score = adequacyCountWeight*a.Count +
		adequacyRelevanceWeight*a.Relevance +
		adequacyCoverageWeight*a.Coverage +
		adequacyDiversityWeight*a.Diversity

	a.Adequate = a.Count >= 1 && a.Relevance >= 1 && a.Coverage >= 1 && a.Diversity >= 1
	return a
}

func ratio(have, want float64) float64 {
	if want <= 0 {
		return 1
	}
	r := have / want
	if r > 1 {
		return 1
	}
	return r
}

// infoTypeSatisfied reports whether any result represents the info type:
// its entity type or text mentions the type or one of its cue words.
func infoTypeSatisfied(results []*Result, it InfoType) bool {
	cues := append([]string{string(it)}, infoTypeKeywords[it]...)
	for _, r := range results {
		text := EntityText(r.Entity)
		folded := foldForCue(text, r.Entity.EntityType)
		for _, cue := range cues {
			if cueMatches(folded, cue) {
				return true
			}
		}
	}
	return false
}

func foldForCue(text, entityType string) string {
	return textutil.FoldCase(entityType + " " + text)
}

func cueMatches(folded, cue string) bool {
	return strings.Contains(folded, cue)
}

// fusedResults converts fused entries into results, dropping entities
// deleted since retrieval.
func (s *Service) fusedResults(fused []*Fused) []*Result {
	results := make([]*Result, 0, len(fused))
	for _, f := range fused {
		e, err := s.graph.GetByName(f.Name)
		if err != nil {
			continue
		}
		results = append(results, &Result{
			Entity:        e,
			Score:         f.Combined,
			MatchedLayers: f.MatchedLayers,
			RawScores:     f.Raw,
		})
	}
	return results
}
