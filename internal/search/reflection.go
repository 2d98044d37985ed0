package search

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/Aman-CERP/graphmem/internal/config"
	"github.com/Aman-CERP/graphmem/internal/errors"
)

// RefinementStep records one reflection iteration.
type RefinementStep struct {
	Iteration        int        `json:"iteration"`
	Query            string     `json:"query"`
	Limit            int        `json:"limit"`
	ResultsFound     int        `json:"resultsFound"`
	AdequacyScore    float64    `json:"adequacyScore"`
	RefinementReason string     `json:"refinementReason,omitempty"`
	MissingInfoTypes []InfoType `json:"missingInfoTypes,omitempty"`
}

// ReflectionResult bundles the refined search outcome.
type ReflectionResult struct {
	Results           []*Result        `json:"results"`
	RefinementHistory []RefinementStep `json:"refinementHistory"`
	FinalLimit        int              `json:"finalLimit"`
	Adequate          bool             `json:"adequate"`
	ExecutionTimeMs   int64            `json:"executionTimeMs"`
}

// ReflectionManager iteratively widens and refines a hybrid query until the
// accumulated results are adequate or the iteration budget is spent.
type ReflectionManager struct {
	svc *Service
	cfg config.ReflectionConfig
}

// NewReflectionManager creates a reflection manager.
func NewReflectionManager(svc *Service, cfg config.ReflectionConfig) *ReflectionManager {
	return &ReflectionManager{svc: svc, cfg: cfg}
}

// Execute runs the reflection loop. Each iteration i issues a hybrid query
// with limit ceil(initialLimit * factor^i), unions the deduplicated
// results, evaluates adequacy, and — when focusMissingTypes is on — appends
// cue keywords for unsatisfied info types to the next query.
func (rm *ReflectionManager) Execute(ctx context.Context, query string, an *Analysis) (*ReflectionResult, error) {
	start := time.Now()

	out := &ReflectionResult{}
	current := query
	accumulated := make(map[string]*Result)
	var ordered []*Result

	for i := 0; i < rm.cfg.MaxIterations; i++ {
		if cerr := errors.FromContext(ctx); cerr != nil {
			return nil, cerr
		}

		limit := int(math.Ceil(float64(rm.cfg.InitialLimit) * math.Pow(rm.cfg.LimitIncreaseFactor, float64(i))))
		out.FinalLimit = limit

		iterResults, err := rm.svc.hybridResults(ctx, current, limit)
		if err != nil {
			return nil, err
		}

		// Union with deduplication: layer attribution merges, the better
		// score wins.
		for _, r := range iterResults {
			if prev, seen := accumulated[r.Entity.Name]; seen {
				prev.MatchedLayers = unionLayers(prev.MatchedLayers, r.MatchedLayers)
				if r.Score > prev.Score {
					prev.Score = r.Score
				}
				continue
			}
			accumulated[r.Entity.Name] = r
			ordered = append(ordered, r)
		}

		adequacy := rm.svc.termination.Evaluate(ordered, an)

		step := RefinementStep{
			Iteration:     i + 1,
			Query:         current,
			Limit:         limit,
			ResultsFound:  len(ordered),
			AdequacyScore: adequacy.Score,
		}

		if adequacy.Adequate {
			out.RefinementHistory = append(out.RefinementHistory, step)
			out.Adequate = true
			break
		}

		if i < rm.cfg.MaxIterations-1 {
			refined, reason := rm.refine(current, adequacy)
			if refined != current {
				step.RefinementReason = reason
				step.MissingInfoTypes = adequacy.MissingInfoTypes
				current = refined
			}
		}
		out.RefinementHistory = append(out.RefinementHistory, step)
	}

	sortResults(ordered)
	out.Results = ordered
	out.ExecutionTimeMs = time.Since(start).Milliseconds()
	return out, nil
}

// refine produces the next query. With focusMissingTypes enabled, cue
// keywords of each missing info type are appended once.
func (rm *ReflectionManager) refine(query string, adequacy Adequacy) (string, string) {
	if !rm.cfg.FocusMissingTypes || len(adequacy.MissingInfoTypes) == 0 {
		return query, ""
	}

	folded := " " + strings.ToLower(query) + " "
	additions := make([]string, 0, 4)
	for _, it := range adequacy.MissingInfoTypes {
		for _, kw := range infoTypeKeywords[it] {
			if !strings.Contains(folded, " "+kw+" ") {
				additions = append(additions, kw)
				folded += kw + " "
			}
		}
	}
	if len(additions) == 0 {
		return query, ""
	}
	return query + " " + strings.Join(additions, " "), "focus missing info types"
}

func unionLayers(a, b []Layer) []Layer {
	seen := make(map[Layer]struct{}, len(a)+len(b))
	out := make([]Layer, 0, len(a)+len(b))
	for _, l := range append(append([]Layer{}, a...), b...) {
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}
