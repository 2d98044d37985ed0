// Package search implements the retrieval subsystems: basic, ranked, BM25,
// boolean, fuzzy, and semantic retrievers, hybrid fusion, the query
// analyzer/planner with plan caching, the early-termination controller, and
// the reflection loop. Every retriever consults the graph index for entity
// data and runs the shared filter chain and result caches.
package search

import (
	"strings"
	"time"

	"github.com/Aman-CERP/graphmem/internal/graph"
)

// Kind names a retrieval strategy. Used for cache partitioning and tracing.
type Kind string

const (
	KindBasic    Kind = "basic"
	KindRanked   Kind = "ranked"
	KindBM25     Kind = "bm25"
	KindBoolean  Kind = "boolean"
	KindFuzzy    Kind = "fuzzy"
	KindSemantic Kind = "semantic"
	KindHybrid   Kind = "hybrid"
)

// Layer names a hybrid scoring signal.
type Layer string

const (
	// LayerSymbolic is exact/boolean matching, the cheapest signal.
	LayerSymbolic Layer = "symbolic"
	// LayerLexical is keyword scoring (TF-IDF/BM25).
	LayerLexical Layer = "lexical"
	// LayerSemantic is embedding similarity, the most expensive signal.
	LayerSemantic Layer = "semantic"
)

// Result is a single scored search hit. The entity is a snapshot; scores
// and layer attribution are retained for explanation.
type Result struct {
	Entity *graph.Entity `json:"entity"`

	// Score is the retriever's (or fused) relevance score.
	Score float64 `json:"score"`

	// MatchedLayers lists the hybrid layers that surfaced this entity.
	MatchedLayers []Layer `json:"matchedLayers,omitempty"`

	// RawScores holds the pre-normalization per-layer scores.
	RawScores map[Layer]float64 `json:"rawScores,omitempty"`

	// MatchedTerms holds the query terms that matched (keyword layers).
	MatchedTerms []string `json:"matchedTerms,omitempty"`
}

// Results is a ranked result page plus its subgraph projection: only
// relations whose endpoints are both in the page are included.
type Results struct {
	Results   []*Result        `json:"results"`
	Relations []graph.Relation `json:"relations"`

	// Total is the number of matches before pagination.
	Total int `json:"total"`
}

// Names returns the entity names in result order.
func (r *Results) Names() []string {
	names := make([]string, len(r.Results))
	for i, res := range r.Results {
		names[i] = res.Entity.Name
	}
	return names
}

// Filters restricts results after ranking. Zero values mean "no filter".
type Filters struct {
	// Tags requires at least one of the given tags (case-insensitive OR).
	Tags []string `json:"tags,omitempty"`

	// MinImportance/MaxImportance bound importance inclusively. Entities
	// without importance are excluded when either bound is set.
	MinImportance *float64 `json:"minImportance,omitempty"`
	MaxImportance *float64 `json:"maxImportance,omitempty"`

	// EntityType requires an exact (case-insensitive) type match.
	EntityType string `json:"entityType,omitempty"`

	// Timestamp windows, inclusive. Entities lacking the timestamp are
	// excluded when the respective filter is set.
	CreatedAfter   *time.Time `json:"createdAfter,omitempty"`
	CreatedBefore  *time.Time `json:"createdBefore,omitempty"`
	ModifiedAfter  *time.Time `json:"modifiedAfter,omitempty"`
	ModifiedBefore *time.Time `json:"modifiedBefore,omitempty"`
}

// IsZero reports whether no filter is set.
func (f Filters) IsZero() bool {
	return len(f.Tags) == 0 &&
		f.MinImportance == nil && f.MaxImportance == nil &&
		f.EntityType == "" &&
		f.CreatedAfter == nil && f.CreatedBefore == nil &&
		f.ModifiedAfter == nil && f.ModifiedBefore == nil
}

// Page is offset/limit pagination, applied after filtering.
type Page struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// EntityText concatenates the indexed text of an entity: name, type,
// observations, and tags. All keyword and semantic indexing uses this view.
func EntityText(e *graph.Entity) string {
	var b strings.Builder
	b.WriteString(e.Name)
	b.WriteByte(' ')
	b.WriteString(e.EntityType)
	for _, obs := range e.Observations {
		b.WriteByte(' ')
		b.WriteString(obs)
	}
	for _, tag := range e.Tags {
		b.WriteByte(' ')
		b.WriteString(tag)
	}
	return b.String()
}
