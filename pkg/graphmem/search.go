package graphmem

import (
	"context"

	"github.com/Aman-CERP/graphmem/internal/search"
)

// Search surface: thin delegation to the internal search service.

// Basic runs case-insensitive substring search.
func (e *Engine) Basic(ctx context.Context, query string, f Filters, p Page) (*Results, error) {
	return e.search.Basic(ctx, query, f, p)
}

// Ranked runs TF-IDF scored search.
func (e *Engine) Ranked(ctx context.Context, query string, f Filters, p Page) (*Results, error) {
	return e.search.Ranked(ctx, query, f, p)
}

// BM25 runs Okapi BM25 scored search.
func (e *Engine) BM25(ctx context.Context, query string, f Filters, p Page) (*Results, error) {
	return e.search.BM25(ctx, query, f, p)
}

// Boolean evaluates a boolean query (AND/OR/NOT, fields, phrases).
func (e *Engine) Boolean(ctx context.Context, query string, f Filters, p Page) (*Results, error) {
	return e.search.Boolean(ctx, query, f, p)
}

// Fuzzy runs edit-distance search at the configured threshold.
func (e *Engine) Fuzzy(ctx context.Context, query string, f Filters, p Page) (*Results, error) {
	return e.search.Fuzzy(ctx, query, f, p)
}

// FuzzyWithThreshold runs edit-distance search at an explicit threshold.
func (e *Engine) FuzzyWithThreshold(ctx context.Context, query string, threshold float64, f Filters, p Page) (*Results, error) {
	return e.search.FuzzyWithThreshold(ctx, query, threshold, f, p)
}

// Semantic runs embedding similarity search.
func (e *Engine) Semantic(ctx context.Context, query string, f Filters, p Page) (*Results, error) {
	return e.search.Semantic(ctx, query, f, p)
}

// Hybrid fuses the symbolic, lexical, and semantic layers.
func (e *Engine) Hybrid(ctx context.Context, query string, f Filters, p Page) (*Results, error) {
	return e.search.Hybrid(ctx, query, f, p)
}

// Query is the planner-driven entry point: analyze, plan, and execute with
// early termination or reflection as the plan dictates.
func (e *Engine) Query(ctx context.Context, query string, f Filters, p Page) (*Results, error) {
	return e.search.Query(ctx, query, f, p)
}

// Plan returns the cached analysis and plan for a query.
func (e *Engine) Plan(query string) *search.PlanEntry {
	return e.search.Plan(query)
}

// Explain runs a hybrid query and reports the fusion decisions.
func (e *Engine) Explain(ctx context.Context, query string, f Filters, p Page) (*search.Explanation, error) {
	return e.search.Explain(ctx, query, f, p)
}

// IndexAll embeds every entity with a stale or missing vector.
func (e *Engine) IndexAll(ctx context.Context) (int, error) {
	return e.search.IndexAll(ctx)
}

// IndexEntity embeds a single entity.
func (e *Engine) IndexEntity(ctx context.Context, name string) error {
	return e.search.IndexEntity(ctx, name)
}

// RemoveEntityVector drops an entity's vector without deleting the entity.
func (e *Engine) RemoveEntityVector(name string) {
	e.search.RemoveEntity(name)
}

// CacheStats reports result-cache and plan-cache statistics.
func (e *Engine) CacheStats() search.CacheStats {
	return e.search.CacheStats()
}

// ClearCaches drops every cache including the plan cache.
func (e *Engine) ClearCaches() {
	e.search.ClearCaches()
}

// PlanCache exposes plan cache administration (pattern invalidation,
// export/import, statistics).
func (e *Engine) PlanCache() *search.PlanCache {
	return e.search.PlanCache()
}

// Traces exposes the query trace log.
func (e *Engine) Traces() *search.TraceLog {
	return e.search.Traces()
}
