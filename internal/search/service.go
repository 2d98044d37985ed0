package search

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/graphmem/internal/boolean"
	"github.com/Aman-CERP/graphmem/internal/config"
	"github.com/Aman-CERP/graphmem/internal/embed"
	"github.com/Aman-CERP/graphmem/internal/errors"
	"github.com/Aman-CERP/graphmem/internal/graph"
	"github.com/Aman-CERP/graphmem/internal/index"
	"github.com/Aman-CERP/graphmem/internal/vector"
)

// Service is the search port over a graph index: single-signal retrievers,
// hybrid fusion, planning, early termination, and reflection. It keeps the
// TF-IDF, keyword, and vector indexes consistent with the graph by
// subscribing to its change events.
type Service struct {
	graph    *graph.Index
	tfidf    *index.Index
	keyword  index.Keyword
	vectors  *vector.Store
	embedder embed.Embedder
	cfg      config.Config

	scorer    *HybridScorer
	analyzer  *Analyzer
	planner   *Planner
	planCache *PlanCache

	limits    boolean.Limits
	astCache  *boolean.ASTCache
	evaluator *boolean.Evaluator

	caches     map[Kind]*ResultCache
	fuzzyCache *fuzzyResultCache

	termination *TerminationManager
	reflection  *ReflectionManager
	traces      *TraceLog

	// dirty tracks entities whose embedding is stale. Guarded by dirtyMu:
	// event listeners run inside the graph's write lock and must not block.
	dirtyMu sync.Mutex
	dirty   map[string]struct{}

	subID  int
	logger *slog.Logger
}

// NewService builds a search service over the given graph and ports.
// embedder may be nil; semantic retrieval then yields an empty layer.
func NewService(g *graph.Index, embedder embed.Embedder, cfg config.Config) (*Service, error) {
	idxCfg := index.Config{
		MinTermLength: cfg.TFIDF.MinTermLength,
		StopWords:     cfg.TFIDF.StopWords,
		K1:            cfg.BM25.K1,
		B:             cfg.BM25.B,
	}

	keyword, err := index.NewKeyword(cfg.BM25.Backend, idxCfg)
	if err != nil {
		return nil, err
	}

	var vectors *vector.Store
	if embedder != nil {
		vectors = vector.NewStore(embedder.Dimension())
	}

	s := &Service{
		graph:    g,
		tfidf:    index.New(idxCfg),
		keyword:  keyword,
		vectors:  vectors,
		embedder: embedder,
		cfg:      cfg,
		scorer: &HybridScorer{
			Weights: Weights{
				Semantic: cfg.Hybrid.SemanticWeight,
				Lexical:  cfg.Hybrid.LexicalWeight,
				Symbolic: cfg.Hybrid.SymbolicWeight,
			},
			MinScore:         cfg.Hybrid.MinScore,
			NormalizeWeights: cfg.Hybrid.NormalizeWeights,
		},
		analyzer:  NewAnalyzer(),
		planner:   NewPlanner(),
		planCache: NewPlanCache(cfg.Plan.CacheMaxSize, cfg.Plan.CacheTTL, cfg.Plan.NormalizeQueries),
		limits: boolean.Limits{
			MaxDepth:       cfg.Boolean.MaxDepth,
			MaxTerms:       cfg.Boolean.MaxTerms,
			MaxOperators:   cfg.Boolean.MaxOperators,
			MaxQueryLength: cfg.Boolean.MaxQueryLength,
		},
		astCache:   boolean.NewASTCache(boolean.DefaultASTCacheSize),
		fuzzyCache: newFuzzyResultCache(),
		caches:     make(map[Kind]*ResultCache),
		dirty:      make(map[string]struct{}),
		traces:     NewTraceLog(DefaultTraceCapacity),
		logger:     slog.Default(),
	}

	s.evaluator = &boolean.Evaluator{
		HasObservationWord: g.HasObservationWord,
	}

	for _, kind := range []Kind{KindBasic, KindRanked, KindBM25, KindBoolean} {
		s.caches[kind] = NewResultCache(cfg.ResultCache.Size, cfg.ResultCache.TTL)
	}

	s.termination = NewTerminationManager(s, cfg.Termination)
	s.reflection = NewReflectionManager(s, cfg.Reflection)

	// Seed indexes from any entities already in the graph, then track
	// mutations through the event bus.
	for _, e := range g.Entities() {
		text := EntityText(e)
		s.tfidf.Add(e.Name, text)
		s.keyword.Add(e.Name, text)
		s.markDirty(e.Name)
	}
	s.subID = g.Subscribe(s.onGraphEvent)

	return s, nil
}

// Close unsubscribes from the graph.
func (s *Service) Close() error {
	s.graph.Unsubscribe(s.subID)
	if closer, ok := s.keyword.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// onGraphEvent keeps derived indexes consistent inside the writer's
// critical section and invalidates result caches. Embedding is deferred:
// listeners must not block, so stale vectors are dropped here and entities
// are queued for IndexEntity/IndexAll.
func (s *Service) onGraphEvent(ev graph.Event) {
	switch ev.Kind {
	case graph.EventCreated, graph.EventUpdated:
		text := EntityText(ev.New)
		s.tfidf.Add(ev.Name, text)
		s.keyword.Add(ev.Name, text)
		if s.vectors != nil {
			s.vectors.Remove(ev.Name)
		}
		s.markDirty(ev.Name)
	case graph.EventDeleted:
		s.tfidf.Remove(ev.Name)
		s.keyword.Remove(ev.Name)
		if s.vectors != nil {
			s.vectors.Remove(ev.Name)
		}
		s.unmarkDirty(ev.Name)
	}

	s.clearResultCaches()
}

func (s *Service) clearResultCaches() {
	for _, c := range s.caches {
		c.Clear()
	}
	s.fuzzyCache.Clear()
	s.astCache.Clear()
}

// ClearCaches drops every cache, including the plan cache.
func (s *Service) ClearCaches() {
	s.clearResultCaches()
	s.planCache.Clear()
}

// CacheStats reports per-kind result cache and plan cache statistics.
type CacheStats struct {
	ResultCaches map[Kind]ResultCacheStats `json:"resultCaches"`
	PlanCache    PlanCacheStats            `json:"planCache"`
}

// ResultCacheStats is one result cache's counters.
type ResultCacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// CacheStats returns cache statistics.
func (s *Service) CacheStats() CacheStats {
	stats := CacheStats{
		ResultCaches: make(map[Kind]ResultCacheStats, len(s.caches)),
		PlanCache:    s.planCache.Stats(),
	}
	for kind, c := range s.caches {
		hits, misses := c.Stats()
		stats.ResultCaches[kind] = ResultCacheStats{Hits: hits, Misses: misses}
	}
	return stats
}

// PlanCache exposes the plan cache for administration.
func (s *Service) PlanCache() *PlanCache {
	return s.planCache
}

// Traces exposes the query trace log.
func (s *Service) Traces() *TraceLog {
	return s.traces
}

func (s *Service) markDirty(name string) {
	s.dirtyMu.Lock()
	s.dirty[name] = struct{}{}
	s.dirtyMu.Unlock()
}

func (s *Service) unmarkDirty(name string) {
	s.dirtyMu.Lock()
	delete(s.dirty, name)
	s.dirtyMu.Unlock()
}

func (s *Service) takeDirty() []string {
	s.dirtyMu.Lock()
	defer s.dirtyMu.Unlock()
	names := make([]string, 0, len(s.dirty))
	for name := range s.dirty {
		names = append(names, name)
	}
	s.dirty = make(map[string]struct{})
	return names
}

// IndexEntity embeds one entity into the vector store.
func (s *Service) IndexEntity(ctx context.Context, name string) error {
	if s.embedder == nil || s.vectors == nil {
		return errors.New(errors.ErrCodeEmbedderUnavailable, "no embedder configured", nil)
	}
	e, err := s.graph.GetByName(name)
	if err != nil {
		return err
	}

	vec, err := s.embedder.Embed(ctx, EntityText(e))
	if err != nil {
		return err
	}
	if err := s.vectors.Add(name, vec); err != nil {
		return err
	}
	s.unmarkDirty(name)
	return nil
}

// RemoveEntity drops an entity's vector.
func (s *Service) RemoveEntity(name string) {
	if s.vectors != nil {
		s.vectors.Remove(name)
	}
	s.unmarkDirty(name)
}

// indexAllWorkers bounds embedding concurrency during bulk indexing.
const indexAllWorkers = 4

// IndexAll embeds every entity with a stale or missing vector. Cancellation
// stops at the next entity boundary; completed vectors are kept.
func (s *Service) IndexAll(ctx context.Context) (int, error) {
	if s.embedder == nil || s.vectors == nil {
		return 0, errors.New(errors.ErrCodeEmbedderUnavailable, "no embedder configured", nil)
	}

	names := s.takeDirty()
	if len(names) == 0 {
		return 0, nil
	}

	var (
		mu      sync.Mutex
		indexed int
	)

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(indexAllWorkers)
	for _, name := range names {
		eg.Go(func() error {
			if cerr := errors.FromContext(ctx); cerr != nil {
				return cerr
			}
			err := s.IndexEntity(ctx, name)
			if err != nil {
				if errors.IsNotFound(err) {
					return nil // deleted while indexing
				}
				s.markDirty(name)
				return err
			}
			mu.Lock()
			indexed++
			mu.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return indexed, err
	}
	return indexed, nil
}

// finish runs the shared tail of every retriever: filter after ranking so
// score distributions cover the full candidate pool, validate and apply
// pagination, then project the page's subgraph.
func (s *Service) finish(results []*Result, f Filters, p Page) (*Results, error) {
	page, err := ValidatePage(p)
	if err != nil {
		return nil, err
	}

	filtered := ApplyFilters(results, f)
	paged := Paginate(filtered, page)

	res := &Results{
		Results: paged,
		Total:   len(filtered),
	}
	res.Relations = s.graph.RelationsAmong(res.Names())
	return res, nil
}

// resultFor builds a Result from an entity name, skipping names that have
// disappeared from the graph.
func (s *Service) resultFor(name string, score float64, layer Layer, terms []string) *Result {
	e, err := s.graph.GetByName(name)
	if err != nil {
		return nil
	}
	r := &Result{
		Entity:       e,
		Score:        score,
		MatchedTerms: terms,
	}
	if layer != "" {
		r.MatchedLayers = []Layer{layer}
		r.RawScores = map[Layer]float64{layer: score}
	}
	return r
}
