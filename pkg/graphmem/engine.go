// Package graphmem is the public embedding surface: an Engine that wires
// the in-memory knowledge graph, the search service, an optional embedding
// provider, and an optional persistence backend behind one typed API.
package graphmem

import (
	"context"
	"log/slog"

	"github.com/Aman-CERP/graphmem/internal/config"
	"github.com/Aman-CERP/graphmem/internal/embed"
	"github.com/Aman-CERP/graphmem/internal/errors"
	"github.com/Aman-CERP/graphmem/internal/graph"
	"github.com/Aman-CERP/graphmem/internal/search"
	"github.com/Aman-CERP/graphmem/internal/store"
)

// Re-exported types forming the public API surface.
type (
	// Entity is a named node in the knowledge graph.
	Entity = graph.Entity
	// Relation is a directed typed edge between entities.
	Relation = graph.Relation
	// Patch is a partial entity update.
	Patch = graph.Patch
	// Filters restrict search results.
	Filters = search.Filters
	// Page is offset/limit pagination.
	Page = search.Page
	// Results is a ranked result page with its subgraph projection.
	Results = search.Results
	// Config is the engine configuration.
	Config = config.Config
	// GraphStore is the persistence port.
	GraphStore = store.GraphStore
	// Embedder is the embedding provider port.
	Embedder = embed.Embedder
)

// DefaultConfig returns the documented default configuration.
func DefaultConfig() Config {
	return config.Default()
}

// LoadConfig reads a YAML config file with env overrides.
func LoadConfig(path string) (Config, error) {
	return config.Load(path)
}

// Engine is the embeddable knowledge-graph search engine.
type Engine struct {
	cfg      Config
	graph    *graph.Index
	search   *search.Service
	store    store.GraphStore
	embedder embed.Embedder
	logger   *slog.Logger
}

// Option configures engine construction.
type Option func(*Engine)

// WithStore attaches a persistence backend. Mutations are journaled to it
// and Load/Save become available.
func WithStore(s store.GraphStore) Option {
	return func(e *Engine) { e.store = s }
}

// WithEmbedder overrides the configured embedding provider.
func WithEmbedder(em embed.Embedder) Option {
	return func(e *Engine) { e.embedder = em }
}

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an engine from configuration.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:    cfg,
		graph:  graph.NewIndex(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.embedder == nil {
		e.embedder = buildEmbedder(cfg)
	}

	svc, err := search.NewService(e.graph, e.embedder, cfg)
	if err != nil {
		return nil, err
	}
	e.search = svc
	return e, nil
}

func buildEmbedder(cfg Config) embed.Embedder {
	switch cfg.Embeddings.Provider {
	case "ollama":
		ocfg := embed.DefaultOllamaConfig()
		if cfg.Embeddings.OllamaHost != "" {
			ocfg.Host = cfg.Embeddings.OllamaHost
		}
		if cfg.Embeddings.Model != "" {
			ocfg.Model = cfg.Embeddings.Model
		}
		if cfg.Embeddings.Dimensions > 0 {
			ocfg.Dimension = cfg.Embeddings.Dimensions
		}
		return embed.NewCachedEmbedder(embed.NewOllamaEmbedder(ocfg), cfg.Embeddings.CacheSize)
	case "none":
		return nil
	default:
		return embed.NewCachedEmbedder(embed.NewStaticEmbedder(), cfg.Embeddings.CacheSize)
	}
}

// Load replaces the in-memory graph with the store's snapshot.
func (e *Engine) Load(ctx context.Context) error {
	if e.store == nil {
		return errors.Backend("no store configured", nil)
	}
	snapshot, err := e.store.LoadSnapshot(ctx)
	if err != nil {
		return err
	}

	for _, existing := range e.graph.Names() {
		if err := e.graph.DeleteEntity(existing); err != nil {
			return err
		}
	}
	for i := range snapshot.Entities {
		if err := e.graph.CreateEntity(snapshot.Entities[i]); err != nil {
			// Parent links may reference entities loaded later; retry below.
			if errors.IsNotFound(err) {
				parent := snapshot.Entities[i].Parent
				snapshot.Entities[i].Parent = ""
				if err := e.graph.CreateEntity(snapshot.Entities[i]); err != nil {
					return err
				}
				snapshot.Entities[i].Parent = parent
				continue
			}
			return err
		}
	}
	// Second pass: parents deferred during the first pass.
	for i := range snapshot.Entities {
		ent := &snapshot.Entities[i]
		if ent.Parent == "" {
			continue
		}
		current, err := e.graph.GetByName(ent.Name)
		if err != nil {
			return err
		}
		if current.Parent != ent.Parent {
			if err := e.graph.SetParent(ent.Name, ent.Parent); err != nil {
				return err
			}
		}
	}
	for _, rel := range snapshot.Relations {
		if err := e.graph.CreateRelation(rel); err != nil {
			return err
		}
	}

	e.logger.Info("graph_loaded",
		slog.Int("entities", len(snapshot.Entities)),
		slog.Int("relations", len(snapshot.Relations)))
	return nil
}

// Save writes the current graph as a snapshot to the store.
func (e *Engine) Save(ctx context.Context) error {
	if e.store == nil {
		return errors.Backend("no store configured", nil)
	}

	snapshot := &store.Graph{}
	for _, ent := range e.graph.Entities() {
		snapshot.Entities = append(snapshot.Entities, *ent)
	}
	snapshot.Relations = e.graph.Relations()
	return e.store.SaveSnapshot(ctx, snapshot)
}

// Close releases the search service and the store.
func (e *Engine) Close() error {
	err := e.search.Close()
	if e.store != nil {
		if serr := e.store.Close(); err == nil {
			err = serr
		}
	}
	return err
}

// Stats summarizes the engine's state.
type Stats struct {
	Entities   int    `json:"entities"`
	Relations  int    `json:"relations"`
	Generation uint64 `json:"generation"`
}

// Stats returns engine statistics.
func (e *Engine) Stats() Stats {
	return Stats{
		Entities:   e.graph.Len(),
		Relations:  len(e.graph.Relations()),
		Generation: e.graph.Generation(),
	}
}
