// Package store defines the persistence port the engine consumes, and two
// adapters: a line-delimited JSONL journal and a SQLite database. The core
// delegates durability entirely to this port and assumes at-most-once
// delivery of each acknowledged mutation.
package store

import (
	"context"

	"github.com/Aman-CERP/graphmem/internal/graph"
)

// Graph is a point-in-time snapshot of the whole knowledge graph.
type Graph struct {
	Entities  []graph.Entity   `json:"entities"`
	Relations []graph.Relation `json:"relations"`
}

// Op identifies a journaled mutation kind.
type Op string

const (
	OpPutEntity      Op = "put_entity"
	OpDeleteEntity   Op = "delete_entity"
	OpPutRelation    Op = "put_relation"
	OpDeleteRelation Op = "delete_relation"
)

// Mutation is a single durable graph change.
type Mutation struct {
	Op       Op              `json:"op"`
	Entity   *graph.Entity   `json:"entity,omitempty"`
	Relation *graph.Relation `json:"relation,omitempty"`
	Name     string          `json:"name,omitempty"`
}

// GraphStore is the persistence port.
type GraphStore interface {
	// LoadSnapshot reads the full graph.
	LoadSnapshot(ctx context.Context) (*Graph, error)

	// SaveSnapshot atomically replaces the stored graph.
	SaveSnapshot(ctx context.Context, g *Graph) error

	// Append records a single mutation.
	Append(ctx context.Context, m Mutation) error

	// EntityByName fetches one entity. The SQLite adapter queries the row
	// directly; the JSONL adapter loads and scans the whole journal.
	EntityByName(ctx context.Context, name string) (*graph.Entity, error)

	// Close releases resources.
	Close() error
}

// apply folds a mutation into an in-memory snapshot. Shared by adapters
// that replay journals.
func (g *Graph) apply(m Mutation) {
	switch m.Op {
	case OpPutEntity:
		if m.Entity == nil {
			return
		}
		for i := range g.Entities {
			if g.Entities[i].Name == m.Entity.Name {
				g.Entities[i] = *m.Entity
				return
			}
		}
		g.Entities = append(g.Entities, *m.Entity)
	case OpDeleteEntity:
		kept := g.Entities[:0]
		for _, e := range g.Entities {
			if e.Name != m.Name {
				kept = append(kept, e)
			}
		}
		g.Entities = kept

		keptRels := g.Relations[:0]
		for _, r := range g.Relations {
			if r.From != m.Name && r.To != m.Name {
				keptRels = append(keptRels, r)
			}
		}
		g.Relations = keptRels
	case OpPutRelation:
		if m.Relation == nil {
			return
		}
		for _, r := range g.Relations {
			if r == *m.Relation {
				return
			}
		}
		g.Relations = append(g.Relations, *m.Relation)
	case OpDeleteRelation:
		if m.Relation == nil {
			return
		}
		kept := g.Relations[:0]
		for _, r := range g.Relations {
			if r != *m.Relation {
				kept = append(kept, r)
			}
		}
		g.Relations = kept
	}
}
