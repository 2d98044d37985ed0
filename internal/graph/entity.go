// Package graph holds the authoritative in-memory knowledge graph: entities,
// relations, the change event bus, and the derived lookup caches that the
// search subsystems consult.
package graph

import (
	"time"

	"github.com/Aman-CERP/graphmem/internal/textutil"
)

// MaxNameLength is the maximum entity name length.
const MaxNameLength = 500

// ImportanceMin and ImportanceMax bound the importance scale.
const (
	ImportanceMin = 0.0
	ImportanceMax = 10.0
)

// Entity is the unit of retrieval: a named node with free-text observations.
type Entity struct {
	// Name is the globally unique key.
	Name string `json:"name"`

	// EntityType is a free-form classifier (person, company, ...).
	EntityType string `json:"entityType"`

	// Observations are atomic free-text facts, in insertion order.
	Observations []string `json:"observations"`

	// Tags are normalized (lower-cased, trimmed) labels with set semantics.
	Tags []string `json:"tags,omitempty"`

	// Importance is an optional relevance weight in [0,10].
	// Nil means undefined, which is filterable.
	Importance *float64 `json:"importance,omitempty"`

	// Parent is the optional parent entity name. Parent chains are acyclic.
	Parent string `json:"parent,omitempty"`

	CreatedAt    time.Time `json:"createdAt"`
	LastModified time.Time `json:"lastModified"`
}

// Relation is a directed, typed edge between two existing entities.
type Relation struct {
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"relationType"`
}

// LoweredEntity is the cached lower-cased view of an entity used by
// case-insensitive matching. Computed lazily, invalidated on mutation.
type LoweredEntity struct {
	Name         string
	EntityType   string
	Observations []string
	Tags         []string
}

// Clone returns a deep copy of the entity. The graph hands out copies so
// readers never alias canonical state.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Observations = append([]string(nil), e.Observations...)
	clone.Tags = append([]string(nil), e.Tags...)
	if e.Importance != nil {
		v := *e.Importance
		clone.Importance = &v
	}
	return &clone
}

// HasTag reports whether the entity carries the given tag (normalized).
func (e *Entity) HasTag(tag string) bool {
	norm := textutil.NormalizeTag(tag)
	for _, t := range e.Tags {
		if t == norm {
			return true
		}
	}
	return false
}

// lower computes the lower-cased view of the entity.
func (e *Entity) lower() *LoweredEntity {
	le := &LoweredEntity{
		Name:         textutil.FoldCase(e.Name),
		EntityType:   textutil.FoldCase(e.EntityType),
		Observations: make([]string, len(e.Observations)),
		Tags:         append([]string(nil), e.Tags...), // tags are stored normalized
	}
	for i, obs := range e.Observations {
		le.Observations[i] = textutil.FoldCase(obs)
	}
	return le
}

// observationWords returns the distinct tokens over all observations.
func (e *Entity) observationWords() map[string]struct{} {
	words := make(map[string]struct{})
	for _, obs := range e.Observations {
		for _, tok := range textutil.Tokenize(obs) {
			words[tok] = struct{}{}
		}
	}
	return words
}
