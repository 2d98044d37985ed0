package graphmem

import (
	"context"

	"github.com/Aman-CERP/graphmem/internal/store"
)

// Graph command surface: every mutation goes through the graph index
// (emitting change events that keep the search indexes consistent) and is
// then journaled to the store when one is configured. The store write
// happens outside the graph's critical section; durability is the store's
// concern.

// CreateEntity inserts a new entity.
func (e *Engine) CreateEntity(ctx context.Context, entity Entity) error {
	if err := e.graph.CreateEntity(entity); err != nil {
		return err
	}
	return e.journalEntity(ctx, entity.Name)
}

// CreateEntities inserts a batch, stopping at the first failure.
func (e *Engine) CreateEntities(ctx context.Context, entities ...Entity) error {
	for _, ent := range entities {
		if err := e.CreateEntity(ctx, ent); err != nil {
			return err
		}
	}
	return nil
}

// UpdateEntity applies a patch.
func (e *Engine) UpdateEntity(ctx context.Context, name string, patch Patch) error {
	if err := e.graph.UpdateEntity(name, patch); err != nil {
		return err
	}
	return e.journalEntity(ctx, name)
}

// DeleteEntity removes an entity and its relations.
func (e *Engine) DeleteEntity(ctx context.Context, name string) error {
	if err := e.graph.DeleteEntity(name); err != nil {
		return err
	}
	if e.store == nil {
		return nil
	}
	return e.store.Append(ctx, store.Mutation{Op: store.OpDeleteEntity, Name: name})
}

// AddObservations appends observations to an entity.
func (e *Engine) AddObservations(ctx context.Context, name string, observations ...string) error {
	if err := e.graph.AddObservations(name, observations...); err != nil {
		return err
	}
	return e.journalEntity(ctx, name)
}

// RemoveObservations deletes matching observations.
func (e *Engine) RemoveObservations(ctx context.Context, name string, observations ...string) error {
	if err := e.graph.RemoveObservations(name, observations...); err != nil {
		return err
	}
	return e.journalEntity(ctx, name)
}

// AddTags attaches tags.
func (e *Engine) AddTags(ctx context.Context, name string, tags ...string) error {
	if err := e.graph.AddTags(name, tags...); err != nil {
		return err
	}
	return e.journalEntity(ctx, name)
}

// RemoveTags detaches tags.
func (e *Engine) RemoveTags(ctx context.Context, name string, tags ...string) error {
	if err := e.graph.RemoveTags(name, tags...); err != nil {
		return err
	}
	return e.journalEntity(ctx, name)
}

// SetImportance sets the importance weight (0-10).
func (e *Engine) SetImportance(ctx context.Context, name string, importance float64) error {
	if err := e.graph.SetImportance(name, importance); err != nil {
		return err
	}
	return e.journalEntity(ctx, name)
}

// SetParent assigns a parent with the acyclicity guard. Empty clears.
func (e *Engine) SetParent(ctx context.Context, name, parent string) error {
	if err := e.graph.SetParent(name, parent); err != nil {
		return err
	}
	return e.journalEntity(ctx, name)
}

// CreateRelation inserts a directed typed edge.
func (e *Engine) CreateRelation(ctx context.Context, rel Relation) error {
	if err := e.graph.CreateRelation(rel); err != nil {
		return err
	}
	if e.store == nil {
		return nil
	}
	return e.store.Append(ctx, store.Mutation{Op: store.OpPutRelation, Relation: &rel})
}

// DeleteRelation removes an edge.
func (e *Engine) DeleteRelation(ctx context.Context, rel Relation) error {
	if err := e.graph.DeleteRelation(rel); err != nil {
		return err
	}
	if e.store == nil {
		return nil
	}
	return e.store.Append(ctx, store.Mutation{Op: store.OpDeleteRelation, Relation: &rel})
}

// GetEntity returns an entity snapshot.
func (e *Engine) GetEntity(name string) (*Entity, error) {
	return e.graph.GetByName(name)
}

// Entities returns all entities in insertion order.
func (e *Engine) Entities() []*Entity {
	return e.graph.Entities()
}

// Relations returns all relations.
func (e *Engine) Relations() []Relation {
	return e.graph.Relations()
}

// journalEntity appends the entity's current state to the store.
func (e *Engine) journalEntity(ctx context.Context, name string) error {
	if e.store == nil {
		return nil
	}
	ent, err := e.graph.GetByName(name)
	if err != nil {
		return err
	}
	return e.store.Append(ctx, store.Mutation{Op: store.OpPutEntity, Entity: ent})
}
