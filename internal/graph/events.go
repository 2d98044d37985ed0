package graph

// EventKind identifies the class of a graph mutation.
type EventKind string

const (
	// EventCreated is published after a new entity is inserted.
	EventCreated EventKind = "created"
	// EventUpdated is published after any entity field mutation.
	EventUpdated EventKind = "updated"
	// EventDeleted is published after an entity (and its relations) is removed.
	EventDeleted EventKind = "deleted"
	// EventRelationCreated is published after a relation is inserted.
	// Name carries the relation's From endpoint.
	EventRelationCreated EventKind = "relation_created"
	// EventRelationDeleted is published after a relation is removed.
	EventRelationDeleted EventKind = "relation_deleted"
)

// Event describes a single committed mutation. Old is the pre-mutation
// snapshot for updates and deletes; New is the post-mutation snapshot for
// creates and updates. Snapshots are copies and safe to retain.
type Event struct {
	Kind EventKind
	Name string
	Old  *Entity
	New  *Entity
}

// Listener receives change events. Delivery is synchronous, inside the
// writer's critical section: listeners must be fast, side-effect-only, and
// restricted to in-memory updates.
type Listener func(Event)

// listenerRegistry holds listeners as values keyed by subscription id, so
// subscribers and the graph never hold pointers into each other.
type listenerRegistry struct {
	nextID    int
	listeners map[int]Listener
}

func newListenerRegistry() *listenerRegistry {
	return &listenerRegistry{listeners: make(map[int]Listener)}
}

func (r *listenerRegistry) add(l Listener) int {
	r.nextID++
	r.listeners[r.nextID] = l
	return r.nextID
}

func (r *listenerRegistry) remove(id int) {
	delete(r.listeners, id)
}

func (r *listenerRegistry) publish(ev Event) {
	for _, l := range r.listeners {
		l(ev)
	}
}
