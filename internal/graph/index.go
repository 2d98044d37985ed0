package graph

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Aman-CERP/graphmem/internal/errors"
	"github.com/Aman-CERP/graphmem/internal/textutil"
)

// Index is the canonical in-memory entity registry. It owns entities and
// relations exclusively; every other index holds derived state keyed by
// entity name and keeps itself consistent by subscribing to change events.
//
// Concurrency: single-logical-thread mutator, many concurrent readers.
// Mutations hold the write lock for the mutation plus synchronous event
// delivery, so listeners observe a quiescent graph.
type Index struct {
	mu        sync.RWMutex
	entities  map[string]*Entity
	order     []string
	relations map[Relation]struct{}

	// obsWords maps token -> set of entity names whose observations contain
	// it. Positive-match shortcut for boolean observation: predicates.
	obsWords map[string]map[string]struct{}
	// entityWords mirrors obsWords per entity for cheap removal on mutation.
	entityWords map[string]map[string]struct{}

	loweredMu sync.RWMutex
	lowered   map[string]*LoweredEntity

	registry *listenerRegistry

	// generation increases on every committed mutation. It is the single
	// versioning signal embedded in result-cache keys.
	generation atomic.Uint64

	maxObservationLength int
	now                  func() time.Time
}

// Option configures the graph index.
type Option func(*Index)

// WithMaxObservationLength bounds individual observation length.
func WithMaxObservationLength(n int) Option {
	return func(idx *Index) { idx.maxObservationLength = n }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(idx *Index) { idx.now = now }
}

// DefaultMaxObservationLength bounds a single observation's size.
const DefaultMaxObservationLength = 10000

// NewIndex creates an empty graph index.
func NewIndex(opts ...Option) *Index {
	idx := &Index{
		entities:             make(map[string]*Entity),
		relations:            make(map[Relation]struct{}),
		obsWords:             make(map[string]map[string]struct{}),
		entityWords:          make(map[string]map[string]struct{}),
		lowered:              make(map[string]*LoweredEntity),
		registry:             newListenerRegistry(),
		maxObservationLength: DefaultMaxObservationLength,
		now:                  time.Now,
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Subscribe registers a listener and returns its subscription id.
func (idx *Index) Subscribe(l Listener) int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.registry.add(l)
}

// Unsubscribe removes a previously registered listener.
func (idx *Index) Unsubscribe(id int) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.registry.remove(id)
}

// Generation returns the monotonically increasing mutation counter.
func (idx *Index) Generation() uint64 {
	return idx.generation.Load()
}

// Len returns the number of entities.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entities)
}

// CreateEntity inserts a new entity. Fails with DuplicateEntity if the name
// exists. Tags are normalized; timestamps are stamped if zero.
func (idx *Index) CreateEntity(e Entity) error {
	if err := validateEntity(&e, idx.maxObservationLength); err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, exists := idx.entities[e.Name]; exists {
		return errors.Duplicate(e.Name)
	}
	if e.Parent != "" {
		if _, ok := idx.entities[e.Parent]; !ok {
			return errors.NotFound(e.Parent)
		}
	}

	stored := e.Clone()
	stored.Tags = normalizeTags(stored.Tags)
	nowTime := idx.now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = nowTime
	}
	if stored.LastModified.IsZero() {
		stored.LastModified = stored.CreatedAt
	}

	idx.entities[stored.Name] = stored
	idx.order = append(idx.order, stored.Name)
	idx.indexObservationWords(stored)
	idx.commit(Event{Kind: EventCreated, Name: stored.Name, New: stored.Clone()})
	return nil
}

// Patch describes a partial entity update. Nil/empty fields are untouched.
type Patch struct {
	EntityType         *string
	AddObservations    []string
	RemoveObservations []string
	AddTags            []string
	RemoveTags         []string
	SetImportance      *float64
	ClearImportance    bool
}

// UpdateEntity applies a patch. Fails with NotFound if the entity is missing.
func (idx *Index) UpdateEntity(name string, patch Patch) error {
	if patch.SetImportance != nil {
		if err := validateImportance(*patch.SetImportance); err != nil {
			return err
		}
	}
	for _, obs := range patch.AddObservations {
		if err := validateObservation(obs, idx.maxObservationLength); err != nil {
			return err
		}
	}

	return idx.mutate(name, func(e *Entity) error {
		if patch.EntityType != nil {
			e.EntityType = *patch.EntityType
		}
		for _, obs := range patch.AddObservations {
			e.Observations = append(e.Observations, obs)
		}
		if len(patch.RemoveObservations) > 0 {
			e.Observations = removeAll(e.Observations, patch.RemoveObservations)
		}
		for _, tag := range patch.AddTags {
			norm := textutil.NormalizeTag(tag)
			if norm != "" && !e.HasTag(norm) {
				e.Tags = append(e.Tags, norm)
			}
		}
		if len(patch.RemoveTags) > 0 {
			e.Tags = removeAll(e.Tags, normalizeTags(patch.RemoveTags))
		}
		if patch.ClearImportance {
			e.Importance = nil
		} else if patch.SetImportance != nil {
			v := *patch.SetImportance
			e.Importance = &v
		}
		return nil
	})
}

// AddObservations appends observations to an entity.
func (idx *Index) AddObservations(name string, observations ...string) error {
	return idx.UpdateEntity(name, Patch{AddObservations: observations})
}

// RemoveObservations deletes observations matching the given contents.
func (idx *Index) RemoveObservations(name string, observations ...string) error {
	return idx.UpdateEntity(name, Patch{RemoveObservations: observations})
}

// AddTags attaches normalized tags to an entity.
func (idx *Index) AddTags(name string, tags ...string) error {
	return idx.UpdateEntity(name, Patch{AddTags: tags})
}

// RemoveTags detaches tags from an entity.
func (idx *Index) RemoveTags(name string, tags ...string) error {
	return idx.UpdateEntity(name, Patch{RemoveTags: tags})
}

// SetImportance sets the importance weight. Fails Validation outside [0,10].
func (idx *Index) SetImportance(name string, importance float64) error {
	return idx.UpdateEntity(name, Patch{SetImportance: &importance})
}

// ClearImportance removes the importance weight.
func (idx *Index) ClearImportance(name string) error {
	return idx.UpdateEntity(name, Patch{ClearImportance: true})
}

// SetParent assigns a parent, enforcing the acyclic-forest invariant: the
// assignment fails with Cycle when the parent chain starting at parent
// reaches the entity itself. An empty parent clears the link.
func (idx *Index) SetParent(name, parent string) error {
	return idx.mutate(name, func(e *Entity) error {
		if parent == "" {
			e.Parent = ""
			return nil
		}
		if parent == name {
			return errors.Cycle(name, parent)
		}
		if _, ok := idx.entities[parent]; !ok {
			return errors.NotFound(parent)
		}
		for anc := parent; anc != ""; {
			if anc == name {
				return errors.Cycle(name, parent)
			}
			p, ok := idx.entities[anc]
			if !ok {
				break
			}
			anc = p.Parent
		}
		e.Parent = parent
		return nil
	})
}

// DeleteEntity removes an entity, cascading removal of its relations and
// clearing parent links of its children.
func (idx *Index) DeleteEntity(name string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	e, ok := idx.entities[name]
	if !ok {
		return errors.NotFound(name)
	}

	old := e.Clone()
	delete(idx.entities, name)
	for i, n := range idx.order {
		if n == name {
			idx.order = append(idx.order[:i], idx.order[i+1:]...)
			break
		}
	}
	for rel := range idx.relations {
		if rel.From == name || rel.To == name {
			delete(idx.relations, rel)
		}
	}
	for _, child := range idx.entities {
		if child.Parent == name {
			child.Parent = ""
			idx.invalidateLowered(child.Name)
		}
	}
	idx.unindexObservationWords(name)
	idx.commit(Event{Kind: EventDeleted, Name: name, Old: old})
	return nil
}

// CreateRelation inserts a directed typed edge. Both endpoints must exist.
// Re-creating an existing relation is a no-op.
func (idx *Index) CreateRelation(r Relation) error {
	if r.From == "" || r.To == "" || r.Type == "" {
		return errors.Validation("relation requires from, to, and type")
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.entities[r.From]; !ok {
		return errors.NotFound(r.From)
	}
	if _, ok := idx.entities[r.To]; !ok {
		return errors.NotFound(r.To)
	}
	if _, exists := idx.relations[r]; exists {
		return nil
	}
	idx.relations[r] = struct{}{}
	idx.commit(Event{Kind: EventRelationCreated, Name: r.From})
	return nil
}

// DeleteRelation removes an edge. Fails with NotFound if absent.
func (idx *Index) DeleteRelation(r Relation) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, exists := idx.relations[r]; !exists {
		return errors.Newf(errors.ErrCodeRelationNotFound, "relation %s-[%s]->%s not found", r.From, r.Type, r.To)
	}
	delete(idx.relations, r)
	idx.commit(Event{Kind: EventRelationDeleted, Name: r.From})
	return nil
}

// GetByName returns a snapshot of the entity, or a NotFound error.
func (idx *Index) GetByName(name string) (*Entity, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	e, ok := idx.entities[name]
	if !ok {
		return nil, errors.NotFound(name)
	}
	return e.Clone(), nil
}

// Contains reports whether an entity exists.
func (idx *Index) Contains(name string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.entities[name]
	return ok
}

// Entities returns entity snapshots in insertion order.
func (idx *Index) Entities() []*Entity {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	result := make([]*Entity, 0, len(idx.order))
	for _, name := range idx.order {
		if e, ok := idx.entities[name]; ok {
			result = append(result, e.Clone())
		}
	}
	return result
}

// Names returns entity names in insertion order.
func (idx *Index) Names() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return append([]string(nil), idx.order...)
}

// Relations returns all relations, ordered deterministically.
func (idx *Index) Relations() []Relation {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return sortRelations(idx.relations)
}

// RelationsAmong returns relations whose endpoints are both in names.
// Used for subgraph projection of search results.
func (idx *Index) RelationsAmong(names []string) []Relation {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	matched := make(map[Relation]struct{})
	for rel := range idx.relations {
		if _, okFrom := set[rel.From]; !okFrom {
			continue
		}
		if _, okTo := set[rel.To]; !okTo {
			continue
		}
		matched[rel] = struct{}{}
	}
	return sortRelations(matched)
}

// GetLowered returns the cached lower-cased view of an entity, computing it
// lazily on first read.
func (idx *Index) GetLowered(name string) (*LoweredEntity, error) {
	idx.loweredMu.RLock()
	if le, ok := idx.lowered[name]; ok {
		idx.loweredMu.RUnlock()
		return le, nil
	}
	idx.loweredMu.RUnlock()

	e, err := idx.GetByName(name)
	if err != nil {
		return nil, err
	}
	le := e.lower()

	idx.loweredMu.Lock()
	idx.lowered[name] = le
	idx.loweredMu.Unlock()
	return le, nil
}

// EntitiesByObservationWord returns the names of entities whose observations
// contain the exact token. The word must already be lower-cased.
func (idx *Index) EntitiesByObservationWord(word string) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	set, ok := idx.obsWords[word]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasObservationWord reports in O(1) whether the named entity's
// observations contain the exact token (lower-cased).
func (idx *Index) HasObservationWord(name, word string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.obsWords[word][name]
	return ok
}

// mutate runs fn on the canonical entity under the write lock, refreshes
// derived state, stamps LastModified monotonically, and publishes Updated.
func (idx *Index) mutate(name string, fn func(*Entity) error) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	e, ok := idx.entities[name]
	if !ok {
		return errors.NotFound(name)
	}

	old := e.Clone()
	if err := fn(e); err != nil {
		return err
	}

	nowTime := idx.now()
	if !nowTime.After(e.LastModified) {
		nowTime = e.LastModified.Add(time.Nanosecond)
	}
	e.LastModified = nowTime

	idx.unindexObservationWords(name)
	idx.indexObservationWords(e)
	idx.commit(Event{Kind: EventUpdated, Name: name, Old: old, New: e.Clone()})
	return nil
}

// commit bumps the generation, invalidates the lowered cache for the entity,
// and delivers the event synchronously. Caller holds the write lock.
func (idx *Index) commit(ev Event) {
	idx.generation.Add(1)
	idx.invalidateLowered(ev.Name)
	idx.registry.publish(ev)
}

func (idx *Index) invalidateLowered(name string) {
	idx.loweredMu.Lock()
	delete(idx.lowered, name)
	idx.loweredMu.Unlock()
}

func (idx *Index) indexObservationWords(e *Entity) {
	words := e.observationWords()
	idx.entityWords[e.Name] = words
	for word := range words {
		set, ok := idx.obsWords[word]
		if !ok {
			set = make(map[string]struct{})
			idx.obsWords[word] = set
		}
		set[e.Name] = struct{}{}
	}
}

func (idx *Index) unindexObservationWords(name string) {
	for word := range idx.entityWords[name] {
		if set, ok := idx.obsWords[word]; ok {
			delete(set, name)
			if len(set) == 0 {
				delete(idx.obsWords, word)
			}
		}
	}
	delete(idx.entityWords, name)
}

func validateEntity(e *Entity, maxObsLen int) error {
	if strings.TrimSpace(e.Name) == "" {
		return errors.Validation("entity name is required")
	}
	if len(e.Name) > MaxNameLength {
		return errors.Newf(errors.ErrCodeInvalidInput, "entity name exceeds %d characters", MaxNameLength)
	}
	for _, obs := range e.Observations {
		if err := validateObservation(obs, maxObsLen); err != nil {
			return err
		}
	}
	if e.Importance != nil {
		if err := validateImportance(*e.Importance); err != nil {
			return err
		}
	}
	return nil
}

func validateObservation(obs string, maxLen int) error {
	if maxLen > 0 && len(obs) > maxLen {
		return errors.Newf(errors.ErrCodeInvalidInput, "observation exceeds %d characters", maxLen)
	}
	return nil
}

func validateImportance(v float64) error {
	if v < ImportanceMin || v > ImportanceMax {
		return errors.Newf(errors.ErrCodeImportanceRange, "importance %.2f outside [%.0f,%.0f]", v, ImportanceMin, ImportanceMax)
	}
	return nil
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		norm := textutil.NormalizeTag(tag)
		if norm == "" {
			continue
		}
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		result = append(result, norm)
	}
	return result
}

func removeAll(items []string, remove []string) []string {
	drop := make(map[string]struct{}, len(remove))
	for _, r := range remove {
		drop[r] = struct{}{}
	}
	kept := items[:0]
	for _, item := range items {
		if _, gone := drop[item]; !gone {
			kept = append(kept, item)
		}
	}
	return append([]string(nil), kept...)
}

func sortRelations(set map[Relation]struct{}) []Relation {
	result := make([]Relation, 0, len(set))
	for rel := range set {
		result = append(result, rel)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].From != result[j].From {
			return result[i].From < result[j].From
		}
		if result[i].To != result[j].To {
			return result[i].To < result[j].To
		}
		return result[i].Type < result[j].Type
	})
	return result
}
