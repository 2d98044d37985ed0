// Package vector provides the entity vector store used by semantic search:
// unit vectors keyed by entity name with cosine nearest-neighbour lookup,
// backed by a pure Go HNSW graph.
package vector

import (
	"math"
	"sort"
	"sync"

	"github.com/coder/hnsw"

	"github.com/Aman-CERP/graphmem/internal/errors"
)

// Result is a single nearest-neighbour hit.
type Result struct {
	Name string
	// Score is normalized cosine similarity in [0,1].
	Score float64
}

// Store maps entity names to unit vectors of a fixed dimension.
type Store struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[uint64]
	dim   int

	// String IDs are mapped to uint64 keys for the graph. Replacements and
	// removals orphan the old key instead of deleting the node: deleting the
	// last graph node corrupts neighbour lists in the underlying library.
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64
	orphans int
}

// NewStore creates a vector store for vectors of the given dimension.
func NewStore(dim int) *Store {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 32
	graph.Ml = 0.25

	return &Store{
		graph:  graph,
		dim:    dim,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}
}

// Dimension returns the stored vector dimension.
func (s *Store) Dimension() int {
	return s.dim
}

// Len returns the number of live vectors.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.idMap)
}

// Contains reports whether a vector exists for the name.
func (s *Store) Contains(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.idMap[name]
	return ok
}

// Names returns all names with a live vector, sorted.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.idMap))
	for name := range s.idMap {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Add inserts or replaces the vector for name. The vector is copied and
// normalized to unit length before insertion.
func (s *Store) Add(name string, vec []float32) error {
	if len(vec) != s.dim {
		return errors.Newf(errors.ErrCodeDimensionMismatch,
			"vector dimension mismatch: expected %d, got %d", s.dim, len(vec))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if oldKey, exists := s.idMap[name]; exists {
		delete(s.keyMap, oldKey)
		delete(s.idMap, name)
		s.orphans++
	}

	key := s.nextKey
	s.nextKey++

	unit := make([]float32, len(vec))
	copy(unit, vec)
	normalizeInPlace(unit)

	s.graph.Add(hnsw.MakeNode(key, unit))
	s.idMap[name] = key
	s.keyMap[key] = name
	return nil
}

// Remove deletes the vector for name. Removing an absent name is a no-op.
func (s *Store) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.idMap[name]
	if !ok {
		return
	}
	delete(s.idMap, name)
	delete(s.keyMap, key)
	s.orphans++
}

// Search returns up to k nearest neighbours by cosine similarity,
// sorted by score descending with ties broken by name.
func (s *Store) Search(query []float32, k int) ([]Result, error) {
	if len(query) != s.dim {
		return nil, errors.Newf(errors.ErrCodeDimensionMismatch,
			"query dimension mismatch: expected %d, got %d", s.dim, len(query))
	}
	if k <= 0 {
		return []Result{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.idMap) == 0 {
		return []Result{}, nil
	}

	unit := make([]float32, len(query))
	copy(unit, query)
	normalizeInPlace(unit)

	// Over-fetch to compensate for orphaned keys still present in the graph.
	nodes := s.graph.Search(unit, k+s.orphans)

	results := make([]Result, 0, k)
	for _, node := range nodes {
		name, live := s.keyMap[node.Key]
		if !live {
			continue
		}
		distance := s.graph.Distance(unit, node.Value)
		results = append(results, Result{Name: name, Score: cosineScore(distance)})
		if len(results) == k {
			break
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Name < results[j].Name
	})
	return results, nil
}

// cosineScore converts cosine distance (0..2) to similarity in [0,1].
func cosineScore(distance float32) float64 {
	score := 1 - float64(distance)/2
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func normalizeInPlace(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}
