package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"github.com/Aman-CERP/graphmem/internal/errors"
	"github.com/Aman-CERP/graphmem/internal/graph"
)

// record is one line of the journal file. Snapshot lines carry entities and
// relations; mutation lines are replayed over them in file order.
type record struct {
	Type     string          `json:"type"` // "entity", "relation", "mutation"
	Entity   *graph.Entity   `json:"entity,omitempty"`
	Relation *graph.Relation `json:"relation,omitempty"`
	Mutation *Mutation       `json:"mutation,omitempty"`
}

// JSONLStore persists the graph as a line-delimited JSON journal.
// SaveSnapshot compacts the file to snapshot lines; Append adds mutation
// lines replayed on load. A sibling .lock file serializes access across
// processes.
type JSONLStore struct {
	mu   sync.Mutex
	path string
	lock *flock.Flock
}

// NewJSONLStore opens (or creates) a journal at path.
func NewJSONLStore(path string) (*JSONLStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Backend("create journal directory", err)
	}
	return &JSONLStore{
		path: path,
		lock: flock.New(path + ".lock"),
	}, nil
}

// Path returns the journal file path.
func (s *JSONLStore) Path() string {
	return s.path
}

// LoadSnapshot reads snapshot lines and replays mutation lines in order.
func (s *JSONLStore) LoadSnapshot(ctx context.Context) (*Graph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.Lock(); err != nil {
		return nil, errors.Backend("acquire journal lock", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return &Graph{}, nil
	}
	if err != nil {
		return nil, errors.Backend("open journal", err)
	}
	defer func() { _ = f.Close() }()

	g := &Graph{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if cerr := errors.FromContext(ctx); cerr != nil {
			return nil, cerr
		}
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var rec record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, errors.Backend(fmt.Sprintf("journal line %d is corrupt", line), err)
		}
		switch rec.Type {
		case "entity":
			if rec.Entity != nil {
				g.Entities = append(g.Entities, *rec.Entity)
			}
		case "relation":
			if rec.Relation != nil {
				g.Relations = append(g.Relations, *rec.Relation)
			}
		case "mutation":
			if rec.Mutation != nil {
				g.apply(*rec.Mutation)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Backend("read journal", err)
	}
	return g, nil
}

// SaveSnapshot rewrites the journal as pure snapshot lines, atomically via
// a temp file rename.
func (s *JSONLStore) SaveSnapshot(ctx context.Context, g *Graph) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.Lock(); err != nil {
		return errors.Backend("acquire journal lock", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".graphmem-*.jsonl")
	if err != nil {
		return errors.Backend("create temp journal", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	w := bufio.NewWriter(tmp)
	write := func(rec record) error {
		if cerr := errors.FromContext(ctx); cerr != nil {
			return cerr
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return errors.Backend("encode journal record", err)
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return errors.Backend("write journal record", err)
		}
		return nil
	}

	for i := range g.Entities {
		if err := write(record{Type: "entity", Entity: &g.Entities[i]}); err != nil {
			_ = tmp.Close()
			return err
		}
	}
	for i := range g.Relations {
		if err := write(record{Type: "relation", Relation: &g.Relations[i]}); err != nil {
			_ = tmp.Close()
			return err
		}
	}

	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		return errors.Backend("flush journal", err)
	}
	if err := tmp.Close(); err != nil {
		return errors.Backend("close temp journal", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return errors.Backend("replace journal", err)
	}
	return nil
}

// Append adds one mutation line to the journal.
func (s *JSONLStore) Append(ctx context.Context, m Mutation) error {
	if cerr := errors.FromContext(ctx); cerr != nil {
		return cerr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.Lock(); err != nil {
		return errors.Backend("acquire journal lock", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Backend("open journal for append", err)
	}
	defer func() { _ = f.Close() }()

	data, err := json.Marshal(record{Type: "mutation", Mutation: &m})
	if err != nil {
		return errors.Backend("encode mutation", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return errors.Backend("append mutation", err)
	}
	return nil
}

// EntityByName scans the journal for a single entity.
func (s *JSONLStore) EntityByName(ctx context.Context, name string) (*graph.Entity, error) {
	g, err := s.LoadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	for i := range g.Entities {
		if g.Entities[i].Name == name {
			e := g.Entities[i]
			return &e, nil
		}
	}
	return nil, errors.NotFound(name)
}

// Close is a no-op for the journal store.
func (s *JSONLStore) Close() error {
	return nil
}

var _ GraphStore = (*JSONLStore)(nil)
