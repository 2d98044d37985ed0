package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Aman-CERP/graphmem/internal/errors"
	"github.com/Aman-CERP/graphmem/internal/graph"
)

// SQLiteStore persists the graph in a SQLite database (pure Go driver).
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS entities (
	name          TEXT PRIMARY KEY,
	entity_type   TEXT NOT NULL DEFAULT '',
	observations  TEXT NOT NULL DEFAULT '[]',
	tags          TEXT NOT NULL DEFAULT '[]',
	importance    REAL,
	parent        TEXT NOT NULL DEFAULT '',
	created_at    TEXT NOT NULL,
	last_modified TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS relations (
	from_name TEXT NOT NULL,
	to_name   TEXT NOT NULL,
	rel_type  TEXT NOT NULL,
	PRIMARY KEY (from_name, to_name, rel_type)
);
`

// NewSQLiteStore opens (or creates) a SQLite-backed store at path.
// Use ":memory:" for an ephemeral database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Backend("open sqlite database", err)
	}
	// Single writer; the engine serializes mutations upstream.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, errors.Backend("create sqlite schema", err)
	}
	return &SQLiteStore{db: db}, nil
}

// LoadSnapshot reads the full graph.
func (s *SQLiteStore) LoadSnapshot(ctx context.Context) (*Graph, error) {
	g := &Graph{}

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, entity_type, observations, tags, importance, parent, created_at, last_modified
		 FROM entities ORDER BY created_at, name`)
	if err != nil {
		return nil, errors.Backend("query entities", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		g.Entities = append(g.Entities, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Backend("iterate entities", err)
	}

	relRows, err := s.db.QueryContext(ctx,
		`SELECT from_name, to_name, rel_type FROM relations ORDER BY from_name, to_name, rel_type`)
	if err != nil {
		return nil, errors.Backend("query relations", err)
	}
	defer func() { _ = relRows.Close() }()

	for relRows.Next() {
		var r graph.Relation
		if err := relRows.Scan(&r.From, &r.To, &r.Type); err != nil {
			return nil, errors.Backend("scan relation", err)
		}
		g.Relations = append(g.Relations, r)
	}
	if err := relRows.Err(); err != nil {
		return nil, errors.Backend("iterate relations", err)
	}
	return g, nil
}

// SaveSnapshot replaces the stored graph in one transaction.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, g *Graph) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Backend("begin snapshot transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entities`); err != nil {
		return errors.Backend("clear entities", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM relations`); err != nil {
		return errors.Backend("clear relations", err)
	}

	for i := range g.Entities {
		if err := upsertEntity(ctx, tx, &g.Entities[i]); err != nil {
			return err
		}
	}
	for _, r := range g.Relations {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO relations (from_name, to_name, rel_type) VALUES (?, ?, ?)`,
			r.From, r.To, r.Type); err != nil {
			return errors.Backend("insert relation", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Backend("commit snapshot", err)
	}
	return nil
}

// Append applies a single mutation.
func (s *SQLiteStore) Append(ctx context.Context, m Mutation) error {
	switch m.Op {
	case OpPutEntity:
		if m.Entity == nil {
			return errors.Validation("put_entity requires an entity")
		}
		return upsertEntity(ctx, s.db, m.Entity)
	case OpDeleteEntity:
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return errors.Backend("begin delete transaction", err)
		}
		defer func() { _ = tx.Rollback() }()
		if _, err := tx.ExecContext(ctx, `DELETE FROM entities WHERE name = ?`, m.Name); err != nil {
			return errors.Backend("delete entity", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM relations WHERE from_name = ? OR to_name = ?`, m.Name, m.Name); err != nil {
			return errors.Backend("delete entity relations", err)
		}
		if err := tx.Commit(); err != nil {
			return errors.Backend("commit delete", err)
		}
		return nil
	case OpPutRelation:
		if m.Relation == nil {
			return errors.Validation("put_relation requires a relation")
		}
		_, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO relations (from_name, to_name, rel_type) VALUES (?, ?, ?)`,
			m.Relation.From, m.Relation.To, m.Relation.Type)
		if err != nil {
			return errors.Backend("insert relation", err)
		}
		return nil
	case OpDeleteRelation:
		if m.Relation == nil {
			return errors.Validation("delete_relation requires a relation")
		}
		_, err := s.db.ExecContext(ctx,
			`DELETE FROM relations WHERE from_name = ? AND to_name = ? AND rel_type = ?`,
			m.Relation.From, m.Relation.To, m.Relation.Type)
		if err != nil {
			return errors.Backend("delete relation", err)
		}
		return nil
	default:
		return errors.Validation(fmt.Sprintf("unknown mutation op %q", m.Op))
	}
}

// EntityByName fetches one entity.
func (s *SQLiteStore) EntityByName(ctx context.Context, name string) (*graph.Entity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT name, entity_type, observations, tags, importance, parent, created_at, last_modified
		 FROM entities WHERE name = ?`, name)
	e, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound(name)
	}
	return e, err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ GraphStore = (*SQLiteStore)(nil)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertEntity(ctx context.Context, db execer, e *graph.Entity) error {
	obs, err := json.Marshal(e.Observations)
	if err != nil {
		return errors.Backend("encode observations", err)
	}
	tags, err := json.Marshal(e.Tags)
	if err != nil {
		return errors.Backend("encode tags", err)
	}

	var importance any
	if e.Importance != nil {
		importance = *e.Importance
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO entities (name, entity_type, observations, tags, importance, parent, created_at, last_modified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			entity_type = excluded.entity_type,
			observations = excluded.observations,
			tags = excluded.tags,
			importance = excluded.importance,
			parent = excluded.parent,
			last_modified = excluded.last_modified`,
		e.Name, e.EntityType, string(obs), string(tags), importance, e.Parent,
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
		e.LastModified.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return errors.Backend("upsert entity", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (*graph.Entity, error) {
	var e graph.Entity
	var obs, tags, createdAt, lastModified string
	var importance sql.NullFloat64

	err := row.Scan(&e.Name, &e.EntityType, &obs, &tags, &importance, &e.Parent, &createdAt, &lastModified)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, errors.Backend("scan entity", err)
	}

	if err := json.Unmarshal([]byte(obs), &e.Observations); err != nil {
		return nil, errors.Backend("decode observations", err)
	}
	if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil {
		return nil, errors.Backend("decode tags", err)
	}
	if importance.Valid {
		v := importance.Float64
		e.Importance = &v
	}
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, errors.Backend("parse created_at", err)
	}
	if e.LastModified, err = time.Parse(time.RFC3339Nano, lastModified); err != nil {
		return nil, errors.Backend("parse last_modified", err)
	}
	return &e, nil
}
