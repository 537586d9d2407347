// Package catalog persists model metadata and load history in SQLite.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Load outcome recorded to history.
const (
	StatusLoaded = "loaded"
	StatusFailed = "failed"
)

var ErrUnknownModel = errors.New("catalog: unknown model")

// Model is one catalogued model file.
type Model struct {
	ID        int64
	Name      string
	Path      string
	Format    string
	FileSize  int64
	NodeCount int
	MeshCount int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LoadRecord is one entry in the load history.
type LoadRecord struct {
	ID        int64
	Path      string
	Status    string
	LastError string
	Duration  time.Duration
	CreatedAt time.Time
}

// Catalog wraps SQLite access for models and load history.
type Catalog struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the catalog database at path.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	c := &Catalog{db: db, now: time.Now}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Catalog) Close() error { return c.db.Close() }

func (c *Catalog) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS models (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			path TEXT NOT NULL,
			format TEXT NOT NULL,
			file_size INTEGER NOT NULL,
			node_count INTEGER,
			mesh_count INTEGER,
			created_at TIMESTAMP,
			updated_at TIMESTAMP
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_models_path ON models(path);`,
		`CREATE TABLE IF NOT EXISTS load_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			path TEXT NOT NULL,
			status TEXT NOT NULL,
			last_error TEXT,
			duration_ms INTEGER,
			created_at TIMESTAMP
		);`,
	}
	for _, stmt := range stmts {
		if _, err := c.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate catalog: %w", err)
		}
	}
	return nil
}

// UpsertModel records a model, updating the existing row when the path
// has been catalogued before.
func (c *Catalog) UpsertModel(ctx context.Context, m Model) error {
	ts := c.now().UTC()
	_, err := c.db.ExecContext(ctx, `INSERT INTO models(name, path, format, file_size, node_count, mesh_count, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET name=excluded.name, format=excluded.format, file_size=excluded.file_size,
			node_count=excluded.node_count, mesh_count=excluded.mesh_count, updated_at=excluded.updated_at`,
		m.Name, m.Path, m.Format, m.FileSize, m.NodeCount, m.MeshCount, ts, ts)
	return err
}

// ModelByPath looks up a catalogued model. Returns ErrUnknownModel when the
// path has never been recorded.
func (c *Catalog) ModelByPath(ctx context.Context, path string) (Model, error) {
	row := c.db.QueryRowContext(ctx, `SELECT id, name, path, format, file_size, node_count, mesh_count, created_at, updated_at
		FROM models WHERE path=?`, path)
	var m Model
	var nodes, meshes sql.NullInt64
	err := row.Scan(&m.ID, &m.Name, &m.Path, &m.Format, &m.FileSize, &nodes, &meshes, &m.CreatedAt, &m.UpdatedAt)
	switch {
	case err == nil:
		m.NodeCount = int(nodes.Int64)
		m.MeshCount = int(meshes.Int64)
		return m, nil
	case errors.Is(err, sql.ErrNoRows):
		return Model{}, ErrUnknownModel
	default:
		return Model{}, err
	}
}

// RecordLoad appends one load attempt to the history.
func (c *Catalog) RecordLoad(ctx context.Context, path, status, lastError string, d time.Duration) error {
	_, err := c.db.ExecContext(ctx, `INSERT INTO load_history(path, status, last_error, duration_ms, created_at)
		VALUES(?, ?, ?, ?, ?)`,
		path, status, lastError, d.Milliseconds(), c.now().UTC())
	return err
}

// RecentLoads returns the newest history entries, newest first.
func (c *Catalog) RecentLoads(ctx context.Context, limit int) ([]LoadRecord, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT id, path, status, last_error, duration_ms, created_at
		FROM load_history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []LoadRecord
	for rows.Next() {
		var r LoadRecord
		var lastErr sql.NullString
		var ms sql.NullInt64
		if err := rows.Scan(&r.ID, &r.Path, &r.Status, &lastErr, &ms, &r.CreatedAt); err != nil {
			return nil, err
		}
		if lastErr.Valid {
			r.LastError = lastErr.String
		}
		r.Duration = time.Duration(ms.Int64) * time.Millisecond
		records = append(records, r)
	}
	return records, rows.Err()
}

// Models lists catalogued models, most recently updated first.
func (c *Catalog) Models(ctx context.Context, limit int) ([]Model, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT id, name, path, format, file_size, node_count, mesh_count, created_at, updated_at
		FROM models ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var models []Model
	for rows.Next() {
		var m Model
		var nodes, meshes sql.NullInt64
		if err := rows.Scan(&m.ID, &m.Name, &m.Path, &m.Format, &m.FileSize, &nodes, &meshes, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		m.NodeCount = int(nodes.Int64)
		m.MeshCount = int(meshes.Int64)
		models = append(models, m)
	}
	return models, rows.Err()
}

// Health returns an error if the database is not reachable.
func (c *Catalog) Health(ctx context.Context) error {
	row := c.db.QueryRowContext(ctx, `SELECT 1`)
	var v int
	if err := row.Scan(&v); err != nil {
		return fmt.Errorf("catalog health: %w", err)
	}
	return nil
}
