package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite run catalog connection
type DB struct {
	conn *sql.DB
	Path string
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	location TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	node_count INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS nodes (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	id INTEGER NOT NULL,
	parent_id INTEGER,
	step_kind TEXT NOT NULL DEFAULT '',
	node_class TEXT NOT NULL DEFAULT '',
	stage_label TEXT,
	branch_label TEXT,
	PRIMARY KEY (run_id, id)
);
CREATE TABLE IF NOT EXISTS ranges (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	node_id INTEGER NOT NULL,
	seq INTEGER NOT NULL,
	start_offset INTEGER NOT NULL,
	end_offset INTEGER NOT NULL,
	PRIMARY KEY (run_id, node_id, seq)
);
CREATE TABLE IF NOT EXISTS stages (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	label TEXT NOT NULL,
	branch TEXT,
	representative INTEGER NOT NULL,
	PRIMARY KEY (run_id, seq)
);
CREATE TABLE IF NOT EXISTS outputs (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	path TEXT NOT NULL,
	kind TEXT NOT NULL,
	stage TEXT NOT NULL,
	branch TEXT,
	node_count INTEGER NOT NULL,
	bytes INTEGER NOT NULL,
	PRIMARY KEY (run_id, path)
);
`

// OpenDB opens a SQLite database with WAL mode and foreign keys enabled and
// creates the catalog tables when missing
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection keeps per-connection pragmas and :memory: databases consistent
	conn.SetMaxOpenConns(1)

	// Enable WAL mode for concurrent reads
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	d := &DB{conn: conn, Path: path}
	if err := d.init(); err != nil {
		conn.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) init() error {
	// Enable foreign keys
	if _, err := d.conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := d.conn.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.conn.Close()
}

// Conn returns the underlying sql.DB for custom queries
func (d *DB) Conn() *sql.DB {
	return d.conn
}
