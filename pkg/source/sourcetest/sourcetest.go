// Package sourcetest creates OpenCode-shaped SQLite databases for tests.
package sourcetest

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE session (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL DEFAULT ''
);
CREATE TABLE message (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	data TEXT
);
`

// DB is a writable handle on a fixture database.
type DB struct {
	Path string
	db   *sql.DB
	seq  int
}

// New creates an empty OpenCode schema in a temporary directory.
func New(t testing.TB) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "opencode.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if _, err := db.Exec(schema); err != nil {
		t.Fatal(err)
	}
	return &DB{Path: path, db: db}
}

// AddSession inserts a session row and returns its id.
func (d *DB) AddSession(t testing.TB) string {
	t.Helper()
	d.seq++
	id := fmt.Sprintf("ses_%04d", d.seq)
	if _, err := d.db.Exec(`INSERT INTO session (id) VALUES (?)`, id); err != nil {
		t.Fatal(err)
	}
	return id
}

// AddMessage inserts a message row with the given raw data column.
func (d *DB) AddMessage(t testing.TB, sessionID, data string) {
	t.Helper()
	d.seq++
	id := fmt.Sprintf("msg_%04d", d.seq)
	if _, err := d.db.Exec(`INSERT INTO message (id, session_id, data) VALUES (?, ?, ?)`, id, sessionID, data); err != nil {
		t.Fatal(err)
	}
}

// Exec runs an arbitrary statement against the fixture.
func (d *DB) Exec(t testing.TB, query string, args ...any) {
	t.Helper()
	if _, err := d.db.Exec(query, args...); err != nil {
		t.Fatal(err)
	}
}
