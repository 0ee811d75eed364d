// Package source reads sessions and assistant messages from an OpenCode
// SQLite database. The database is opened read-only and never modified.
package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Open when the database file does not exist.
var ErrNotFound = errors.New("database not found")

// Message is one row of the message table.
type Message struct {
	ID        string
	SessionID string
	Data      []byte
}

// Source provides the two result sets a poll cycle needs.
type Source interface {
	// SessionCount returns the number of rows in the session table.
	SessionCount(ctx context.Context) (int64, error)
	// AssistantMessages returns assistant messages that carry a tokens field.
	AssistantMessages(ctx context.Context) ([]Message, error)
	// Close releases resources.
	Close() error
}

// SQLiteSource implements Source over a read-only SQLite connection.
type SQLiteSource struct {
	db *sql.DB
}

// Rows whose data is not valid JSON are skipped here; json_extract would
// otherwise fail the whole query.
const assistantMessagesQuery = `
SELECT m.id, m.session_id, m.data
FROM message m
WHERE CASE WHEN json_valid(m.data)
	THEN json_extract(m.data, '$.role') = 'assistant'
		AND json_extract(m.data, '$.tokens') IS NOT NULL
	ELSE 0 END
ORDER BY m.id`

// Open opens the database at path in read-only mode.
func Open(path string) (*SQLiteSource, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("stat source db: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("source db %s is a directory", path)
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open source db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping source db: %w", err)
	}
	return &SQLiteSource{db: db}, nil
}

var uriPathEscaper = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

// dsn builds a read-only URI so the driver never creates or writes the file.
func dsn(path string) string {
	q := url.Values{}
	q.Set("mode", "ro")
	q.Add("_pragma", "busy_timeout(5000)")
	return "file:" + uriPathEscaper.Replace(path) + "?" + q.Encode()
}

// SessionCount returns the number of sessions.
func (s *SQLiteSource) SessionCount(ctx context.Context) (int64, error) {
	var n sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM session`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n.Int64, nil
}

// AssistantMessages returns assistant messages with a non-null tokens field,
// ordered by id.
func (s *SQLiteSource) AssistantMessages(ctx context.Context) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, assistantMessagesQuery)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var id, sessionID, data sql.NullString
		if err := rows.Scan(&id, &sessionID, &data); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, Message{
			ID:        id.String,
			SessionID: sessionID.String,
			Data:      []byte(data.String),
		})
	}
	return msgs, rows.Err()
}

// Close releases the database connection.
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}
