// Package inbox provides SQLite storage for contact submissions accepted
// without a relay.
package inbox

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/KaramelBytes/folio/internal/relay"
	"github.com/KaramelBytes/folio/internal/utils"
)

// timeLayout is fixed-width so that text order matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// DB wraps the SQLite connection.
type DB struct {
	conn *sql.DB
}

// Open opens or creates an inbox database at path.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := utils.EnsureDir(dir); err != nil {
			return nil, fmt.Errorf("mkdir inbox dir: %w", err)
		}
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Single writer; WAL lets readers (folio inbox) run alongside the server.
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS submissions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		topic TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL,
		locale TEXT NOT NULL DEFAULT '',
		submitted_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_submissions_submitted_at ON submissions(submitted_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Record stores msg.
func (db *DB) Record(ctx context.Context, msg relay.Message) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO submissions (id, name, email, topic, message, locale, submitted_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.Name, msg.Email, msg.Topic, msg.Message, msg.Locale, msg.SubmittedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

// List returns up to limit submissions, newest first. A non-positive limit
// returns everything.
func (db *DB) List(ctx context.Context, limit int) ([]relay.Message, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name, email, topic, message, locale, submitted_at FROM submissions ORDER BY submitted_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	out := []relay.Message{}
	for rows.Next() {
		var m relay.Message
		var at string
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Topic, &m.Message, &m.Locale, &at); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		if t, err := time.Parse(timeLayout, at); err == nil {
			m.SubmittedAt = t
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Count returns the number of stored submissions.
func (db *DB) Count(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM submissions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count submissions: %w", err)
	}
	return n, nil
}
