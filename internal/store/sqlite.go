package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/liwenzhu/kali-chat/internal/model/chat"
)

// ErrSessionNotFound indicates the session row does not exist.
var ErrSessionNotFound = errors.New("session not found")

// Store persists sessions, messages and summaries in SQLite.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY CHECK(length(id) = 36),
    persistent INTEGER NOT NULL DEFAULT 1,
    created_at TEXT DEFAULT CURRENT_TIMESTAMP,
    last_active TEXT,
    summary TEXT
);

CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY,
    session_id TEXT NOT NULL CHECK(length(session_id) = 36),
    role TEXT CHECK(role IN ('user','assistant','system')),
    content TEXT NOT NULL,
    timestamp TEXT DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE CASCADE
);
`

// Open creates the database file if needed and verifies the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the underlying connections.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSession inserts a session row.
func (s *Store) CreateSession(ctx context.Context, id string, persistent bool) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions (id, persistent, last_active) VALUES (?, ?, CURRENT_TIMESTAMP)",
		id, persistent)
	if err != nil {
		return fmt.Errorf("create session %s: %w", id, err)
	}
	return nil
}

// HasSession reports whether a session row exists.
func (s *Store) HasSession(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM sessions WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// IsPersistent reports the persistence flag; missing sessions are not persistent.
func (s *Store) IsPersistent(ctx context.Context, id string) (bool, error) {
	var persistent bool
	err := s.db.QueryRowContext(ctx, "SELECT persistent FROM sessions WHERE id = ?", id).Scan(&persistent)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return persistent, nil
}

// AddMessage appends a message, creating the session row on demand and
// bumping its activity timestamp, all in one transaction.
func (s *Store) AddMessage(ctx context.Context, sessionID, role, content string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO sessions (id, persistent) VALUES (?, 0)", sessionID); err != nil {
		return fmt.Errorf("ensure session: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO messages (session_id, role, content) VALUES (?, ?, ?)",
		sessionID, role, content); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE sessions SET last_active = CURRENT_TIMESTAMP WHERE id = ?", sessionID); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}

	return tx.Commit()
}

// Messages returns up to limit messages in chronological order.
func (s *Store) Messages(ctx context.Context, sessionID string, limit int) ([]chat.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, timestamp FROM messages
		 WHERE session_id = ? ORDER BY id DESC LIMIT ?`,
		sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []chat.Message
	for rows.Next() {
		var msg chat.Message
		var ts sql.NullString
		if err := rows.Scan(&msg.Role, &msg.Content, &ts); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if ts.Valid {
			// SQLite CURRENT_TIMESTAMP format; a parse failure leaves the zero value.
			if parsed, perr := time.Parse("2006-01-02 15:04:05", ts.String); perr == nil {
				msg.Timestamp = parsed
			}
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse into chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// MessageCount returns the number of stored messages for a session.
func (s *Store) MessageCount(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM messages WHERE session_id = ?", sessionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return count, nil
}

// SaveSummary stores the conversation summary on the session row.
func (s *Store) SaveSummary(ctx context.Context, sessionID, summary string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET summary = ?, last_active = CURRENT_TIMESTAMP WHERE id = ?",
		summary, sessionID)
	if err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Summary returns the stored summary, empty when none exists.
func (s *Store) Summary(ctx context.Context, sessionID string) (string, error) {
	var summary sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT summary FROM sessions WHERE id = ?", sessionID).Scan(&summary)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", err
	}
	return summary.String, nil
}
