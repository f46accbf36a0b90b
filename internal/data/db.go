package data

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL DEFAULT '',
		message_id INTEGER NOT NULL DEFAULT 0,
		content TEXT NOT NULL,
		content_hash TEXT UNIQUE NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		category_label TEXT NOT NULL DEFAULT '',
		ai_score REAL NOT NULL DEFAULT 0,
		url TEXT NOT NULL DEFAULT '',
		media_path TEXT NOT NULL DEFAULT '',
		posted_at INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_hash ON messages(content_hash)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_category ON messages(category)`,
	`CREATE TABLE IF NOT EXISTS ai_dedup_groups (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kept_content TEXT NOT NULL,
		kept_source TEXT NOT NULL DEFAULT '',
		removed_content TEXT NOT NULL,
		removed_source TEXT NOT NULL DEFAULT '',
		similarity_reason TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_dedup_created ON ai_dedup_groups(created_at)`,
	`CREATE TABLE IF NOT EXISTS summaries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT UNIQUE NOT NULL,
		content TEXT NOT NULL,
		categories TEXT NOT NULL DEFAULT '{}',
		msg_count INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	)`,
}

// OpenDB opens the SQLite store at dbPath and creates the schema
func OpenDB(dbPath string) (*sql.DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer; a single connection avoids "database is locked"
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return db, nil
}

// dayBounds returns [start, end) of the calendar day containing t, in t's location
func dayBounds(t time.Time) (int64, int64) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start.Unix(), start.AddDate(0, 0, 1).Unix()
}

// likePattern builds a LIKE pattern matching s anywhere, escaping wildcards
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func timeOrZero(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}
