// Package sqlitestore provides SQLite-backed store implementations.
package sqlitestore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS role_assignments (
	user_id TEXT NOT NULL,
	role    TEXT NOT NULL,
	PRIMARY KEY (user_id, role)
);

CREATE TABLE IF NOT EXISTS community_roles (
	user_id      TEXT NOT NULL,
	community_id TEXT NOT NULL,
	role         TEXT NOT NULL,
	PRIMARY KEY (user_id, community_id)
);

CREATE TABLE IF NOT EXISTS content (
	type         TEXT NOT NULL,
	id           TEXT NOT NULL,
	community_id TEXT NOT NULL,
	author_id    TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'active',
	PRIMARY KEY (type, id)
);

CREATE TABLE IF NOT EXISTS reports (
	id           TEXT PRIMARY KEY,
	target_type  TEXT NOT NULL,
	target_id    TEXT NOT NULL,
	community_id TEXT NOT NULL DEFAULT '',
	reporter_id  TEXT NOT NULL,
	reason       TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'pending',
	created_at   TEXT NOT NULL,
	resolved_by  TEXT NOT NULL DEFAULT '',
	resolved_at  TEXT
);
CREATE INDEX IF NOT EXISTS idx_reports_status ON reports (status);
CREATE INDEX IF NOT EXISTS idx_reports_target ON reports (target_type, target_id);
CREATE INDEX IF NOT EXISTS idx_reports_reporter ON reports (reporter_id, created_at);

CREATE TABLE IF NOT EXISTS moderation_actions (
	id           TEXT PRIMARY KEY,
	moderator_id TEXT NOT NULL,
	action       TEXT NOT NULL,
	target_type  TEXT NOT NULL,
	target_id    TEXT NOT NULL,
	community_id TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL DEFAULT '',
	reason       TEXT NOT NULL DEFAULT '',
	created_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_actions_target ON moderation_actions (target_type, target_id, created_at);
`

// Open opens (creating if needed) a SQLite database at path and applies the
// moderation schema. Parent directories are created as needed.
func Open(path string) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer; avoids SQLITE_BUSY under concurrent handler writes.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set pragmas: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return db, nil
}
