package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// schemaVersion is bumped whenever migrate gains a step.
const schemaVersion = "2"

// migrate creates all tables if they don't exist and seeds metadata.
func (s *SQLiteStore) migrate() error {
	bootstrapDone, err := s.isMetaFlagEnabled("schema_bootstrap_complete")
	if err != nil {
		return fmt.Errorf("checking bootstrap state: %w", err)
	}

	if !bootstrapDone {
		if err := s.runBootstrapDDL(); err != nil {
			return err
		}
	}

	if err := s.seedMeta(); err != nil {
		return fmt.Errorf("seeding metadata: %w", err)
	}

	if !bootstrapDone {
		if err := s.setMetaFlag("schema_bootstrap_complete"); err != nil {
			return fmt.Errorf("marking bootstrap complete: %w", err)
		}
	}

	// v2: per-domain and per-status task lookups for the board view.
	if err := s.migrateTaskIndexes(); err != nil {
		return fmt.Errorf("migrating task indexes: %w", err)
	}
	return nil
}

func (s *SQLiteStore) runBootstrapDDL() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS workshops (
			id                TEXT PRIMARY KEY,
			name              TEXT NOT NULL,
			domains           TEXT NOT NULL DEFAULT '[]',
			participant_count INTEGER NOT NULL DEFAULT 0,
			status            TEXT NOT NULL,
			last_error        TEXT NOT NULL DEFAULT '',
			created_at        TEXT NOT NULL,
			updated_at        TEXT NOT NULL,
			analyzed_at       TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS files (
			id            TEXT PRIMARY KEY,
			workshop_id   TEXT NOT NULL REFERENCES workshops(id) ON DELETE CASCADE,
			original_name TEXT NOT NULL,
			mime_type     TEXT NOT NULL DEFAULT '',
			size          INTEGER NOT NULL DEFAULT 0,
			status        TEXT NOT NULL,
			error         TEXT NOT NULL DEFAULT '',
			content       TEXT NOT NULL DEFAULT '',
			uploaded_at   TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_files_workshop ON files(workshop_id)`,

		`CREATE TABLE IF NOT EXISTS tasks (
			workshop_id    TEXT NOT NULL REFERENCES workshops(id) ON DELETE CASCADE,
			id             TEXT NOT NULL,
			position       INTEGER NOT NULL,
			domain         TEXT NOT NULL,
			status         TEXT NOT NULL,
			data           TEXT NOT NULL,
			source_file_id TEXT NOT NULL DEFAULT '',
			source_name    TEXT NOT NULL DEFAULT '',
			created_at     TEXT NOT NULL,
			PRIMARY KEY (workshop_id, id)
		)`,
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning bootstrap: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("executing %q: %w", truncate(stmt, 60), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing bootstrap: %w", err)
	}
	return nil
}

func (s *SQLiteStore) isMetaFlagEnabled(key string) (bool, error) {
	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='meta'`).Scan(&exists); err != nil {
		return false, err
	}
	if exists == 0 {
		return false, nil
	}

	var value string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return value == "true", nil
}

func (s *SQLiteStore) setMetaFlag(key string) error {
	_, err := s.db.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES (?, 'true')", key)
	return err
}

// metaValue returns "" for a missing key.
func (s *SQLiteStore) metaValue(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// seedMeta initializes the meta table with defaults if not already set.
func (s *SQLiteStore) seedMeta() error {
	defaults := map[string]string{
		"schema_version": "1",
		"created_at":     time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range defaults {
		if _, err := s.db.Exec("INSERT OR IGNORE INTO meta (key, value) VALUES (?, ?)", k, v); err != nil {
			return fmt.Errorf("seeding meta key %q: %w", k, err)
		}
	}
	return nil
}

func (s *SQLiteStore) migrateTaskIndexes() error {
	done, err := s.isMetaFlagEnabled("task_indexes_v2")
	if err != nil {
		return err
	}
	if done {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning index migration: %w", err)
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE INDEX IF NOT EXISTS idx_tasks_domain ON tasks(workshop_id, domain)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(workshop_id, status)`,
		`UPDATE meta SET value = '` + schemaVersion + `' WHERE key = 'schema_version'`,
		`INSERT OR REPLACE INTO meta (key, value) VALUES ('task_indexes_v2', 'true')`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("executing %q: %w", truncate(stmt, 60), err)
		}
	}
	return tx.Commit()
}

// SchemaVersion reports the schema version recorded in the meta table.
func (s *SQLiteStore) SchemaVersion() (string, error) {
	return s.metaValue("schema_version")
}

func truncate(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
