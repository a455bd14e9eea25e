package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"textbook-reader/internal/logger"
)

// Open opens (creating if needed) the SQLite content database and makes
// sure all tables exist
func Open(dbPath string, log *logger.Logger) (*sql.DB, error) {
	log = logger.OrNop(log)

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	database, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := database.Ping(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := createTables(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Info("Database initialized", "path", dbPath)
	return database, nil
}

// createTables creates all necessary tables
func createTables(database *sql.DB) error {
	statements := []struct {
		name string
		sql  string
	}{
		{"chapters", `
		CREATE TABLE IF NOT EXISTS chapters (
			id TEXT PRIMARY KEY,
			textbook_id TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			position INTEGER NOT NULL DEFAULT 0
		);`},
		{"lessons", `
		CREATE TABLE IF NOT EXISTS lessons (
			id TEXT PRIMARY KEY,
			chapter_id TEXT NOT NULL REFERENCES chapters(id) ON DELETE CASCADE,
			title TEXT NOT NULL DEFAULT '',
			position INTEGER NOT NULL DEFAULT 0,
			page_count INTEGER NOT NULL DEFAULT 1
		);`},
		{"pages", `
		CREATE TABLE IF NOT EXISTS pages (
			lesson_id TEXT NOT NULL REFERENCES lessons(id) ON DELETE CASCADE,
			number INTEGER NOT NULL,
			image_ref TEXT NOT NULL DEFAULT '',
			natural_width REAL NOT NULL DEFAULT 0,
			natural_height REAL NOT NULL DEFAULT 0,
			PRIMARY KEY (lesson_id, number)
		);`},
		{"hotspots", `
		CREATE TABLE IF NOT EXISTS hotspots (
			id TEXT NOT NULL,
			lesson_id TEXT NOT NULL,
			page_number INTEGER NOT NULL,
			kind TEXT NOT NULL DEFAULT 'other',
			audio_ref TEXT NOT NULL DEFAULT '',
			text TEXT NOT NULL DEFAULT '',
			x REAL NOT NULL,
			y REAL NOT NULL,
			width REAL NOT NULL,
			height REAL NOT NULL,
			padding REAL NOT NULL DEFAULT 0,
			PRIMARY KEY (lesson_id, page_number, id),
			FOREIGN KEY (lesson_id, page_number) REFERENCES pages(lesson_id, number) ON DELETE CASCADE
		);`},
	}

	for _, stmt := range statements {
		if _, err := database.Exec(stmt.sql); err != nil {
			return fmt.Errorf("failed to create %s table: %w", stmt.name, err)
		}
	}

	// Create index on textbook for chapter listing
	createIndex := `CREATE INDEX IF NOT EXISTS idx_chapters_textbook ON chapters(textbook_id);`
	if _, err := database.Exec(createIndex); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}
