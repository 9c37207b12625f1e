package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// InitSchema creates all necessary tables and indexes.
// Note: WAL mode and foreign keys are configured per pool in db.go.
func InitSchema(ctx context.Context, db *sql.DB) error {
	// Create courses table
	if err := createCoursesTable(ctx, db); err != nil {
		return err
	}

	// Create curricula table
	if err := createCurriculaTable(ctx, db); err != nil {
		return err
	}

	// Create progress table
	return createProgressTable(ctx, db)
}

// createCoursesTable creates the extracted course catalog table.
// (curriculum, name) is unique case-insensitively so re-syncs merge onto
// existing rows instead of accumulating casing variants.
func createCoursesTable(ctx context.Context, db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS courses (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		curriculum TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT 'General',
		url TEXT,
		duration TEXT,
		effort TEXT,
		prerequisites TEXT,
		description TEXT,
		topics TEXT NOT NULL DEFAULT '[]',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE(curriculum, name COLLATE NOCASE)
	);
	CREATE INDEX IF NOT EXISTS idx_courses_curriculum ON courses(curriculum);
	CREATE INDEX IF NOT EXISTS idx_courses_category ON courses(curriculum, category);
	CREATE INDEX IF NOT EXISTS idx_courses_name ON courses(name);
	`

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create courses table: %w", err)
	}

	return nil
}

func createCurriculaTable(ctx context.Context, db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS curricula (
		name TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		description TEXT,
		github_url TEXT,
		total_courses INTEGER NOT NULL DEFAULT 0,
		last_synced INTEGER
	);
	`

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create curricula table: %w", err)
	}

	return nil
}

// createProgressTable creates the per-course study state table.
// course_id cascades so progress disappears with its course when a catalog
// replace removes it; the sync merge path keeps course ids stable precisely
// to avoid triggering that cascade for surviving courses.
func createProgressTable(ctx context.Context, db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS progress (
		course_id TEXT PRIMARY KEY REFERENCES courses(id) ON DELETE CASCADE,
		status TEXT NOT NULL DEFAULT 'not_started' CHECK(status IN ('not_started', 'in_progress', 'completed')),
		percentage REAL NOT NULL DEFAULT 0,
		time_spent_hours REAL NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT '',
		started_at INTEGER,
		completed_at INTEGER,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_progress_status ON progress(status);
	`

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create progress table: %w", err)
	}

	return nil
}
